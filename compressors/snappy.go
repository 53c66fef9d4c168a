package compressors

import (
	"fmt"

	"github.com/golang/snappy"
)

// SnappyCompressor implements the Compressor interface using Snappy
// blocks. It is the default snapshot codec: fast in both directions and
// good enough on flash images, which are mostly erased bytes.
type SnappyCompressor struct{}

var _ Compressor = (*SnappyCompressor)(nil)

func (c *SnappyCompressor) Type() Type {
	return TypeSnappy
}

func (c *SnappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (c *SnappyCompressor) Decompress(data []byte, originalSize uint32) ([]byte, error) {
	decoded, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("snappy decompress error: %w", err)
	}
	if uint32(len(decoded)) != originalSize {
		return nil, fmt.Errorf("snappy block decoded to %d bytes, header says %d", len(decoded), originalSize)
	}
	return decoded, nil
}
