package compressors

import (
	"fmt"

	lz4 "github.com/pierrec/lz4/v4"
)

// LZ4Compressor implements the Compressor interface using LZ4 blocks.
type LZ4Compressor struct{}

var _ Compressor = (*LZ4Compressor)(nil)

func (c *LZ4Compressor) Type() Type {
	return TypeLZ4
}

func (c *LZ4Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress error: %w", err)
	}
	if n == 0 {
		// The block format signals incompressible input with an empty
		// result; store the block verbatim with a one-byte marker.
		return append([]byte{0}, data...), nil
	}
	return append([]byte{1}, dst[:n]...), nil
}

func (c *LZ4Compressor) Decompress(data []byte, originalSize uint32) ([]byte, error) {
	if len(data) == 0 {
		if originalSize != 0 {
			return nil, fmt.Errorf("empty lz4 block, header says %d bytes", originalSize)
		}
		return nil, nil
	}
	marker, block := data[0], data[1:]
	if marker == 0 {
		if uint32(len(block)) != originalSize {
			return nil, fmt.Errorf("stored block is %d bytes, header says %d", len(block), originalSize)
		}
		return block, nil
	}
	dst := make([]byte, originalSize)
	n, err := lz4.UncompressBlock(block, dst)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress error: %w", err)
	}
	if uint32(n) != originalSize {
		return nil, fmt.Errorf("lz4 block decoded to %d bytes, header says %d", n, originalSize)
	}
	return dst, nil
}
