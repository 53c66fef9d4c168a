package compressors

import "fmt"

// NoCompression implements the Compressor interface without performing
// compression.
type NoCompression struct{}

var _ Compressor = (*NoCompression)(nil)

func (c *NoCompression) Type() Type {
	return TypeNone
}

func (c *NoCompression) Compress(data []byte) ([]byte, error) {
	return data, nil
}

func (c *NoCompression) Decompress(data []byte, originalSize uint32) ([]byte, error) {
	if uint32(len(data)) != originalSize {
		return nil, fmt.Errorf("plain block is %d bytes, header says %d", len(data), originalSize)
	}
	return data, nil
}
