package compressors

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// ZstdCompressor implements the Compressor interface using zstd. The
// encoder and decoder are created once and reused; both are safe for use
// through EncodeAll/DecodeAll without per-call state.
type ZstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

var _ Compressor = (*ZstdCompressor)(nil)

func NewZstdCompressor() (*ZstdCompressor, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &ZstdCompressor{encoder: encoder, decoder: decoder}, nil
}

func (c *ZstdCompressor) Type() Type {
	return TypeZstd
}

func (c *ZstdCompressor) Compress(data []byte) ([]byte, error) {
	return c.encoder.EncodeAll(data, nil), nil
}

func (c *ZstdCompressor) Decompress(data []byte, originalSize uint32) ([]byte, error) {
	decoded, err := c.decoder.DecodeAll(data, make([]byte, 0, originalSize))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress error: %w", err)
	}
	if uint32(len(decoded)) != originalSize {
		return nil, fmt.Errorf("zstd block decoded to %d bytes, header says %d", len(decoded), originalSize)
	}
	return decoded, nil
}
