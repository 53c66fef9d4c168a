// Package compressors provides the codecs used by flash image snapshots.
// Each codec works on whole blocks: a snapshot compresses the full image
// in one shot and records the original size, so decompression never has to
// guess buffer sizes.
package compressors

import "fmt"

// Type identifies a codec inside a snapshot header.
type Type byte

const (
	TypeNone Type = iota
	TypeSnappy
	TypeLZ4
	TypeZstd
)

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeSnappy:
		return "snappy"
	case TypeLZ4:
		return "lz4"
	case TypeZstd:
		return "zstd"
	}
	return fmt.Sprintf("unknown(%d)", byte(t))
}

// Compressor compresses and decompresses whole blocks.
type Compressor interface {
	Type() Type
	Compress(data []byte) ([]byte, error)
	// Decompress restores a block compressed by the same codec.
	// originalSize must be the exact uncompressed size.
	Decompress(data []byte, originalSize uint32) ([]byte, error)
}

// Get returns the compressor for a snapshot header type.
func Get(t Type) (Compressor, error) {
	switch t {
	case TypeNone:
		return &NoCompression{}, nil
	case TypeSnappy:
		return &SnappyCompressor{}, nil
	case TypeLZ4:
		return &LZ4Compressor{}, nil
	case TypeZstd:
		return NewZstdCompressor()
	}
	return nil, fmt.Errorf("unknown compression type %d", byte(t))
}

// ByName resolves a codec from its command-line name.
func ByName(name string) (Compressor, error) {
	for _, t := range []Type{TypeNone, TypeSnappy, TypeLZ4, TypeZstd} {
		if t.String() == name {
			return Get(t)
		}
	}
	return nil, fmt.Errorf("unknown compression %q (want none, snappy, lz4 or zstd)", name)
}
