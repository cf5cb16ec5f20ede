// Package compression provides the codecs used to shrink persisted draft bodies.
package compression

import "fmt"

type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// New returns the compressor registered under name. An empty name or "none" disables compression.
func New(name string) (Compressor, error) {
	switch name {
	case "zstd":
		return ZstdCompressor{}, nil
	case "gzip":
		return GzipCompressor{}, nil
	case "", "none":
		return NopCompressor{}, nil
	default:
		return nil, fmt.Errorf("unknown compression %q", name)
	}
}

type NopCompressor struct{}

func (NopCompressor) Compress(data []byte) ([]byte, error)   { return data, nil }
func (NopCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }
