package mapper

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Compressor is the external contract for compressing/decompressing stored
// state bytes (spec §6). Optional: a caller passes one to mapper.New, or nil
// for none. No code in this module reads a COMPRESSOR_TOPIC key to choose
// one.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// ZstdCompressor implements Compressor using klauspost/compress/zstd, the
// compression library both cdc-worker and audit-service pull in
// transitively for their NATS/Postgres plumbing.
type ZstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstdCompressor builds a reusable encoder/decoder pair.
func NewZstdCompressor() (*ZstdCompressor, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &ZstdCompressor{encoder: enc, decoder: dec}, nil
}

func (c *ZstdCompressor) Compress(data []byte) ([]byte, error) {
	return c.encoder.EncodeAll(data, nil), nil
}

func (c *ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	out, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}

// Close releases the decoder's background goroutines.
func (c *ZstdCompressor) Close() {
	c.decoder.Close()
}
