// Package compress provides the deflate-family codec applied to objects
// during archival. Compression is reversible and, at a fixed level,
// deterministic for identical input.
package compress

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/tiervault/tiervault/pkg/errors"
)

// Codec compresses and decompresses object payloads at a configured level.
type Codec struct {
	level int
}

// NewCodec creates a codec with the given gzip level (1-9). Levels outside
// the valid range fall back to the default level.
func NewCodec(level int) *Codec {
	if level < gzip.BestSpeed || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	return &Codec{level: level}
}

// Level returns the configured compression level.
func (c *Codec) Level() int {
	return c.level
}

// Compress returns the gzip-compressed form of data.
func (c *Codec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	w, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCompressionFailed, "failed to create compressor", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCompressionFailed, "compression write failed", err)
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCompressionFailed, "compression flush failed", err)
	}

	return buf.Bytes(), nil
}

// Decompress reverses Compress, reproducing the original bytes.
func (c *Codec) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCompressionFailed, "payload is not valid gzip", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCompressionFailed, "decompression failed", err)
	}
	return out, nil
}
