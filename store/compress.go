package store

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Blobs on disk are prefixed with a one-byte algorithm tag so Get can
// decompress transparently regardless of what CompressionConfig was in
// effect when the blob was written; a store's compression setting can
// change across restarts without breaking old entries.
const (
	tagNone byte = 0
	tagZstd byte = 1
	tagLZ4  byte = 2
	tagGzip byte = 3
)

func compress(value []byte, cfg CompressionConfig) ([]byte, error) {
	if cfg.Algorithm == "" || cfg.Algorithm == CompressionNone || int64(len(value)) < cfg.MinSize {
		return append([]byte{tagNone}, value...), nil
	}
	switch cfg.Algorithm {
	case CompressionZstd:
		level := zstd.EncoderLevelFromZstd(cfg.Level)
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
		if err != nil {
			return nil, fmt.Errorf("store: compress: %w", err)
		}
		out := enc.EncodeAll(value, []byte{tagZstd})
		enc.Close()
		return out, nil
	case CompressionLZ4:
		var buf bytes.Buffer
		buf.WriteByte(tagLZ4)
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(value); err != nil {
			return nil, fmt.Errorf("store: compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("store: compress: %w", err)
		}
		return buf.Bytes(), nil
	case CompressionGzip:
		var buf bytes.Buffer
		buf.WriteByte(tagGzip)
		w, err := gzip.NewWriterLevel(&buf, gzipLevel(cfg.Level))
		if err != nil {
			return nil, fmt.Errorf("store: compress: %w", err)
		}
		if _, err := w.Write(value); err != nil {
			return nil, fmt.Errorf("store: compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("store: compress: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("store: unknown compression algorithm %q", cfg.Algorithm)
	}
}

func gzipLevel(level int) int {
	if level <= 0 {
		return gzip.DefaultCompression
	}
	if level > gzip.BestCompression {
		return gzip.BestCompression
	}
	return level
}

func decompress(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty blob")
	}
	tag, body := raw[0], raw[1:]
	switch tag {
	case tagNone:
		return body, nil
	case tagZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("init zstd reader: %w", err)
		}
		defer dec.Close()
		return dec.DecodeAll(body, nil)
	case tagLZ4:
		r := lz4.NewReader(bytes.NewReader(body))
		return io.ReadAll(r)
	case tagGzip:
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("init gzip reader: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	default:
		return nil, fmt.Errorf("unknown blob compression tag 0x%02x", tag)
	}
}
