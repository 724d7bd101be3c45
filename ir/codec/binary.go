package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/banksean/buildcache/ir"
	"github.com/klauspost/compress/zstd"
)

// binaryMagic identifies a buildcache compact-binary graph payload.
var binaryMagic = [4]byte{'B', 'C', 'B', '1'}

const binaryVersion byte = 1

// compression tags for the binary coder's inner framing. Only zstd is
// defined today; an unrecognized tag on decode is a decode error, matching
// the "unknown algorithm tag" requirement in 
const (
	compressionZstd byte = 1
)

// UnknownAlgorithmTagError reports a compact-binary payload whose inner
// framing tag this binary does not recognize.
type UnknownAlgorithmTagError struct {
	Tag byte
}

func (e *UnknownAlgorithmTagError) Error() string {
	return fmt.Sprintf("codec: unknown algorithm tag 0x%02x", e.Tag)
}

// TruncatedError reports a compact-binary payload that ended before a
// complete frame could be read.
type TruncatedError struct {
	Context string
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("codec: truncated payload: %s", e.Context)
}

// EncodeBinary renders g as the compact binary format: a short
// self-describing header (magic, version, compression tag) followed by a
// zstd-compressed canonical JSON payload. For any graph with more than a
// handful of nodes this is smaller than the pretty/compact JSON produced by
// EncodeJSON for the same graph.
func EncodeBinary(g *ir.BuildGraph) ([]byte, error) {
	dto, err := newGraphDTO(g)
	if err != nil {
		return nil, fmt.Errorf("codec: encode binary: %w", err)
	}
	payload, err := json.Marshal(dto)
	if err != nil {
		return nil, fmt.Errorf("codec: encode binary: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("codec: encode binary: init zstd: %w", err)
	}
	compressed := enc.EncodeAll(payload, nil)
	_ = enc.Close()

	var buf bytes.Buffer
	buf.Write(binaryMagic[:])
	buf.WriteByte(binaryVersion)
	buf.WriteByte(compressionZstd)
	buf.Write(compressed)
	return buf.Bytes(), nil
}

// DecodeBinary parses a compact-binary payload produced by EncodeBinary. It
// rejects truncated input, a version mismatch, and an unrecognized
// compression tag.
func DecodeBinary(data []byte) (*ir.BuildGraph, error) {
	const headerLen = 4 + 1 + 1
	if len(data) < headerLen {
		return nil, &TruncatedError{Context: "header"}
	}
	if !bytes.Equal(data[:4], binaryMagic[:]) {
		return nil, fmt.Errorf("codec: decode binary: bad magic %x", data[:4])
	}
	version := data[4]
	if version != binaryVersion {
		return nil, &VersionMismatchError{Got: fmt.Sprintf("%d", version), Want: fmt.Sprintf("%d", binaryVersion)}
	}
	tag := data[5]
	if tag != compressionZstd {
		return nil, &UnknownAlgorithmTagError{Tag: tag}
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("codec: decode binary: init zstd: %w", err)
	}
	defer dec.Close()

	payload, err := dec.DecodeAll(data[headerLen:], nil)
	if err != nil {
		return nil, &TruncatedError{Context: fmt.Sprintf("zstd payload: %v", err)}
	}

	var dto graphDTO
	if err := json.Unmarshal(payload, &dto); err != nil {
		return nil, fmt.Errorf("codec: decode binary: %w", err)
	}
	g, err := dto.toGraph()
	if err != nil {
		return nil, fmt.Errorf("codec: decode binary: %w", err)
	}
	return g, nil
}
