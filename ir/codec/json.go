package codec

import (
	"encoding/json"
	"fmt"

	"github.com/banksean/buildcache/ir"
)

// EncodeJSON renders g as canonical JSON. Struct field order (and Go's
// alphabetically-sorted map-key encoding) make the output byte-for-byte
// deterministic for equal graphs; pretty only affects whitespace.
func EncodeJSON(g *ir.BuildGraph, pretty bool) ([]byte, error) {
	dto, err := newGraphDTO(g)
	if err != nil {
		return nil, fmt.Errorf("codec: encode json: %w", err)
	}
	if pretty {
		return json.MarshalIndent(dto, "", "  ")
	}
	return json.Marshal(dto)
}

// DecodeJSON parses a canonical JSON payload produced by EncodeJSON. It
// rejects truncated input, a version mismatch, and unrecognized operation
// kinds.
func DecodeJSON(data []byte) (*ir.BuildGraph, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("codec: decode json: empty input")
	}
	var dto graphDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("codec: decode json: %w", err)
	}
	g, err := dto.toGraph()
	if err != nil {
		return nil, fmt.Errorf("codec: decode json: %w", err)
	}
	return g, nil
}
