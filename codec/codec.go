// Package codec centralizes the encoding of cached entries.
//
// Snapshots record the codec name in their header, so changing the default
// codec never breaks reading snapshots written with another one.
package codec

import (
	"fmt"
	"io"
)

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	NewEncoder(w io.Writer) Encoder
	NewDecoder(r io.Reader) Decoder
	Name() string
}

// Encoder writes a stream of values.
type Encoder interface {
	Encode(v any) error
}

// Decoder reads a stream of values written by the matching Encoder.
// Decode returns io.EOF after the last value.
type Decoder interface {
	Decode(v any) error
}

// ByName returns a built-in codec by its stable name.
//
// This is used by snapshots, which store the codec name in their header.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// MustMarshal is a helper for tests.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}
