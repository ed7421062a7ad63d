package codec

import (
	"encoding/json"
	"io"
)

// JSON is the standard-library JSON codec.
//
// Keys and values of a cache must round-trip through encoding/json: exported
// struct fields, maps with string or integer keys, slices and scalars.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// NewEncoder returns a newline-delimited JSON encoder writing to w.
func (JSON) NewEncoder(w io.Writer) Encoder { return json.NewEncoder(w) }

// NewDecoder returns a JSON stream decoder reading from r.
func (JSON) NewDecoder(r io.Reader) Decoder { return json.NewDecoder(r) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the codec used for new snapshots.
var Default Codec = GoJSON{}
