package codec

import (
	"io"

	gojson "github.com/goccy/go-json"
)

// GoJSON is a JSON codec backed by github.com/goccy/go-json.
// Its output is interchangeable with JSON.
type GoJSON struct{}

// Marshal encodes the value to JSON.
func (GoJSON) Marshal(v any) ([]byte, error) { return gojson.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (GoJSON) Unmarshal(data []byte, v any) error { return gojson.Unmarshal(data, v) }

// NewEncoder returns a newline-delimited JSON encoder writing to w.
func (GoJSON) NewEncoder(w io.Writer) Encoder { return gojson.NewEncoder(w) }

// NewDecoder returns a JSON stream decoder reading from r.
func (GoJSON) NewDecoder(r io.Reader) Decoder { return gojson.NewDecoder(r) }

// Name returns the unique name of the codec ("go-json").
func (GoJSON) Name() string { return "go-json" }
