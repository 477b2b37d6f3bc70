package entikit

import (
	"bytes"
	"io"

	"github.com/goccy/go-json"
)

// JSONBytes decodes a JSON document into the neutral representation
// (nil/bool/json.Number/string/[]any/map[string]any). Numbers are preserved as
// json.Number so integer fields survive values beyond float64 precision.
func JSONBytes(b []byte) (any, error) {
	return JSONReader(bytes.NewReader(b))
}

// JSONReader decodes a JSON document from r into the neutral representation.
func JSONReader(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, FieldErrors{{Path: "", Code: CodeParseError, Message: err.Error(), Cause: err}}
	}
	return v, nil
}
