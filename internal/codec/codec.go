// Package codec holds the JSON configuration shared by provider decoding and
// persisted collections.
package codec

import (
	"bytes"

	"github.com/bytedance/sonic"
)

// JSON behaves like encoding/json with sorted map keys, unescaped HTML and
// nil slices/maps written as []/{} so persisted files stay byte-stable.
var JSON = sonic.Config{
	SortMapKeys:      true,
	CompactMarshaler: true,
	ValidateString:   true,
	CopyString:       true,
	UseNumber:        true,
	NoNullSliceOrMap: true,
}.Froze()

// Indent is the indentation used for every persisted file.
const Indent = "  "

// MarshalIndent encodes v the way collections are written to disk, without
// a trailing newline on every platform.
func MarshalIndent(v any) ([]byte, error) {
	out, err := JSON.MarshalIndent(v, "", Indent)
	if err != nil {
		return nil, err
	}
	return bytes.TrimRight(out, "\n"), nil
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v any) error {
	return JSON.Unmarshal(data, v)
}
