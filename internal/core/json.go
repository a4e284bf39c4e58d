package core

import (
	"bytes"
	"encoding/json"
)

// EncodeJSON encodes v the way the browser app's JSON.stringify does:
// no HTML escaping and no trailing newline.
func EncodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
