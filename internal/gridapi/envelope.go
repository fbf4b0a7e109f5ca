// Package gridapi holds the wire envelope shared by the grid proxy server and
// the HTTP backend of the grid client.
package gridapi

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Envelope wraps every successful grid proxy reply.
type Envelope struct {
	Result any `json:"result"`
}

// ExtractResult returns the JSON document stored under "result" verbatim, so
// a string result stays a JSON string. A body without a result field is
// returned as is. A JSON null result yields nil.
func ExtractResult(body []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if !gjson.ValidBytes(trimmed) {
		return nil, fmt.Errorf("gridapi: reply is not valid JSON: %q", truncate(trimmed))
	}

	root := gjson.ParseBytes(trimmed)
	if !root.IsObject() {
		return nullToNil(trimmed), nil
	}
	result := root.Get("result")
	if !result.Exists() {
		return append([]byte(nil), trimmed...), nil
	}
	return nullToNil([]byte(result.Raw)), nil
}

// DecodeResult decodes the payload obtained via ExtractResult into out. An
// absent payload decodes as JSON null.
func DecodeResult(body []byte, out any) error {
	payload, err := ExtractResult(body)
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		payload = []byte("null")
	}
	return json.Unmarshal(payload, out)
}

// Encode renders v inside an Envelope without HTML escaping.
func Encode(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Envelope{Result: v}); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func nullToNil(raw []byte) []byte {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return append([]byte(nil), raw...)
}

func truncate(b []byte) string {
	if len(b) > 64 {
		return string(b[:64]) + "..."
	}
	return string(b)
}
