package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	clienterrors "github.com/jrsteele09/club-booking-client/internal/errors"
	"github.com/pkg/errors"
)

// maxStringNesting bounds how many JSON-string layers are peeled off a body
const maxStringNesting = 3

// Keys that may sit next to "data" in a {data} envelope
var envelopeKeys = map[string]bool{
	"data":    true,
	"message": true,
	"error":   true,
	"code":    true,
	"status":  true,
}

// Result is a response body reduced to its canonical shape.
type Result struct {
	Status  int             // HTTP status
	Success bool            // Explicit success flag, or 2xx when absent
	Data    json.RawMessage // The payload, whatever envelope it came in
	Message string          // Server message, if any
}

// Decode maps the payload onto v
func (r *Result) Decode(v interface{}) error {
	if len(r.Data) == 0 {
		return &clienterrors.DecodeError{Err: errors.New("empty payload")}
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return &clienterrors.DecodeError{Err: err}
	}
	return nil
}

// Field decodes one top level field of an object payload into v.
// Returns false when the payload is not an object or the field is absent.
func (r *Result) Field(name string, v interface{}) (bool, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(r.Data, &obj); err != nil {
		return false, nil
	}
	raw, ok := obj[name]
	if !ok || isNull(raw) {
		return false, nil
	}
	if err := json.Unmarshal(unwrapString(raw, maxStringNesting), v); err != nil {
		return true, &clienterrors.DecodeError{Err: errors.Wrapf(err, "field %s", name)}
	}
	return true, nil
}

// Normalize reduces any of the server's response shapes to a Result:
// a bare payload, {data}, {success, data, message}, or a JSON string wrapping
// one of those. A non-JSON body becomes a string payload.
func Normalize(status int, body []byte) *Result {
	res := &Result{Status: status, Success: status >= 200 && status < 300}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return res
	}
	if !json.Valid(body) {
		res.Data, _ = json.Marshal(string(body))
		if !res.Success {
			res.Message = strings.TrimSpace(string(body))
		}
		return res
	}

	body = unwrapString(body, maxStringNesting)

	var obj map[string]json.RawMessage
	if body[0] != '{' || json.Unmarshal(body, &obj) != nil {
		res.Data = body
		return res
	}

	res.Message = messageOf(obj)
	if rawSuccess, ok := obj["success"]; ok {
		var success bool
		if json.Unmarshal(rawSuccess, &success) == nil {
			res.Success = res.Success && success
		}
		if data, ok := obj["data"]; ok {
			res.Data = unwrapString(data, maxStringNesting)
		} else {
			res.Data = body
		}
		return res
	}
	if data, ok := obj["data"]; ok && onlyEnvelopeKeys(obj) {
		res.Data = unwrapString(data, maxStringNesting)
		return res
	}
	res.Data = body
	return res
}

// errorFor converts an unsuccessful Result into an APIError
func errorFor(res *Result, body []byte) error {
	msg := res.Message
	if msg == "" {
		msg = http.StatusText(res.Status)
	}
	return &clienterrors.APIError{Status: res.Status, Message: msg, Data: body}
}

// unwrapString peels JSON-string layers whose content is itself JSON
func unwrapString(raw json.RawMessage, depth int) json.RawMessage {
	for i := 0; i < depth; i++ {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || trimmed[0] != '"' {
			return trimmed
		}
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return trimmed
		}
		candidate := bytes.TrimSpace([]byte(inner))
		if len(candidate) == 0 || (candidate[0] != '{' && candidate[0] != '[' && candidate[0] != '"') || !json.Valid(candidate) {
			return trimmed
		}
		raw = candidate
	}
	return bytes.TrimSpace(raw)
}

func onlyEnvelopeKeys(obj map[string]json.RawMessage) bool {
	for k := range obj {
		if !envelopeKeys[k] {
			return false
		}
	}
	return true
}

func messageOf(obj map[string]json.RawMessage) string {
	for _, key := range []string{"message", "error", "msg"} {
		var s string
		if raw, ok := obj[key]; ok && json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || string(t) == "null"
}
