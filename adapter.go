package panelbridge

import (
	"bytes"
	"encoding/json"
)

// ResponseAdapter is the backend-convention strategy: one implementation per
// BackendKind, selected once per call. Implementations are stateless pure
// mappers from raw wire shapes into the unified Result / AuthTokens /
// APIError shapes.
type ResponseAdapter interface {
	// Kind identifies the backend convention this adapter speaks.
	Kind() BackendKind

	// NormalizeSuccess maps a raw success body into the unified Result.
	// Shapes are tried most-specific-first because response bodies are not
	// self-describing: login payload, envelope, paged list, bare value.
	// query carries the request's query parameters for paging inference.
	// An unparseable body yields a nil Value, not an error.
	NormalizeSuccess(body []byte, query map[string]any) *Result

	// NormalizeLogin attempts to parse body as a login payload. ok is false
	// when the shape does not match.
	NormalizeLogin(body []byte) (tokens *AuthTokens, ok bool)

	// NormalizeError maps an HTTP status and parsed error body into the
	// unified error shape.
	NormalizeError(status int, body []byte) *APIError

	// AuthHeader renders the Authorization header value for tokens.
	AuthHeader(tokens *AuthTokens) string
}

// jsonObject decodes body into a generic map, returning ok=false for
// non-object or malformed bodies.
func jsonObject(body []byte) (map[string]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// isJSONArray reports whether raw holds a JSON array.
func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// jsonString extracts a string value from raw, ok=false otherwise.
func jsonString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// jsonInt extracts an integral value from raw, ok=false for absent or
// non-numeric values.
func jsonInt(raw json.RawMessage) (int, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return int(f), true
}

// queryInt parses an integral query parameter from the first present key.
func queryInt(query map[string]any, keys ...string) (int, bool) {
	for _, key := range keys {
		v, ok := query[key]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case int:
			return n, true
		case int64:
			return int(n), true
		case float64:
			return int(n), true
		case string:
			var f float64
			if err := json.Unmarshal([]byte(n), &f); err == nil {
				return int(f), true
			}
		}
	}
	return 0, false
}

// arrayLen counts the elements of a JSON array, 0 for anything else.
func arrayLen(raw json.RawMessage) int {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return 0
	}
	return len(items)
}
