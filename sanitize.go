package panelbridge

import (
	"regexp"
)

var (
	scriptTagPattern  = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	eventAttrPattern  = regexp.MustCompile(`(?i)\bon\w+\s*=`)
	jsSchemePattern   = regexp.MustCompile(`(?i)javascript\s*:`)
	controlRunPattern = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]")
)

// SanitizeObject recursively scrubs a decoded JSON value before it is sent
// to the server: script tags, inline event handlers, javascript: schemes and
// control characters are stripped from every string, including map keys.
// Non-container, non-string values pass through unchanged.
func SanitizeObject(value any) any {
	switch v := value.(type) {
	case string:
		return sanitizeString(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			out[sanitizeString(key)] = SanitizeObject(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = SanitizeObject(val)
		}
		return out
	default:
		return value
	}
}

func sanitizeString(s string) string {
	s = controlRunPattern.ReplaceAllString(s, "")
	s = scriptTagPattern.ReplaceAllString(s, "")
	s = jsSchemePattern.ReplaceAllString(s, "")
	s = eventAttrPattern.ReplaceAllString(s, "")
	return s
}
