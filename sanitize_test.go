package panelbridge

import (
	"reflect"
	"testing"
)

func TestSanitizeObjectStrings(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain string", "hello world", "hello world"},
		{"script tag", `before<script>alert(1)</script>after`, "beforeafter"},
		{"script tag with attrs", `<script type="text/javascript">x()</script>ok`, "ok"},
		{"mixed case script", `<ScRiPt>x()</sCrIpT>ok`, "ok"},
		{"javascript scheme", `javascript:alert(1)`, "alert(1)"},
		{"scheme with spaces", `javascript : alert(1)`, " alert(1)"},
		{"event handler", `<img src=x onerror=alert(1)>`, `<img src=x alert(1)>`},
		{"control characters", "pa\x00ss\x1fword", "password"},
		{"preserves whitespace", "  spaced out  ", "  spaced out  "},
		{"preserves special chars", `p@$$w0rd!<>&`, `p@$$w0rd!<>&`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeObject(tt.input)
			if got != tt.expected {
				t.Errorf("SanitizeObject(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizeObjectNested(t *testing.T) {
	input := map[string]any{
		"name": "alice<script>x()</script>",
		"tags": []any{"one", "java\x00script:go"},
		"nested": map[string]any{
			"note": "safe",
		},
		"count":  float64(3),
		"active": true,
		"blank":  nil,
	}

	got := SanitizeObject(input)
	expected := map[string]any{
		"name": "alice",
		"tags": []any{"one", "go"},
		"nested": map[string]any{
			"note": "safe",
		},
		"count":  float64(3),
		"active": true,
		"blank":  nil,
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("SanitizeObject nested = %#v, want %#v", got, expected)
	}
}

func TestSanitizeObjectSanitizesMapKeys(t *testing.T) {
	input := map[string]any{"key<script>x</script>": "value"}
	got, ok := SanitizeObject(input).(map[string]any)
	if !ok {
		t.Fatal("expected map output")
	}
	if _, exists := got["key"]; !exists {
		t.Errorf("expected sanitized key, got %#v", got)
	}
}

func TestSanitizeObjectNonContainer(t *testing.T) {
	if got := SanitizeObject(float64(42)); got != float64(42) {
		t.Errorf("numbers should pass through, got %v", got)
	}
	if got := SanitizeObject(nil); got != nil {
		t.Errorf("nil should pass through, got %v", got)
	}
}
