package panelbridge

import (
	"testing"
	"time"
)

func TestSlidingWindowLimiterWindowing(t *testing.T) {
	limiter := NewSlidingWindowLimiter()
	cfg := RateLimitConfig{Window: 100 * time.Millisecond, MaxRequests: 2}

	if !limiter.Check("GET:/api/users", cfg) {
		t.Error("expected first request to pass")
	}
	if !limiter.Check("GET:/api/users", cfg) {
		t.Error("expected second request to pass")
	}
	if limiter.Check("GET:/api/users", cfg) {
		t.Error("expected third request to be rejected")
	}

	time.Sleep(150 * time.Millisecond)

	if !limiter.Check("GET:/api/users", cfg) {
		t.Error("expected request after window to pass")
	}
}

func TestSlidingWindowLimiterIndependentKeys(t *testing.T) {
	limiter := NewSlidingWindowLimiter()
	cfg := RateLimitConfig{Window: time.Minute, MaxRequests: 1}

	if !limiter.Check("GET:/api/users", cfg) {
		t.Error("expected first key to pass")
	}
	if !limiter.Check("GET:/api/roles", cfg) {
		t.Error("expected independent key to pass")
	}
	if limiter.Check("GET:/api/users", cfg) {
		t.Error("expected exhausted key to be rejected")
	}
}

func TestSlidingWindowLimiterRetryAfter(t *testing.T) {
	limiter := NewSlidingWindowLimiter()
	cfg := RateLimitConfig{Window: 200 * time.Millisecond, MaxRequests: 1}

	if got := limiter.RetryAfter("GET:/api/users"); got != 0 {
		t.Errorf("RetryAfter on unknown key = %v, want 0", got)
	}

	limiter.Check("GET:/api/users", cfg)
	if got := limiter.RetryAfter("GET:/api/users"); got != 0 {
		t.Errorf("RetryAfter under quota = %v, want 0", got)
	}

	limiter.Check("GET:/api/users", cfg)
	got := limiter.RetryAfter("GET:/api/users")
	if got <= 0 || got > 200*time.Millisecond {
		t.Errorf("RetryAfter over quota = %v, want within (0, 200ms]", got)
	}
}

func TestSlidingWindowLimiterReset(t *testing.T) {
	limiter := NewSlidingWindowLimiter()
	cfg := RateLimitConfig{Window: time.Minute, MaxRequests: 1}

	limiter.Check("GET:/api/users", cfg)
	limiter.Reset()

	if !limiter.Check("GET:/api/users", cfg) {
		t.Error("expected request after reset to pass")
	}
}

func TestClassifyEndpoint(t *testing.T) {
	tests := []struct {
		path     string
		expected EndpointClass
	}{
		{"/api/auth/login", ClassLogin},
		{"/api/auth/register", ClassRegister},
		{"/api/auth/reset-password", ClassResetPassword},
		{"/api/files/upload", ClassUpload},
		{"/api/users/search", ClassSearch},
		{"/api/users", ClassAPI},
		{"/api/Login", ClassLogin},
		// login wins over later rules when both substrings appear
		{"/api/login-search", ClassLogin},
		{"/api/password-search", ClassResetPassword},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := ClassifyEndpoint(tt.path); got != tt.expected {
				t.Errorf("ClassifyEndpoint(%q) = %q, want %q", tt.path, got, tt.expected)
			}
		})
	}
}

func TestDefaultRateLimitRulesCoverEveryClass(t *testing.T) {
	rules := DefaultRateLimitRules()
	for _, class := range []EndpointClass{ClassAPI, ClassLogin, ClassRegister, ClassResetPassword, ClassUpload, ClassSearch} {
		rule, ok := rules[class]
		if !ok {
			t.Errorf("missing rule for class %q", class)
			continue
		}
		if rule.MaxRequests <= 0 || rule.Window <= 0 {
			t.Errorf("invalid rule for class %q: %+v", class, rule)
		}
	}
}
