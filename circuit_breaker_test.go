package panelbridge

import (
	"testing"
	"time"
)

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, RecoveryTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		cb.RecordFailure()
	}
	if got := cb.State(); got != StateClosed {
		t.Errorf("state after 2 failures = %v, want closed", got)
	}
	if !cb.Allow() {
		t.Error("closed breaker should allow requests")
	}

	cb.RecordFailure()
	if got := cb.State(); got != StateOpen {
		t.Errorf("state after 3 failures = %v, want open", got)
	}
	if cb.Allow() {
		t.Error("open breaker should reject requests")
	}
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  20 * time.Millisecond,
		SuccessThreshold: 2,
	})

	cb.RecordFailure()
	if cb.Allow() {
		t.Fatal("breaker should be open immediately after tripping")
	}

	time.Sleep(30 * time.Millisecond)
	if !cb.Allow() {
		t.Fatal("breaker should probe after recovery timeout")
	}
	if got := cb.State(); got != StateHalfOpen {
		t.Fatalf("state after timeout = %v, want half-open", got)
	}

	cb.RecordSuccess()
	if got := cb.State(); got != StateHalfOpen {
		t.Errorf("state after 1 probe success = %v, want half-open", got)
	}
	cb.RecordSuccess()
	if got := cb.State(); got != StateClosed {
		t.Errorf("state after 2 probe successes = %v, want closed", got)
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  20 * time.Millisecond,
	})

	cb.RecordFailure()
	time.Sleep(30 * time.Millisecond)
	if !cb.Allow() {
		t.Fatal("breaker should probe after recovery timeout")
	}

	cb.RecordFailure()
	if got := cb.State(); got != StateOpen {
		t.Errorf("state after half-open failure = %v, want open", got)
	}
	if cb.Allow() {
		t.Error("reopened breaker should reject requests")
	}
}

func TestCircuitBreakerDefaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	if cb.config.FailureThreshold != 5 {
		t.Errorf("default FailureThreshold = %d, want 5", cb.config.FailureThreshold)
	}
	if cb.config.RecoveryTimeout != 60*time.Second {
		t.Errorf("default RecoveryTimeout = %v, want 60s", cb.config.RecoveryTimeout)
	}
	if cb.config.SuccessThreshold != 2 {
		t.Errorf("default SuccessThreshold = %d, want 2", cb.config.SuccessThreshold)
	}
}

func TestCircuitStateString(t *testing.T) {
	tests := []struct {
		state    CircuitState
		expected string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{CircuitState(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("CircuitState(%d).String() = %q, want %q", tt.state, got, tt.expected)
		}
	}
}
