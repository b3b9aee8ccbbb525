package panelbridge

import (
	"sync"
	"time"

	internalbackoff "github.com/ambiyansyah-risyal/panelbridge/internal/backoff"
)

// BackoffStrategy selects the delay-growth algorithm for retries.
type BackoffStrategy int

const (
	// ExponentialJitter grows delays geometrically with symmetric ±25% jitter.
	ExponentialJitter BackoffStrategy = iota
	// DecorrelatedJitter uses the AWS decorrelated jitter algorithm.
	DecorrelatedJitter
)

// RetryConfig controls the outer retry loop of a call chain.
type RetryConfig struct {
	MaxRetries           int
	InitialDelay         time.Duration
	MaxDelay             time.Duration
	BackoffMultiplier    float64
	Jitter               bool
	JitterFraction       float64 // defaults to 0.25 when Jitter is on
	Strategy             BackoffStrategy
	RetryableStatusCodes []int
	// ShouldRetry, when set, fully replaces the default per-error policy.
	ShouldRetry func(err *APIError) bool
	// OnRetry is invoked before each delay with the upcoming attempt number.
	OnRetry func(attempt int, err *APIError, delay time.Duration)
}

// DefaultRetryConfig is the standard policy: 3 retries, 1s initial delay
// doubling up to 30s, ±25% jitter, retrying 408/429/5xx.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:           3,
		InitialDelay:         time.Second,
		MaxDelay:             30 * time.Second,
		BackoffMultiplier:    2,
		Jitter:               true,
		JitterFraction:       0.25,
		RetryableStatusCodes: []int{408, 429, 500, 502, 503, 504},
	}
}

// FastRetryConfig gives up quickly; suited to interactive lookups.
func FastRetryConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.MaxRetries = 2
	cfg.InitialDelay = 500 * time.Millisecond
	cfg.MaxDelay = 2 * time.Second
	return cfg
}

// PersistentRetryConfig keeps trying; suited to background jobs.
func PersistentRetryConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.MaxRetries = 5
	cfg.InitialDelay = 2 * time.Second
	cfg.MaxDelay = 60 * time.Second
	return cfg
}

// TestingRetryConfig disables retries and delays for deterministic tests.
func TestingRetryConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.MaxRetries = 0
	cfg.InitialDelay = 0
	cfg.MaxDelay = 0
	cfg.Jitter = false
	return cfg
}

// RetryState is an introspection snapshot of a RetryController.
type RetryState struct {
	Attempt   int
	LastDelay time.Duration
	StartTime time.Time
	Errors    []*APIError
}

// RetryController owns the attempt counter and error history of one logical
// call chain. It is never shared across concurrent calls; the client creates
// a fresh controller per Do invocation.
type RetryController struct {
	config     RetryConfig
	calculator internalbackoff.Strategy
	attempt    int
	lastDelay  time.Duration
	start      time.Time
	errors     []*APIError
}

// NewRetryController builds a controller, merging defaults into zero-valued
// config fields.
func NewRetryController(cfg RetryConfig) *RetryController {
	if cfg.BackoffMultiplier == 0 {
		cfg.BackoffMultiplier = 2
	}
	if cfg.Jitter && cfg.JitterFraction == 0 {
		cfg.JitterFraction = 0.25
	}
	if cfg.RetryableStatusCodes == nil {
		cfg.RetryableStatusCodes = []int{408, 429, 500, 502, 503, 504}
	}

	var calc internalbackoff.Strategy
	switch cfg.Strategy {
	case DecorrelatedJitter:
		calc = internalbackoff.GetDecorrelatedJitterCalculator()
	default:
		calc = internalbackoff.GetExponentialJitterCalculator()
	}

	return &RetryController{
		config:     cfg,
		calculator: calc,
		start:      time.Now(),
	}
}

// ShouldRetry reports whether another attempt is allowed. With a nil error
// it only checks the attempt budget. Otherwise the custom predicate wins if
// configured; the default policy retries transport failures, explicitly
// retryable status codes and any 5xx, and never retries other 4xx.
func (r *RetryController) ShouldRetry(err *APIError) bool {
	if r.attempt >= r.config.MaxRetries {
		return false
	}
	if err == nil {
		return true
	}
	if r.config.ShouldRetry != nil {
		return r.config.ShouldRetry(err)
	}
	if err.Code == 0 {
		return IsTransient(err)
	}
	for _, code := range r.config.RetryableStatusCodes {
		if err.Code == code {
			return true
		}
	}
	if err.Code >= 500 {
		return true
	}
	return false
}

// NextAttempt records err, advances the attempt counter and returns the
// delay to wait before the next attempt. The delay grows as
// InitialDelay * BackoffMultiplier^(attempt-1), clamped to MaxDelay, with
// jitter applied afterwards when enabled.
func (r *RetryController) NextAttempt(err *APIError) time.Duration {
	if err != nil {
		r.errors = append(r.errors, err)
	}
	r.attempt++

	jitter := 0.0
	if r.config.Jitter {
		jitter = r.config.JitterFraction
	}
	delay := r.calculator.Calculate(r.attempt-1, r.config.InitialDelay, r.config.MaxDelay, r.config.BackoffMultiplier, jitter)
	if delay < 0 {
		delay = 0
	}
	r.lastDelay = delay

	if r.config.OnRetry != nil {
		r.config.OnRetry(r.attempt, err, delay)
	}
	return delay
}

// Reset zeroes the attempt counter and error history and restarts the
// elapsed-time clock. Called after every successful response so a later
// failure starts a fresh backoff sequence.
func (r *RetryController) Reset() {
	r.attempt = 0
	r.lastDelay = 0
	r.errors = nil
	r.start = time.Now()
}

// ElapsedTime returns the time since the controller was created or reset.
func (r *RetryController) ElapsedTime() time.Duration {
	return time.Since(r.start)
}

// State returns an introspection snapshot. The error slice is copied.
func (r *RetryController) State() RetryState {
	errs := make([]*APIError, len(r.errors))
	copy(errs, r.errors)
	return RetryState{
		Attempt:   r.attempt,
		LastDelay: r.lastDelay,
		StartTime: r.start,
		Errors:    errs,
	}
}

// RetryBudget caps the number of retries issued across all calls within a
// rolling window, protecting a struggling backend from synchronized retry
// storms. Safe for concurrent use.
type RetryBudget struct {
	mu          sync.Mutex
	maxRetries  int
	perWindow   time.Duration
	current     int
	windowStart time.Time
}

// NewRetryBudget creates a budget of maxRetries per window.
func NewRetryBudget(maxRetries int, perWindow time.Duration) *RetryBudget {
	return &RetryBudget{
		maxRetries:  maxRetries,
		perWindow:   perWindow,
		windowStart: time.Now(),
	}
}

// Allow consumes one retry from the budget, resetting the window first when
// it has elapsed.
func (rb *RetryBudget) Allow() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	now := time.Now()
	if now.Sub(rb.windowStart) >= rb.perWindow {
		rb.windowStart = now
		rb.current = 0
	}
	if rb.current >= rb.maxRetries {
		return false
	}
	rb.current++
	return true
}

// Stats returns current retry budget usage.
func (rb *RetryBudget) Stats() (current, max int, windowStart time.Time) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.current, rb.maxRetries, rb.windowStart
}
