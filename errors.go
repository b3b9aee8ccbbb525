package panelbridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Sentinel errors for common failure scenarios. They appear as the Cause of
// the *APIError surfaced to the caller and can be matched with errors.Is.
var (
	// ErrRateLimited is returned when a request is denied by the local rate limiter
	ErrRateLimited = errors.New("panelbridge: rate limited")

	// ErrCircuitOpen is returned when the circuit breaker is in open state
	ErrCircuitOpen = errors.New("panelbridge: circuit open")

	// ErrRetryBudgetExceeded is returned when the shared retry budget is exhausted
	ErrRetryBudgetExceeded = errors.New("panelbridge: retry budget exceeded")

	// ErrUnauthorized is returned when a 401 survives the refresh attempt
	ErrUnauthorized = errors.New("panelbridge: unauthorized")

	// ErrNoAdapter is returned when no adapter is registered for a backend kind
	ErrNoAdapter = errors.New("panelbridge: no adapter for backend kind")
)

// APIError is the only error type crossing the public boundary. Code is the
// HTTP status (or a backend-specific code field for ASP.NET bodies), 0 for
// transport failures, or 429 for local rate-limit rejections. Raw preserves
// the parsed error body or the original transport error.
type APIError struct {
	Code    int
	Message string
	Raw     any
	Cause   error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Code > 0 {
		return fmt.Sprintf("panelbridge: %s (code %d)", e.Message, e.Code)
	}
	return "panelbridge: " + e.Message
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches against another *APIError by code.
func (e *APIError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*APIError); ok {
		return e.Code == targetErr.Code
	}
	return false
}

// IsTransient reports whether an error represents a failure that might
// succeed on retry. Transport failures, timeouts, 5xx responses, 408 and 429
// are transient; other 4xx responses and configuration errors are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrRateLimited) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 0:
			return !errors.Is(apiErr.Cause, context.Canceled)
		case apiErr.Code == 408 || apiErr.Code == 429:
			return true
		case apiErr.Code >= 500:
			return true
		default:
			return false
		}
	}

	return false
}

// asAPIError coerces any error into the public *APIError shape. Errors that
// already are *APIError pass through untouched.
func asAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &APIError{Code: 0, Message: err.Error(), Raw: err, Cause: err}
}

// transportError classifies a failed fetch into the unified shape. Timeouts
// and cancellations carry their context sentinel as the cause so the retry
// loop can tell them apart.
func transportError(err error) *APIError {
	msg := "network request failed"
	switch {
	case errors.Is(err, context.Canceled):
		msg = "request cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		msg = "request timed out"
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			msg = "request timed out"
		} else if strings.Contains(err.Error(), "connection refused") {
			msg = "connection refused"
		}
	}
	return &APIError{Code: 0, Message: msg, Raw: err.Error(), Cause: err}
}
