package panelbridge

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// BackendKind identifies which backend convention a request or token set
// belongs to. It selects the normalization and auth-header rules.
type BackendKind string

const (
	BackendASPNet  BackendKind = "aspnet"
	BackendLaravel BackendKind = "laravel"
)

// AuthTokens holds the bearer credentials for one backend. Created by login
// or refresh normalization, cleared on an unrecoverable 401, read on every
// authenticated request.
type AuthTokens struct {
	Backend               BackendKind
	AccessToken           string
	TokenType             string
	ExpiresIn             int64 // seconds, as reported by the server
	AccessTokenExpiresAt  time.Time
	RefreshToken          string    // empty when the backend has no distinct refresh token
	RefreshTokenExpiresAt time.Time // zero when unknown
}

// AuthState is the value held by a TokenStore.
type AuthState struct {
	Tokens *AuthTokens
	User   json.RawMessage
}

// TokenStore is the auth-state collaborator consumed by the client. The
// client reads the current tokens on every authenticated request, writes
// refreshed tokens back after a successful refresh, and clears the state on
// an unrecoverable 401. Implementations must be safe for concurrent use.
type TokenStore interface {
	GetState() AuthState
	SetAuth(state AuthState)
	ClearAuth()
}

// Endpoint describes one callable API operation.
type Endpoint struct {
	Path         string
	Method       string
	RequiresAuth bool
}

// RequestOptions carries the per-call knobs for Client.Do. A nil
// RequestOptions is equivalent to the zero value.
type RequestOptions struct {
	// Body is marshalled to JSON (after sanitization) when non-nil.
	Body any
	// Query is flattened into URL search parameters; nil values are dropped.
	Query map[string]any
	// Backend overrides the backend kind for this call only.
	Backend BackendKind
	// Headers are merged into the request headers before interceptors run.
	Headers http.Header
	// Retry overrides the client-wide retry configuration for this call.
	Retry *RetryConfig
	// SkipInterceptors bypasses all three interceptor chains.
	SkipInterceptors bool
}

// PageInfo is the unified paging metadata attached to list results.
type PageInfo struct {
	CurrentPage int
	PageSize    int
	RowCount    int
	PageCount   int
}

// Result is the normalized outcome of a successful call. Value holds the
// unwrapped payload as raw JSON; Page is non-nil for list responses; Tokens
// is non-nil when the body parsed as a login payload.
type Result struct {
	Value  json.RawMessage
	Page   *PageInfo
	Tokens *AuthTokens
	Status int
	Header http.Header
}

// PagedResult is the unified shape for any list response regardless of the
// backend paging convention. PageCount is always >= 1. RowCount reflects the
// server-reported total.
type PagedResult[T any] struct {
	Items       []T
	CurrentPage int
	PageSize    int
	RowCount    int
	PageCount   int
}

// RequestContext is the mutable request view passed through request
// interceptors and error interceptors.
type RequestContext struct {
	URL      string
	Method   string
	Headers  http.Header
	Body     []byte
	Metadata map[string]any
}

// ResponseContext is the mutable response view passed through response
// interceptors. OK is true for statuses below 400.
type ResponseContext struct {
	OK         bool
	Status     int
	StatusText string
	Headers    http.Header
	Body       []byte
	Metadata   map[string]any
}

// RequestInterceptor transforms an outgoing request. The returned context
// feeds the next interceptor in the chain.
type RequestInterceptor func(ctx context.Context, req *RequestContext) (*RequestContext, error)

// ResponseInterceptor transforms an incoming response.
type ResponseInterceptor func(ctx context.Context, resp *ResponseContext) (*ResponseContext, error)

// ErrorInterceptor observes a normalized failure and may recover from it.
// Returning a recovered outcome stops the chain; returning an unrecovered
// outcome passes the (possibly transformed) error to the next interceptor.
type ErrorInterceptor func(ctx context.Context, apiErr *APIError, req *RequestContext) (ErrorOutcome, error)

// ErrorOutcome is the tagged result of an error interceptor. Recovered with
// a nil Response signals "retry the original request now"; Recovered with a
// Response substitutes that response for the failed one.
type ErrorOutcome struct {
	Recovered bool
	Response  *ResponseContext
	Err       *APIError
}

// Recovered builds a recovery outcome. resp may be nil to request an
// immediate retry of the original request.
func Recovered(resp *ResponseContext) ErrorOutcome {
	return ErrorOutcome{Recovered: true, Response: resp}
}

// Unrecovered builds a pass-through outcome carrying err to the next
// interceptor.
func Unrecovered(err *APIError) ErrorOutcome {
	return ErrorOutcome{Err: err}
}

// Option represents a configuration option for New.
type Option func(*Client)
