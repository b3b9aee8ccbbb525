package panelbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ambiyansyah-risyal/panelbridge/internal/singleflight"
)

// Client is the unified fetch orchestrator. One Do call runs one logical
// request: rate-limit check, CSRF and auth headers, interceptor chains, the
// network fetch, 401 refresh-and-retry, normalization, and the outer backoff
// retry loop. It is safe for concurrent use; concurrent calls are
// independent chains, each owning its own retry state.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	backend      BackendKind
	adapters     map[BackendKind]ResponseAdapter
	store        TokenStore
	csrf         CSRFProvider
	sanitizer    func(any) any
	interceptors *InterceptorRegistry
	limiter      *SlidingWindowLimiter
	rateRules    map[EndpointClass]RateLimitConfig
	retryConfig  RetryConfig
	retryBudget  *RetryBudget
	breaker      *CircuitBreaker
	refreshPaths map[BackendKind]string
	refreshGroup *singleflight.Group
	autoRefresh  bool
	metrics      *MetricsCollector
	logger       Logger
	debug        *DebugConfig

	validationError error
}

// New constructs a Client using the provided functional options. A best
// effort validation is performed; call ValidationError for errors.
func New(options ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		backend: BackendASPNet,
		adapters: map[BackendKind]ResponseAdapter{
			BackendASPNet:  NewASPNetAdapter(),
			BackendLaravel: NewLaravelAdapter(),
		},
		store:        NewMemoryTokenStore(),
		csrf:         NewCSRFProvider(),
		sanitizer:    SanitizeObject,
		interceptors: NewInterceptorRegistry(),
		limiter:      NewSlidingWindowLimiter(),
		rateRules:    DefaultRateLimitRules(),
		retryConfig:  DefaultRetryConfig(),
		refreshPaths: map[BackendKind]string{
			BackendASPNet:  "/api/auth/refresh-token",
			BackendLaravel: "/api/auth/refresh",
		},
		refreshGroup: singleflight.New(),
		autoRefresh:  true,
		debug:        DefaultDebugConfig(),
	}

	for _, option := range options {
		option(client)
	}

	if client.autoRefresh {
		client.interceptors.AddErrorInterceptor(client.authRefreshInterceptor)
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// ValidateConfiguration checks the assembled options for consistency.
func (c *Client) ValidateConfiguration() error {
	if c.baseURL != "" {
		if _, err := url.Parse(c.baseURL); err != nil {
			return fmt.Errorf("invalid base URL: %w", err)
		}
	}
	if c.retryConfig.MaxRetries < 0 {
		return errors.New("retry config: MaxRetries must not be negative")
	}
	if c.retryConfig.InitialDelay < 0 || c.retryConfig.MaxDelay < 0 {
		return errors.New("retry config: delays must not be negative")
	}
	if c.retryConfig.BackoffMultiplier != 0 && c.retryConfig.BackoffMultiplier < 1 {
		return errors.New("retry config: BackoffMultiplier must be >= 1")
	}
	for class, rule := range c.rateRules {
		if rule.MaxRequests <= 0 || rule.Window <= 0 {
			return fmt.Errorf("rate limit rule %q: window and max requests must be positive", class)
		}
	}
	if len(c.adapters) == 0 {
		return errors.New("no response adapters registered")
	}
	return nil
}

// ValidationError returns the configuration error captured at construction,
// if any.
func (c *Client) ValidationError() error { return c.validationError }

// Store returns the token store the client reads and writes.
func (c *Client) Store() TokenStore { return c.store }

// Interceptors returns the registry for registering request, response and
// error interceptors.
func (c *Client) Interceptors() *InterceptorRegistry { return c.interceptors }

// Do runs one logical call against ep and returns the normalized result.
// Any unrecoverable failure is returned as a *APIError. Retries for
// transient failures happen inside; the caller sees only the final outcome.
func (c *Client) Do(ctx context.Context, ep Endpoint, opts *RequestOptions) (*Result, error) {
	if c.validationError != nil {
		return nil, &APIError{Code: 0, Message: "invalid client configuration: " + c.validationError.Error(), Cause: c.validationError}
	}
	if opts == nil {
		opts = &RequestOptions{}
	}
	if ep.Method == "" {
		ep.Method = http.MethodGet
	}

	start := time.Now()
	var requestID string
	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen != nil {
		requestID = c.debug.RequestIDGen()
	}
	if c.debugEnabled(c.debug != nil && c.debug.LogRequests) {
		c.logger.Debug("Starting request", "requestID", requestID, "method", ep.Method, "path", ep.Path)
	}

	c.metrics.RecordRequestStart(ep.Method, ep.Path)
	defer c.metrics.RecordRequestEnd(ep.Method, ep.Path)

	cfg := c.retryConfig
	if opts.Retry != nil {
		cfg = *opts.Retry
	}
	controller := NewRetryController(cfg)

	for {
		res, err := c.attempt(ctx, ep, opts, requestID, false)
		if err == nil {
			controller.Reset()
			c.metrics.RecordRequest(ep.Method, ep.Path, res.Status, time.Since(start))
			return res, nil
		}

		apiErr := asAPIError(err)

		// Local rejections and terminal auth failures never re-enter the
		// backoff loop; neither do caller-initiated cancellations.
		if errors.Is(apiErr, ErrRateLimited) || errors.Is(apiErr, ErrUnauthorized) || errors.Is(apiErr, context.Canceled) {
			return nil, c.fail(apiErr, ep, start)
		}

		if !controller.ShouldRetry(apiErr) {
			return nil, c.fail(apiErr, ep, start)
		}
		if c.retryBudget != nil && !c.retryBudget.Allow() {
			c.metrics.RecordRetryBudgetExceeded(ep.Path)
			budgetErr := &APIError{Code: apiErr.Code, Message: "retry budget exceeded", Raw: apiErr, Cause: ErrRetryBudgetExceeded}
			return nil, c.fail(budgetErr, ep, start)
		}

		delay := controller.NextAttempt(apiErr)
		c.metrics.RecordRetry(ep.Method, ep.Path, controller.State().Attempt)
		if c.debugEnabled(c.debug != nil && c.debug.LogRetries) {
			c.logger.Info("Scheduling retry", "requestID", requestID, "attempt", controller.State().Attempt, "delay", delay, "path", ep.Path)
		}
		if err := sleepCtx(ctx, delay); err != nil {
			cancelled := &APIError{Code: 0, Message: "request cancelled", Raw: apiErr, Cause: err}
			return nil, c.fail(cancelled, ep, start)
		}
	}
}

// DoJSON runs Do and decodes the normalized payload into v. A nil v or an
// empty payload leaves v untouched.
func (c *Client) DoJSON(ctx context.Context, ep Endpoint, opts *RequestOptions, v any) error {
	res, err := c.Do(ctx, ep, opts)
	if err != nil {
		return err
	}
	if v == nil || len(res.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.Value, v); err != nil {
		return &APIError{Code: 0, Message: "failed to decode response payload", Raw: string(res.Value), Cause: err}
	}
	return nil
}

// DoPaged runs a list call and returns the unified paged shape regardless of
// the backend paging convention.
func DoPaged[T any](ctx context.Context, c *Client, ep Endpoint, opts *RequestOptions) (*PagedResult[T], error) {
	res, err := c.Do(ctx, ep, opts)
	if err != nil {
		return nil, err
	}

	var items []T
	if len(res.Value) > 0 {
		if err := json.Unmarshal(res.Value, &items); err != nil {
			return nil, &APIError{Code: 0, Message: "failed to decode list payload", Raw: string(res.Value), Cause: err}
		}
	}

	page := res.Page
	if page == nil {
		page = &PageInfo{CurrentPage: 1, PageSize: len(items), RowCount: len(items), PageCount: 1}
	}
	return &PagedResult[T]{
		Items:       items,
		CurrentPage: page.CurrentPage,
		PageSize:    page.PageSize,
		RowCount:    page.RowCount,
		PageCount:   page.PageCount,
	}, nil
}

// Login posts credentials to ep, stores the normalized tokens and returns
// them. The endpoint must answer with a recognizable login payload.
func (c *Client) Login(ctx context.Context, ep Endpoint, credentials any) (*AuthTokens, error) {
	if ep.Method == "" {
		ep.Method = http.MethodPost
	}
	res, err := c.Do(ctx, ep, &RequestOptions{Body: credentials})
	if err != nil {
		return nil, err
	}
	if res.Tokens == nil {
		return nil, &APIError{Code: 0, Message: "login response did not contain tokens", Raw: string(res.Value)}
	}
	c.store.SetAuth(AuthState{Tokens: res.Tokens})
	if c.debugEnabled(c.debug != nil && c.debug.LogAuth) {
		c.logger.Info("Logged in", "backend", res.Tokens.Backend, "expiresIn", res.Tokens.ExpiresIn)
	}
	return res.Tokens, nil
}

// Logout clears the stored auth state, optionally notifying the server
// first. The local state is cleared even when the server call fails.
func (c *Client) Logout(ctx context.Context, ep *Endpoint) error {
	var serverErr error
	if ep != nil {
		_, serverErr = c.Do(ctx, *ep, nil)
	}
	c.store.ClearAuth()
	return serverErr
}

// RefreshTokens refreshes the current session. Concurrent calls share one
// in-flight refresh: every 401 observed while a refresh is running waits for
// that refresh instead of issuing its own.
func (c *Client) RefreshTokens(ctx context.Context) (*AuthTokens, error) {
	v, err := c.refreshGroup.Do("refresh", func() (interface{}, error) {
		return c.doRefresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*AuthTokens), nil
}

// attempt runs one physical request cycle. authRetried marks the immediate
// post-refresh retry, which skips the rate limiter (it continues the same
// logical attempt) and treats a second 401 as terminal.
func (c *Client) attempt(ctx context.Context, ep Endpoint, opts *RequestOptions, requestID string, authRetried bool) (*Result, error) {
	kind := c.resolveBackend(opts)
	adapter, ok := c.adapters[kind]
	if !ok {
		return nil, &APIError{Code: 0, Message: "no adapter registered for backend " + string(kind), Cause: ErrNoAdapter}
	}

	if c.limiter != nil && !authRetried {
		class := ClassifyEndpoint(ep.Path)
		rule, ok := c.rateRules[class]
		if !ok {
			rule = c.rateRules[ClassAPI]
		}
		key := ep.Method + ":" + ep.Path
		if !c.limiter.Check(key, rule) {
			retryAfter := c.limiter.RetryAfter(key)
			c.metrics.RecordRateLimitRejection(class)
			if c.debugEnabled(c.debug != nil && c.debug.LogRateLimit) {
				c.logger.Warn("Rate limit exceeded", "requestID", requestID, "key", key, "retryAfter", retryAfter)
			}
			msg := rule.Message
			if msg == "" {
				msg = "Too many requests"
			}
			msg = fmt.Sprintf("%s, retry in %ds", msg, int(math.Ceil(retryAfter.Seconds())))
			return nil, &APIError{
				Code:    http.StatusTooManyRequests,
				Message: msg,
				Raw:     map[string]any{"retryAfter": retryAfter.Milliseconds()},
				Cause:   ErrRateLimited,
			}
		}
	}

	if c.breaker != nil && !c.breaker.Allow() {
		c.metrics.RecordCircuitBreakerState("default", c.breaker.State())
		return nil, &APIError{Code: 0, Message: "circuit breaker is open", Cause: ErrCircuitOpen}
	}

	reqCtx, err := c.buildRequest(ctx, ep, opts, adapter)
	if err != nil {
		return nil, err
	}

	if !opts.SkipInterceptors {
		next, err := c.interceptors.ExecuteRequest(ctx, reqCtx)
		if err != nil {
			return nil, asAPIError(err)
		}
		reqCtx = next
	}

	respCtx, err := c.fetch(ctx, reqCtx)
	if err != nil {
		if c.breaker != nil {
			c.breaker.RecordFailure()
			c.metrics.RecordCircuitBreakerState("default", c.breaker.State())
		}
		return nil, err
	}
	if c.breaker != nil {
		if respCtx.Status >= 500 {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}
		c.metrics.RecordCircuitBreakerState("default", c.breaker.State())
	}

	if !opts.SkipInterceptors {
		next, err := c.interceptors.ExecuteResponse(ctx, respCtx)
		if err != nil {
			return nil, asAPIError(err)
		}
		respCtx = next
	}

	return c.handleResponse(ctx, ep, opts, adapter, reqCtx, respCtx, requestID, authRetried)
}

func (c *Client) handleResponse(ctx context.Context, ep Endpoint, opts *RequestOptions, adapter ResponseAdapter, reqCtx *RequestContext, respCtx *ResponseContext, requestID string, authRetried bool) (*Result, error) {
	if respCtx.Status == http.StatusUnauthorized && ep.RequiresAuth {
		apiErr := adapter.NormalizeError(respCtx.Status, respCtx.Body)
		if apiErr.Message == "Unexpected error" {
			apiErr.Message = "Unauthorized"
		}
		apiErr.Cause = ErrUnauthorized

		if authRetried || opts.SkipInterceptors {
			c.store.ClearAuth()
			return nil, apiErr
		}

		if c.debugEnabled(c.debug != nil && c.debug.LogAuth) {
			c.logger.Info("Unauthorized, consulting error interceptors", "requestID", requestID, "path", ep.Path)
		}
		outcome, err := c.interceptors.ExecuteError(ctx, apiErr, reqCtx)
		if err != nil {
			return nil, asAPIError(err)
		}
		if outcome.Recovered {
			if outcome.Response != nil {
				return c.finish(adapter, opts, outcome.Response), nil
			}
			// Single immediate retry with the refreshed token. This retry is
			// not subject to the outer backoff loop.
			return c.attempt(ctx, ep, opts, requestID, true)
		}

		c.store.ClearAuth()
		if outcome.Err != nil {
			outcome.Err.Cause = ErrUnauthorized
			return nil, outcome.Err
		}
		return nil, apiErr
	}

	if !respCtx.OK {
		apiErr := adapter.NormalizeError(respCtx.Status, respCtx.Body)
		if !opts.SkipInterceptors {
			outcome, err := c.interceptors.ExecuteError(ctx, apiErr, reqCtx)
			if err != nil {
				return nil, asAPIError(err)
			}
			if outcome.Recovered && outcome.Response != nil {
				return c.finish(adapter, opts, outcome.Response), nil
			}
			if outcome.Err != nil {
				apiErr = outcome.Err
			}
		}
		if c.debugEnabled(c.debug != nil && c.debug.LogErrors) {
			c.logger.Warn("Request failed", "requestID", requestID, "status", respCtx.Status, "code", apiErr.Code, "message", apiErr.Message)
		}
		return nil, apiErr
	}

	return c.finish(adapter, opts, respCtx), nil
}

func (c *Client) finish(adapter ResponseAdapter, opts *RequestOptions, respCtx *ResponseContext) *Result {
	res := adapter.NormalizeSuccess(respCtx.Body, opts.Query)
	if res.Tokens != nil && res.Tokens.Backend == "" {
		res.Tokens.Backend = adapter.Kind()
	}
	res.Status = respCtx.Status
	res.Header = respCtx.Headers
	return res
}

func (c *Client) buildRequest(ctx context.Context, ep Endpoint, opts *RequestOptions, adapter ResponseAdapter) (*RequestContext, error) {
	headers := http.Header{}
	headers.Set("Accept", "application/json")
	for key, values := range opts.Headers {
		for _, value := range values {
			headers.Add(key, value)
		}
	}

	var body []byte
	if opts.Body != nil {
		encoded, err := c.sanitizeBody(opts.Body)
		if err != nil {
			return nil, &APIError{Code: 0, Message: "failed to encode request body", Cause: err}
		}
		body = encoded
		headers.Set("Content-Type", "application/json")
	}

	if c.csrf != nil && c.csrf.Required(ep.Method) {
		if err := c.csrf.Apply(ctx, headers); err != nil {
			return nil, &APIError{Code: 0, Message: "csrf token initialization failed", Cause: err}
		}
	}

	if ep.RequiresAuth {
		if state := c.store.GetState(); state.Tokens != nil {
			headers.Set("Authorization", adapter.AuthHeader(state.Tokens))
		}
	}

	return &RequestContext{
		URL:     c.buildURL(ep.Path, opts.Query),
		Method:  ep.Method,
		Headers: headers,
		Body:    body,
		Metadata: map[string]any{
			"backend":      adapter.Kind(),
			"requiresAuth": ep.RequiresAuth,
		},
	}, nil
}

func (c *Client) fetch(ctx context.Context, reqCtx *RequestContext) (*ResponseContext, error) {
	var bodyReader io.Reader
	if len(reqCtx.Body) > 0 {
		bodyReader = bytes.NewReader(reqCtx.Body)
	}
	req, err := http.NewRequestWithContext(ctx, reqCtx.Method, reqCtx.URL, bodyReader)
	if err != nil {
		return nil, &APIError{Code: 0, Message: "failed to build request", Cause: err}
	}
	req.Header = reqCtx.Headers.Clone()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}

	return &ResponseContext{
		OK:         resp.StatusCode < 400,
		Status:     resp.StatusCode,
		StatusText: resp.Status,
		Headers:    resp.Header,
		Body:       body,
		Metadata:   reqCtx.Metadata,
	}, nil
}

// authRefreshInterceptor is the built-in error interceptor converting a 401
// on an authenticated endpoint into a "retry now" signal after a successful
// token refresh.
func (c *Client) authRefreshInterceptor(ctx context.Context, apiErr *APIError, req *RequestContext) (ErrorOutcome, error) {
	if apiErr.Code != http.StatusUnauthorized {
		return Unrecovered(apiErr), nil
	}
	if req == nil || req.Metadata == nil {
		return Unrecovered(apiErr), nil
	}
	if requiresAuth, _ := req.Metadata["requiresAuth"].(bool); !requiresAuth {
		return Unrecovered(apiErr), nil
	}
	if _, err := c.RefreshTokens(ctx); err != nil {
		return Unrecovered(apiErr), nil
	}
	return Recovered(nil), nil
}

// doRefresh performs the backend-specific refresh call directly against the
// transport: no interceptors, no rate limiting, no outer retries. ASP.NET
// posts the refresh token; Laravel re-uses the access token via an
// authenticated call.
func (c *Client) doRefresh(ctx context.Context) (*AuthTokens, error) {
	state := c.store.GetState()
	if state.Tokens == nil {
		return nil, &APIError{Code: http.StatusUnauthorized, Message: "no session to refresh", Cause: ErrUnauthorized}
	}
	tokens := state.Tokens
	kind := tokens.Backend
	if kind == "" {
		kind = c.backend
	}
	adapter, ok := c.adapters[kind]
	if !ok {
		return nil, &APIError{Code: 0, Message: "no adapter registered for backend " + string(kind), Cause: ErrNoAdapter}
	}

	headers := http.Header{}
	headers.Set("Accept", "application/json")
	var body []byte
	switch kind {
	case BackendLaravel:
		headers.Set("Authorization", adapter.AuthHeader(tokens))
	default:
		if tokens.RefreshToken == "" {
			c.store.ClearAuth()
			c.metrics.RecordAuthRefresh(kind, false)
			return nil, &APIError{Code: http.StatusUnauthorized, Message: "no refresh token available", Cause: ErrUnauthorized}
		}
		encoded, err := json.Marshal(map[string]string{"refreshToken": tokens.RefreshToken})
		if err != nil {
			return nil, &APIError{Code: 0, Message: "failed to encode refresh request", Cause: err}
		}
		body = encoded
		headers.Set("Content-Type", "application/json")
	}

	reqCtx := &RequestContext{
		URL:     c.buildURL(c.refreshPaths[kind], nil),
		Method:  http.MethodPost,
		Headers: headers,
		Body:    body,
	}
	respCtx, err := c.fetch(ctx, reqCtx)
	if err != nil {
		c.metrics.RecordAuthRefresh(kind, false)
		return nil, err
	}
	if !respCtx.OK {
		c.store.ClearAuth()
		c.metrics.RecordAuthRefresh(kind, false)
		apiErr := adapter.NormalizeError(respCtx.Status, respCtx.Body)
		apiErr.Cause = ErrUnauthorized
		return nil, apiErr
	}

	newTokens, ok := adapter.NormalizeLogin(respCtx.Body)
	if !ok {
		c.metrics.RecordAuthRefresh(kind, false)
		return nil, &APIError{Code: 0, Message: "unexpected refresh payload", Raw: string(respCtx.Body)}
	}
	newTokens.Backend = kind
	c.store.SetAuth(AuthState{User: state.User, Tokens: newTokens})
	c.metrics.RecordAuthRefresh(kind, true)
	if c.debugEnabled(c.debug != nil && c.debug.LogAuth) {
		c.logger.Info("Token refreshed", "backend", kind, "expiresIn", newTokens.ExpiresIn)
	}
	return newTokens, nil
}

func (c *Client) resolveBackend(opts *RequestOptions) BackendKind {
	if opts != nil && opts.Backend != "" {
		return opts.Backend
	}
	if state := c.store.GetState(); state.Tokens != nil && state.Tokens.Backend != "" {
		return state.Tokens.Backend
	}
	return c.backend
}

func (c *Client) buildURL(path string, query map[string]any) string {
	base := strings.TrimRight(c.baseURL, "/")
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	full := base + path

	if len(query) == 0 {
		return full
	}
	values := url.Values{}
	for key, value := range query {
		if value == nil {
			continue
		}
		values.Set(key, fmt.Sprint(value))
	}
	if len(values) == 0 {
		return full
	}
	return full + "?" + values.Encode()
}

func (c *Client) sanitizeBody(body any) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	if c.sanitizer == nil {
		return raw, nil
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return raw, nil
	}
	return json.Marshal(c.sanitizer(decoded))
}

// fail records terminal error metrics and hands the error back.
func (c *Client) fail(apiErr *APIError, ep Endpoint, start time.Time) *APIError {
	c.metrics.RecordError(errorTypeOf(apiErr), ep.Method, ep.Path)
	c.metrics.RecordRequest(ep.Method, ep.Path, apiErr.Code, time.Since(start))
	return apiErr
}

func (c *Client) debugEnabled(area bool) bool {
	return c.logger != nil && c.debug != nil && c.debug.Enabled && area
}

func errorTypeOf(apiErr *APIError) string {
	switch {
	case errors.Is(apiErr, ErrRateLimited):
		return "RateLimit"
	case errors.Is(apiErr, ErrCircuitOpen):
		return "CircuitBreaker"
	case errors.Is(apiErr, ErrRetryBudgetExceeded):
		return "RetryBudget"
	case errors.Is(apiErr, ErrUnauthorized):
		return "Unauthorized"
	case apiErr.Code == 0:
		return "Network"
	case apiErr.Code >= 500:
		return "Server"
	default:
		return "Client"
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
