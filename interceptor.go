package panelbridge

import (
	"context"
	"sync"
)

type requestEntry struct{ fn RequestInterceptor }
type responseEntry struct{ fn ResponseInterceptor }
type errorEntry struct{ fn ErrorInterceptor }

// InterceptorRegistry holds three independent ordered interceptor chains.
// Registration is synchronous and never fails; execution snapshots the chain
// first, so an interceptor registered mid-flight does not affect a chain
// already running. Safe for concurrent use.
type InterceptorRegistry struct {
	mu       sync.Mutex
	request  []*requestEntry
	response []*responseEntry
	errs     []*errorEntry
}

// NewInterceptorRegistry creates an empty registry.
func NewInterceptorRegistry() *InterceptorRegistry {
	return &InterceptorRegistry{}
}

// AddRequestInterceptor appends fn to the request chain and returns a
// closure that unregisters it.
func (r *InterceptorRegistry) AddRequestInterceptor(fn RequestInterceptor) func() {
	entry := &requestEntry{fn: fn}
	r.mu.Lock()
	r.request = append(r.request, entry)
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, e := range r.request {
			if e == entry {
				r.request = append(r.request[:i], r.request[i+1:]...)
				return
			}
		}
	}
}

// AddResponseInterceptor appends fn to the response chain and returns a
// closure that unregisters it.
func (r *InterceptorRegistry) AddResponseInterceptor(fn ResponseInterceptor) func() {
	entry := &responseEntry{fn: fn}
	r.mu.Lock()
	r.response = append(r.response, entry)
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, e := range r.response {
			if e == entry {
				r.response = append(r.response[:i], r.response[i+1:]...)
				return
			}
		}
	}
}

// AddErrorInterceptor appends fn to the error chain and returns a closure
// that unregisters it.
func (r *InterceptorRegistry) AddErrorInterceptor(fn ErrorInterceptor) func() {
	entry := &errorEntry{fn: fn}
	r.mu.Lock()
	r.errs = append(r.errs, entry)
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, e := range r.errs {
			if e == entry {
				r.errs = append(r.errs[:i], r.errs[i+1:]...)
				return
			}
		}
	}
}

// Clear drops every registered interceptor. Intended for tests.
func (r *InterceptorRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.request = nil
	r.response = nil
	r.errs = nil
}

// ExecuteRequest runs the request chain sequentially, feeding each
// interceptor's output into the next. An interceptor error aborts the chain.
func (r *InterceptorRegistry) ExecuteRequest(ctx context.Context, req *RequestContext) (*RequestContext, error) {
	r.mu.Lock()
	chain := make([]*requestEntry, len(r.request))
	copy(chain, r.request)
	r.mu.Unlock()

	current := req
	for _, entry := range chain {
		next, err := entry.fn(ctx, current)
		if err != nil {
			return nil, err
		}
		if next != nil {
			current = next
		}
	}
	return current, nil
}

// ExecuteResponse runs the response chain sequentially, feeding each
// interceptor's output into the next. An interceptor error aborts the chain.
func (r *InterceptorRegistry) ExecuteResponse(ctx context.Context, resp *ResponseContext) (*ResponseContext, error) {
	r.mu.Lock()
	chain := make([]*responseEntry, len(r.response))
	copy(chain, r.response)
	r.mu.Unlock()

	current := resp
	for _, entry := range chain {
		next, err := entry.fn(ctx, current)
		if err != nil {
			return nil, err
		}
		if next != nil {
			current = next
		}
	}
	return current, nil
}

// ExecuteError runs the error chain until an interceptor reports recovery,
// returning that outcome without invoking later interceptors. Unrecovered
// outcomes may transform the error for the next interceptor. An interceptor
// error aborts the chain.
func (r *InterceptorRegistry) ExecuteError(ctx context.Context, apiErr *APIError, req *RequestContext) (ErrorOutcome, error) {
	r.mu.Lock()
	chain := make([]*errorEntry, len(r.errs))
	copy(chain, r.errs)
	r.mu.Unlock()

	current := apiErr
	for _, entry := range chain {
		outcome, err := entry.fn(ctx, current, req)
		if err != nil {
			return ErrorOutcome{}, err
		}
		if outcome.Recovered {
			return outcome, nil
		}
		if outcome.Err != nil {
			current = outcome.Err
		}
	}
	return Unrecovered(current), nil
}
