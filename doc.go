// Package panelbridge provides a resilient API client for admin-panel style
// REST backends. It speaks two structurally different backend conventions
// (ASP.NET-style envelopes and Laravel-style payloads) through one unified
// call-site contract, and layers the reliability features a browser-grade
// client needs:
//
//   - Retries with exponential backoff + jitter and per-status retry policy
//   - Client-side rate limiting (sliding window, per endpoint class)
//   - Bearer-token auth with single-flight refresh on 401
//   - CSRF header attachment on state-changing verbs
//   - Pluggable request / response / error interceptor chains
//   - Response and error normalization into one shape per backend kind
//   - Optional circuit breaker and retry budget
//   - Prometheus metrics and lightweight structured debug logging
//
// Design goals:
//   - Small surface area: functional options configure everything
//   - One error type (*APIError) crossing the public boundary
//   - Safe concurrent use of a single *Client instance
//   - Extensibility via user supplied interceptors, adapters, stores
//
// Typical usage:
//
//	client := panelbridge.New(
//	    panelbridge.WithBaseURL("https://admin.example.com"),
//	    panelbridge.WithBackend(panelbridge.BackendASPNet),
//	    panelbridge.WithRetryConfig(panelbridge.FastRetryConfig()),
//	    panelbridge.WithMetrics(),
//	)
//	users, err := panelbridge.DoPaged[User](ctx, client,
//	    panelbridge.Endpoint{Path: "/api/users", Method: "GET", RequiresAuth: true},
//	    &panelbridge.RequestOptions{Query: map[string]any{"page": 2, "pageSize": 25}},
//	)
//
// Only 5xx, 408, 429 and transport failures trigger retries by default;
// override with RetryConfig.ShouldRetry. The library avoids opinionated
// logging: provide a Logger (e.g. via WithSimpleLogger or WithZapLogger) and
// enable debug flags selectively for insight without noise.
package panelbridge
