package panelbridge

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// WithBaseURL sets the server base URL prepended to every endpoint path.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithBackend sets the process-wide default backend kind. Per-call overrides
// and the stored session's backend take precedence.
func WithBackend(kind BackendKind) Option {
	return func(c *Client) {
		c.backend = kind
	}
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the transport timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithTokenStore replaces the in-memory token store, e.g. to share auth
// state with a larger session layer.
func WithTokenStore(store TokenStore) Option {
	return func(c *Client) {
		c.store = store
	}
}

// WithCSRFProvider replaces the default CSRF token provider. A nil provider
// disables CSRF headers.
func WithCSRFProvider(provider CSRFProvider) Option {
	return func(c *Client) {
		c.csrf = provider
	}
}

// WithSanitizer replaces the outbound body sanitizer. A nil sanitizer sends
// bodies unscrubbed.
func WithSanitizer(fn func(any) any) Option {
	return func(c *Client) {
		c.sanitizer = fn
	}
}

// WithRetryConfig sets the client-wide retry policy.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(c *Client) {
		c.retryConfig = cfg
	}
}

// WithRetryBudget caps retries across all calls to maxRetries per window.
func WithRetryBudget(maxRetries int, perWindow time.Duration) Option {
	return func(c *Client) {
		c.retryBudget = NewRetryBudget(maxRetries, perWindow)
	}
}

// WithCircuitBreaker enables the circuit breaker.
func WithCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.breaker = NewCircuitBreaker(config)
	}
}

// WithRateLimitRules replaces the per-class rate-limit quotas.
func WithRateLimitRules(rules map[EndpointClass]RateLimitConfig) Option {
	return func(c *Client) {
		c.rateRules = rules
	}
}

// WithoutRateLimiting disables the client-side rate limiter.
func WithoutRateLimiting() Option {
	return func(c *Client) {
		c.limiter = nil
	}
}

// WithRefreshPath sets the token refresh endpoint for one backend kind.
func WithRefreshPath(kind BackendKind, path string) Option {
	return func(c *Client) {
		c.refreshPaths[kind] = path
	}
}

// WithoutAuthRefresh disables the built-in refresh-on-401 error interceptor.
func WithoutAuthRefresh() Option {
	return func(c *Client) {
		c.autoRefresh = false
	}
}

// WithAdapter registers a response adapter, replacing any existing adapter
// for the same backend kind.
func WithAdapter(adapter ResponseAdapter) Option {
	return func(c *Client) {
		c.adapters[adapter.Kind()] = adapter
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector, e.g. one bound to a
// private registry in tests.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithLogger sets the structured logger used for debug output.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger enables debug logging with a plain console logger.
func WithSimpleLogger() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewSimpleLogger()
	}
}

// WithZapLogger sets a zap-backed structured logger.
func WithZapLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = NewZapLogger(logger)
	}
}

// WithDebug enables debug logging with the default flags.
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig sets a custom debug configuration.
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithRequestIDGenerator sets a custom request ID generator for debug logs.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}
