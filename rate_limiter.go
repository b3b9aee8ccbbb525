package panelbridge

import (
	"strings"
	"sync"
	"time"
)

// EndpointClass names a rate-limit bucket. The class is derived from the
// request path; each class carries its own quota so a burst of searches
// cannot starve logins and vice versa.
type EndpointClass string

const (
	ClassAPI           EndpointClass = "api"
	ClassLogin         EndpointClass = "login"
	ClassRegister      EndpointClass = "register"
	ClassResetPassword EndpointClass = "resetPassword"
	ClassUpload        EndpointClass = "upload"
	ClassSearch        EndpointClass = "search"
)

// RateLimitConfig is the quota for one endpoint class.
type RateLimitConfig struct {
	Window      time.Duration
	MaxRequests int
	Message     string
}

// DefaultRateLimitRules returns the stock per-class quotas. Auth endpoints
// get tight limits, generic API traffic a generous one.
func DefaultRateLimitRules() map[EndpointClass]RateLimitConfig {
	return map[EndpointClass]RateLimitConfig{
		ClassAPI:           {Window: time.Minute, MaxRequests: 100, Message: "Too many requests, please slow down"},
		ClassLogin:         {Window: 15 * time.Minute, MaxRequests: 5, Message: "Too many login attempts, please try again later"},
		ClassRegister:      {Window: time.Hour, MaxRequests: 3, Message: "Too many registration attempts, please try again later"},
		ClassResetPassword: {Window: time.Hour, MaxRequests: 3, Message: "Too many password reset attempts, please try again later"},
		ClassUpload:        {Window: time.Minute, MaxRequests: 10, Message: "Too many uploads, please slow down"},
		ClassSearch:        {Window: time.Minute, MaxRequests: 30, Message: "Too many searches, please slow down"},
	}
}

// ClassifyEndpoint maps a request path onto its rate-limit class by
// substring inspection. The first matching rule wins, in priority order:
// login, register, password, upload, search, then the generic api fallback.
func ClassifyEndpoint(path string) EndpointClass {
	lower := strings.ToLower(path)
	switch {
	case strings.Contains(lower, "login"):
		return ClassLogin
	case strings.Contains(lower, "register"):
		return ClassRegister
	case strings.Contains(lower, "password"):
		return ClassResetPassword
	case strings.Contains(lower, "upload"):
		return ClassUpload
	case strings.Contains(lower, "search"):
		return ClassSearch
	default:
		return ClassAPI
	}
}

// windowEntry holds the recorded attempt timestamps for one key together
// with the quota they were recorded under.
type windowEntry struct {
	stamps      []time.Time
	window      time.Duration
	maxRequests int
}

// SlidingWindowLimiter enforces per-key request quotas over a sliding time
// window. Keys are "METHOD:path" strings chosen by the client per request,
// so different endpoints have independent quotas. State is in-memory only;
// idle keys are swept periodically. Safe for concurrent use.
type SlidingWindowLimiter struct {
	mu        sync.Mutex
	entries   map[string]*windowEntry
	lastSweep time.Time
	sweepEach time.Duration
}

// NewSlidingWindowLimiter creates an empty limiter.
func NewSlidingWindowLimiter() *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		entries:   make(map[string]*windowEntry),
		lastSweep: time.Now(),
		sweepEach: 5 * time.Minute,
	}
}

// Check records a request attempt under key and reports whether it is
// permitted: at most cfg.MaxRequests attempts within cfg.Window, counting
// after expired timestamps are pruned. The attempt is recorded either way,
// so hammering a limited endpoint keeps it limited.
func (l *SlidingWindowLimiter) Check(key string, cfg RateLimitConfig) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.maybeSweep(now)

	entry, ok := l.entries[key]
	if !ok {
		entry = &windowEntry{}
		l.entries[key] = entry
	}
	entry.window = cfg.Window
	entry.maxRequests = cfg.MaxRequests

	entry.prune(now)
	entry.stamps = append(entry.stamps, now)
	return len(entry.stamps) <= cfg.MaxRequests
}

// RetryAfter returns how long until the oldest recorded attempt exits the
// window, i.e. when the next slot frees up. Returns 0 when the key is
// currently under quota.
func (l *SlidingWindowLimiter) RetryAfter(key string) time.Duration {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		return 0
	}
	entry.prune(now)
	if len(entry.stamps) <= entry.maxRequests {
		return 0
	}
	wait := entry.stamps[0].Add(entry.window).Sub(now)
	if wait < 0 {
		wait = 0
	}
	return wait
}

// Reset drops all recorded state. Intended for tests.
func (l *SlidingWindowLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]*windowEntry)
}

func (e *windowEntry) prune(now time.Time) {
	cutoff := now.Add(-e.window)
	idx := 0
	for idx < len(e.stamps) && !e.stamps[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		e.stamps = append(e.stamps[:0], e.stamps[idx:]...)
	}
}

// maybeSweep drops keys whose every timestamp has expired. Caller holds the lock.
func (l *SlidingWindowLimiter) maybeSweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.sweepEach {
		return
	}
	l.lastSweep = now
	for key, entry := range l.entries {
		entry.prune(now)
		if len(entry.stamps) == 0 {
			delete(l.entries, key)
		}
	}
}
