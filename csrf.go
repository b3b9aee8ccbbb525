package panelbridge

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// CSRFProvider supplies the CSRF token attached to state-changing requests.
type CSRFProvider interface {
	// Required reports whether method needs CSRF protection.
	Required(method string) bool
	// Apply initializes the token if needed and attaches it to headers.
	Apply(ctx context.Context, headers http.Header) error
}

// CSRFHeaderName is the header the default provider writes.
const CSRFHeaderName = "X-CSRF-Token"

// memoryCSRF generates one random token per client session and reuses it
// for every protected request, double-submit style.
type memoryCSRF struct {
	mu    sync.Mutex
	token string
}

// NewCSRFProvider returns the default session-token provider.
func NewCSRFProvider() CSRFProvider {
	return &memoryCSRF{}
}

// Required returns true for state-changing verbs.
func (p *memoryCSRF) Required(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// Apply lazily initializes the session token and sets the CSRF header.
func (p *memoryCSRF) Apply(_ context.Context, headers http.Header) error {
	p.mu.Lock()
	if p.token == "" {
		p.token = uuid.NewString()
	}
	token := p.token
	p.mu.Unlock()

	headers.Set(CSRFHeaderName, token)
	return nil
}
