package panelbridge

import (
	"strings"

	"github.com/google/uuid"
)

// DebugConfig gates the client's diagnostic logging. Nothing is logged
// unless Enabled is true and a Logger is configured; the per-area flags
// select which lifecycle events are reported.
type DebugConfig struct {
	Enabled      bool
	LogRequests  bool
	LogRetries   bool
	LogRateLimit bool
	LogAuth      bool
	LogErrors    bool
	RequestIDGen func() string
}

// DefaultDebugConfig returns a disabled config with every area flag set, so
// flipping Enabled turns on full logging.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		LogRequests:  true,
		LogRetries:   true,
		LogRateLimit: true,
		LogAuth:      true,
		LogErrors:    true,
		RequestIDGen: DefaultRequestIDGen,
	}
}

// DefaultRequestIDGen returns a short random request identifier.
func DefaultRequestIDGen() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}
