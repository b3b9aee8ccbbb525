package panelbridge

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MemoryTokenStore is the reference TokenStore: a process-local, mutex-guarded
// holder for the current auth state. Applications embedding this client into
// a larger session layer can supply their own TokenStore instead.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	state AuthState
}

// NewMemoryTokenStore creates an empty store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

// GetState returns the current auth state. The tokens pointer is shared;
// callers must not mutate it.
func (s *MemoryTokenStore) GetState() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetAuth replaces the current auth state.
func (s *MemoryTokenStore) SetAuth(state AuthState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// ClearAuth drops the current auth state.
func (s *MemoryTokenStore) ClearAuth() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = AuthState{}
}

// jwtExpiry extracts the exp claim from a JWT access token without verifying
// the signature. The client holds no signing keys; the claim is used only to
// schedule refreshes, never to grant access.
func jwtExpiry(accessToken string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
