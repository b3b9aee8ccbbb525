package panelbridge

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestMemoryTokenStore(t *testing.T) {
	store := NewMemoryTokenStore()

	if state := store.GetState(); state.Tokens != nil || state.User != nil {
		t.Errorf("fresh store should be empty, got %+v", state)
	}

	tokens := &AuthTokens{Backend: BackendASPNet, AccessToken: "acc", RefreshToken: "ref"}
	store.SetAuth(AuthState{Tokens: tokens, User: json.RawMessage(`{"id":1}`)})

	state := store.GetState()
	if state.Tokens != tokens {
		t.Error("GetState should return the stored tokens")
	}
	if string(state.User) != `{"id":1}` {
		t.Errorf("unexpected user payload: %s", state.User)
	}

	store.ClearAuth()
	if state := store.GetState(); state.Tokens != nil || state.User != nil {
		t.Errorf("cleared store should be empty, got %+v", state)
	}
}

func TestJWTExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	got, ok := jwtExpiry(signed)
	if !ok {
		t.Fatal("expected exp claim to be extracted")
	}
	if !got.Equal(exp) {
		t.Errorf("jwtExpiry = %v, want %v", got, exp)
	}
}

func TestJWTExpiryMissingClaim(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, ok := jwtExpiry(signed); ok {
		t.Error("token without exp claim should not yield an expiry")
	}
}

func TestJWTExpiryMalformedToken(t *testing.T) {
	if _, ok := jwtExpiry("not-a-jwt"); ok {
		t.Error("malformed token should not yield an expiry")
	}
}
