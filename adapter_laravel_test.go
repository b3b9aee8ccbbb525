package panelbridge

import (
	"testing"
	"time"
)

func TestLaravelNormalizeSuccessEnvelopes(t *testing.T) {
	adapter := NewLaravelAdapter()

	res := adapter.NormalizeSuccess([]byte(`{"result":{"id":9}}`), nil)
	if string(res.Value) != `{"id":9}` {
		t.Errorf("result envelope value = %s, want inner object", res.Value)
	}

	res = adapter.NormalizeSuccess([]byte(`{"data":{"id":9}}`), nil)
	if string(res.Value) != `{"id":9}` {
		t.Errorf("data envelope value = %s, want inner object", res.Value)
	}
	if res.Page != nil {
		t.Error("non-array data should carry no page info")
	}

	// result wins over data when both appear
	res = adapter.NormalizeSuccess([]byte(`{"result":{"a":1},"data":{"b":2}}`), nil)
	if string(res.Value) != `{"a":1}` {
		t.Errorf("result should win over data, got %s", res.Value)
	}
}

func TestLaravelNormalizeSuccessBareBody(t *testing.T) {
	adapter := NewLaravelAdapter()

	res := adapter.NormalizeSuccess([]byte(`{"id":9}`), nil)
	if string(res.Value) != `{"id":9}` {
		t.Errorf("unenveloped body should pass through, got %s", res.Value)
	}

	res = adapter.NormalizeSuccess([]byte(`not json`), nil)
	if res.Value != nil {
		t.Errorf("invalid body should normalize to empty result, got %s", res.Value)
	}
}

func TestLaravelNormalizeSuccessDataTables(t *testing.T) {
	adapter := NewLaravelAdapter()
	body := []byte(`{"data":[{"id":1},{"id":2}],"recordsFiltered":12,"recordsTotal":50}`)

	res := adapter.NormalizeSuccess(body, nil)
	if res.Page == nil {
		t.Fatal("expected page info for DataTables shape")
	}
	if res.Page.CurrentPage != 1 || res.Page.PageCount != 1 {
		t.Errorf("DataTables responses flatten to one page, got %+v", res.Page)
	}
	if res.Page.PageSize != 2 {
		t.Errorf("PageSize = %d, want item count 2", res.Page.PageSize)
	}
	if res.Page.RowCount != 12 {
		t.Errorf("RowCount = %d, want recordsFiltered 12", res.Page.RowCount)
	}
	if string(res.Value) != `[{"id":1},{"id":2}]` {
		t.Errorf("value should be the data array, got %s", res.Value)
	}
}

func TestLaravelNormalizeSuccessDataTablesTotalFallback(t *testing.T) {
	adapter := NewLaravelAdapter()
	body := []byte(`{"data":[{"id":1}],"recordsTotal":30}`)

	res := adapter.NormalizeSuccess(body, nil)
	if res.Page == nil {
		t.Fatal("expected page info")
	}
	if res.Page.RowCount != 30 {
		t.Errorf("RowCount = %d, want recordsTotal 30", res.Page.RowCount)
	}
}

func TestLaravelNormalizeSuccessPlainDataArray(t *testing.T) {
	adapter := NewLaravelAdapter()

	// array without records counters is a plain data envelope
	res := adapter.NormalizeSuccess([]byte(`{"data":[{"id":1}]}`), nil)
	if res.Page != nil {
		t.Errorf("array without counters should carry no page info, got %+v", res.Page)
	}
	if string(res.Value) != `[{"id":1}]` {
		t.Errorf("value = %s, want unwrapped array", res.Value)
	}
}

func TestLaravelNormalizeLogin(t *testing.T) {
	adapter := NewLaravelAdapter()
	body := []byte(`{"access_token":"acc-2","token_type":"bearer","expires_in":1800}`)

	before := time.Now()
	tokens, ok := adapter.NormalizeLogin(body)
	if !ok {
		t.Fatal("expected login payload to be recognized")
	}
	if tokens.Backend != BackendLaravel {
		t.Errorf("Backend = %q, want laravel", tokens.Backend)
	}
	if tokens.AccessToken != "acc-2" || tokens.TokenType != "bearer" || tokens.ExpiresIn != 1800 {
		t.Errorf("unexpected tokens: %+v", tokens)
	}
	if tokens.RefreshToken != "" {
		t.Errorf("RefreshToken = %q, want empty", tokens.RefreshToken)
	}
	wantExpiry := before.Add(1800 * time.Second)
	if tokens.AccessTokenExpiresAt.Before(wantExpiry) || tokens.AccessTokenExpiresAt.After(wantExpiry.Add(time.Second)) {
		t.Errorf("AccessTokenExpiresAt = %v, want ~%v", tokens.AccessTokenExpiresAt, wantExpiry)
	}
}

func TestLaravelNormalizeLoginDefaults(t *testing.T) {
	adapter := NewLaravelAdapter()

	tokens, ok := adapter.NormalizeLogin([]byte(`{"access_token":"acc-3"}`))
	if !ok {
		t.Fatal("expected minimal login payload to be recognized")
	}
	if tokens.TokenType != "bearer" {
		t.Errorf("TokenType = %q, want default bearer", tokens.TokenType)
	}
	if tokens.ExpiresIn != 3600 {
		t.Errorf("ExpiresIn = %d, want default 3600", tokens.ExpiresIn)
	}
}

func TestLaravelNormalizeLoginRejectsOtherShapes(t *testing.T) {
	adapter := NewLaravelAdapter()
	for _, body := range []string{
		`{"data":{"id":1}}`,
		`{"access_token":""}`,
		`[1]`,
		`not json`,
	} {
		if _, ok := adapter.NormalizeLogin([]byte(body)); ok {
			t.Errorf("body %q should not parse as login", body)
		}
	}
}

func TestLaravelNormalizeError(t *testing.T) {
	adapter := NewLaravelAdapter()

	apiErr := adapter.NormalizeError(422, []byte(`{"message":"The email field is required."}`))
	if apiErr.Code != 422 {
		t.Errorf("Code = %d, want 422", apiErr.Code)
	}
	if apiErr.Message != "The email field is required." {
		t.Errorf("Message = %q", apiErr.Message)
	}

	apiErr = adapter.NormalizeError(500, []byte(`<html></html>`))
	if apiErr.Code != 500 || apiErr.Message != "Unexpected error" {
		t.Errorf("unexpected fallback error: %+v", apiErr)
	}
}

func TestLaravelAuthHeader(t *testing.T) {
	adapter := NewLaravelAdapter()

	got := adapter.AuthHeader(&AuthTokens{AccessToken: "tok", TokenType: "bearer"})
	if got != "Bearer tok" {
		t.Errorf("AuthHeader = %q, want capitalized Bearer", got)
	}
	got = adapter.AuthHeader(&AuthTokens{AccessToken: "tok"})
	if got != "Bearer tok" {
		t.Errorf("AuthHeader with empty type = %q, want %q", got, "Bearer tok")
	}
}
