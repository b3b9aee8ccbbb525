package panelbridge

import (
	"encoding/json"
	"time"
)

// aspnetAdapter speaks the ASP.NET backend convention: `{result: T}`
// envelopes, `{items, totalPages, totalCount}` paged shapes (possibly nested
// inside the envelope), and login envelopes carrying UTC expiry timestamps.
type aspnetAdapter struct{}

// NewASPNetAdapter returns the adapter for ASP.NET-style backends.
func NewASPNetAdapter() ResponseAdapter { return aspnetAdapter{} }

func (aspnetAdapter) Kind() BackendKind { return BackendASPNet }

// NormalizeSuccess tries shapes most-specific-first: login envelope, then
// generic envelope, then paged list (against the unwrapped payload or the
// raw body), finally the unwrapped value itself.
func (a aspnetAdapter) NormalizeSuccess(body []byte, query map[string]any) *Result {
	if tokens, ok := a.NormalizeLogin(body); ok {
		return &Result{Value: json.RawMessage(body), Tokens: tokens}
	}

	payload := json.RawMessage(body)
	if obj, ok := jsonObject(body); ok {
		if result, exists := obj["result"]; exists {
			payload = result
		}
	}

	if page, items, ok := parseASPNetPaged(payload, query); ok {
		return &Result{Value: items, Page: page}
	}

	if !json.Valid(payload) {
		return &Result{}
	}
	return &Result{Value: payload}
}

// NormalizeLogin parses `{result: {accessToken, accessExpiresAtUtc,
// refreshToken?, refreshExpiresAtUtc?}}`. When the server omits the access
// expiry, it is inferred from the JWT exp claim.
func (aspnetAdapter) NormalizeLogin(body []byte) (*AuthTokens, bool) {
	obj, ok := jsonObject(body)
	if !ok {
		return nil, false
	}
	resultRaw, exists := obj["result"]
	if !exists {
		return nil, false
	}
	inner, ok := jsonObject(resultRaw)
	if !ok {
		return nil, false
	}
	accessRaw, exists := inner["accessToken"]
	if !exists {
		return nil, false
	}
	accessToken, ok := jsonString(accessRaw)
	if !ok || accessToken == "" {
		return nil, false
	}

	now := time.Now()
	expiresAt := now.Add(time.Hour)
	if raw, exists := inner["accessExpiresAtUtc"]; exists {
		if s, ok := jsonString(raw); ok {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				expiresAt = t
			}
		}
	} else if t, ok := jwtExpiry(accessToken); ok {
		expiresAt = t
	}

	tokens := &AuthTokens{
		Backend:              BackendASPNet,
		AccessToken:          accessToken,
		TokenType:            "Bearer",
		ExpiresIn:            int64(time.Until(expiresAt).Round(time.Second).Seconds()),
		AccessTokenExpiresAt: expiresAt,
	}
	if raw, exists := inner["refreshToken"]; exists {
		if s, ok := jsonString(raw); ok {
			tokens.RefreshToken = s
		}
	}
	if raw, exists := inner["refreshExpiresAtUtc"]; exists {
		if s, ok := jsonString(raw); ok {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				tokens.RefreshTokenExpiresAt = t
			}
		}
	}
	return tokens, true
}

// NormalizeError prefers the body's numeric code field over the HTTP status
// and picks the message from message > error > result > fallback.
func (aspnetAdapter) NormalizeError(status int, body []byte) *APIError {
	var raw any
	_ = json.Unmarshal(body, &raw)

	apiErr := &APIError{Code: status, Message: "Unexpected error", Raw: raw}

	obj, ok := jsonObject(body)
	if !ok {
		return apiErr
	}
	if codeRaw, exists := obj["code"]; exists {
		if code, ok := jsonInt(codeRaw); ok {
			apiErr.Code = code
		}
	}
	for _, field := range []string{"message", "error", "result"} {
		if msgRaw, exists := obj[field]; exists {
			if msg, ok := jsonString(msgRaw); ok && msg != "" {
				apiErr.Message = msg
				break
			}
		}
	}
	return apiErr
}

// AuthHeader uses the stored token type verbatim.
func (aspnetAdapter) AuthHeader(tokens *AuthTokens) string {
	tokenType := tokens.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return tokenType + " " + tokens.AccessToken
}

// parseASPNetPaged matches `{items: [...], totalPages?, totalCount?}`.
// CurrentPage and PageSize are inferred from the request query when the
// server does not echo them.
func parseASPNetPaged(payload json.RawMessage, query map[string]any) (*PageInfo, json.RawMessage, bool) {
	obj, ok := jsonObject(payload)
	if !ok {
		return nil, nil, false
	}
	items, exists := obj["items"]
	if !exists || !isJSONArray(items) {
		return nil, nil, false
	}

	itemCount := arrayLen(items)
	page := &PageInfo{
		CurrentPage: 1,
		PageSize:    itemCount,
		RowCount:    itemCount,
		PageCount:   1,
	}
	if raw, exists := obj["totalPages"]; exists {
		if n, ok := jsonInt(raw); ok {
			page.PageCount = n
		}
	}
	if raw, exists := obj["totalCount"]; exists {
		if n, ok := jsonInt(raw); ok {
			page.RowCount = n
		}
	}
	if n, ok := queryInt(query, "page", "pageNumber"); ok {
		page.CurrentPage = n
	}
	if n, ok := queryInt(query, "pageSize", "size"); ok {
		page.PageSize = n
	}
	if page.PageCount < 1 {
		page.PageCount = 1
	}
	return page, items, true
}
