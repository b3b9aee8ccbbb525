package panelbridge

import (
	"encoding/json"
	"strings"
	"time"
)

// laravelAdapter speaks the Laravel backend convention: `{access_token,
// token_type, expires_in}` login payloads, `{result: T}` and `{data: T}`
// envelopes, and DataTables-style `{data, recordsFiltered, recordsTotal}`
// paged shapes.
type laravelAdapter struct{}

// NewLaravelAdapter returns the adapter for Laravel-style backends.
func NewLaravelAdapter() ResponseAdapter { return laravelAdapter{} }

func (laravelAdapter) Kind() BackendKind { return BackendLaravel }

// NormalizeSuccess tries shapes most-specific-first: login payload, result
// envelope, DataTables paged shape, data envelope, finally the raw body.
func (a laravelAdapter) NormalizeSuccess(body []byte, query map[string]any) *Result {
	if tokens, ok := a.NormalizeLogin(body); ok {
		return &Result{Value: json.RawMessage(body), Tokens: tokens}
	}

	obj, isObject := jsonObject(body)
	if isObject {
		if result, exists := obj["result"]; exists {
			return &Result{Value: result}
		}
		if data, exists := obj["data"]; exists {
			if page, ok := parseDataTablesPage(obj, data); ok {
				return &Result{Value: data, Page: page}
			}
			return &Result{Value: data}
		}
	}

	if !json.Valid(body) {
		return &Result{}
	}
	return &Result{Value: json.RawMessage(body)}
}

// NormalizeLogin parses `{access_token, token_type, expires_in}`. Laravel
// has no distinct refresh token by convention: refresh re-uses the access
// token via an authenticated call, so RefreshToken stays empty.
func (laravelAdapter) NormalizeLogin(body []byte) (*AuthTokens, bool) {
	obj, ok := jsonObject(body)
	if !ok {
		return nil, false
	}
	accessRaw, exists := obj["access_token"]
	if !exists {
		return nil, false
	}
	accessToken, ok := jsonString(accessRaw)
	if !ok || accessToken == "" {
		return nil, false
	}

	tokenType := "bearer"
	if raw, exists := obj["token_type"]; exists {
		if s, ok := jsonString(raw); ok && s != "" {
			tokenType = s
		}
	}
	expiresIn := int64(3600)
	if raw, exists := obj["expires_in"]; exists {
		if n, ok := jsonInt(raw); ok {
			expiresIn = int64(n)
		}
	}

	return &AuthTokens{
		Backend:              BackendLaravel,
		AccessToken:          accessToken,
		TokenType:            tokenType,
		ExpiresIn:            expiresIn,
		AccessTokenExpiresAt: time.Now().Add(time.Duration(expiresIn) * time.Second),
	}, true
}

// NormalizeError uses the HTTP status as the code and the body's message
// field when present.
func (laravelAdapter) NormalizeError(status int, body []byte) *APIError {
	var raw any
	_ = json.Unmarshal(body, &raw)

	apiErr := &APIError{Code: status, Message: "Unexpected error", Raw: raw}

	if obj, ok := jsonObject(body); ok {
		if msgRaw, exists := obj["message"]; exists {
			if msg, ok := jsonString(msgRaw); ok && msg != "" {
				apiErr.Message = msg
			}
		}
	}
	return apiErr
}

// AuthHeader capitalizes the lowercase `bearer` the server returns.
func (laravelAdapter) AuthHeader(tokens *AuthTokens) string {
	tokenType := tokens.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	} else {
		tokenType = strings.ToUpper(tokenType[:1]) + tokenType[1:]
	}
	return tokenType + " " + tokens.AccessToken
}

// parseDataTablesPage matches `{data: [...], recordsFiltered|recordsTotal}`.
// The source convention returns the whole filtered set per request, so the
// result flattens into a single unified page.
func parseDataTablesPage(obj map[string]json.RawMessage, data json.RawMessage) (*PageInfo, bool) {
	if !isJSONArray(data) {
		return nil, false
	}
	filteredRaw, hasFiltered := obj["recordsFiltered"]
	totalRaw, hasTotal := obj["recordsTotal"]
	if !hasFiltered && !hasTotal {
		return nil, false
	}

	itemCount := arrayLen(data)
	rowCount := itemCount
	if hasFiltered {
		if n, ok := jsonInt(filteredRaw); ok {
			rowCount = n
		}
	} else if hasTotal {
		if n, ok := jsonInt(totalRaw); ok {
			rowCount = n
		}
	}

	return &PageInfo{
		CurrentPage: 1,
		PageSize:    itemCount,
		RowCount:    rowCount,
		PageCount:   1,
	}, true
}
