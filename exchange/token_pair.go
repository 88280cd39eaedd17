package exchange

import (
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/djokodonev/egav-web-frontend/internal/utils"
)

// TokenPair is the bridge's view of a token endpoint response.
type TokenPair struct {
	// AccessToken is opaque to storage but carries a decodable expiry claim
	// consumed by the refresh scheduler.
	AccessToken string `json:"access_token"`

	// TokenType is "bearer" for every provider the bridge talks to.
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the access token lifetime in seconds, used to compute the
	// cookie max-age.
	ExpiresIn int `json:"expires_in"`

	// RefreshToken is absent when the provider allows no silent refresh.
	RefreshToken     *string `json:"refresh_token,omitempty"`
	RefreshExpiresIn *int    `json:"refresh_expires_in,omitempty"`

	// IdToken is only present on the direct-code flow; it is used once to
	// resolve the account/org and then discarded.
	IdToken *string `json:"id_token,omitempty"`

	Scope string `json:"scope,omitempty"`
}

// HasRefreshToken reports whether silent refresh is possible with this pair.
func (p *TokenPair) HasRefreshToken() bool {
	return utils.Value(p.RefreshToken) != ""
}

// pairFromToken maps an oauth2 token (plus its raw extra fields) onto a
// TokenPair. RefreshToken comes from the raw response rather than the oauth2
// token, which echoes back the token it was fed even when the provider did
// not rotate it.
func pairFromToken(tok *oauth2.Token) *TokenPair {
	pair := &TokenPair{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
	}

	if expiresIn, ok := intExtra(tok, "expires_in"); ok {
		pair.ExpiresIn = expiresIn
	} else if !tok.Expiry.IsZero() {
		pair.ExpiresIn = int(time.Until(tok.Expiry).Seconds())
	}

	if refreshToken, ok := tok.Extra("refresh_token").(string); ok && refreshToken != "" {
		pair.RefreshToken = utils.Ptr(refreshToken)
	}
	if refreshExpiresIn, ok := intExtra(tok, "refresh_expires_in"); ok {
		pair.RefreshExpiresIn = utils.Ptr(refreshExpiresIn)
	}
	if idToken, ok := tok.Extra("id_token").(string); ok && idToken != "" {
		pair.IdToken = utils.Ptr(idToken)
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		pair.Scope = scope
	}

	return pair
}

// intExtra reads a numeric extra field, which arrives as float64 from JSON
// responses and as string from form-encoded ones.
func intExtra(tok *oauth2.Token, key string) (int, bool) {
	switch v := tok.Extra(key).(type) {
	case float64:
		return int(v), true
	case int64:
		return int(v), true
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n, true
		}
	}
	return 0, false
}
