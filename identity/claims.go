package identity

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	bridgeerrors "github.com/djokodonev/egav-web-frontend/internal/errors"
	"github.com/djokodonev/egav-web-frontend/internal/utils"
)

// IDTokenClaims are the identity claims the bridge reads out of an id_token.
type IDTokenClaims struct {
	Subject  string
	Email    string
	Name     string
	Audience []string
}

// ParseIDTokenClaims decodes an id_token without verifying its signature.
// The token was just received over TLS from the token endpoint and is only
// used for display identity and audience sanity checks, never for
// authorization decisions; those belong to the identity service.
func ParseIDTokenClaims(idToken string) (*IDTokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return nil, errors.Wrapf(bridgeerrors.ErrTokenMalformed, "[ParseIDTokenClaims] %v", err)
	}

	parsed := &IDTokenClaims{
		Audience: utils.ToStringSlice(claims["aud"]),
	}
	if sub, ok := claims["sub"].(string); ok {
		parsed.Subject = sub
	}
	if email, ok := claims["email"].(string); ok {
		parsed.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		parsed.Name = name
	}

	return parsed, nil
}

// HasAudience reports whether the token was minted for clientID. An empty
// audience list is treated as unknown rather than a mismatch.
func (c *IDTokenClaims) HasAudience(clientID string) bool {
	if len(c.Audience) == 0 {
		return true
	}
	for _, aud := range c.Audience {
		if aud == clientID {
			return true
		}
	}
	return false
}
