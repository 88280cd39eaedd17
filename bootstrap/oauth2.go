package bootstrap

import (
	"strings"

	"golang.org/x/oauth2"
)

// DefaultScope is requested when the tenant bundle does not name one.
const DefaultScope = "openid email profile"

// Scope returns the tenant's requested scope, falling back to DefaultScope.
func (c *TenantConfig) Scope() string {
	if c.Provider.Scope != "" {
		return c.Provider.Scope
	}
	return DefaultScope
}

// OAuth2Config builds the oauth2 client configuration for the tenant's
// provider. The bridge is a public client, so the client id travels in the
// request body and no secret is ever configured.
func (c *TenantConfig) OAuth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID: c.Provider.ClientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.Provider.AuthorizationEndpoint,
			TokenURL:  c.Provider.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: c.Provider.RedirectURI,
		Scopes:      strings.Fields(c.Scope()),
	}
}
