package bootstrap

// TenantConfig is the per-hostname bundle of service URLs and identity
// provider metadata returned by the control plane. Apart from the bootstrap
// endpoint itself, every URL the bridge touches comes out of this bundle, so
// the same binary serves arbitrary tenants and hostnames.
//
// A resolved TenantConfig is treated as immutable: components receive it as
// an explicit argument and never mutate it. Tenant changes go through
// Resolver.Reload, which swaps in a fresh bundle.
type TenantConfig struct {
	// Tenant identity
	OrgID   string `json:"org_id"`
	OrgSlug string `json:"org_slug"`
	OrgName string `json:"org_name"`

	// Optional application / deployment identifiers
	AppID      string `json:"app_id,omitempty"`
	InstanceID string `json:"instance_id,omitempty"`

	// Service endpoints
	IdentityServiceURL string `json:"identity_service_url"`
	PolicyServiceURL   string `json:"policy_service_url"`
	ProviderBaseURL    string `json:"provider_base_url"`
	AppBaseURL         string `json:"app_base_url,omitempty"`
	Region             string `json:"region,omitempty"`

	Provider AuthProvider `json:"auth_provider"`
}

// AuthProvider describes the tenant's identity provider.
type AuthProvider struct {
	Kind   string `json:"kind"`
	Issuer string `json:"issuer"`

	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserInfoEndpoint      string `json:"userinfo_endpoint,omitempty"`
	EndSessionEndpoint    string `json:"end_session_endpoint,omitempty"`
	JWKSURI               string `json:"jwks_uri,omitempty"`

	ClientID string `json:"client_id"`
	// RedirectURI is the identity bridge's central callback, not necessarily
	// a URL on the visiting hostname.
	RedirectURI string `json:"redirect_uri"`

	SocialProviders []string `json:"social_providers,omitempty"`
	Scope           string   `json:"scope,omitempty"`
	ResponseType    string   `json:"response_type,omitempty"`
	Flow            string   `json:"flow,omitempty"`
	SSORequired     bool     `json:"sso_required,omitempty"`
}

// HasSocialProvider reports whether the tenant has the named social provider
// enabled.
func (p AuthProvider) HasSocialProvider(name string) bool {
	for _, sp := range p.SocialProviders {
		if sp == name {
			return true
		}
	}
	return false
}
