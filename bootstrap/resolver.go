package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	bridgeerrors "github.com/djokodonev/egav-web-frontend/internal/errors"
)

// BootstrapPath is the control-plane route that resolves a hostname to its
// tenant configuration.
const BootstrapPath = "/v1/tenants/bootstrap"

const defaultHTTPTimeout = 10 * time.Second

// Resolver fetches TenantConfig bundles from the control plane and keeps the
// most recently resolved bundle available through a synchronous accessor, so
// non-blocking code paths can read it without re-awaiting the network call.
//
// The resolver imposes no retry policy; callers decide whether to retry or
// degrade when resolution fails.
type Resolver struct {
	baseURL    string
	httpClient *http.Client

	mu      sync.RWMutex
	current *TenantConfig
}

// ResolverOption defines a function type to modify the Resolver instance.
type ResolverOption func(*Resolver)

// WithHTTPClient sets the HTTP client used for control-plane and discovery
// calls (primarily for testing).
func WithHTTPClient(client *http.Client) ResolverOption {
	return func(r *Resolver) {
		r.httpClient = client
	}
}

// NewResolver creates a resolver bound to the control plane's base URL, the
// only hardwired endpoint in the bridge.
func NewResolver(baseURL string, options ...ResolverOption) (*Resolver, error) {
	if baseURL == "" {
		return nil, errors.New("[NewResolver] baseURL is required")
	}

	resolver := &Resolver{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}

	for _, opt := range options {
		opt(resolver)
	}

	return resolver, nil
}

// Resolve fetches the tenant configuration for hostname and caches it.
// Every successful resolution overwrites the cache, which supports tenant
// or hostname changes within one process lifetime.
func (r *Resolver) Resolve(ctx context.Context, hostname string) (*TenantConfig, error) {
	if hostname == "" {
		return nil, errors.Wrap(bridgeerrors.ErrConfigUnavailable, "[Resolver.Resolve] hostname is required")
	}

	endpoint := r.baseURL + BootstrapPath + "?hostname=" + url.QueryEscape(hostname)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrapf(bridgeerrors.ErrConfigUnavailable, "[Resolver.Resolve] building request: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(bridgeerrors.ErrConfigUnavailable, "[Resolver.Resolve] control plane unreachable: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Wrapf(bridgeerrors.ErrConfigUnavailable, "[Resolver.Resolve] control plane returned %d for %q", resp.StatusCode, hostname)
	}

	var cfg TenantConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return nil, errors.Wrapf(bridgeerrors.ErrConfigUnavailable, "[Resolver.Resolve] decoding bundle: %v", err)
	}

	if err := r.completeProviderEndpoints(ctx, &cfg); err != nil {
		return nil, err
	}

	if cfg.Provider.ClientID == "" || cfg.Provider.TokenEndpoint == "" {
		return nil, errors.Wrapf(bridgeerrors.ErrConfigUnavailable, "[Resolver.Resolve] bundle for %q missing provider client_id or token endpoint", hostname)
	}

	r.mu.Lock()
	r.current = &cfg
	r.mu.Unlock()

	log.Debug().
		Str("hostname", hostname).
		Str("org", cfg.OrgSlug).
		Str("provider", cfg.Provider.Kind).
		Msg("tenant configuration resolved")

	return &cfg, nil
}

// completeProviderEndpoints fills missing authorization/token/userinfo
// endpoints from the issuer's OIDC discovery document.
func (r *Resolver) completeProviderEndpoints(ctx context.Context, cfg *TenantConfig) error {
	p := &cfg.Provider
	if (p.AuthorizationEndpoint != "" && p.TokenEndpoint != "") || p.Issuer == "" {
		return nil
	}

	ctx = oidc.ClientContext(ctx, r.httpClient)
	provider, err := oidc.NewProvider(ctx, p.Issuer)
	if err != nil {
		return errors.Wrapf(bridgeerrors.ErrConfigUnavailable, "[Resolver] discovery for issuer %q: %v", p.Issuer, err)
	}

	endpoint := provider.Endpoint()
	if p.AuthorizationEndpoint == "" {
		p.AuthorizationEndpoint = endpoint.AuthURL
	}
	if p.TokenEndpoint == "" {
		p.TokenEndpoint = endpoint.TokenURL
	}

	var discovered struct {
		UserInfoEndpoint   string `json:"userinfo_endpoint"`
		EndSessionEndpoint string `json:"end_session_endpoint"`
		JWKSURI            string `json:"jwks_uri"`
	}
	if err := provider.Claims(&discovered); err == nil {
		if p.UserInfoEndpoint == "" {
			p.UserInfoEndpoint = discovered.UserInfoEndpoint
		}
		if p.EndSessionEndpoint == "" {
			p.EndSessionEndpoint = discovered.EndSessionEndpoint
		}
		if p.JWKSURI == "" {
			p.JWKSURI = discovered.JWKSURI
		}
	}
	return nil
}

// Reload re-resolves the configuration for hostname, replacing the cached
// bundle. It is the explicit alternative to implicit cache invalidation.
func (r *Resolver) Reload(ctx context.Context, hostname string) (*TenantConfig, error) {
	return r.Resolve(ctx, hostname)
}

// Current returns the most recently resolved configuration, or nil when no
// resolution has succeeded yet.
func (r *Resolver) Current() *TenantConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}
