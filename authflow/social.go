package authflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/djokodonev/egav-web-frontend/bootstrap"
	bridgeerrors "github.com/djokodonev/egav-web-frontend/internal/errors"
)

// SocialRedirectURL asks the tenant's identity bridge for a provider-specific
// authorization URL (social sign-in) and returns it. This path does not use
// local PKCE state: the identity bridge owns the code exchange.
func (i *Initiator) SocialRedirectURL(ctx context.Context, cfg *bootstrap.TenantConfig, provider, returnURL string) (string, error) {
	if cfg == nil {
		return "", errors.New("[Initiator.SocialRedirectURL] tenant config is required")
	}
	if !cfg.Provider.HasSocialProvider(provider) {
		return "", errors.Wrapf(bridgeerrors.ErrProviderRedirectFailed, "[Initiator.SocialRedirectURL] provider %q not enabled for tenant %q", provider, cfg.OrgSlug)
	}

	endpoint := cfg.ProviderBaseURL + "/login/" + url.PathEscape(provider) + "?return_url=" + url.QueryEscape(returnURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", errors.Wrapf(bridgeerrors.ErrProviderRedirectFailed, "[Initiator.SocialRedirectURL] building request: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrapf(bridgeerrors.ErrProviderRedirectFailed, "[Initiator.SocialRedirectURL] bridge unreachable: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.Wrapf(bridgeerrors.ErrProviderRedirectFailed, "[Initiator.SocialRedirectURL] bridge returned %d for %q", resp.StatusCode, provider)
	}

	var body struct {
		AuthorizationURL string `json:"authorization_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", errors.Wrapf(bridgeerrors.ErrProviderRedirectFailed, "[Initiator.SocialRedirectURL] decoding response: %v", err)
	}
	if body.AuthorizationURL == "" {
		return "", errors.Wrap(bridgeerrors.ErrProviderRedirectFailed, "[Initiator.SocialRedirectURL] bridge returned no authorization_url")
	}

	return body.AuthorizationURL, nil
}
