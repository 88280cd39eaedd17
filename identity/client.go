// Package identity talks to the tenant's identity service: resolving a newly
// authenticated identity to an account/organization, and fetching the
// current user for display.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/djokodonev/egav-web-frontend/bootstrap"
	bridgeerrors "github.com/djokodonev/egav-web-frontend/internal/errors"
)

// Action classifies what a newly authenticated identity may do next.
type Action string

const (
	// ActionOK means the identity is bound to an organization and can
	// continue straight to the application.
	ActionOK Action = "ok"
	// ActionContactAdmin means the identity matched an organization but has
	// no access yet; the user must ask their admin.
	ActionContactAdmin Action = "contact_admin"
	// ActionPersonalOrgCreated means a personal workspace was just created
	// for the identity.
	ActionPersonalOrgCreated Action = "personal_org_created"
)

type Organization struct {
	GUID string `json:"guid"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// AccessHint is the server-derived outcome of presenting credentials to the
// account-resolution endpoint. It only chooses the post-login UI branch and
// is never persisted.
type AccessHint struct {
	Action       Action        `json:"action"`
	Reason       string        `json:"reason,omitempty"`
	Organization *Organization `json:"organization,omitempty"`
	Invited      bool          `json:"invited,omitempty"`
}

type User struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

// BootstrapResult is the account-resolution response.
type BootstrapResult struct {
	User               User          `json:"user"`
	PersonalOrg        *Organization `json:"personal_org,omitempty"`
	CreatedUser        bool          `json:"created_user,omitempty"`
	CreatedPersonalOrg bool          `json:"created_personal_org,omitempty"`
	Hint               AccessHint    `json:"access_hint"`
}

const defaultHTTPTimeout = 10 * time.Second

// Client calls the identity service named by the tenant configuration.
type Client struct {
	httpClient *http.Client
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client (primarily for testing).
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient initializes an identity service client.
func NewClient(options ...ClientOption) *Client {
	client := &Client{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range options {
		opt(client)
	}
	return client
}

// ResolveFromIDToken presents the id_token to the account-resolution
// endpoint, bearer-authorized with the access token, and returns the
// resolved account plus its access hint.
func (c *Client) ResolveFromIDToken(ctx context.Context, cfg *bootstrap.TenantConfig, accessToken, idToken string) (*BootstrapResult, error) {
	if cfg == nil {
		return nil, errors.New("[Client.ResolveFromIDToken] tenant config is required")
	}
	if idToken == "" {
		return nil, errors.Wrap(bridgeerrors.ErrIdentityUnavailable, "[Client.ResolveFromIDToken] no id token")
	}

	payload, err := json.Marshal(map[string]string{"id_token": idToken})
	if err != nil {
		return nil, errors.Wrap(err, "[Client.ResolveFromIDToken] encoding payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.IdentityServiceURL+"/bootstrap/from-id-token", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "[Client.ResolveFromIDToken] building request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(bridgeerrors.ErrIdentityUnavailable, "[Client.ResolveFromIDToken] identity service unreachable: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Wrapf(bridgeerrors.ErrIdentityUnavailable, "[Client.ResolveFromIDToken] identity service returned %d", resp.StatusCode)
	}

	var result BootstrapResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrapf(bridgeerrors.ErrIdentityUnavailable, "[Client.ResolveFromIDToken] decoding response: %v", err)
	}
	if result.Hint.Action == "" {
		result.Hint.Action = ActionOK
	}

	return &result, nil
}

// CurrentUser fetches the bearer's display identity.
func (c *Client) CurrentUser(ctx context.Context, cfg *bootstrap.TenantConfig, accessToken string) (*User, error) {
	if cfg == nil {
		return nil, errors.New("[Client.CurrentUser] tenant config is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.IdentityServiceURL+"/me", nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.CurrentUser] building request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(bridgeerrors.ErrIdentityUnavailable, "[Client.CurrentUser] identity service unreachable: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Wrapf(bridgeerrors.ErrIdentityUnavailable, "[Client.CurrentUser] identity service returned %d", resp.StatusCode)
	}

	var body struct {
		User User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrapf(bridgeerrors.ErrIdentityUnavailable, "[Client.CurrentUser] decoding response: %v", err)
	}

	return &body.User, nil
}
