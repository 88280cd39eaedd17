package exchange

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/djokodonev/egav-web-frontend/authflow/flowrepo"
	"github.com/djokodonev/egav-web-frontend/bootstrap"
	bridgeerrors "github.com/djokodonev/egav-web-frontend/internal/errors"
)

const (
	defaultFlowTimeout = 15 * time.Minute
	defaultHTTPTimeout = 10 * time.Second
)

// Client exchanges authorization codes for token pairs and refreshes them.
type Client struct {
	flows       flowrepo.Repo
	httpClient  *http.Client
	flowTimeout time.Duration
	nowTime     func() time.Time
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for token endpoint calls
// (primarily for testing).
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithFlowTimeout caps how old a PKCE session may be at exchange time.
func WithFlowTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.flowTimeout = timeout
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ClientOption {
	return func(c *Client) {
		c.nowTime = nowFunc
	}
}

// NewClient initializes a Client validating PKCE sessions against flows.
func NewClient(flows flowrepo.Repo, options ...ClientOption) (*Client, error) {
	if flows == nil {
		return nil, errors.New("[NewClient] flows repo is required")
	}

	client := &Client{
		flows:       flows,
		httpClient:  &http.Client{Timeout: defaultHTTPTimeout},
		flowTimeout: defaultFlowTimeout,
		nowTime:     time.Now,
	}

	for _, opt := range options {
		opt(client)
	}

	return client, nil
}

// ExchangeCodeForTokens validates the callback's state against the stored
// PKCE session, consumes the session, and exchanges the single-use code for
// a token pair. A mismatched or missing state is treated as a forged or
// replayed callback. The exchange is never retried: the code is single-use
// at the provider.
func (c *Client) ExchangeCodeForTokens(ctx context.Context, cfg *bootstrap.TenantConfig, code, state string) (*TokenPair, error) {
	if cfg == nil {
		return nil, errors.New("[Client.ExchangeCodeForTokens] tenant config is required")
	}
	if code == "" || state == "" {
		return nil, errors.Wrap(bridgeerrors.ErrInvalidAuthState, "[Client.ExchangeCodeForTokens] missing code or state")
	}

	flowState, err := c.flows.Get(state)
	if err != nil || flowState == nil {
		return nil, errors.Wrap(bridgeerrors.ErrInvalidAuthState, "[Client.ExchangeCodeForTokens] unknown state")
	}

	// Consume the session before touching the network so a replayed callback
	// can never redeem the same verifier twice.
	if err := c.flows.Delete(state); err != nil {
		return nil, errors.Wrap(err, "[Client.ExchangeCodeForTokens] failed to consume flow state")
	}

	if flowState.Verifier == "" {
		return nil, errors.Wrap(bridgeerrors.ErrInvalidAuthState, "[Client.ExchangeCodeForTokens] no verifier in flow state")
	}
	if c.nowTime().Sub(flowState.CreatedAt) > c.flowTimeout {
		return nil, errors.Wrap(bridgeerrors.ErrInvalidAuthState, "[Client.ExchangeCodeForTokens] flow state timed out")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := cfg.OAuth2Config().Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", flowState.Verifier))
	if err != nil {
		return nil, grantError(bridgeerrors.ErrTokenExchangeFailed, "[Client.ExchangeCodeForTokens]", err)
	}

	log.Debug().Str("org", cfg.OrgSlug).Msg("authorization code exchanged")
	return pairFromToken(tok), nil
}

// RefreshAccessToken redeems a refresh_token grant for a new token pair.
func (c *Client) RefreshAccessToken(ctx context.Context, cfg *bootstrap.TenantConfig, refreshToken string) (*TokenPair, error) {
	if cfg == nil {
		return nil, errors.New("[Client.RefreshAccessToken] tenant config is required")
	}
	if refreshToken == "" {
		return nil, errors.Wrap(bridgeerrors.ErrTokenRefreshFailed, "[Client.RefreshAccessToken] no refresh token")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := cfg.OAuth2Config().TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, grantError(bridgeerrors.ErrTokenRefreshFailed, "[Client.RefreshAccessToken]", err)
	}

	return pairFromToken(tok), nil
}

// grantError wraps a provider rejection with the matching sentinel, keeping
// the OAuth2 error code and description when the provider sent them.
func grantError(sentinel error, prefix string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode != "" {
		return errors.Wrapf(sentinel, "%s provider rejected grant: %s %s", prefix, retrieveErr.ErrorCode, retrieveErr.ErrorDescription)
	}
	return errors.Wrapf(sentinel, "%s %v", prefix, err)
}
