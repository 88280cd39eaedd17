package authflow

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/djokodonev/egav-web-frontend/authflow/flowrepo"
	"github.com/djokodonev/egav-web-frontend/bootstrap"
)

// Mode selects which entry point initiated the flow. Both modes drive the
// same authorization endpoint; register forces a fresh login prompt at the
// provider so the shared endpoint serves both entry points.
type Mode string

const (
	ModeLogin    Mode = "login"
	ModeRegister Mode = "register"
)

const defaultHTTPTimeout = 10 * time.Second

// Initiator builds authorization redirects for the PKCE code flow and for
// provider-specific social sign-in.
type Initiator struct {
	flows      flowrepo.Repo
	httpClient *http.Client
}

// InitiatorOption defines a function type to modify the Initiator instance.
type InitiatorOption func(*Initiator)

// WithHTTPClient sets the HTTP client used for the social-redirect bridge
// call (primarily for testing).
func WithHTTPClient(client *http.Client) InitiatorOption {
	return func(i *Initiator) {
		i.httpClient = client
	}
}

// NewInitiator creates an Initiator persisting PKCE sessions in flows.
func NewInitiator(flows flowrepo.Repo, options ...InitiatorOption) (*Initiator, error) {
	if flows == nil {
		return nil, errors.New("[NewInitiator] flows repo is required")
	}

	initiator := &Initiator{
		flows:      flows,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}

	for _, opt := range options {
		opt(initiator)
	}

	return initiator, nil
}

// AuthRedirectURL creates and persists a PKCE session, then builds the
// authorization URL from the tenant's provider endpoints. The session must
// be stored before the caller redirects, or the callback has nothing to
// validate against.
func (i *Initiator) AuthRedirectURL(cfg *bootstrap.TenantConfig, mode Mode, returnURL string) (string, error) {
	if cfg == nil {
		return "", errors.New("[Initiator.AuthRedirectURL] tenant config is required")
	}

	session := NewSession()
	if session.Degraded {
		log.Warn().Str("org", cfg.OrgSlug).Msg("auth flow started with degraded random material")
	}

	if err := i.flows.Upsert(session.State, &flowrepo.FlowState{
		Verifier:        session.Verifier,
		ChallengeMethod: session.ChallengeMethod,
		Mode:            string(mode),
		ReturnURL:       returnURL,
		Degraded:        session.Degraded,
		CreatedAt:       session.CreatedAt,
	}); err != nil {
		return "", errors.Wrap(err, "[Initiator.AuthRedirectURL] failed to persist flow state")
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", session.Challenge),
		oauth2.SetAuthURLParam("code_challenge_method", session.ChallengeMethod),
	}
	if mode == ModeRegister {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", "login"))
	}

	return cfg.OAuth2Config().AuthCodeURL(session.State, opts...), nil
}
