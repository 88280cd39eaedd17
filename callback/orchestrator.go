// Package callback classifies provider callback URLs and drives the
// post-callback state machine: exchange or accept tokens, resolve the
// account hint, persist the pair, and derive a user-facing outcome.
package callback

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/djokodonev/egav-web-frontend/bootstrap"
	"github.com/djokodonev/egav-web-frontend/exchange"
	"github.com/djokodonev/egav-web-frontend/identity"
	"github.com/djokodonev/egav-web-frontend/internal/utils"
)

// State is the orchestrator's position in the callback lifecycle. Loading is
// only reachable while the tenant config has not resolved yet; Ready and
// Error are terminal.
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

// TokenWriter persists a token pair. The cookie store's request binding
// satisfies it.
type TokenWriter interface {
	SetAccess(value string, maxAgeSeconds int)
	SetRefresh(value string, maxAgeSeconds int)
}

// Exchanger swaps an authorization code for tokens.
type Exchanger interface {
	ExchangeCodeForTokens(ctx context.Context, cfg *bootstrap.TenantConfig, code, state string) (*exchange.TokenPair, error)
}

// IdentityResolver turns fresh tokens into a display identity and access hint.
type IdentityResolver interface {
	ResolveFromIDToken(ctx context.Context, cfg *bootstrap.TenantConfig, accessToken, idToken string) (*identity.BootstrapResult, error)
	CurrentUser(ctx context.Context, cfg *bootstrap.TenantConfig, accessToken string) (*identity.User, error)
}

// Outcome is what the callback surface renders or redirects on.
type Outcome struct {
	State        State                  `json:"state"`
	Message      string                 `json:"message,omitempty"`
	Hint         identity.AccessHint    `json:"access_hint"`
	Email        string                 `json:"email,omitempty"`
	DisplayName  string                 `json:"display_name,omitempty"`
	Organization *identity.Organization `json:"organization,omitempty"`

	// ContinueURL is only set when the hint allows entry into the app.
	ContinueURL string `json:"continue_url,omitempty"`
}

// Orchestrator runs the callback state machine at most once. The latch is
// checked and set before any side effect, so a second invocation with the
// same URL returns the cached outcome instead of replaying the exchange.
type Orchestrator struct {
	exchanger Exchanger
	resolver  IdentityResolver

	mu      sync.Mutex
	done    bool
	outcome *Outcome
}

func NewOrchestrator(exchanger Exchanger, resolver IdentityResolver) *Orchestrator {
	return &Orchestrator{exchanger: exchanger, resolver: resolver}
}

// Handle classifies the callback URL and drives it to an outcome. A nil cfg
// with a code+state callback yields StateLoading without latching, so the
// caller can retry once tenant resolution completes. Every other shape
// latches on first handling.
func (o *Orchestrator) Handle(ctx context.Context, cfg *bootstrap.TenantConfig, u *url.URL, sink TokenWriter) *Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.done {
		return o.outcome
	}

	outcome, latch := o.evaluate(ctx, cfg, u, sink)
	if latch {
		o.done = true
		o.outcome = outcome
	}
	return outcome
}

func (o *Orchestrator) evaluate(ctx context.Context, cfg *bootstrap.TenantConfig, u *url.URL, sink TokenWriter) (*Outcome, bool) {
	switch shape := Classify(u).(type) {
	case ErrorShape:
		return errorOutcome(providerErrorMessage(shape)), true

	case FragmentTokens:
		return o.acceptFragmentTokens(ctx, cfg, shape.Pair, sink), true

	case CodeAndState:
		if cfg == nil {
			return &Outcome{State: StateLoading}, false
		}
		return o.exchangeCode(ctx, cfg, shape, sink), true

	default:
		return errorOutcome("callback is missing its code or state"), true
	}
}

// acceptFragmentTokens treats the fragment pair as already authenticated.
// Hint resolution degrades rather than fails: the user holds a valid access
// token regardless of whether the identity lookup succeeds.
func (o *Orchestrator) acceptFragmentTokens(ctx context.Context, cfg *bootstrap.TenantConfig, pair *exchange.TokenPair, sink TokenWriter) *Outcome {
	persistPair(sink, pair)

	outcome := &Outcome{
		State: StateReady,
		Hint:  identity.AccessHint{Action: identity.ActionOK},
	}
	o.resolveHint(ctx, cfg, pair, outcome)
	outcome.ContinueURL = continueURL(cfg, outcome)
	return outcome
}

func (o *Orchestrator) exchangeCode(ctx context.Context, cfg *bootstrap.TenantConfig, shape CodeAndState, sink TokenWriter) *Outcome {
	pair, err := o.exchanger.ExchangeCodeForTokens(ctx, cfg, shape.Code, shape.State)
	if err != nil {
		log.Warn().Err(err).Msg("authorization code exchange failed")
		return errorOutcome("sign-in could not be completed, please try again")
	}

	persistPair(sink, pair)

	outcome := &Outcome{
		State: StateReady,
		Hint:  identity.AccessHint{Action: identity.ActionOK},
	}
	o.resolveHint(ctx, cfg, pair, outcome)
	outcome.ContinueURL = continueURL(cfg, outcome)
	return outcome
}

// resolveHint fills the outcome's identity fields, preferring the id token
// path when one is present. Failures leave the defaulted hint in place.
func (o *Orchestrator) resolveHint(ctx context.Context, cfg *bootstrap.TenantConfig, pair *exchange.TokenPair, outcome *Outcome) {
	if cfg == nil {
		return
	}

	if idToken := utils.Value(pair.IdToken); idToken != "" {
		warnOnAudienceMismatch(cfg, idToken)

		result, err := o.resolver.ResolveFromIDToken(ctx, cfg, pair.AccessToken, idToken)
		if err != nil {
			log.Warn().Err(err).Msg("account resolution failed, proceeding with defaulted access hint")
			return
		}
		outcome.Hint = result.Hint
		outcome.Email = result.User.Email
		outcome.DisplayName = result.User.DisplayName
		outcome.Organization = result.Hint.Organization
		if outcome.Hint.Action == identity.ActionContactAdmin {
			outcome.Message = result.Hint.Reason
		}
		return
	}

	user, err := o.resolver.CurrentUser(ctx, cfg, pair.AccessToken)
	if err != nil {
		log.Warn().Err(err).Msg("current user lookup failed, proceeding without a display identity")
		return
	}
	outcome.Email = user.Email
	outcome.DisplayName = user.DisplayName
}

func warnOnAudienceMismatch(cfg *bootstrap.TenantConfig, idToken string) {
	claims, err := identity.ParseIDTokenClaims(idToken)
	if err != nil {
		log.Warn().Err(err).Msg("id token could not be decoded for audience check")
		return
	}
	if !claims.HasAudience(cfg.Provider.ClientID) {
		log.Warn().
			Str("clientId", cfg.Provider.ClientID).
			Strs("audience", claims.Audience).
			Msg("id token audience does not include the tenant client")
	}
}

// persistPair writes the pair into the sink with max-ages matching the
// reported lifetimes. A refresh token without a reported lifetime becomes a
// session cookie.
func persistPair(sink TokenWriter, pair *exchange.TokenPair) {
	sink.SetAccess(pair.AccessToken, pair.ExpiresIn)
	if pair.HasRefreshToken() {
		sink.SetRefresh(utils.Value(pair.RefreshToken), utils.Value(pair.RefreshExpiresIn))
	}
}

// continueURL derives the post-sign-in landing URL. Only hints that admit
// the user into the app produce one.
func continueURL(cfg *bootstrap.TenantConfig, outcome *Outcome) string {
	switch outcome.Hint.Action {
	case identity.ActionOK, identity.ActionPersonalOrgCreated:
	default:
		return ""
	}

	base := "/"
	if cfg != nil && cfg.AppBaseURL != "" {
		base = cfg.AppBaseURL
	}
	if outcome.Organization != nil && outcome.Organization.Slug != "" {
		return strings.TrimRight(base, "/") + "/" + outcome.Organization.Slug
	}
	return base
}

func providerErrorMessage(shape ErrorShape) string {
	if shape.Description != "" {
		return shape.Description
	}
	if shape.Code == authFailedMarker {
		return "sign-in failed, please try again"
	}
	return "the identity provider rejected the sign-in (" + shape.Code + ")"
}

func errorOutcome(message string) *Outcome {
	return &Outcome{State: StateError, Message: message}
}
