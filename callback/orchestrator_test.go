package callback_test

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/djokodonev/egav-web-frontend/bootstrap"
	"github.com/djokodonev/egav-web-frontend/callback"
	"github.com/djokodonev/egav-web-frontend/exchange"
	"github.com/djokodonev/egav-web-frontend/identity"
	"github.com/djokodonev/egav-web-frontend/internal/utils"
)

type fakeExchanger struct {
	calls int
	pair  *exchange.TokenPair
	err   error
}

func (f *fakeExchanger) ExchangeCodeForTokens(_ context.Context, _ *bootstrap.TenantConfig, _, _ string) (*exchange.TokenPair, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.pair, nil
}

type fakeResolver struct {
	resolveCalls int
	userCalls    int
	result       *identity.BootstrapResult
	resolveErr   error
	user         *identity.User
	userErr      error
}

func (f *fakeResolver) ResolveFromIDToken(_ context.Context, _ *bootstrap.TenantConfig, _, _ string) (*identity.BootstrapResult, error) {
	f.resolveCalls++
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return f.result, nil
}

func (f *fakeResolver) CurrentUser(_ context.Context, _ *bootstrap.TenantConfig, _ string) (*identity.User, error) {
	f.userCalls++
	if f.userErr != nil {
		return nil, f.userErr
	}
	return f.user, nil
}

type sinkRecorder struct {
	access        string
	accessMaxAge  int
	accessSets    int
	refresh       string
	refreshMaxAge int
}

func (s *sinkRecorder) SetAccess(value string, maxAgeSeconds int) {
	s.access = value
	s.accessMaxAge = maxAgeSeconds
	s.accessSets++
}

func (s *sinkRecorder) SetRefresh(value string, maxAgeSeconds int) {
	s.refresh = value
	s.refreshMaxAge = maxAgeSeconds
}

func tenantConfig() *bootstrap.TenantConfig {
	return &bootstrap.TenantConfig{
		OrgSlug:    "acme",
		AppBaseURL: "https://app.egav.io",
		Provider: bootstrap.AuthProvider{
			ClientID: "acme-web",
		},
	}
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestClassify(t *testing.T) {
	for name, tc := range map[string]struct {
		raw   string
		shape callback.Shape
	}{
		"provider error in query": {
			raw:   "https://x/auth/callback?error=access_denied&error_description=denied",
			shape: callback.ErrorShape{Code: "access_denied", Description: "denied"},
		},
		"provider error in fragment": {
			raw:   "https://x/auth/callback#error=server_error",
			shape: callback.ErrorShape{Code: "server_error"},
		},
		"action failed marker": {
			raw:   "https://x/auth/callback?auth_failed=true",
			shape: callback.ErrorShape{Code: "auth_failed"},
		},
		"code and state": {
			raw:   "https://x/auth/callback?code=abc&state=xyz",
			shape: callback.CodeAndState{Code: "abc", State: "xyz"},
		},
		"code without state": {
			raw:   "https://x/auth/callback?code=abc",
			shape: callback.Incomplete{},
		},
		"bare callback": {
			raw:   "https://x/auth/callback",
			shape: callback.Incomplete{},
		},
	} {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.shape, callback.Classify(mustParse(t, tc.raw)))
		})
	}
}

func TestClassifyFragmentTokens(t *testing.T) {
	u := mustParse(t, "https://x/auth/callback#access_token=at-1&token_type=bearer&expires_in=3600&refresh_token=rt-1&refresh_expires_in=86400&id_token=idt-1")

	shape, ok := callback.Classify(u).(callback.FragmentTokens)
	require.True(t, ok)
	require.Equal(t, "at-1", shape.Pair.AccessToken)
	require.Equal(t, 3600, shape.Pair.ExpiresIn)
	require.Equal(t, "rt-1", utils.Value(shape.Pair.RefreshToken))
	require.Equal(t, 86400, utils.Value(shape.Pair.RefreshExpiresIn))
	require.Equal(t, "idt-1", utils.Value(shape.Pair.IdToken))
}

func TestClassifyErrorWinsOverTokens(t *testing.T) {
	u := mustParse(t, "https://x/auth/callback?code=abc&state=xyz#error=access_denied")
	require.IsType(t, callback.ErrorShape{}, callback.Classify(u))
}

func TestHandleProviderErrorSkipsExchange(t *testing.T) {
	exchanger := &fakeExchanger{}
	orchestrator := callback.NewOrchestrator(exchanger, &fakeResolver{})
	sink := &sinkRecorder{}

	outcome := orchestrator.Handle(context.Background(), tenantConfig(),
		mustParse(t, "https://x/auth/callback?error=access_denied&error_description=user+cancelled"), sink)

	require.Equal(t, callback.StateError, outcome.State)
	require.Equal(t, "user cancelled", outcome.Message)
	require.Zero(t, exchanger.calls)
	require.Zero(t, sink.accessSets)
}

func TestHandleExchangesAtMostOnce(t *testing.T) {
	exchanger := &fakeExchanger{pair: &exchange.TokenPair{AccessToken: "at-1", ExpiresIn: 3600}}
	resolver := &fakeResolver{user: &identity.User{Email: "jo@acme.example"}}
	orchestrator := callback.NewOrchestrator(exchanger, resolver)
	u := mustParse(t, "https://x/auth/callback?code=abc&state=xyz")
	sink := &sinkRecorder{}

	first := orchestrator.Handle(context.Background(), tenantConfig(), u, sink)
	second := orchestrator.Handle(context.Background(), tenantConfig(), u, sink)

	require.Equal(t, callback.StateReady, first.State)
	require.Same(t, first, second)
	require.Equal(t, 1, exchanger.calls)
	require.Equal(t, 1, sink.accessSets)
}

func TestHandleWaitsForTenantConfig(t *testing.T) {
	exchanger := &fakeExchanger{pair: &exchange.TokenPair{AccessToken: "at-1", ExpiresIn: 3600}}
	resolver := &fakeResolver{user: &identity.User{Email: "jo@acme.example"}}
	orchestrator := callback.NewOrchestrator(exchanger, resolver)
	u := mustParse(t, "https://x/auth/callback?code=abc&state=xyz")
	sink := &sinkRecorder{}

	loading := orchestrator.Handle(context.Background(), nil, u, sink)
	require.Equal(t, callback.StateLoading, loading.State)
	require.Zero(t, exchanger.calls)

	ready := orchestrator.Handle(context.Background(), tenantConfig(), u, sink)
	require.Equal(t, callback.StateReady, ready.State)
	require.Equal(t, 1, exchanger.calls)
}

func TestHandleFragmentDegradesWhenUserLookupFails(t *testing.T) {
	resolver := &fakeResolver{userErr: errors.New("identity service down")}
	orchestrator := callback.NewOrchestrator(&fakeExchanger{}, resolver)
	sink := &sinkRecorder{}

	outcome := orchestrator.Handle(context.Background(), tenantConfig(),
		mustParse(t, "https://x/auth/callback#access_token=at-1&expires_in=3600"), sink)

	require.Equal(t, callback.StateReady, outcome.State)
	require.Equal(t, identity.ActionOK, outcome.Hint.Action)
	require.Empty(t, outcome.Email)
	require.Equal(t, "at-1", sink.access)
	require.Equal(t, 3600, sink.accessMaxAge)
	require.Equal(t, 1, resolver.userCalls)
}

func TestHandleFragmentWithIDTokenResolvesHint(t *testing.T) {
	resolver := &fakeResolver{result: &identity.BootstrapResult{
		User: identity.User{Email: "jo@acme.example", DisplayName: "Jo"},
		Hint: identity.AccessHint{
			Action:       identity.ActionContactAdmin,
			Reason:       "not a member of acme",
			Organization: &identity.Organization{GUID: "org-1", Slug: "acme", Name: "Acme Corp"},
		},
	}}
	orchestrator := callback.NewOrchestrator(&fakeExchanger{}, resolver)
	sink := &sinkRecorder{}

	outcome := orchestrator.Handle(context.Background(), tenantConfig(),
		mustParse(t, "https://x/auth/callback#access_token=at-1&expires_in=3600&refresh_token=rt-1&id_token=idt-1"), sink)

	require.Equal(t, callback.StateReady, outcome.State)
	require.Equal(t, identity.ActionContactAdmin, outcome.Hint.Action)
	require.Equal(t, "not a member of acme", outcome.Message)
	require.Equal(t, "acme", outcome.Organization.Slug)
	require.Empty(t, outcome.ContinueURL)
	require.Equal(t, 1, resolver.resolveCalls)
	require.Zero(t, resolver.userCalls)
	require.Equal(t, "rt-1", sink.refresh)
}

func TestHandleExchangeDerivesContinueURL(t *testing.T) {
	exchanger := &fakeExchanger{pair: &exchange.TokenPair{
		AccessToken: "at-1",
		ExpiresIn:   3600,
		IdToken:     utils.Ptr("idt-1"),
	}}
	resolver := &fakeResolver{result: &identity.BootstrapResult{
		User: identity.User{Email: "jo@acme.example"},
		Hint: identity.AccessHint{
			Action:       identity.ActionOK,
			Organization: &identity.Organization{Slug: "acme"},
		},
	}}
	orchestrator := callback.NewOrchestrator(exchanger, resolver)
	sink := &sinkRecorder{}

	outcome := orchestrator.Handle(context.Background(), tenantConfig(),
		mustParse(t, "https://x/auth/callback?code=abc&state=xyz"), sink)

	require.Equal(t, callback.StateReady, outcome.State)
	require.Equal(t, "https://app.egav.io/acme", outcome.ContinueURL)
	require.Equal(t, "jo@acme.example", outcome.Email)
}

func TestHandleExchangeFailure(t *testing.T) {
	exchanger := &fakeExchanger{err: errors.New("invalid_grant")}
	orchestrator := callback.NewOrchestrator(exchanger, &fakeResolver{})
	sink := &sinkRecorder{}
	u := mustParse(t, "https://x/auth/callback?code=abc&state=xyz")

	outcome := orchestrator.Handle(context.Background(), tenantConfig(), u, sink)
	require.Equal(t, callback.StateError, outcome.State)
	require.Zero(t, sink.accessSets)

	// A re-render must not retry the single-use code.
	orchestrator.Handle(context.Background(), tenantConfig(), u, sink)
	require.Equal(t, 1, exchanger.calls)
}

func TestHandleIncompleteCallback(t *testing.T) {
	orchestrator := callback.NewOrchestrator(&fakeExchanger{}, &fakeResolver{})
	outcome := orchestrator.Handle(context.Background(), tenantConfig(),
		mustParse(t, "https://x/auth/callback?state=xyz"), &sinkRecorder{})
	require.Equal(t, callback.StateError, outcome.State)
}
