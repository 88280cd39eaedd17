// Package refresh keeps an authenticated session alive by refreshing the
// access token shortly before it expires.
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/djokodonev/egav-web-frontend/bootstrap"
	"github.com/djokodonev/egav-web-frontend/exchange"
	bridgeerrors "github.com/djokodonev/egav-web-frontend/internal/errors"
	"github.com/djokodonev/egav-web-frontend/internal/utils"
)

// DefaultLeadTime is how long before expiry a refresh fires.
const DefaultLeadTime = 60 * time.Second

// NowTimeFunc returns the current time and can be swapped in tests.
var NowTimeFunc = time.Now

// TokenStore is the scheduler's view of the session's token state.
type TokenStore interface {
	Access() (string, bool)
	Refresh() (string, bool)
	SetAccess(value string, maxAgeSeconds int)
	SetRefresh(value string, maxAgeSeconds int)
	Clear()
}

// Refresher runs the refresh_token grant.
type Refresher interface {
	RefreshAccessToken(ctx context.Context, cfg *bootstrap.TenantConfig, refreshToken string) (*exchange.TokenPair, error)
}

// Scheduler owns at most one pending refresh timer. Arming replaces any
// prior timer, a successful refresh re-arms, and a failed refresh clears the
// token state and ends the session. Refresh failure is never retried.
type Scheduler struct {
	cfg       *bootstrap.TenantConfig
	store     TokenStore
	refresher Refresher

	leadTime     time.Duration
	nowTime      func() time.Time
	onSessionEnd func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

type SchedulerOption func(*Scheduler)

// WithLeadTime overrides how long before expiry the refresh fires.
func WithLeadTime(lead time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.leadTime = lead
	}
}

// WithNowTime overrides the scheduler's clock.
func WithNowTime(nowFunc func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.nowTime = nowFunc
	}
}

// WithSessionEndHook registers a callback invoked after a failed refresh has
// cleared the token state.
func WithSessionEndHook(hook func()) SchedulerOption {
	return func(s *Scheduler) {
		s.onSessionEnd = hook
	}
}

func NewScheduler(cfg *bootstrap.TenantConfig, store TokenStore, refresher Refresher, options ...SchedulerOption) *Scheduler {
	scheduler := &Scheduler{
		cfg:       cfg,
		store:     store,
		refresher: refresher,
		leadTime:  DefaultLeadTime,
		nowTime:   NowTimeFunc,
	}
	for _, option := range options {
		option(scheduler)
	}
	return scheduler
}

// Arm schedules the next refresh from the stored access token's expiry. With
// no access or refresh token present nothing is armed, and any prior timer
// is cleared.
func (s *Scheduler) Arm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armLocked()
}

func (s *Scheduler) armLocked() {
	s.clearTimerLocked()
	if s.stopped {
		return
	}

	accessToken, ok := s.store.Access()
	if !ok {
		return
	}
	if _, ok := s.store.Refresh(); !ok {
		return
	}

	expiry, err := TokenExpiry(accessToken)
	if err != nil {
		log.Warn().Err(err).Msg("access token expiry could not be decoded, refresh not scheduled")
		return
	}

	s.timer = time.AfterFunc(RefreshIn(expiry, s.nowTime(), s.leadTime), s.fire)
}

// Stop cancels any pending timer and retires the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.clearTimerLocked()
}

func (s *Scheduler) clearTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	refreshToken, ok := s.store.Refresh()
	if !ok {
		return
	}

	pair, err := s.refresher.RefreshAccessToken(context.Background(), s.cfg, refreshToken)
	if err != nil {
		log.Warn().Err(err).Msg("token refresh failed, ending session")
		s.store.Clear()
		s.stopped = true
		if s.onSessionEnd != nil {
			s.onSessionEnd()
		}
		return
	}

	s.store.SetAccess(pair.AccessToken, pair.ExpiresIn)
	if pair.HasRefreshToken() {
		s.store.SetRefresh(utils.Value(pair.RefreshToken), utils.Value(pair.RefreshExpiresIn))
	}

	s.armLocked()
}

// TokenExpiry decodes the expiry claim of an access token without verifying
// its signature. The bridge never trusts the claim for authorization, only
// for scheduling.
func TokenExpiry(accessToken string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, errors.Wrapf(bridgeerrors.ErrTokenMalformed, "[TokenExpiry] %s", err.Error())
	}

	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return time.Time{}, errors.Wrap(bridgeerrors.ErrTokenMalformed, "[TokenExpiry] missing expiry claim")
	}
	return expiry.Time, nil
}

// RefreshIn computes how long to wait before refreshing a token with the
// given expiry. The result is never negative.
func RefreshIn(expiry, now time.Time, leadTime time.Duration) time.Duration {
	wait := expiry.Sub(now) - leadTime
	if wait < 0 {
		return 0
	}
	return wait
}
