package refresh_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/djokodonev/egav-web-frontend/bootstrap"
	"github.com/djokodonev/egav-web-frontend/exchange"
	bridgeerrors "github.com/djokodonev/egav-web-frontend/internal/errors"
	"github.com/djokodonev/egav-web-frontend/internal/utils"
	"github.com/djokodonev/egav-web-frontend/refresh"
)

type memoryStore struct {
	mu      sync.Mutex
	access  string
	refresh string
	cleared bool
}

func (m *memoryStore) Access() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access, m.access != ""
}

func (m *memoryStore) Refresh() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refresh, m.refresh != ""
}

func (m *memoryStore) SetAccess(value string, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access = value
}

func (m *memoryStore) SetRefresh(value string, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh = value
}

func (m *memoryStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access = ""
	m.refresh = ""
	m.cleared = true
}

func (m *memoryStore) wasCleared() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleared
}

type fakeRefresher struct {
	mu    sync.Mutex
	calls int
	pair  *exchange.TokenPair
	err   error
}

func (f *fakeRefresher) RefreshAccessToken(_ context.Context, _ *bootstrap.TenantConfig, _ string) (*exchange.TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.pair, nil
}

func (f *fakeRefresher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func accessTokenExpiring(t *testing.T, expiry time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": expiry.Unix()})
	signed, err := token.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return signed
}

func TestRefreshIn(t *testing.T) {
	now := time.Now()

	in := refresh.RefreshIn(now.Add(90*time.Second), now, 60*time.Second)
	require.LessOrEqual(t, in, 30*time.Second)
	require.GreaterOrEqual(t, in, time.Duration(0))

	require.Equal(t, time.Duration(0), refresh.RefreshIn(now.Add(10*time.Second), now, 60*time.Second))
	require.Equal(t, time.Duration(0), refresh.RefreshIn(now.Add(-time.Hour), now, 60*time.Second))
}

func TestTokenExpiry(t *testing.T) {
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)

	decoded, err := refresh.TokenExpiry(accessTokenExpiring(t, expiry))
	require.NoError(t, err)
	require.Equal(t, expiry.Unix(), decoded.Unix())

	_, err = refresh.TokenExpiry("not-a-jwt")
	require.ErrorIs(t, err, bridgeerrors.ErrTokenMalformed)
}

func TestTokenExpiryMissingClaim(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"})
	signed, err := token.SignedString([]byte("test-key"))
	require.NoError(t, err)

	_, err = refresh.TokenExpiry(signed)
	require.ErrorIs(t, err, bridgeerrors.ErrTokenMalformed)
}

func TestArmWithoutTokensDoesNothing(t *testing.T) {
	refresher := &fakeRefresher{}
	scheduler := refresh.NewScheduler(nil, &memoryStore{}, refresher)
	defer scheduler.Stop()

	scheduler.Arm()
	time.Sleep(50 * time.Millisecond)
	require.Zero(t, refresher.callCount())
}

func TestArmWithoutRefreshTokenDoesNothing(t *testing.T) {
	store := &memoryStore{access: accessTokenExpiring(t, time.Now().Add(-time.Minute))}
	refresher := &fakeRefresher{}
	scheduler := refresh.NewScheduler(nil, store, refresher)
	defer scheduler.Stop()

	scheduler.Arm()
	time.Sleep(50 * time.Millisecond)
	require.Zero(t, refresher.callCount())
}

func TestRefreshPersistsAndKeepsOldRefreshToken(t *testing.T) {
	store := &memoryStore{
		access:  accessTokenExpiring(t, time.Now().Add(-time.Minute)),
		refresh: "rt-old",
	}
	newAccess := accessTokenExpiring(t, time.Now().Add(time.Hour))
	refresher := &fakeRefresher{pair: &exchange.TokenPair{AccessToken: newAccess, ExpiresIn: 3600}}
	scheduler := refresh.NewScheduler(nil, store, refresher)
	defer scheduler.Stop()

	scheduler.Arm()

	require.Eventually(t, func() bool {
		return refresher.callCount() == 1
	}, time.Second, 10*time.Millisecond)

	access, _ := store.Access()
	require.Equal(t, newAccess, access)
	refreshToken, _ := store.Refresh()
	require.Equal(t, "rt-old", refreshToken)
}

func TestRefreshRotatesReturnedRefreshToken(t *testing.T) {
	store := &memoryStore{
		access:  accessTokenExpiring(t, time.Now().Add(-time.Minute)),
		refresh: "rt-old",
	}
	newAccess := accessTokenExpiring(t, time.Now().Add(time.Hour))
	refresher := &fakeRefresher{pair: &exchange.TokenPair{
		AccessToken:  newAccess,
		ExpiresIn:    3600,
		RefreshToken: utils.Ptr("rt-new"),
	}}
	scheduler := refresh.NewScheduler(nil, store, refresher)
	defer scheduler.Stop()

	scheduler.Arm()

	require.Eventually(t, func() bool {
		refreshToken, _ := store.Refresh()
		return refreshToken == "rt-new"
	}, time.Second, 10*time.Millisecond)
}

func TestRefreshFailureEndsSession(t *testing.T) {
	store := &memoryStore{
		access:  accessTokenExpiring(t, time.Now().Add(-time.Minute)),
		refresh: "rt-old",
	}
	refresher := &fakeRefresher{err: errors.New("invalid_grant")}

	var ended sync.WaitGroup
	ended.Add(1)
	scheduler := refresh.NewScheduler(nil, store, refresher,
		refresh.WithSessionEndHook(ended.Done))
	defer scheduler.Stop()

	scheduler.Arm()
	ended.Wait()

	require.True(t, store.wasCleared())
	_, hasAccess := store.Access()
	require.False(t, hasAccess)

	// A failed refresh retires the scheduler; re-arming is a no-op.
	scheduler.Arm()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, refresher.callCount())
}

func TestStopCancelsPendingTimer(t *testing.T) {
	store := &memoryStore{
		access:  accessTokenExpiring(t, time.Now().Add(10*time.Hour)),
		refresh: "rt-old",
	}
	refresher := &fakeRefresher{}
	scheduler := refresh.NewScheduler(nil, store, refresher)

	scheduler.Arm()
	scheduler.Stop()

	time.Sleep(50 * time.Millisecond)
	require.Zero(t, refresher.callCount())
}
