package tokenstore_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/djokodonev/egav-web-frontend/tokenstore"
)

const (
	accessCookie  = "egav_access_token"
	refreshCookie = "egav_refresh_token"
)

func newStore() *tokenstore.Store {
	return tokenstore.New(accessCookie, refreshCookie)
}

// roundTrip applies the cookies written to w onto a fresh request, the way a
// browser would on the next page load.
func roundTrip(t *testing.T, w *httptest.ResponseRecorder, host string) *http.Request {
	t.Helper()

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.Host = host
	for _, c := range w.Result().Cookies() {
		if c.MaxAge >= 0 && c.Value != "" {
			next.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}
	return next
}

func TestAccessTokenRoundTrip(t *testing.T) {
	store := newStore()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Host = "www.egav.io"

	store.SetAccess(w, r, "tok123", 3600)

	next := roundTrip(t, w, r.Host)
	got, ok := store.Access(next)
	require.True(t, ok)
	require.Equal(t, "tok123", got)
}

func TestClearAccess(t *testing.T) {
	store := newStore()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Host = "www.egav.io"

	store.SetAccess(w, r, "tok123", 3600)
	store.ClearAccess(w, r)

	next := roundTrip(t, w, r.Host)
	_, ok := store.Access(next)
	require.False(t, ok)
}

func TestCookieAttributes(t *testing.T) {
	store := newStore()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Host = "www.egav.io"

	store.SetAccess(w, r, "tok123", 900)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	require.Equal(t, accessCookie, c.Name)
	require.Equal(t, "/", c.Path)
	require.Equal(t, "egav.io", c.Domain)
	require.Equal(t, 900, c.MaxAge)
	require.Equal(t, http.SameSiteLaxMode, c.SameSite)
	require.False(t, c.HttpOnly, "token must stay readable by page script")
	require.False(t, c.Secure, "plain http request must not set Secure")
}

func TestSecureSetOnForwardedTLS(t *testing.T) {
	store := newStore()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Host = "www.egav.io"
	r.Header.Set("X-Forwarded-Proto", "https")

	store.SetRefresh(w, r, "refresh-1", 86400)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.True(t, cookies[0].Secure)
}

func TestClearRemovesBothCookies(t *testing.T) {
	store := newStore()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Host = "portal.egav.io"

	store.Clear(w, r)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		require.Equal(t, -1, c.MaxAge)
		require.Empty(t, c.Value)
	}
}

func TestCookieDomain(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"www.egav.io", "egav.io"},
		{"portal.egav.io:8443", "egav.io"},
		{"egav.io", "egav.io"},
		{"deep.sub.portal.egav.io", "egav.io"},
		{"localhost", ""},
		{"localhost:3000", ""},
		{"app.localhost", ""},
		{"127.0.0.1:8080", ""},
		{"[::1]:8080", ""},
		{"intranet-host", ""},
	}

	for _, tc := range tests {
		require.Equal(t, tc.want, tokenstore.CookieDomain(tc.host), "host %q", tc.host)
	}
}

func TestBoundWriterRoundTrip(t *testing.T) {
	store := newStore()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Host = "www.egav.io"

	bound := store.Bind(w, r)
	bound.SetAccess("tok-a", 600)
	bound.SetRefresh("tok-r", 1200)

	next := roundTrip(t, w, r.Host)
	access, ok := store.Access(next)
	require.True(t, ok)
	require.Equal(t, "tok-a", access)
	refresh, ok := store.Refresh(next)
	require.True(t, ok)
	require.Equal(t, "tok-r", refresh)
}
