// Package tokenstore persists the access/refresh token pair in cookies
// scoped to the parent domain, so a token set by the marketing site is
// visible to sibling subdomains (portal, app) without a second login.
//
// The cookies are deliberately NOT HttpOnly: page script must read the
// access token to attach it as an Authorization header on cross-origin API
// calls. Script-injection token theft is the accepted residual risk of this
// design and must be covered in any security review of the bridge.
package tokenstore

import (
	"net"
	"net/http"
	"strings"
)

type Store struct {
	accessName  string
	refreshName string
}

// New creates a store using the given cookie names.
func New(accessName, refreshName string) *Store {
	return &Store{accessName: accessName, refreshName: refreshName}
}

// SetAccess writes the access-token cookie with a max-age equal to the
// token's reported lifetime in seconds.
func (s *Store) SetAccess(w http.ResponseWriter, r *http.Request, value string, maxAgeSeconds int) {
	s.set(w, r, s.accessName, value, maxAgeSeconds)
}

// Access returns the access token from the request's cookies.
func (s *Store) Access(r *http.Request) (string, bool) {
	return get(r, s.accessName)
}

// ClearAccess removes the access-token cookie.
func (s *Store) ClearAccess(w http.ResponseWriter, r *http.Request) {
	s.set(w, r, s.accessName, "", -1)
}

// SetRefresh writes the refresh-token cookie.
func (s *Store) SetRefresh(w http.ResponseWriter, r *http.Request, value string, maxAgeSeconds int) {
	s.set(w, r, s.refreshName, value, maxAgeSeconds)
}

// Refresh returns the refresh token from the request's cookies.
func (s *Store) Refresh(r *http.Request) (string, bool) {
	return get(r, s.refreshName)
}

// ClearRefresh removes the refresh-token cookie.
func (s *Store) ClearRefresh(w http.ResponseWriter, r *http.Request) {
	s.set(w, r, s.refreshName, "", -1)
}

// Clear removes both token cookies.
func (s *Store) Clear(w http.ResponseWriter, r *http.Request) {
	s.ClearAccess(w, r)
	s.ClearRefresh(w, r)
}

func (s *Store) set(w http.ResponseWriter, r *http.Request, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   CookieDomain(r.Host),
		HttpOnly: false, // page script attaches the token as a bearer header
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func get(r *http.Request, name string) (string, bool) {
	cookie, err := r.Cookie(name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// CookieDomain returns the Domain attribute for token cookies: the parent
// (second-level) domain of the request host, so sibling subdomains share the
// cookie. Loopback hosts, bare IPs, and dotless hostnames get no Domain
// attribute, since browsers reject domain-scoped cookies for them.
func CookieDomain(host string) string {
	hostname := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		hostname = h
	}

	if hostname == "localhost" || strings.HasSuffix(hostname, ".localhost") {
		return ""
	}
	if ip := net.ParseIP(hostname); ip != nil {
		return ""
	}

	labels := strings.Split(hostname, ".")
	if len(labels) < 2 {
		return ""
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// isSecureRequest reports whether the page reached us over an encrypted
// transport, directly or via a TLS-terminating proxy.
func isSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return r.Header.Get("X-Forwarded-Proto") == "https"
}
