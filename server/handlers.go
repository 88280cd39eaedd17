package server

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/djokodonev/egav-web-frontend/authflow"
	"github.com/djokodonev/egav-web-frontend/callback"
	"github.com/djokodonev/egav-web-frontend/exchange"
	bridgeerrors "github.com/djokodonev/egav-web-frontend/internal/errors"
	"github.com/djokodonev/egav-web-frontend/internal/utils"
	"github.com/djokodonev/egav-web-frontend/server/session"
	"github.com/djokodonev/egav-web-frontend/tokenstore"
)

// LoginHandler starts the authorization-code flow and redirects the browser
// to the provider.
func (s *Server) LoginHandler() http.HandlerFunc {
	return s.flowEntryHandler(authflow.ModeLogin)
}

// RegisterHandler starts the same flow with a forced fresh login prompt.
func (s *Server) RegisterHandler() http.HandlerFunc {
	return s.flowEntryHandler(authflow.ModeRegister)
}

func (s *Server) flowEntryHandler(mode authflow.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := s.resolver.Resolve(r.Context(), hostname(r))
		if err != nil {
			s.writeError(w, err)
			return
		}

		redirectURL, err := s.initiator.AuthRedirectURL(cfg, mode, r.URL.Query().Get("return_url"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		http.Redirect(w, r, redirectURL, http.StatusFound)
	}
}

// SocialHandler asks the central bridge for a provider-specific authorization
// URL and redirects to it. No local PKCE state is involved; the bridge owns
// the code exchange and returns tokens on the fragment.
func (s *Server) SocialHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := s.resolver.Resolve(r.Context(), hostname(r))
		if err != nil {
			s.writeError(w, err)
			return
		}

		redirectURL, err := s.initiator.SocialRedirectURL(r.Context(), cfg, r.PathValue("provider"), r.URL.Query().Get("return_url"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		http.Redirect(w, r, redirectURL, http.StatusFound)
	}
}

// CallbackHandler drives the provider return through the orchestrator. GET
// carries the code+state or error in the query; POST covers form_post
// response mode with the same fields in the body.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u := *r.URL
		if r.Method == http.MethodPost {
			if err := r.ParseForm(); err == nil {
				u.RawQuery = r.PostForm.Encode()
			}
		}
		s.handleCallback(w, r, &u)
	}
}

// FragmentCallbackHandler accepts the fragment shape. Fragments never reach
// a server on their own, so page script on the callback route relays the raw
// fragment string here.
func (s *Server) FragmentCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "malformed form body", http.StatusBadRequest)
			return
		}
		u := url.URL{Fragment: r.PostForm.Get("fragment")}
		s.handleCallback(w, r, &u)
	}
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request, u *url.URL) {
	// A failed resolve leaves cfg nil; the orchestrator reports loading for
	// the code path and the caller retries once the control plane is back.
	cfg, err := s.resolver.Resolve(r.Context(), hostname(r))
	if err != nil {
		log.Warn().Err(err).Str("hostname", hostname(r)).Msg("tenant not resolved at callback")
		cfg = nil
	}

	orchestrator := callback.NewOrchestrator(s.exchanger, s.identities)
	sink := &recordingSink{bound: s.store.Bind(w, r)}

	outcome := orchestrator.Handle(r.Context(), cfg, u, sink)

	switch outcome.State {
	case callback.StateLoading:
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, outcome)

	case callback.StateReady:
		if pair := sink.pair(); pair != nil && cfg != nil {
			started, err := s.sessions.Start(cfg, hostname(r), pair, session.Identity{
				Email:       outcome.Email,
				DisplayName: outcome.DisplayName,
				Hint:        outcome.Hint,
			})
			if err != nil {
				log.Warn().Err(err).Msg("session start failed")
			} else {
				s.setSessionCookie(w, r, started.ID)
			}
		}
		if r.Method == http.MethodGet && outcome.ContinueURL != "" {
			http.Redirect(w, r, outcome.ContinueURL, http.StatusFound)
			return
		}
		writeJSON(w, http.StatusOK, outcome)

	default:
		writeJSON(w, http.StatusBadRequest, outcome)
	}
}

// LogoutHandler ends the session, clears every cookie, and sends the browser
// to the provider's end-session endpoint when one is advertised.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := s.resolver.Resolve(r.Context(), hostname(r))
		if err != nil {
			cfg = nil
		}

		if sessionID, ok := s.sessionCookie(r); ok && cfg != nil {
			s.sessions.End(cfg.OrgID, sessionID)
		}

		s.store.Bind(w, r).Clear()
		s.clearSessionCookie(w, r)

		target := "/"
		if cfg != nil && cfg.Provider.EndSessionEndpoint != "" {
			target = cfg.Provider.EndSessionEndpoint
		}
		http.Redirect(w, r, target, http.StatusFound)
	}
}

// SessionHandler returns the signed-in session for page script.
func (s *Server) SessionHandler() http.HandlerFunc {
	type sessionResponse struct {
		Email        string `json:"email"`
		DisplayName  string `json:"display_name,omitempty"`
		Organization string `json:"organization,omitempty"`
		ExpiresAt    int64  `json:"expires_at"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := s.resolver.Resolve(r.Context(), hostname(r))
		if err != nil {
			s.writeError(w, err)
			return
		}

		sessionID, ok := s.sessionCookie(r)
		if !ok {
			s.writeError(w, bridgeerrors.ErrSessionNotFound)
			return
		}

		current, err := s.sessions.Get(cfg.OrgID, sessionID)
		if err != nil {
			s.clearSessionCookie(w, r)
			s.writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, sessionResponse{
			Email:        current.Email,
			DisplayName:  current.DisplayName,
			Organization: current.OrgSlug,
			ExpiresAt:    current.ExpiresAt.Unix(),
		})
	}
}

// RefreshHandler rotates the token cookies from the refresh grant. Failure is
// fatal to the session: cookies are cleared and the caller must sign in again.
func (s *Server) RefreshHandler() http.HandlerFunc {
	type refreshResponse struct {
		ExpiresIn int `json:"expires_in"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := s.resolver.Resolve(r.Context(), hostname(r))
		if err != nil {
			s.writeError(w, err)
			return
		}

		bound := s.store.Bind(w, r)
		refreshToken, ok := bound.Refresh()
		if !ok {
			s.writeError(w, bridgeerrors.ErrNoRefreshToken)
			return
		}

		pair, err := s.exchanger.RefreshAccessToken(r.Context(), cfg, refreshToken)
		if err != nil {
			bound.Clear()
			if sessionID, ok := s.sessionCookie(r); ok {
				s.sessions.End(cfg.OrgID, sessionID)
			}
			s.clearSessionCookie(w, r)
			s.writeError(w, err)
			return
		}

		bound.SetAccess(pair.AccessToken, pair.ExpiresIn)
		if pair.HasRefreshToken() {
			bound.SetRefresh(utils.Value(pair.RefreshToken), utils.Value(pair.RefreshExpiresIn))
		}
		if sessionID, ok := s.sessionCookie(r); ok {
			if err := s.sessions.UpdateTokens(cfg.OrgID, sessionID, pair); err != nil {
				log.Warn().Err(err).Msg("session token update failed")
			}
		}

		writeJSON(w, http.StatusOK, refreshResponse{ExpiresIn: pair.ExpiresIn})
	}
}

// BootstrapHandler exposes the resolved tenant configuration to page script.
// The bundle is client-visible by design; it carries no secrets.
func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := s.resolver.Resolve(r.Context(), hostname(r))
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) sessionCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(s.config.GetSessionCookieName())
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetSessionCookieName(),
		Value:    sessionID,
		Path:     "/",
		Domain:   tokenstore.CookieDomain(r.Host),
		MaxAge:   int(s.config.GetMaxSessionAge().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetSessionCookieName(),
		Value:    "",
		Path:     "/",
		Domain:   tokenstore.CookieDomain(r.Host),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// recordingSink writes tokens to the cookie store while remembering them so
// the handler can start a server-side session from the same pair.
type recordingSink struct {
	bound *tokenstore.Bound

	access        string
	accessMaxAge  int
	refresh       string
	refreshMaxAge int
	wrote         bool
}

func (rs *recordingSink) SetAccess(value string, maxAgeSeconds int) {
	rs.bound.SetAccess(value, maxAgeSeconds)
	rs.access = value
	rs.accessMaxAge = maxAgeSeconds
	rs.wrote = true
}

func (rs *recordingSink) SetRefresh(value string, maxAgeSeconds int) {
	rs.bound.SetRefresh(value, maxAgeSeconds)
	rs.refresh = value
	rs.refreshMaxAge = maxAgeSeconds
}

func (rs *recordingSink) pair() *exchange.TokenPair {
	if !rs.wrote {
		return nil
	}
	pair := &exchange.TokenPair{
		AccessToken: rs.access,
		ExpiresIn:   rs.accessMaxAge,
	}
	if rs.refresh != "" {
		pair.RefreshToken = utils.Ptr(rs.refresh)
		if rs.refreshMaxAge > 0 {
			pair.RefreshExpiresIn = utils.Ptr(rs.refreshMaxAge)
		}
	}
	return pair
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("response encoding failed")
	}
}

// writeError maps the error taxonomy onto HTTP statuses. The response body
// carries the sentinel's message, never the wrapped internal detail.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	type errorResponse struct {
		Error string `json:"error"`
	}

	status := http.StatusInternalServerError
	message := "internal error"

	for sentinel, mapped := range errorStatuses {
		if bridgeerrors.Is(err, sentinel) {
			status = mapped
			message = sentinel.Error()
			break
		}
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	} else {
		log.Debug().Err(err).Msg("request rejected")
	}
	writeJSON(w, status, errorResponse{Error: message})
}

var errorStatuses = map[error]int{
	bridgeerrors.ErrConfigUnavailable:      http.StatusServiceUnavailable,
	bridgeerrors.ErrTenantNotResolved:      http.StatusServiceUnavailable,
	bridgeerrors.ErrInvalidAuthState:       http.StatusBadRequest,
	bridgeerrors.ErrProviderRedirectFailed: http.StatusBadGateway,
	bridgeerrors.ErrTokenExchangeFailed:    http.StatusUnauthorized,
	bridgeerrors.ErrTokenRefreshFailed:     http.StatusUnauthorized,
	bridgeerrors.ErrNoRefreshToken:         http.StatusUnauthorized,
	bridgeerrors.ErrSessionNotFound:        http.StatusUnauthorized,
	bridgeerrors.ErrSessionExpired:         http.StatusUnauthorized,
	bridgeerrors.ErrIdentityUnavailable:    http.StatusBadGateway,
}
