package config

import "time"

type AuthConfig interface {
	GetRefreshLeadTime() time.Duration
	GetFlowStateTimeout() time.Duration
	GetAccessCookieName() string
	GetRefreshCookieName() string
	GetSessionCookieName() string
	GetHTTPTimeout() time.Duration
}

type Auth struct{}

var _ AuthConfig = Auth{}

// GetRefreshLeadTime is how long before access-token expiry a proactive
// refresh fires.
func (Auth) GetRefreshLeadTime() time.Duration {
	return 60 * time.Second
}

func (Auth) GetFlowStateTimeout() time.Duration {
	return 15 * time.Minute
}

func (Auth) GetAccessCookieName() string {
	return "egav_access_token"
}

func (Auth) GetRefreshCookieName() string {
	return "egav_refresh_token"
}

// GetSessionCookieName names the bridge's own session cookie. Unlike the
// token cookies it is HttpOnly; page script never needs to read it.
func (Auth) GetSessionCookieName() string {
	return "egav_session"
}

func (Auth) GetHTTPTimeout() time.Duration {
	return 10 * time.Second
}
