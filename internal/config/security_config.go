package config

import "time"

type SecurityConfig interface {
	GetMaxSessionAge() time.Duration
	GetAllowPlainChallenge() bool
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetMaxSessionAge() time.Duration {
	return 8 * time.Hour
}

// GetAllowPlainChallenge controls the degraded "plain" PKCE method. It is a
// functional fallback only; every use is logged as degraded security.
func (Security) GetAllowPlainChallenge() bool {
	return true
}
