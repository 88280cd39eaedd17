package authflow

import (
	cryptorand "crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	mathrand "math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// PKCE challenge methods.
const (
	ChallengeMethodS256  = "S256"
	ChallengeMethodPlain = "plain"
)

const verifierByteLength = 32

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Session is the transient, single-use PKCE state created at flow initiation
// and consumed once at callback. Only the derived challenge ever goes over
// the wire; state and verifier stay in the bridge's flow store.
type Session struct {
	State           string
	Verifier        string
	Challenge       string
	ChallengeMethod string
	// Degraded marks a session whose random material did not come from the
	// secure source. The flow still works but offers weaker guarantees.
	Degraded  bool
	CreatedAt time.Time
}

// NewSession generates a state nonce, a code verifier, and the S256
// challenge derived from the verifier.
func NewSession() *Session {
	state, stateDegraded := randomURLString(verifierByteLength)
	verifier, verifierDegraded := randomURLString(verifierByteLength)

	hash := sha256.Sum256([]byte(verifier))
	return &Session{
		State:           state,
		Verifier:        verifier,
		Challenge:       base64.RawURLEncoding.EncodeToString(hash[:]),
		ChallengeMethod: ChallengeMethodS256,
		Degraded:        stateDegraded || verifierDegraded,
		CreatedAt:       NowTimeFunc(),
	}
}

// randomURLString returns n random bytes base64url-encoded without padding.
// If the secure source fails it falls back to a non-cryptographic generator
// rather than failing the flow; the degraded flag is reported so callers can
// log it, never silently.
func randomURLString(n int) (value string, degraded bool) {
	b := make([]byte, n)
	if _, err := cryptorand.Read(b); err != nil {
		log.Warn().Err(err).Msg("secure random source unavailable, generating degraded auth flow material")
		for i := range b {
			b[i] = byte(mathrand.Intn(256))
		}
		return base64.RawURLEncoding.EncodeToString(b), true
	}
	return base64.RawURLEncoding.EncodeToString(b), false
}
