package errors

import (
	"errors"
	"fmt"
)

// Common error types for the auth bridge
var (
	// Tenant bootstrap errors
	ErrConfigUnavailable = errors.New("tenant configuration unavailable")
	ErrTenantNotResolved = errors.New("tenant not resolved")

	// Authorization flow errors
	ErrInvalidAuthState       = errors.New("invalid or missing auth state")
	ErrProviderRedirectFailed = errors.New("provider redirect failed")

	// Token errors
	ErrTokenExchangeFailed = errors.New("token exchange failed")
	ErrTokenRefreshFailed  = errors.New("token refresh failed")
	ErrNoRefreshToken      = errors.New("no refresh token")
	ErrTokenMalformed      = errors.New("token malformed")

	// Identity service errors
	ErrIdentityUnavailable = errors.New("identity service unavailable")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
