package auth

import (
	"errors"
	"fmt"
)

var (
	ErrNoSession        = errors.New("no active session")
	ErrRoleMismatch     = errors.New("session role does not match")
	ErrPartialToken     = errors.New("secondary verification required")
	ErrOnboarding       = errors.New("onboarding step pending")
	ErrMissingAuthToken = errors.New("auth response carries no access token")
)

// RedirectError tells the caller that the request must not proceed and the
// user agent should be sent to To instead.
type RedirectError struct {
	To     string
	Reason error
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("redirect to %s: %v", e.To, e.Reason)
}

func (e *RedirectError) Unwrap() error {
	return e.Reason
}

func redirectTo(to string, reason error) *RedirectError {
	return &RedirectError{To: to, Reason: reason}
}

// AsRedirect extracts a *RedirectError from err's chain.
func AsRedirect(err error) (*RedirectError, bool) {
	var re *RedirectError
	ok := errors.As(err, &re)
	return re, ok
}
