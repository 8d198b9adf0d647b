package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the fields the portal reads from remote access tokens.
type Claims struct {
	jwt.RegisteredClaims
	Role      string `json:"role,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	DeviceID  string `json:"device_id,omitempty"`
}

var parser = jwt.NewParser()

// Inspect decodes an access token without verifying its signature.
// The remote API is the only party that validates tokens; the portal reads
// claims for display and cookie lifetimes only.
func Inspect(raw string) (*Claims, error) {
	if raw == "" {
		return nil, fmt.Errorf("[token Inspect] empty token")
	}
	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("[token Inspect] %w", err)
	}
	return claims, nil
}

// ExpiresAt returns the exp claim of raw, or the zero time when the token is
// opaque or carries no expiry.
func ExpiresAt(raw string) time.Time {
	claims, err := Inspect(raw)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// IsExpired reports whether raw carries an exp claim in the past.
// Opaque tokens are never considered expired here; the remote API decides.
func IsExpired(raw string, now time.Time) bool {
	exp := ExpiresAt(raw)
	return !exp.IsZero() && !now.Before(exp)
}
