package apiclient

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-waste-portal/internal/errors"
	"github.com/jrsteele09/go-waste-portal/token"
	"golang.org/x/oauth2"
)

// Credentials holds one access/refresh token pair. It is safe for concurrent
// use and satisfies oauth2.TokenSource.
type Credentials struct {
	mu      sync.RWMutex
	access  string
	refresh string
	rotated bool
}

var _ oauth2.TokenSource = (*Credentials)(nil)

// NewCredentials creates a holder for the given pair.
func NewCredentials(accessToken, refreshToken string) *Credentials {
	return &Credentials{access: accessToken, refresh: refreshToken}
}

// Token returns the current access token, or ErrUnauthorized when none is set.
func (c *Credentials) Token() (*oauth2.Token, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.access == "" {
		return nil, errors.ErrUnauthorized
	}
	return &oauth2.Token{
		AccessToken:  c.access,
		RefreshToken: c.refresh,
		TokenType:    "Bearer",
		Expiry:       token.ExpiresAt(c.access),
	}, nil
}

func (c *Credentials) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.access
}

func (c *Credentials) RefreshToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refresh
}

// Set replaces the access token. An empty refreshToken keeps the current one,
// since the refresh endpoint does not always rotate it.
func (c *Credentials) Set(accessToken, refreshToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.access = accessToken
	if refreshToken != "" {
		c.refresh = refreshToken
	}
}

// rotate stores a refreshed pair and marks the holder as changed.
func (c *Credentials) rotate(p RefreshPayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.access = p.AccessToken
	if p.RefreshToken != "" {
		c.refresh = p.RefreshToken
	}
	c.rotated = true
}

// Rotated reports whether a refresh replaced the pair since creation.
func (c *Credentials) Rotated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rotated
}

// Clear drops both tokens.
func (c *Credentials) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.access = ""
	c.refresh = ""
}

type credentialsKey struct{}

// WithCredentials binds creds to ctx. Requests issued with the returned
// context authenticate with creds instead of the client's shared default.
func WithCredentials(ctx context.Context, creds *Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, creds)
}

// CredentialsFrom returns the credentials bound to ctx, if any.
func CredentialsFrom(ctx context.Context) (*Credentials, bool) {
	creds, ok := ctx.Value(credentialsKey{}).(*Credentials)
	return creds, ok && creds != nil
}
