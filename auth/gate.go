package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/jrsteele09/go-waste-portal/apiclient"
	"github.com/jrsteele09/go-waste-portal/internal/errors"
	"github.com/jrsteele09/go-waste-portal/sessions"
	"github.com/jrsteele09/go-waste-portal/token"
	"github.com/rs/zerolog/log"
)

// Requirement is what a route demands of the current session. Zero fields
// are not checked.
type Requirement struct {
	Role      sessions.Role
	Status    sessions.RegistrationStatus
	FullToken bool
}

// Gate reads, writes and enforces portal sessions.
type Gate struct {
	store       sessions.Store
	service     *Service
	sharedToken bool
}

// GateOption defines a function type to modify the Gate instance.
type GateOption func(*Gate)

// WithSharedToken makes every session read and write also set the API
// client's process-wide default token. Only suitable when one process serves
// a single credential set.
func WithSharedToken() GateOption {
	return func(g *Gate) {
		g.sharedToken = true
	}
}

func NewGate(store sessions.Store, service *Service, opts ...GateOption) *Gate {
	g := &Gate{store: store, service: service}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// propagate hands the session's tokens to the API client.
func (g *Gate) propagate(ctx context.Context, d *sessions.Data) {
	if creds, ok := apiclient.CredentialsFrom(ctx); ok {
		creds.Set(d.AccessToken, d.RefreshToken)
	}
	if g.sharedToken {
		g.service.Client().SetTokens(d.AccessToken, d.RefreshToken)
	}
}

// CreateSession stores data as a new session for the user and redirects to
// redirectTo. Any session the request carried is dropped.
// An empty redirectTo lands the user on the next step for the session.
func (g *Gate) CreateSession(w http.ResponseWriter, r *http.Request, data sessions.Data, redirectTo string) error {
	if err := g.store.Create(w, r, &data); err != nil {
		return errors.Wrapf(err, "[Gate CreateSession]")
	}
	g.propagate(r.Context(), &data)
	if redirectTo == "" {
		redirectTo = NextRoute(&data)
	}
	log.Debug().Str("role", string(data.Role)).Str("status", string(data.RegistrationStatus)).
		Str("token_type", string(data.TokenType)).Str("redirect", redirectTo).Msg("session created")
	Redirect(w, r, redirectTo)
	return nil
}

// ReadSession returns the session carried by r, or nil when there is none or
// it has no access token. A tampered or expired cookie reads as no session.
func (g *Gate) ReadSession(r *http.Request) (*sessions.Data, error) {
	if d, ok := SessionFrom(r.Context()); ok {
		return d, nil
	}
	d, err := g.store.Load(r)
	switch {
	case errors.Is(err, errors.ErrSessionNotFound):
		return nil, nil
	case errors.Is(err, errors.ErrInvalidSession):
		log.Debug().Err(err).Msg("discarding unreadable session")
		return nil, nil
	case err != nil:
		return nil, errors.Wrapf(err, "[Gate ReadSession]")
	}
	if d.IsAnonymous() {
		return nil, nil
	}
	if token.IsExpired(d.RefreshToken, time.Now()) {
		log.Debug().Str("role", string(d.Role)).Msg("refresh token expired, treating session as anonymous")
		return nil, nil
	}
	g.propagate(r.Context(), d)
	return d, nil
}

// RequireSession returns the session when it satisfies req. Otherwise the
// error is a *RedirectError naming where the user should go.
func (g *Gate) RequireSession(r *http.Request, req Requirement) (*sessions.Data, error) {
	d, err := g.ReadSession(r)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, redirectTo(RouteRoot, ErrNoSession)
	}
	if err := Check(d, req); err != nil {
		return nil, err
	}
	return d, nil
}

// Check evaluates req against a non-anonymous session.
func Check(d *sessions.Data, req Requirement) error {
	if d.IsAnonymous() {
		return redirectTo(RouteRoot, ErrNoSession)
	}
	if req.Role != "" && d.Role != req.Role {
		return redirectTo(RouteRoot, ErrRoleMismatch)
	}
	if req.Status != "" && d.RegistrationStatus != req.Status {
		if route, ok := OnboardingRoute(d.Role, d.RegistrationStatus); ok {
			return redirectTo(route, ErrOnboarding)
		}
	}
	if req.FullToken && !d.IsFull() {
		return redirectTo(SecondaryGateRoute(d.Role), ErrPartialToken)
	}
	return nil
}

// UpdateSession applies mutate to the current session and saves it.
func (g *Gate) UpdateSession(w http.ResponseWriter, r *http.Request, mutate func(*sessions.Data)) (*sessions.Data, error) {
	d, err := g.ReadSession(r)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, errors.ErrSessionNotFound
	}
	updated := *d
	mutate(&updated)
	if err := g.store.Save(w, r, &updated); err != nil {
		return nil, errors.Wrapf(err, "[Gate UpdateSession]")
	}
	*d = updated
	g.propagate(r.Context(), d)
	return d, nil
}

// Clear removes the local session without redirecting or calling the remote API.
func (g *Gate) Clear(w http.ResponseWriter, r *http.Request) {
	if err := g.store.Destroy(w, r); err != nil {
		log.Warn().Err(err).Msg("failed to destroy session")
	}
	if creds, ok := apiclient.CredentialsFrom(r.Context()); ok {
		creds.Clear()
	}
	if g.sharedToken {
		g.service.Client().ClearToken()
	}
}

// DestroySession logs the user out locally and, best effort, remotely, then
// redirects to the application root.
func (g *Gate) DestroySession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if d, _ := g.ReadSession(r); d != nil {
		if _, bound := apiclient.CredentialsFrom(ctx); !bound {
			ctx = apiclient.WithCredentials(ctx, d.Credentials())
		}
		if err := g.service.Logout(ctx); err != nil {
			log.Warn().Err(err).Str("role", string(d.Role)).Msg("remote logout failed")
		}
	}
	g.Clear(w, r)
	Redirect(w, r, RouteRoot)
}

type sessionKey struct{}

// WithSession binds a session already read for this request to ctx.
func WithSession(ctx context.Context, d *sessions.Data) context.Context {
	return context.WithValue(ctx, sessionKey{}, d)
}

// SessionFrom returns the session bound to ctx.
func SessionFrom(ctx context.Context) (*sessions.Data, bool) {
	d, ok := ctx.Value(sessionKey{}).(*sessions.Data)
	return d, ok && d != nil
}

// Redirect is an htmx-aware 303 redirect.
func Redirect(w http.ResponseWriter, r *http.Request, path string) {
	if IsHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// IsHTMXRequest checks if the request was initiated by htmx.
func IsHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
