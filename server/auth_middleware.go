package server

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/jrsteele09/go-waste-portal/apiclient"
	"github.com/jrsteele09/go-waste-portal/auth"
	"github.com/jrsteele09/go-waste-portal/internal/errors"
	"github.com/jrsteele09/go-waste-portal/sessions"
	"github.com/rs/zerolog/log"
)

// requestState is the per-request credential holder seen by the API client.
type requestState struct {
	creds   *apiclient.Credentials
	expired atomic.Bool
}

type requestStateKey struct{}

func requestStateFrom(ctx context.Context) (*requestState, bool) {
	st, ok := ctx.Value(requestStateKey{}).(*requestState)
	return st, ok
}

// SessionMiddleware binds a fresh credential holder to the request, loads the
// session into it, and writes refreshed tokens back to the session cookie
// before the response goes out.
func (s *Server) SessionMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := &requestState{creds: apiclient.NewCredentials("", "")}
		ctx := apiclient.WithCredentials(r.Context(), st.creds)
		ctx = context.WithValue(ctx, requestStateKey{}, st)
		r = r.WithContext(ctx)

		d, err := s.gate.ReadSession(r)
		if err != nil {
			log.Err(err).Str("path", r.URL.Path).Msg("failed to read session")
		}
		if d != nil {
			r = r.WithContext(auth.WithSession(r.Context(), d))
		}

		sw := &sessionWriter{ResponseWriter: w, server: s, r: r, state: st}
		next(sw, r)
		// A handler that wrote nothing still gets the implicit 200, which
		// must carry any refreshed tokens.
		sw.persist()
	}
}

// RequireSession rejects requests whose session does not meet req by
// redirecting to the page the gate names.
func (s *Server) RequireSession(req auth.Requirement) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			d, err := s.gate.RequireSession(r, req)
			if err != nil {
				if re, ok := auth.AsRedirect(err); ok {
					log.Debug().Str("path", r.URL.Path).Str("redirect", re.To).AnErr("reason", re.Reason).Msg("session rejected")
					auth.Redirect(w, r, re.To)
					return
				}
				log.Err(err).Str("path", r.URL.Path).Msg("session check failed")
				http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
				return
			}
			next(w, r.WithContext(auth.WithSession(r.Context(), d)))
		}
	}
}

// refreshHandlers connect the API client's token refresh to the request's
// credential holder.
func (s *Server) refreshHandlers() apiclient.RefreshHandlers {
	return apiclient.RefreshHandlers{
		RefreshToken: func(ctx context.Context) (string, error) {
			if creds, ok := apiclient.CredentialsFrom(ctx); ok {
				return creds.RefreshToken(), nil
			}
			return s.client.DefaultCredentials().RefreshToken(), nil
		},
		OnSuccess: func(ctx context.Context, p apiclient.RefreshPayload) {
			log.Debug().Bool("rotated_refresh_token", p.RefreshToken != "").Msg("session tokens refreshed")
		},
		OnError: func(ctx context.Context, err error) {
			if st, ok := requestStateFrom(ctx); ok {
				st.expired.Store(true)
			}
			log.Warn().Err(err).Msg("session refresh failed, signing out")
		},
	}
}

// sessionWriter persists the outcome of a token refresh the first time the
// handler writes headers, or when it returns without writing. A handler that
// set the session cookie itself wins.
type sessionWriter struct {
	http.ResponseWriter
	server  *Server
	r       *http.Request
	state   *requestState
	flushed bool
}

func (sw *sessionWriter) WriteHeader(status int) {
	sw.persist()
	sw.ResponseWriter.WriteHeader(status)
}

func (sw *sessionWriter) Write(b []byte) (int, error) {
	sw.persist()
	return sw.ResponseWriter.Write(b)
}

func (sw *sessionWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

func (sw *sessionWriter) persist() {
	if sw.flushed {
		return
	}
	sw.flushed = true
	if sessionCookieSet(sw.Header(), sw.server.cookieName) {
		return
	}

	switch {
	case sw.state.expired.Load():
		sw.server.gate.Clear(sw.ResponseWriter, sw.r)
	case sw.state.creds.Rotated():
		access, refresh := sw.state.creds.AccessToken(), sw.state.creds.RefreshToken()
		_, err := sw.server.gate.UpdateSession(sw.ResponseWriter, sw.r, func(d *sessions.Data) {
			d.AccessToken = access
			d.RefreshToken = refresh
		})
		if err != nil && !errors.Is(err, errors.ErrSessionNotFound) {
			log.Err(err).Msg("failed to persist refreshed tokens")
		}
	}
}

// freshTokens copies tokens refreshed during this request into d, so a
// handler saving the session does not write back the superseded pair.
func freshTokens(r *http.Request, d *sessions.Data) {
	if st, ok := requestStateFrom(r.Context()); ok && st.creds.Rotated() {
		d.AccessToken = st.creds.AccessToken()
		d.RefreshToken = st.creds.RefreshToken()
	}
}

func sessionCookieSet(h http.Header, name string) bool {
	for _, c := range h.Values("Set-Cookie") {
		if strings.HasPrefix(c, name+"=") {
			return true
		}
	}
	return false
}
