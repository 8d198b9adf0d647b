package server

import (
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-waste-portal/apiclient"
	"github.com/jrsteele09/go-waste-portal/auth"
	"github.com/jrsteele09/go-waste-portal/internal/errors"
	"github.com/rs/zerolog/log"
)

const (
	// deviceCookieName identifies the browser to the remote API across sign-ins.
	deviceCookieName = "device_id"
	deviceCookieAge  = 365 * 24 * 60 * 60

	msgSessionExpired = "Sesi Anda telah berakhir, silakan masuk kembali"
	msgGenericError   = "Terjadi kesalahan, silakan coba lagi"
)

// deviceID returns the browser's device id, issuing one when absent.
func (s *Server) deviceID(w http.ResponseWriter, r *http.Request) string {
	if d, ok := auth.SessionFrom(r.Context()); ok && d.DeviceID != "" {
		return d.DeviceID
	}
	if c, err := r.Cookie(deviceCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     deviceCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.config.GetSecureCookies(),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   deviceCookieAge,
	})
	return id
}

// handleSessionExpiry signs the user out when the tokens could not be
// refreshed. A 401 that survives a refresh is an ordinary failure. It reports whether a response was written.
func (s *Server) handleSessionExpiry(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, errors.ErrRefreshFailed) {
		return false
	}

	log.Info().Err(err).Str("path", r.URL.Path).Msg("session expired")
	s.gate.Clear(w, r)
	redirectWithError(w, r, auth.SignInRouteFor(r.URL.Path), msgSessionExpired)
	return true
}

// userMessage is the text shown for a failed remote call.
func userMessage(err error) string {
	return apiclient.ErrorMessage(err, msgGenericError)
}

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	auth.Redirect(w, r, path)
}

// redirectWithError helper for htmx-aware error redirects
func redirectWithError(w http.ResponseWriter, r *http.Request, path, errorMsg string) {
	auth.Redirect(w, r, path+"?error="+url.QueryEscape(errorMsg))
}

// redirectWithMessage carries a confirmation to the next page.
func redirectWithMessage(w http.ResponseWriter, r *http.Request, path, msg string) {
	auth.Redirect(w, r, path+"?message="+url.QueryEscape(msg))
}
