package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/go-waste-portal/auth"
	"github.com/jrsteele09/go-waste-portal/sessions"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	pengelolaPIN      = auth.Requirement{Role: sessions.RolePengelola, Status: sessions.StatusComplete}
	pengelolaNew      = auth.Requirement{Role: sessions.RolePengelola, Status: sessions.StatusUncomplete}
	pengelolaWait     = auth.Requirement{Role: sessions.RolePengelola, Status: sessions.StatusAwaitingApproval}
	pengelolaApproved = auth.Requirement{Role: sessions.RolePengelola, Status: sessions.StatusApproved}
	pengelolaFull     = auth.Requirement{Role: sessions.RolePengelola, Status: sessions.StatusComplete, FullToken: true}
	administratorFull = auth.Requirement{Role: sessions.RoleAdministrator, FullToken: true}
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET /{$}", ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare()...))

	// PENGELOLA SIGN IN
	s.RegisterRouteHandler("GET "+RoutePengelolaSignIn, ChainMiddleware(s.SignInPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RoutePengelolaSignIn, ChainMiddleware(s.SignInSubmitHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RoutePengelolaVerifyOTP, ChainMiddleware(s.VerifyOTPPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RoutePengelolaVerifyOTP, ChainMiddleware(s.VerifyOTPSubmitHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RoutePengelolaPIN, ChainMiddleware(s.PINPageHandler(), s.HTMLMiddleWare(s.RequireSession(pengelolaPIN))...))
	s.RegisterRouteHandler("POST "+RoutePengelolaPIN, ChainMiddleware(s.PINSubmitHandler(), s.HTMLMiddleWare(s.RequireSession(pengelolaPIN))...))

	// PENGELOLA ONBOARDING
	s.RegisterRouteHandler("GET "+RoutePengelolaCompleteProfile, ChainMiddleware(s.CompleteProfilePageHandler(), s.HTMLMiddleWare(s.RequireSession(pengelolaNew))...))
	s.RegisterRouteHandler("POST "+RoutePengelolaCompleteProfile, ChainMiddleware(s.CompleteProfileSubmitHandler(), s.HTMLMiddleWare(s.RequireSession(pengelolaNew))...))
	s.RegisterRouteHandler("GET "+RoutePengelolaWaitingApproval, ChainMiddleware(s.WaitingApprovalHandler(), s.HTMLMiddleWare(s.RequireSession(pengelolaWait))...))
	s.RegisterRouteHandler("GET "+RoutePengelolaCreatePIN, ChainMiddleware(s.CreatePINPageHandler(), s.HTMLMiddleWare(s.RequireSession(pengelolaApproved))...))
	s.RegisterRouteHandler("POST "+RoutePengelolaCreatePIN, ChainMiddleware(s.CreatePINSubmitHandler(), s.HTMLMiddleWare(s.RequireSession(pengelolaApproved))...))
	s.RegisterRouteHandler("GET "+RoutePengelolaDashboard, ChainMiddleware(s.PengelolaDashboardHandler(), s.HTMLMiddleWare(s.RequireSession(pengelolaFull))...))

	// ADMINISTRATOR
	s.RegisterRouteHandler("GET "+RouteAdminLogin, ChainMiddleware(s.AdminLoginPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteAdminLogin, ChainMiddleware(s.AdminLoginSubmitHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteAdminVerifyOTP, ChainMiddleware(s.AdminVerifyOTPPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteAdminVerifyOTP, ChainMiddleware(s.AdminVerifyOTPSubmitHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteAdminDashboard, ChainMiddleware(s.AdminDashboardHandler(), s.HTMLMiddleWare(s.RequireSession(administratorFull))...))
	s.RegisterRouteHandler("GET "+RouteAdminApprovals, ChainMiddleware(s.AdminApprovalsHandler(), s.HTMLMiddleWare(s.RequireSession(administratorFull))...))
	s.RegisterRouteHandler("POST "+RouteAdminApprovalsItem, ChainMiddleware(s.AdminDecisionHandler(), s.HTMLMiddleWare(s.RequireSession(administratorFull))...))

	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))

	// Operations
	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteMetrics, ChainMiddleware(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}).ServeHTTP, s.APIMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteStaticCSS, ChainMiddleware(s.serveFileHandler(), s.StaticMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteFavicon, ChainMiddleware(s.serveFileHandler(), s.StaticMiddleware()...))
}

func (s *Server) serveFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := strings.TrimPrefix(r.URL.Path, "/")
		if filePath == "" {
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
		err := StreamFile(w, r, filePath)
		if err != nil {
			logError(r.Method, filePath, err.Error())
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
	}
}

func logError(method, path, error string) {
	log.Error().Msgf("[%-19s] %s %s", displayMethod(method), path, colorize(Red, error))
}
