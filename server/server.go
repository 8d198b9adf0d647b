package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-waste-portal/apiclient"
	"github.com/jrsteele09/go-waste-portal/auth"
	"github.com/jrsteele09/go-waste-portal/internal/config"
	"github.com/jrsteele09/go-waste-portal/sessions"
	"github.com/jrsteele09/go-waste-portal/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Deps are the collaborators the server is built from.
type Deps struct {
	Client *apiclient.Client
	Store  sessions.Store
	// Pending defaults to the remote API's pending-user endpoints.
	Pending users.PendingRepo
	// Registry receives the server's metrics and backs /metrics. A private
	// registry is created when nil.
	Registry *prometheus.Registry
}

type Server struct {
	env        string // Environment (e.g., "DEV", "PRODUCTION")
	mux        *http.ServeMux
	routes     []string
	config     config.Config
	client     *apiclient.Client
	auth       *auth.Service
	gate       *auth.Gate
	approvals  *users.ApprovalService
	validator  *auth.Validator
	registry   *prometheus.Registry
	metrics    *httpMetrics
	cookieName string
}

func New(cfg config.Config, deps Deps) (*Server, error) {
	if deps.Client == nil {
		return nil, fmt.Errorf("[Server New] an API client is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("[Server New] a session store is required")
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	if deps.Pending == nil {
		deps.Pending = users.NewRemoteRepo(deps.Client)
	}

	authService := auth.NewService(deps.Client)
	var gateOpts []auth.GateOption
	if cfg.GetSharedToken() {
		gateOpts = append(gateOpts, auth.WithSharedToken())
	}

	s := &Server{
		env:        cfg.GetEnv(),
		mux:        http.NewServeMux(),
		config:     cfg,
		client:     deps.Client,
		auth:       authService,
		gate:       auth.NewGate(deps.Store, authService, gateOpts...),
		approvals:  users.NewApprovalService(deps.Pending),
		validator:  auth.NewValidator(),
		registry:   deps.Registry,
		metrics:    newHTTPMetrics(deps.Registry),
		cookieName: cfg.GetSessionCookieName(),
	}
	if s.cookieName == "" {
		s.cookieName = sessions.DefaultCookieName
	}

	if err := s.client.RegisterRefreshHandlers(s.refreshHandlers()); err != nil {
		return nil, fmt.Errorf("[Server New] failed to register refresh handlers: %w", err)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func displayMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return colorize(color, paddedMethod)
	}
	return colorize(Gray, paddedMethod)
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", displayMethod(method), path)
}
