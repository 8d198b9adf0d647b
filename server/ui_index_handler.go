package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-waste-portal/auth"
)

// IndexHandler renders the home page. A signed-in user is offered the page
// their session should continue on.
func (s *Server) IndexHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("index.html")

	return func(w http.ResponseWriter, r *http.Request) {
		data := s.page(r, "Beranda")
		if d, ok := auth.SessionFrom(r.Context()); ok {
			data["Continue"] = auth.NextRoute(d)
		}
		render(w, tmpl, http.StatusOK, data)
	}
}

// LogoutHandler ends the session locally and remotely.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.gate.DestroySession(w, r)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
			"app":    s.config.GetAppName(),
		})
	}
}
