package server

import (
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-waste-portal/auth"
	"github.com/jrsteele09/go-waste-portal/sessions"
	"github.com/jrsteele09/go-waste-portal/users"
	"github.com/rs/zerolog/log"
)

// approvalListKey scopes the cached pending list to one administrator session.
func approvalListKey(d *sessions.Data) string {
	if d.SessionID != "" {
		return d.SessionID
	}
	return d.Email
}

func (s *Server) AdminLoginPageHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("admin_login.html")

	return func(w http.ResponseWriter, r *http.Request) {
		render(w, tmpl, http.StatusOK, s.page(r, "Masuk Administrator"))
	}
}

// AdminLoginSubmitHandler runs the administrator primary check. The remote
// API answers with an OTP, and possibly a partial token.
func (s *Server) AdminLoginSubmitHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("admin_login.html")

	return func(w http.ResponseWriter, r *http.Request) {
		values := formValues(r, "email", "password")
		req := auth.AdminCredentials{Email: values["email"], Password: values["password"], DeviceID: s.deviceID(w, r)}

		var res auth.AuthResult
		err := s.validator.Struct(req)
		if err == nil {
			res, err = s.auth.AdminLogin(r.Context(), req)
		}
		if err != nil {
			delete(values, "password")
			s.formFailure(w, r, tmpl, s.page(r, "Masuk Administrator"), values, err)
			return
		}

		next := RouteAdminVerifyOTP + "?email=" + url.QueryEscape(req.Email)
		if res.AccessToken == "" {
			redirectSuccess(w, r, next)
			return
		}

		d := res.SessionData()
		d.Role = sessions.RoleAdministrator
		if d.TokenType == "" {
			d.TokenType = sessions.TokenPartial
		}
		if d.DeviceID == "" {
			d.DeviceID = req.DeviceID
		}
		if err := s.gate.CreateSession(w, r, d, next); err != nil {
			log.Err(err).Msg("failed to create administrator session")
			http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
		}
	}
}

func (s *Server) AdminVerifyOTPPageHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("admin_verify_otp.html")

	return func(w http.ResponseWriter, r *http.Request) {
		email := r.URL.Query().Get("email")
		if d, ok := auth.SessionFrom(r.Context()); ok && email == "" {
			if d.IsFull() {
				redirectSuccess(w, r, auth.NextRoute(d))
				return
			}
			email = d.Email
		}
		if email == "" {
			redirectSuccess(w, r, RouteAdminLogin)
			return
		}
		data := s.page(r, "Verifikasi OTP Administrator")
		data["Values"] = map[string]string{"email": email}
		render(w, tmpl, http.StatusOK, data)
	}
}

// AdminVerifyOTPSubmitHandler completes the administrator second factor.
func (s *Server) AdminVerifyOTPSubmitHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("admin_verify_otp.html")

	return func(w http.ResponseWriter, r *http.Request) {
		values := formValues(r, "email", "otp")
		req := auth.AdminOTPVerification{Email: values["email"], OTP: values["otp"], DeviceID: s.deviceID(w, r)}

		var res auth.AuthResult
		err := s.validator.Struct(req)
		if err == nil {
			res, err = s.auth.AdminVerifyOTP(r.Context(), req)
		}
		if err != nil {
			s.formFailure(w, r, tmpl, s.page(r, "Verifikasi OTP Administrator"), values, err)
			return
		}

		var d sessions.Data
		if current, ok := auth.SessionFrom(r.Context()); ok {
			d = *current
		}
		d.Merge(res.SessionData())
		d.Role = sessions.RoleAdministrator
		if res.TokenType == "" {
			d.TokenType = sessions.TokenFull
		}
		if d.DeviceID == "" {
			d.DeviceID = req.DeviceID
		}
		s.startSession(w, r, d)
	}
}

// AdminDashboardHandler shows the pending totals per role.
func (s *Server) AdminDashboardHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("admin_dashboard.html")

	return func(w http.ResponseWriter, r *http.Request) {
		d, _ := auth.SessionFrom(r.Context())
		data := s.page(r, "Dasbor Administrator")
		data["PendingPengelola"], data["PendingTotal"] = 0, 0

		list, err := s.approvals.Pending(r.Context(), approvalListKey(d))
		if err != nil {
			if s.handleSessionExpiry(w, r, err) {
				return
			}
			log.Warn().Err(err).Msg("failed to load pending users")
			data["Error"] = userMessage(err)
			render(w, tmpl, http.StatusOK, data)
			return
		}

		data["PendingPengelola"] = list.Total(sessions.RolePengelola)
		data["PendingTotal"] = list.GrandTotal()
		render(w, tmpl, http.StatusOK, data)
	}
}

// AdminApprovalsHandler lists users awaiting a decision, reloading the list
// from the remote API.
func (s *Server) AdminApprovalsHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("admin_approvals.html")

	return func(w http.ResponseWriter, r *http.Request) {
		d, _ := auth.SessionFrom(r.Context())
		data := s.page(r, "Persetujuan Pengguna")
		data["PendingPengelola"] = 0

		list, err := s.approvals.ListPending(r.Context(), approvalListKey(d))
		if err != nil {
			if s.handleSessionExpiry(w, r, err) {
				return
			}
			log.Warn().Err(err).Msg("failed to load pending users")
			data["Error"] = userMessage(err)
			render(w, tmpl, http.StatusOK, data)
			return
		}

		data["Pending"] = list.Partition(sessions.RolePengelola)
		data["PendingPengelola"] = list.Total(sessions.RolePengelola)
		render(w, tmpl, http.StatusOK, data)
	}
}

// AdminDecisionHandler approves or rejects one pending user against the
// cached list.
func (s *Server) AdminDecisionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, _ := auth.SessionFrom(r.Context())
		id := r.PathValue("id")
		action := users.Action(r.PathValue("action"))

		if !action.Valid() {
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}

		decision := users.Decision{Reason: r.FormValue("reason")}
		if _, err := s.approvals.DecideCached(r.Context(), approvalListKey(d), id, action, decision); err != nil {
			if s.handleSessionExpiry(w, r, err) {
				return
			}
			redirectWithError(w, r, RouteAdminApprovals, userMessage(err))
			return
		}

		msg := "Pengguna disetujui"
		if action == users.ActionReject {
			msg = "Pengguna ditolak"
		}
		redirectWithMessage(w, r, RouteAdminApprovals, msg)
	}
}
