package server

import (
	"errors"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-waste-portal/apiclient"
	"github.com/jrsteele09/go-waste-portal/auth"
	"github.com/jrsteele09/go-waste-portal/sessions"
	"github.com/rs/zerolog/log"
)

const maxProfileUpload = 10 << 20

// documentFields are the optional uploads accepted with the business profile.
var documentFields = []string{"ktp_document", "nib_document"}

// formValues trims the named form fields.
func formValues(r *http.Request, keys ...string) map[string]string {
	values := make(map[string]string, len(keys))
	for _, k := range keys {
		values[k] = strings.TrimSpace(r.FormValue(k))
	}
	return values
}

// formFailure re-renders tmpl with the submitted values and err. Validation
// failures are shown per field, remote errors as one message.
func (s *Server) formFailure(w http.ResponseWriter, r *http.Request, tmpl *template.Template, data pageData, values map[string]string, err error) {
	if s.handleSessionExpiry(w, r, err) {
		return
	}
	data["Values"] = values

	var fe auth.FieldErrors
	if errors.As(err, &fe) {
		data["Errors"] = fe
		render(w, tmpl, http.StatusUnprocessableEntity, data)
		return
	}

	status := http.StatusUnprocessableEntity
	if code := apiclient.StatusCode(err); code == 0 || code >= 500 {
		log.Err(err).Str("path", r.URL.Path).Msg("remote call failed")
		status = http.StatusBadGateway
	}
	data["Error"] = userMessage(err)
	render(w, tmpl, status, data)
}

// startSession stores d and sends the user to the next step.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, d sessions.Data) {
	if err := s.gate.CreateSession(w, r, d, ""); err != nil {
		log.Err(err).Msg("failed to create session")
		http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
	}
}

func (s *Server) SignInPageHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("pengelola_sign_in.html")

	return func(w http.ResponseWriter, r *http.Request) {
		data := s.page(r, "Masuk Pengelola")
		data["Values"] = map[string]string{"phone": r.URL.Query().Get("phone")}
		render(w, tmpl, http.StatusOK, data)
	}
}

// SignInSubmitHandler asks the remote API to send an OTP.
func (s *Server) SignInSubmitHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("pengelola_sign_in.html")

	return func(w http.ResponseWriter, r *http.Request) {
		values := formValues(r, "phone")
		req := auth.OTPRequest{Phone: values["phone"]}

		err := s.validator.Struct(req)
		if err == nil {
			err = s.auth.RequestOTP(r.Context(), req)
		}
		if err != nil {
			s.formFailure(w, r, tmpl, s.page(r, "Masuk Pengelola"), values, err)
			return
		}
		redirectSuccess(w, r, RoutePengelolaVerifyOTP+"?phone="+url.QueryEscape(req.Phone))
	}
}

func (s *Server) VerifyOTPPageHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("pengelola_verify_otp.html")

	return func(w http.ResponseWriter, r *http.Request) {
		phone := r.URL.Query().Get("phone")
		if phone == "" {
			redirectSuccess(w, r, RoutePengelolaSignIn)
			return
		}
		data := s.page(r, "Verifikasi OTP")
		data["Values"] = map[string]string{"phone": phone}
		render(w, tmpl, http.StatusOK, data)
	}
}

// VerifyOTPSubmitHandler completes the primary check and opens a session.
func (s *Server) VerifyOTPSubmitHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("pengelola_verify_otp.html")

	return func(w http.ResponseWriter, r *http.Request) {
		values := formValues(r, "phone", "otp")
		req := auth.OTPVerification{Phone: values["phone"], OTP: values["otp"], DeviceID: s.deviceID(w, r)}

		var res auth.AuthResult
		err := s.validator.Struct(req)
		if err == nil {
			res, err = s.auth.VerifyOTP(r.Context(), req)
		}
		if err != nil {
			s.formFailure(w, r, tmpl, s.page(r, "Verifikasi OTP"), values, err)
			return
		}

		d := res.SessionData()
		if d.Role == "" {
			d.Role = sessions.RolePengelola
		}
		if d.TokenType == "" {
			d.TokenType = sessions.TokenPartial
		}
		if d.DeviceID == "" {
			d.DeviceID = req.DeviceID
		}
		s.startSession(w, r, d)
	}
}

// PINPageHandler is the pengelola secondary gate.
func (s *Server) PINPageHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("pengelola_pin.html")

	return func(w http.ResponseWriter, r *http.Request) {
		if d, _ := auth.SessionFrom(r.Context()); d.IsFull() {
			redirectSuccess(w, r, auth.NextRoute(d))
			return
		}
		render(w, tmpl, http.StatusOK, s.page(r, "Masukkan PIN"))
	}
}

// PINSubmitHandler upgrades the partial token to a full one.
func (s *Server) PINSubmitHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("pengelola_pin.html")

	return func(w http.ResponseWriter, r *http.Request) {
		current, _ := auth.SessionFrom(r.Context())
		values := formValues(r, "pin")
		req := auth.PINVerification{PIN: values["pin"], DeviceID: s.deviceID(w, r)}

		var res auth.AuthResult
		err := s.validator.Struct(req)
		if err == nil {
			res, err = s.auth.VerifyPIN(r.Context(), req)
		}
		if err != nil {
			s.formFailure(w, r, tmpl, s.page(r, "Masukkan PIN"), map[string]string{}, err)
			return
		}

		d := *current
		freshTokens(r, &d)
		d.Merge(res.SessionData())
		if res.TokenType == "" {
			d.TokenType = sessions.TokenFull
		}
		s.startSession(w, r, d)
	}
}

func (s *Server) CompleteProfilePageHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("pengelola_complete_profile.html")

	return func(w http.ResponseWriter, r *http.Request) {
		data := s.page(r, "Lengkapi Profil")
		if d, ok := auth.SessionFrom(r.Context()); ok {
			data["Values"] = map[string]string{"pic_phone": d.Phone}
		}
		render(w, tmpl, http.StatusOK, data)
	}
}

// CompleteProfileSubmitHandler uploads the business profile and moves the
// session on to the approval queue.
func (s *Server) CompleteProfileSubmitHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("pengelola_complete_profile.html")

	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxProfileUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			http.Error(w, "400 - Bad Request", http.StatusBadRequest)
			return
		}
		values := formValues(r, "company_name", "company_address", "pic_name", "pic_phone", "nib")
		form := auth.ProfileForm{
			CompanyName:    values["company_name"],
			CompanyAddress: values["company_address"],
			PICName:        values["pic_name"],
			PICPhone:       values["pic_phone"],
			NIB:            values["nib"],
		}

		var info auth.StatusInfo
		err := s.validator.Struct(form)
		if err == nil {
			var documents []apiclient.File
			documents, err = readDocuments(r)
			if err == nil {
				info, err = s.auth.CompleteProfile(r.Context(), form, documents)
			}
		}
		if err != nil {
			s.formFailure(w, r, tmpl, s.page(r, "Lengkapi Profil"), values, err)
			return
		}

		status := info.RegistrationStatus
		if status == "" {
			status = sessions.StatusAwaitingApproval
		}
		d, err := s.gate.UpdateSession(w, r, func(d *sessions.Data) {
			freshTokens(r, d)
			d.RegistrationStatus = status
			if info.NextStep != "" {
				d.NextStep = info.NextStep
			}
		})
		if err != nil {
			log.Err(err).Msg("failed to update session after profile completion")
			http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
			return
		}
		redirectSuccess(w, r, auth.NextRoute(d))
	}
}

// readDocuments collects the uploaded profile documents.
func readDocuments(r *http.Request) ([]apiclient.File, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	var files []apiclient.File
	for _, field := range documentFields {
		for _, fh := range r.MultipartForm.File[field] {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				return nil, err
			}
			files = append(files, apiclient.File{
				Field:       field,
				Name:        fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Data:        data,
			})
		}
	}
	return files, nil
}

// WaitingApprovalHandler polls the remote registration status and moves the
// session on once an administrator has decided.
func (s *Server) WaitingApprovalHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("pengelola_waiting_approval.html")

	return func(w http.ResponseWriter, r *http.Request) {
		current, _ := auth.SessionFrom(r.Context())
		data := s.page(r, "Menunggu Persetujuan")

		info, err := s.auth.RegistrationStatus(r.Context())
		if err != nil {
			if s.handleSessionExpiry(w, r, err) {
				return
			}
			log.Warn().Err(err).Msg("failed to load registration status")
			data["Error"] = userMessage(err)
			render(w, tmpl, http.StatusOK, data)
			return
		}

		if info.RegistrationStatus != "" && info.RegistrationStatus != current.RegistrationStatus {
			d, err := s.gate.UpdateSession(w, r, func(d *sessions.Data) {
				freshTokens(r, d)
				d.RegistrationStatus = info.RegistrationStatus
				if info.NextStep != "" {
					d.NextStep = info.NextStep
				}
			})
			if err != nil {
				log.Err(err).Msg("failed to update registration status")
				http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
				return
			}
			redirectSuccess(w, r, auth.NextRoute(d))
			return
		}

		data["Status"] = info
		render(w, tmpl, http.StatusOK, data)
	}
}

func (s *Server) CreatePINPageHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("pengelola_create_pin.html")

	return func(w http.ResponseWriter, r *http.Request) {
		render(w, tmpl, http.StatusOK, s.page(r, "Buat PIN"))
	}
}

// CreatePINSubmitHandler sets the PIN of an approved account.
func (s *Server) CreatePINSubmitHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("pengelola_create_pin.html")

	return func(w http.ResponseWriter, r *http.Request) {
		current, _ := auth.SessionFrom(r.Context())
		values := formValues(r, "pin", "confirm_pin")
		req := auth.PINCreation{PIN: values["pin"], ConfirmPIN: values["confirm_pin"]}

		var res auth.AuthResult
		err := s.validator.Struct(req)
		if err == nil {
			res, err = s.auth.CreatePIN(r.Context(), req)
		}
		if err != nil {
			s.formFailure(w, r, tmpl, s.page(r, "Buat PIN"), map[string]string{}, err)
			return
		}

		d := *current
		freshTokens(r, &d)
		d.Merge(res.SessionData())
		if res.RegistrationStatus == "" {
			d.RegistrationStatus = sessions.StatusComplete
		}
		s.startSession(w, r, d)
	}
}

func (s *Server) PengelolaDashboardHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("pengelola_dashboard.html")

	return func(w http.ResponseWriter, r *http.Request) {
		render(w, tmpl, http.StatusOK, s.page(r, "Dasbor Pengelola"))
	}
}
