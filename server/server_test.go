package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-waste-portal/apiclient"
	"github.com/jrsteele09/go-waste-portal/internal/config"
	"github.com/jrsteele09/go-waste-portal/server"
	"github.com/jrsteele09/go-waste-portal/sessions"
	"github.com/jrsteele09/go-waste-portal/users"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	validPhone   = "6281234567890"
	staleAccess  = "access-1"
	freshAccess  = "access-2"
	refreshToken = "refresh-1"
)

// fakeRemote stands in for the remote REST API. Authenticated endpoints
// only accept the bearer token held in accepted.
type fakeRemote struct {
	mu           sync.Mutex
	accepted     string
	refreshFails bool
	calls        map[string]int
	decided      []string
	profile      url.Values
	documents    []string
}

func newFakeRemote(accepted string) *fakeRemote {
	return &fakeRemote{accepted: accepted, calls: map[string]int{}}
}

func (f *fakeRemote) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func writeEnvelope(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]any{"meta": map[string]any{"status": status, "message": message}}
	if data != nil {
		body["data"] = data
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (f *fakeRemote) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api")
	f.mu.Lock()
	f.calls[path]++
	f.mu.Unlock()

	switch path {
	case "/auth/request-otp":
		writeEnvelope(w, http.StatusOK, "OTP terkirim", nil)
		return
	case "/auth/verify-otp":
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["otp"] != "1234" {
			writeEnvelope(w, http.StatusUnauthorized, "Kode OTP salah", nil)
			return
		}
		writeEnvelope(w, http.StatusOK, "ok", map[string]any{
			"access_token":        "partial-1",
			"refresh_token":       refreshToken,
			"token_type":          "partial",
			"role":                "pengelola",
			"registration_status": "uncomplete",
		})
		return
	case "/auth/refresh-token":
		if f.refreshFails {
			writeEnvelope(w, http.StatusUnauthorized, "refresh token kedaluwarsa", nil)
			return
		}
		writeEnvelope(w, http.StatusOK, "ok", map[string]any{"access_token": freshAccess, "refresh_token": "refresh-2"})
		return
	}

	if r.Header.Get("Authorization") != "Bearer "+f.accepted {
		writeEnvelope(w, http.StatusUnauthorized, "token expired", nil)
		return
	}

	switch {
	case path == "/auth/logout":
		writeEnvelope(w, http.StatusOK, "ok", nil)
	case path == "/auth/verify-pin":
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["pin"] != "123456" {
			writeEnvelope(w, http.StatusUnauthorized, "PIN salah", nil)
			return
		}
		writeEnvelope(w, http.StatusOK, "ok", map[string]any{
			"access_token":  "full-1",
			"refresh_token": "refresh-3",
			"token_type":    "full",
			"role":          "pengelola",
		})
	case path == "/admin/users/pending":
		writeEnvelope(w, http.StatusOK, "ok", map[string]any{
			"users": map[string]any{"pengelola": []map[string]any{
				{"id": "u1", "role": "pengelola", "progress": 66, "profile": map[string]any{"company_name": "PT Bersih Jaya"}},
				{"id": "u2", "role": "pengelola", "progress": 66, "profile": map[string]any{"company_name": "CV Hijau"}},
			}},
			"total_pending": map[string]int{"pengelola": 5},
		})
	case strings.HasPrefix(path, "/admin/users/"):
		f.mu.Lock()
		f.decided = append(f.decided, strings.TrimPrefix(path, "/admin/users/"))
		f.mu.Unlock()
		writeEnvelope(w, http.StatusOK, "ok", nil)
	case path == "/pengelola/profile":
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			writeEnvelope(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		f.mu.Lock()
		f.profile = r.MultipartForm.Value
		for field := range r.MultipartForm.File {
			f.documents = append(f.documents, field)
		}
		f.mu.Unlock()
		writeEnvelope(w, http.StatusOK, "ok", map[string]any{"registration_status": "awaiting_approval", "progress": 66})
	default:
		writeEnvelope(w, http.StatusNotFound, "not found", nil)
	}
}

type fixture struct {
	srv    *server.Server
	remote *fakeRemote
	store  sessions.Store
	client *apiclient.Client
}

func setup(t *testing.T, remote *fakeRemote) *fixture {
	t.Helper()
	api := httptest.NewServer(remote)
	t.Cleanup(api.Close)

	client, err := apiclient.New(apiclient.Config{BaseURL: api.URL + "/api", Timeout: 5 * time.Second})
	require.NoError(t, err)

	cfg, err := config.New()
	require.NoError(t, err)

	codec, err := sessions.NewCodec(testSecret)
	require.NoError(t, err)
	store := sessions.NewCookieStore(codec, sessions.CookieOptions{MaxAge: time.Hour})

	srv, err := server.New(cfg, server.Deps{Client: client, Store: store})
	require.NoError(t, err)
	return &fixture{srv: srv, remote: remote, store: store, client: client}
}

// do serves r, first attaching a session cookie for d when d is not nil.
func (f *fixture) do(t *testing.T, r *http.Request, d *sessions.Data) *httptest.ResponseRecorder {
	t.Helper()
	if d != nil {
		rec := httptest.NewRecorder()
		require.NoError(t, f.store.Save(rec, r, d))
		for _, c := range rec.Result().Cookies() {
			r.AddCookie(c)
		}
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, r)
	return rec
}

// sessionOf loads the session set by a response.
func (f *fixture) sessionOf(t *testing.T, rec *httptest.ResponseRecorder) *sessions.Data {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessions.DefaultCookieName {
			require.Greater(t, c.MaxAge, 0, "session cookie was cleared")
			r.AddCookie(c)
		}
	}
	d, err := f.store.Load(r)
	require.NoError(t, err)
	return d
}

func sessionCleared(rec *httptest.ResponseRecorder) bool {
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessions.DefaultCookieName && c.MaxAge < 0 {
			return true
		}
	}
	return false
}

func postForm(path string, values url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func pengelola(status sessions.RegistrationStatus, tokenType sessions.TokenType) *sessions.Data {
	return &sessions.Data{
		AccessToken:        staleAccess,
		RefreshToken:       refreshToken,
		Role:               sessions.RolePengelola,
		Phone:              validPhone,
		TokenType:          tokenType,
		RegistrationStatus: status,
	}
}

func administrator(access string) *sessions.Data {
	return &sessions.Data{
		AccessToken:  access,
		RefreshToken: refreshToken,
		SessionID:    "adm-1",
		Role:         sessions.RoleAdministrator,
		Email:        "admin@example.com",
		TokenType:    sessions.TokenFull,
	}
}

func TestGatedPage_NoSessionRedirectsToRoot(t *testing.T) {
	f := setup(t, newFakeRemote(staleAccess))

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/pengelola/dashboard", nil), nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))
}

func TestGatedPage_HTMXRedirect(t *testing.T) {
	f := setup(t, newFakeRemote(staleAccess))

	r := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	r.Header.Set("HX-Request", "true")
	rec := f.do(t, r, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "/", rec.Header().Get("HX-Redirect"))
}

func TestGatedPage_OnboardingRedirects(t *testing.T) {
	f := setup(t, newFakeRemote(staleAccess))

	tests := []struct {
		name    string
		session *sessions.Data
		want    string
	}{
		{"uncomplete", pengelola(sessions.StatusUncomplete, sessions.TokenPartial), "/pengelola/complete-profile"},
		{"awaiting approval", pengelola(sessions.StatusAwaitingApproval, sessions.TokenPartial), "/pengelola/waiting-approval"},
		{"approved", pengelola(sessions.StatusApproved, sessions.TokenPartial), "/pengelola/create-pin"},
		{"partial token", pengelola(sessions.StatusComplete, sessions.TokenPartial), "/pengelola/pin"},
		{"wrong role", administrator(staleAccess), "/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, httptest.NewRequest(http.MethodGet, "/pengelola/dashboard", nil), tt.session)
			require.Equal(t, http.StatusSeeOther, rec.Code)
			require.Equal(t, tt.want, rec.Header().Get("Location"))
		})
	}

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/pengelola/dashboard", nil), pengelola(sessions.StatusComplete, sessions.TokenFull))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), validPhone)
}

func TestSignIn_InvalidPhoneRendersInline(t *testing.T) {
	f := setup(t, newFakeRemote(staleAccess))

	rec := f.do(t, postForm("/pengelola/sign-in", url.Values{"phone": {"081234567890"}}), nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "Nomor telepon harus diawali 62")
	require.Contains(t, rec.Body.String(), "081234567890")
	require.Zero(t, f.remote.count("/auth/request-otp"))
}

func TestSignIn_RequestsOTP(t *testing.T) {
	f := setup(t, newFakeRemote(staleAccess))

	rec := f.do(t, postForm("/pengelola/sign-in", url.Values{"phone": {validPhone}}), nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/pengelola/verify-otp?phone="+validPhone, rec.Header().Get("Location"))
	require.Equal(t, 1, f.remote.count("/auth/request-otp"))
}

func TestVerifyOTP_CreatesSession(t *testing.T) {
	f := setup(t, newFakeRemote(staleAccess))

	rec := f.do(t, postForm("/pengelola/verify-otp", url.Values{"phone": {validPhone}, "otp": {"1234"}}), nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/pengelola/complete-profile", rec.Header().Get("Location"))

	d := f.sessionOf(t, rec)
	require.Equal(t, "partial-1", d.AccessToken)
	require.Equal(t, sessions.RolePengelola, d.Role)
	require.Equal(t, sessions.TokenPartial, d.TokenType)
	require.Equal(t, validPhone, d.Phone)
	require.NotEmpty(t, d.DeviceID)
}

func TestVerifyOTP_WrongCodeShownInline(t *testing.T) {
	f := setup(t, newFakeRemote(staleAccess))

	rec := f.do(t, postForm("/pengelola/verify-otp", url.Values{"phone": {validPhone}, "otp": {"9999"}}), nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "Kode OTP salah")
	require.Zero(t, f.remote.count("/auth/refresh-token"))
}

func TestCompleteProfile_UploadsAndAdvances(t *testing.T) {
	f := setup(t, newFakeRemote(staleAccess))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range map[string]string{
		"company_name":    "PT Bersih Jaya",
		"company_address": "Jl. Merdeka 1, Bandung",
		"pic_name":        "Budi",
		"pic_phone":       validPhone,
	} {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("ktp_document", "ktp.jpg")
	require.NoError(t, err)
	_, err = io.WriteString(fw, "jpeg-bytes")
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/pengelola/complete-profile", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	rec := f.do(t, r, pengelola(sessions.StatusUncomplete, sessions.TokenPartial))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/pengelola/waiting-approval", rec.Header().Get("Location"))
	require.Equal(t, sessions.StatusAwaitingApproval, f.sessionOf(t, rec).RegistrationStatus)
	require.Equal(t, "PT Bersih Jaya", f.remote.profile.Get("company_name"))
	require.Equal(t, []string{"ktp_document"}, f.remote.documents)
}

func TestCompleteProfile_ValidationErrors(t *testing.T) {
	f := setup(t, newFakeRemote(staleAccess))

	r := postForm("/pengelola/complete-profile", url.Values{"company_name": {"PT"}, "pic_phone": {"0812"}})
	rec := f.do(t, r, pengelola(sessions.StatusUncomplete, sessions.TokenPartial))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "Minimal 3 karakter")
	require.Contains(t, rec.Body.String(), "Wajib diisi")
	require.Zero(t, f.remote.count("/pengelola/profile"))
}

func TestAdminApprovals_RefreshPersistsRotatedTokens(t *testing.T) {
	f := setup(t, newFakeRemote(freshAccess))

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/admin/approvals", nil), administrator(staleAccess))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "PT Bersih Jaya")
	require.Equal(t, 1, f.remote.count("/auth/refresh-token"))

	d := f.sessionOf(t, rec)
	require.Equal(t, freshAccess, d.AccessToken)
	require.Equal(t, "refresh-2", d.RefreshToken)
	require.Equal(t, sessions.RoleAdministrator, d.Role)
}

func TestSessionMiddleware_PersistsRefreshWithoutBody(t *testing.T) {
	f := setup(t, newFakeRemote(freshAccess))

	handler := f.srv.SessionMiddleware(func(w http.ResponseWriter, r *http.Request) {
		_, err := users.NewRemoteRepo(f.client).ListPending(r.Context())
		require.NoError(t, err)
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	cookieRec := httptest.NewRecorder()
	require.NoError(t, f.store.Save(cookieRec, r, administrator(staleAccess)))
	for _, c := range cookieRec.Result().Cookies() {
		r.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	handler(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, f.remote.count("/auth/refresh-token"))

	d := f.sessionOf(t, rec)
	require.Equal(t, freshAccess, d.AccessToken)
	require.Equal(t, "refresh-2", d.RefreshToken)
}

func TestAdminApprovals_RefreshFailureSignsOut(t *testing.T) {
	remote := newFakeRemote(freshAccess)
	remote.refreshFails = true
	f := setup(t, remote)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/admin/approvals", nil), administrator(staleAccess))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/admin/login?error="))
	require.True(t, sessionCleared(rec))
}

func TestPengelolaRefreshFailureSignsOutToSignIn(t *testing.T) {
	remote := newFakeRemote(freshAccess)
	remote.refreshFails = true
	f := setup(t, remote)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/pengelola/waiting-approval", nil), pengelola(sessions.StatusAwaitingApproval, sessions.TokenPartial))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/pengelola/sign-in?error="))
	require.True(t, sessionCleared(rec))
}

func TestPINSubmit_WrongPINKeepsRefreshedSession(t *testing.T) {
	f := setup(t, newFakeRemote(freshAccess))

	rec := f.do(t, postForm("/pengelola/pin", url.Values{"pin": {"000000"}}), pengelola(sessions.StatusComplete, sessions.TokenPartial))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "PIN salah")
	require.False(t, sessionCleared(rec))
	require.Equal(t, 1, f.remote.count("/auth/refresh-token"))

	d := f.sessionOf(t, rec)
	require.Equal(t, freshAccess, d.AccessToken)
	require.Equal(t, "refresh-2", d.RefreshToken)
	require.Equal(t, sessions.TokenPartial, d.TokenType)
}

func TestPINSubmit_UpgradesToFullToken(t *testing.T) {
	f := setup(t, newFakeRemote(staleAccess))

	rec := f.do(t, postForm("/pengelola/pin", url.Values{"pin": {"123456"}}), pengelola(sessions.StatusComplete, sessions.TokenPartial))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/pengelola/dashboard", rec.Header().Get("Location"))

	d := f.sessionOf(t, rec)
	require.Equal(t, "full-1", d.AccessToken)
	require.Equal(t, sessions.TokenFull, d.TokenType)
}

func TestAdminDecision_OptimisticCount(t *testing.T) {
	f := setup(t, newFakeRemote(staleAccess))
	admin := administrator(staleAccess)

	rec := f.do(t, postForm("/admin/approvals/u1/approve", url.Values{}), admin)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/admin/approvals?message="))
	require.Equal(t, []string{"u1/approve"}, f.remote.decided)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil), admin)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `<span class="stat-value">4</span>`)
}

func TestAdminDecision_UnknownAction(t *testing.T) {
	f := setup(t, newFakeRemote(staleAccess))

	rec := f.do(t, postForm("/admin/approvals/u1/delete", url.Values{}), administrator(staleAccess))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Empty(t, f.remote.decided)
}

func TestLogout_DestroysSession(t *testing.T) {
	f := setup(t, newFakeRemote(staleAccess))

	rec := f.do(t, postForm("/auth/logout", url.Values{}), pengelola(sessions.StatusComplete, sessions.TokenFull))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))
	require.True(t, sessionCleared(rec))
	require.Equal(t, 1, f.remote.count("/auth/logout"))
}

func TestHealthAndMetrics(t *testing.T) {
	f := setup(t, newFakeRemote(staleAccess))

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok","app":"Waste Portal"}`, rec.Body.String())

	f.do(t, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `waste_portal_http_requests_total{route="GET /{$}",status="200"} 1`)
}

func TestStaticAssets(t *testing.T) {
	f := setup(t, newFakeRemote(staleAccess))

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/css/app.css", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/css")

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/css/missing.css", nil), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecoverMiddleware(t *testing.T) {
	f := setup(t, newFakeRemote(staleAccess))

	h := f.srv.RecoverMiddleware(func(http.ResponseWriter, *http.Request) { panic("boom") })
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
