package apiclient_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-waste-portal/apiclient"
	"github.com/jrsteele09/go-waste-portal/internal/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const (
	staleAccess  = "access-old"
	freshAccess  = "access-new"
	testRefresh  = "refresh-1"
	testAPIKey   = "key-123"
	profilePath  = "/profile"
	okBody       = `{"meta":{"status":200,"message":"ok"},"data":{"name":"Budi"}}`
	unauthorized = `{"meta":{"status":401,"message":"token expired"}}`
)

// fakeAPI accepts freshAccess only and counts refresh calls.
type fakeAPI struct {
	refreshCalls  atomic.Int32
	refreshDelay  time.Duration
	refreshStatus int
	rejectAll     bool

	mu        sync.Mutex
	authSeen  []string
	lastKey    string
	lastCType  string
	lastMethod string
	lastBody   []byte
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	body, _ := io.ReadAll(r.Body)

	if r.URL.Path == apiclient.RefreshPath {
		f.refreshCalls.Add(1)
		time.Sleep(f.refreshDelay)
		if f.refreshStatus != 0 {
			w.WriteHeader(f.refreshStatus)
			_, _ = w.Write([]byte(`{"meta":{"status":400,"message":"invalid refresh token"}}`))
			return
		}
		var in map[string]string
		_ = json.Unmarshal(body, &in)
		if in["refresh_token"] != testRefresh {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(unauthorized))
			return
		}
		_, _ = w.Write([]byte(`{"meta":{"status":200,"message":"ok"},"data":{"access_token":"` + freshAccess + `","refresh_token":"refresh-2"}}`))
		return
	}

	f.mu.Lock()
	f.authSeen = append(f.authSeen, r.Header.Get("Authorization"))
	f.lastKey = r.Header.Get(apiclient.APIKeyHeader)
	f.lastCType = r.Header.Get("Content-Type")
	f.lastMethod = r.Method
	f.lastBody = body
	f.mu.Unlock()

	switch {
	case r.URL.Path == "/forbidden":
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"meta":{"status":403,"message":"akses ditolak"}}`))
	case r.URL.Path == "/invalid":
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"meta":{"status":422,"message":"nomor tidak valid"}}`))
	case f.rejectAll || r.Header.Get("Authorization") != "Bearer "+freshAccess:
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(unauthorized))
	default:
		_, _ = w.Write([]byte(okBody))
	}
}

func (f *fakeAPI) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.authSeen...)
}

func newTestClient(t *testing.T, api *fakeAPI, opts ...apiclient.Option) *apiclient.Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	c, err := apiclient.New(apiclient.Config{BaseURL: srv.URL, APIKey: testAPIKey, Timeout: 5 * time.Second}, opts...)
	require.NoError(t, err)
	return c
}

func registerDefaultHandlers(t *testing.T, c *apiclient.Client) (*atomic.Int32, *atomic.Int32) {
	t.Helper()
	var successes, failures atomic.Int32
	require.NoError(t, c.RegisterRefreshHandlers(apiclient.RefreshHandlers{
		RefreshToken: func(ctx context.Context) (string, error) {
			if creds, ok := apiclient.CredentialsFrom(ctx); ok {
				return creds.RefreshToken(), nil
			}
			return c.DefaultCredentials().RefreshToken(), nil
		},
		OnSuccess: func(context.Context, apiclient.RefreshPayload) { successes.Add(1) },
		OnError:   func(context.Context, error) { failures.Add(1) },
	}))
	return &successes, &failures
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := apiclient.New(apiclient.Config{})
	require.Error(t, err)
}

func TestDo_NoAuthorizationHeaderUntilTokenSet(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)

	_, err := c.Get(context.Background(), profilePath, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, apiclient.StatusCode(err))

	c.SetToken(freshAccess)
	resp, err := c.Get(context.Background(), profilePath, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = c.Get(context.Background(), profilePath, nil)
	require.NoError(t, err)

	require.Equal(t, []string{"", "Bearer " + freshAccess, "Bearer " + freshAccess}, api.seen())
	require.Equal(t, testAPIKey, api.lastKey)
}

func TestDo_ClearTokenRemovesHeader(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)

	c.SetToken(freshAccess)
	_, err := c.Get(context.Background(), profilePath, nil)
	require.NoError(t, err)

	c.ClearToken()
	_, err = c.Get(context.Background(), profilePath, nil)
	require.ErrorIs(t, err, errors.ErrUnauthorized)
	require.Equal(t, "", api.seen()[1])
}

func TestDo_UnauthorizedWithoutHandlersPassesThrough(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)
	c.SetTokens(staleAccess, testRefresh)

	_, err := c.Get(context.Background(), profilePath, nil)
	require.ErrorIs(t, err, errors.ErrUnauthorized)
	require.Equal(t, "token expired", apiclient.ErrorMessage(err, "fallback"))
	require.Zero(t, api.refreshCalls.Load())
}

func TestDo_UnauthorizedWithoutTokenSkipsRefresh(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)
	_, failures := registerDefaultHandlers(t, c)

	_, err := c.Post(context.Background(), "/auth/verify-otp", map[string]string{"otp": "0000"})
	require.ErrorIs(t, err, errors.ErrUnauthorized)
	require.NotErrorIs(t, err, errors.ErrRefreshFailed)
	require.Zero(t, api.refreshCalls.Load())
	require.Zero(t, failures.Load())
}

func TestDo_RefreshesOnceAndReplays(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)
	c.SetTokens(staleAccess, testRefresh)
	successes, failures := registerDefaultHandlers(t, c)

	resp, err := c.Get(context.Background(), profilePath, nil)
	require.NoError(t, err)

	type profile struct {
		Name string `json:"name"`
	}
	p, err := apiclient.DecodeData[profile](resp)
	require.NoError(t, err)
	require.Equal(t, "Budi", p.Name)

	require.EqualValues(t, 1, api.refreshCalls.Load())
	require.EqualValues(t, 1, successes.Load())
	require.Zero(t, failures.Load())
	require.Equal(t, []string{"Bearer " + staleAccess, "Bearer " + freshAccess}, api.seen())
	require.Equal(t, freshAccess, c.DefaultCredentials().AccessToken())
	require.Equal(t, "refresh-2", c.DefaultCredentials().RefreshToken())
}

func TestDo_UnauthorizedOnReplayIsFinal(t *testing.T) {
	api := &fakeAPI{rejectAll: true}
	c := newTestClient(t, api)
	c.SetTokens(staleAccess, testRefresh)
	registerDefaultHandlers(t, c)

	_, err := c.Get(context.Background(), profilePath, nil)
	require.ErrorIs(t, err, errors.ErrUnauthorized)
	require.EqualValues(t, 1, api.refreshCalls.Load())
	require.Len(t, api.seen(), 2)
}

func TestDo_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	api := &fakeAPI{refreshDelay: 100 * time.Millisecond}
	c := newTestClient(t, api)
	c.SetTokens(staleAccess, testRefresh)
	registerDefaultHandlers(t, c)

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Get(context.Background(), profilePath, nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, api.refreshCalls.Load())

	replays := 0
	for _, h := range api.seen() {
		if h == "Bearer "+freshAccess {
			replays++
		}
	}
	require.Equal(t, n, replays)
}

func TestDo_ConcurrentContextCredentialsShareOneRefresh(t *testing.T) {
	api := &fakeAPI{refreshDelay: 50 * time.Millisecond}
	c := newTestClient(t, api)
	registerDefaultHandlers(t, c)

	const n = 5
	holders := make([]*apiclient.Credentials, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		holders[i] = apiclient.NewCredentials(staleAccess, testRefresh)
		wg.Add(1)
		go func(creds *apiclient.Credentials) {
			defer wg.Done()
			_, err := c.Get(apiclient.WithCredentials(context.Background(), creds), profilePath, nil)
			require.NoError(t, err)
		}(holders[i])
	}
	wg.Wait()

	require.EqualValues(t, 1, api.refreshCalls.Load())
	for _, creds := range holders {
		require.Equal(t, freshAccess, creds.AccessToken())
		require.True(t, creds.Rotated())
	}
	require.Empty(t, c.DefaultCredentials().AccessToken())
}

func TestDo_RevokedTokenAfterRefreshRefreshesAgain(t *testing.T) {
	var refreshes atomic.Int32
	var accepted atomic.Value
	accepted.Store("")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == apiclient.RefreshPath {
			// The refresh token is never rotated.
			tok := "access-" + strconv.Itoa(int(refreshes.Add(1)))
			accepted.Store(tok)
			_, _ = w.Write([]byte(`{"meta":{"status":200,"message":"ok"},"data":{"access_token":"` + tok + `"}}`))
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+accepted.Load().(string) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(unauthorized))
			return
		}
		_, _ = w.Write([]byte(okBody))
	}))
	t.Cleanup(srv.Close)

	c, err := apiclient.New(apiclient.Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	c.SetTokens(staleAccess, testRefresh)
	registerDefaultHandlers(t, c)

	_, err = c.Get(context.Background(), profilePath, nil)
	require.NoError(t, err)
	require.Equal(t, "access-1", c.DefaultCredentials().AccessToken())

	accepted.Store("revoked")
	_, err = c.Get(context.Background(), profilePath, nil)
	require.NoError(t, err)
	require.EqualValues(t, 2, refreshes.Load())
	require.Equal(t, "access-2", c.DefaultCredentials().AccessToken())
	require.Equal(t, testRefresh, c.DefaultCredentials().RefreshToken())
}

func TestDo_RefreshFailureCallsOnError(t *testing.T) {
	api := &fakeAPI{refreshStatus: http.StatusBadRequest}
	c := newTestClient(t, api)
	c.SetTokens(staleAccess, testRefresh)
	successes, failures := registerDefaultHandlers(t, c)

	_, err := c.Get(context.Background(), profilePath, nil)
	require.ErrorIs(t, err, errors.ErrRefreshFailed)
	require.EqualValues(t, 1, failures.Load())
	require.Zero(t, successes.Load())
	require.Len(t, api.seen(), 1)
}

func TestDo_MissingRefreshTokenIsFatal(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)
	c.SetToken(staleAccess)
	_, failures := registerDefaultHandlers(t, c)

	_, err := c.Get(context.Background(), profilePath, nil)
	require.ErrorIs(t, err, errors.ErrRefreshFailed)
	require.ErrorIs(t, err, errors.ErrNoRefreshToken)
	require.Zero(t, api.refreshCalls.Load())
	require.EqualValues(t, 1, failures.Load())
}

func TestDo_BusinessErrorsPassThrough(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)
	c.SetTokens(freshAccess, testRefresh)
	registerDefaultHandlers(t, c)

	_, err := c.Post(context.Background(), "/forbidden", map[string]string{"a": "b"})
	require.Equal(t, http.StatusForbidden, apiclient.StatusCode(err))
	require.NotErrorIs(t, err, errors.ErrUnauthorized)
	require.Equal(t, "akses ditolak", apiclient.ErrorMessage(err, ""))

	_, err = c.Post(context.Background(), "/invalid", nil)
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	require.Equal(t, "nomor tidak valid", apiErr.Message())
	require.Zero(t, api.refreshCalls.Load())
}

func TestDo_ContextCredentialsOverrideDefault(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)
	c.SetToken(staleAccess)

	ctx := apiclient.WithCredentials(context.Background(), apiclient.NewCredentials(freshAccess, ""))
	_, err := c.Get(ctx, profilePath, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"Bearer " + freshAccess}, api.seen())
}

func TestDo_JSONBody(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)
	c.SetToken(freshAccess)

	_, err := c.Post(context.Background(), profilePath, map[string]string{"phone": "6281234567890"})
	require.NoError(t, err)
	require.Equal(t, "application/json", api.lastCType)
	require.JSONEq(t, `{"phone":"6281234567890"}`, string(api.lastBody))
}

func TestDo_VerbHelpers(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)
	c.SetToken(freshAccess)
	ctx := context.Background()

	_, err := c.Put(ctx, profilePath, map[string]string{"name": "Budi"})
	require.NoError(t, err)
	require.Equal(t, http.MethodPut, api.lastMethod)
	require.JSONEq(t, `{"name":"Budi"}`, string(api.lastBody))

	_, err = c.Patch(ctx, profilePath, map[string]string{"name": "Siti"})
	require.NoError(t, err)
	require.Equal(t, http.MethodPatch, api.lastMethod)
	require.JSONEq(t, `{"name":"Siti"}`, string(api.lastBody))

	_, err = c.Delete(ctx, profilePath)
	require.NoError(t, err)
	require.Equal(t, http.MethodDelete, api.lastMethod)
	require.Empty(t, api.lastBody)
	require.Empty(t, api.lastCType)
}

func TestDo_MultipartBody(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)
	c.SetToken(freshAccess)

	_, err := c.PostMultipart(context.Background(), profilePath, &apiclient.Multipart{
		Fields: map[string]string{"company_name": "PT Bersih"},
		Files:  []apiclient.File{{Field: "ktp", Name: "ktp.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}},
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(api.lastCType, "multipart/form-data; boundary="))
	require.Contains(t, string(api.lastBody), "PT Bersih")
	require.Contains(t, string(api.lastBody), `filename="ktp.pdf"`)
}

func TestDo_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := apiclient.NewMetrics(reg)
	api := &fakeAPI{}
	c := newTestClient(t, api, apiclient.WithMetrics(metrics))
	c.SetTokens(staleAccess, testRefresh)
	registerDefaultHandlers(t, c)

	_, err := c.Get(context.Background(), profilePath, nil)
	require.NoError(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodGet, "401")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodGet, "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodPost, "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Refreshes.WithLabelValues("success")))
}

func TestDo_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	api := &fakeAPI{}
	c := newTestClient(t, api, apiclient.WithTracerProvider(tp))
	c.SetToken(freshAccess)

	_, err := c.Get(context.Background(), profilePath, nil)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "apiclient.GET "+profilePath, spans[0].Name())
}

func TestRegisterRefreshHandlers_RequiresAccessor(t *testing.T) {
	c := newTestClient(t, &fakeAPI{})
	require.Error(t, c.RegisterRefreshHandlers(apiclient.RefreshHandlers{}))
}

func TestDecodeData_MissingData(t *testing.T) {
	v, err := apiclient.DecodeData[map[string]string](&apiclient.Response{})
	require.NoError(t, err)
	require.Nil(t, v)
}
