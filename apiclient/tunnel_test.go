package apiclient

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNeedsTunnelBypass(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"https://abcd-1234.ngrok-free.app/api", true},
		{"https://abcd.ngrok.io", true},
		{"https://abcd.ngrok.app", true},
		{"https://abcd.ngrok-free.dev", true},
		{"https://ABCD.NGROK.IO", true},
		{"http://localhost:3000/api", false},
		{"https://api.example.com", false},
		{"https://ngrok.io.example.com", false},
		{"https://notngrok.io", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, err := url.Parse(tt.raw)
			require.NoError(t, err)
			require.Equal(t, tt.want, needsTunnelBypass(u))
		})
	}
}

func TestDecorate_AddsTunnelHeader(t *testing.T) {
	c, err := New(Config{BaseURL: "https://abcd.ngrok-free.app/api"})
	require.NoError(t, err)
	require.True(t, c.bypassTunnel)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	c.decorate(r, nil, "")
	require.Equal(t, "true", r.Header.Get(TunnelBypassHeader))
	require.Empty(t, r.Header.Get("Authorization"))
	require.Empty(t, r.Header.Get(APIKeyHeader))
}

func TestResolve_JoinsBasePath(t *testing.T) {
	c, err := New(Config{BaseURL: "http://localhost:3000/api/"})
	require.NoError(t, err)
	require.Equal(t, "http://localhost:3000/api/auth/refresh-token", c.resolve(RefreshPath, nil))
	require.Equal(t, "http://localhost:3000/api/admin/users/pending?page=2", c.resolve("admin/users/pending", url.Values{"page": {"2"}}))
}
