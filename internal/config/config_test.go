package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-waste-portal/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	c, err := config.New()
	require.NoError(t, err)

	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, "DEV", c.GetEnv())
	require.False(t, c.IsProduction())
	require.False(t, c.GetSecureCookies())
	require.Equal(t, "__session", c.GetSessionCookieName())
	require.Equal(t, 7*24*time.Hour, c.GetSessionMaxAge())
	require.Equal(t, config.StoreCookie, c.GetSessionStore())
	require.Equal(t, 30*time.Second, c.GetAPITimeout())
	require.NotEmpty(t, c.GetSessionSecret())
}

func TestNew_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", ":7000")
	t.Setenv("API_BASE_URL", "https://abc.ngrok-free.app/api")
	t.Setenv("API_KEY", "key-1")
	t.Setenv("API_SHARED_TOKEN", "true")
	t.Setenv("SESSION_STORE", "redis")
	t.Setenv("REDIS_DB", "3")

	c, err := config.New()
	require.NoError(t, err)

	require.Equal(t, ":7000", c.GetPort())
	require.Equal(t, "https://abc.ngrok-free.app/api", c.GetAPIBaseURL())
	require.Equal(t, "key-1", c.GetAPIKey())
	require.True(t, c.GetSharedToken())
	require.Equal(t, config.StoreRedis, c.GetSessionStore())
	require.Equal(t, 3, c.GetRedisDB())
}

func TestNew_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("ENV", "production")

	_, err := config.New()
	require.Error(t, err)
	require.Contains(t, err.Error(), "SESSION_SECRET")

	t.Setenv("SESSION_SECRET", "0123456789abcdef0123456789abcdef")
	c, err := config.New()
	require.NoError(t, err)
	require.True(t, c.IsProduction())
	require.True(t, c.GetSecureCookies())
}

func TestNew_UnknownStore(t *testing.T) {
	t.Setenv("SESSION_STORE", "etcd")

	_, err := config.New()
	require.Error(t, err)
}

func TestLoad_File(t *testing.T) {
	c, err := config.Load("testdata/config.yaml")
	require.NoError(t, err)

	require.Equal(t, ":9090", c.GetPort())
	require.Equal(t, "Waste Portal Test", c.GetAppName())
	require.Equal(t, "STAGING", c.GetEnv())
	require.Equal(t, "https://api.example.test", c.GetAPIBaseURL())
	require.Equal(t, 5*time.Second, c.GetAPITimeout())
	require.Equal(t, "yaml-secret", c.GetSessionSecret())
	require.Equal(t, config.StoreMemory, c.GetSessionStore())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load("testdata/does-not-exist.yaml")
	require.Error(t, err)
}
