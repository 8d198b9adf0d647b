package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	envDevelopment = "DEV"
	envProduction  = "PRODUCTION"
)

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	RedisConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	IsProduction() bool
}

type mainConfig struct {
	EnvVars `yaml:"app"`
	API     `yaml:"api"`
	Session `yaml:"session"`
	Redis   `yaml:"redis"`
}

// New reads the configuration from the environment only.
func New() (Config, error) {
	var c mainConfig
	if err := cleanenv.ReadEnv(&c); err != nil {
		return nil, fmt.Errorf("[config New] failed to read environment: %w", err)
	}
	return finalise(&c)
}

// Load reads the YAML file at path and applies environment overrides on top.
// An empty path falls back to New.
func Load(path string) (Config, error) {
	if path == "" {
		return New()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("[config Load] config file %s: %w", path, err)
	}

	var c mainConfig
	if err := cleanenv.ReadConfig(path, &c); err != nil {
		return nil, fmt.Errorf("[config Load] failed to read %s: %w", path, err)
	}
	return finalise(&c)
}

func finalise(c *mainConfig) (Config, error) {
	c.EnvVars.Env = strings.ToUpper(strings.TrimSpace(c.EnvVars.Env))
	if c.EnvVars.Env == "" {
		c.EnvVars.Env = envDevelopment
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	if c.Session.Secret == "" {
		c.Session.Secret = devSessionSecret
	}
	return *c, nil
}

func (c mainConfig) validate() error {
	if c.IsProduction() && len(c.Session.Secret) < minSecretLength {
		return fmt.Errorf("[config] SESSION_SECRET must be at least %d characters in production", minSecretLength)
	}
	switch c.Session.Store {
	case StoreCookie, StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("[config] unknown SESSION_STORE %q", c.Session.Store)
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("[config] API_BASE_URL is required")
	}
	return nil
}

// GetSecureCookies reports whether cookies carry the Secure flag.
func (c mainConfig) GetSecureCookies() bool {
	return c.IsProduction()
}
