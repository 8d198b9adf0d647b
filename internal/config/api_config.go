package config

import "time"

type APIConfig interface {
	GetAPIBaseURL() string
	GetAPIKey() string
	GetAPITimeout() time.Duration
	GetSharedToken() bool
}

// API configures the remote REST API the portal fronts.
type API struct {
	BaseURL string        `yaml:"base_url" env:"API_BASE_URL" env-default:"http://localhost:3000/api"`
	Key     string        `yaml:"key" env:"API_KEY"`
	Timeout time.Duration `yaml:"timeout" env:"API_TIMEOUT" env-default:"30s"`
	// SharedToken mirrors the bearer token into the client's process-wide
	// default. Only safe when the process serves a single credential set.
	SharedToken bool `yaml:"shared_token" env:"API_SHARED_TOKEN" env-default:"false"`
}

var _ APIConfig = API{}

func (a API) GetAPIBaseURL() string {
	return a.BaseURL
}

func (a API) GetAPIKey() string {
	return a.Key
}

func (a API) GetAPITimeout() time.Duration {
	if a.Timeout <= 0 {
		return 30 * time.Second
	}
	return a.Timeout
}

func (a API) GetSharedToken() bool {
	return a.SharedToken
}
