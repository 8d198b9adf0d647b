package config

import "time"

const (
	StoreCookie = "cookie"
	StoreMemory = "memory"
	StoreRedis  = "redis"

	minSecretLength  = 32
	devSessionSecret = "dev-only-session-secret-change-me!!"
)

type SessionConfig interface {
	GetSessionSecret() string
	GetSessionCookieName() string
	GetSessionMaxAge() time.Duration
	GetSessionStore() string
	GetSecureCookies() bool
}

type Session struct {
	Secret     string        `yaml:"secret" env:"SESSION_SECRET"`
	CookieName string        `yaml:"cookie_name" env:"SESSION_COOKIE_NAME" env-default:"__session"`
	MaxAge     time.Duration `yaml:"max_age" env:"SESSION_MAX_AGE" env-default:"168h"`
	Store      string        `yaml:"store" env:"SESSION_STORE" env-default:"cookie"`
}

func (s Session) GetSessionSecret() string {
	return s.Secret
}

func (s Session) GetSessionCookieName() string {
	return s.CookieName
}

func (s Session) GetSessionMaxAge() time.Duration {
	return s.MaxAge
}

func (s Session) GetSessionStore() string {
	return s.Store
}

type RedisConfig interface {
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

var _ RedisConfig = Redis{}

func (r Redis) GetRedisAddr() string {
	return r.Addr
}

func (r Redis) GetRedisPassword() string {
	return r.Password
}

func (r Redis) GetRedisDB() int {
	return r.DB
}
