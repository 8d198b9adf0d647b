package sessions

import (
	"fmt"

	"github.com/jrsteele09/go-waste-portal/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewStore builds the store selected by cfg. rdb is only used, and then
// required, for the redis store.
func NewStore(cfg config.SessionConfig, rdb redis.UniversalClient) (Store, error) {
	codec, err := NewCodec(cfg.GetSessionSecret())
	if err != nil {
		return nil, err
	}
	opts := CookieOptions{
		Name:   cfg.GetSessionCookieName(),
		MaxAge: cfg.GetSessionMaxAge(),
		Secure: cfg.GetSecureCookies(),
	}

	switch cfg.GetSessionStore() {
	case config.StoreCookie, "":
		return NewCookieStore(codec, opts), nil
	case config.StoreMemory:
		return NewMemoryStore(codec, opts), nil
	case config.StoreRedis:
		if rdb == nil {
			return nil, fmt.Errorf("[sessions NewStore] redis store selected without a redis client")
		}
		return NewRedisStore(rdb, codec, opts), nil
	default:
		return nil, fmt.Errorf("[sessions NewStore] unknown store %q", cfg.GetSessionStore())
	}
}
