package sessions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jrsteele09/go-waste-portal/internal/errors"
	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix namespaces session keys.
const RedisKeyPrefix = "waste_portal:session:"

// NewRedisStore creates a store that keeps sessions in redis, shared by every
// portal instance.
func NewRedisStore(client redis.UniversalClient, codec *Codec, opts CookieOptions) Store {
	return &serverStore{
		codec:   codec,
		opts:    opts,
		backend: &redisBackend{client: client},
	}
}

type redisBackend struct {
	client redis.UniversalClient
}

func (b *redisBackend) key(id string) string {
	return RedisKeyPrefix + id
}

func (b *redisBackend) get(ctx context.Context, id string) (*Data, error) {
	val, err := b.client.Get(ctx, b.key(id)).Bytes()
	if err == redis.Nil {
		return nil, errors.ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "[redis session get] %s", id)
	}
	var data Data
	if err := json.Unmarshal(val, &data); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidSession, "decoding stored session")
	}
	return &data, nil
}

func (b *redisBackend) set(ctx context.Context, id string, data *Data, ttl time.Duration) error {
	val, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	return b.client.Set(ctx, b.key(id), val, ttl).Err()
}

func (b *redisBackend) delete(ctx context.Context, id string) error {
	return b.client.Del(ctx, b.key(id)).Err()
}
