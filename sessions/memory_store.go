package sessions

import (
	"context"
	"time"

	"github.com/jrsteele09/go-waste-portal/internal/errors"
	"github.com/patrickmn/go-cache"
)

// NewMemoryStore creates a store that keeps sessions in process memory.
// Sessions are lost on restart and are not shared between instances.
func NewMemoryStore(codec *Codec, opts CookieOptions) Store {
	return &serverStore{
		codec:   codec,
		opts:    opts,
		backend: newMemoryBackend(opts.MaxAge),
	}
}

// memoryBackend is an in-memory session repository with expiry.
type memoryBackend struct {
	sessions *cache.Cache // sessionID -> Data
}

func newMemoryBackend(ttl time.Duration) *memoryBackend {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &memoryBackend{sessions: cache.New(ttl, 10*time.Minute)}
}

func (m *memoryBackend) get(_ context.Context, id string) (*Data, error) {
	if id == "" {
		return nil, errors.ErrSessionNotFound
	}
	v, ok := m.sessions.Get(id)
	if !ok {
		return nil, errors.ErrSessionNotFound
	}
	// Return a copy so callers cannot change the stored session.
	data := v.(Data)
	return &data, nil
}

func (m *memoryBackend) set(_ context.Context, id string, data *Data, ttl time.Duration) error {
	if id == "" {
		return errors.Wrapf(errors.ErrInvalidRequest, "sessionID is required")
	}
	if ttl <= 0 {
		ttl = cache.DefaultExpiration
	}
	m.sessions.Set(id, *data, ttl)
	return nil
}

func (m *memoryBackend) delete(_ context.Context, id string) error {
	m.sessions.Delete(id) // already missing is fine
	return nil
}
