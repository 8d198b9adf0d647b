package sessions

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-waste-portal/internal/errors"
)

// DefaultCookieName is used when CookieOptions.Name is empty.
const DefaultCookieName = "__session"

// Store persists session data across requests.
type Store interface {
	// Load returns the session carried by r, or ErrSessionNotFound.
	Load(r *http.Request) (*Data, error)
	// Save writes data and sets the session cookie on w.
	Save(w http.ResponseWriter, r *http.Request, data *Data) error
	// Create saves data under a new session id, dropping any session the
	// request carried.
	Create(w http.ResponseWriter, r *http.Request, data *Data) error
	// Destroy removes the session and expires the cookie.
	Destroy(w http.ResponseWriter, r *http.Request) error
}

// CookieOptions are the attributes of the session cookie.
type CookieOptions struct {
	Name   string
	MaxAge time.Duration
	Secure bool
}

func (o CookieOptions) name() string {
	if o.Name == "" {
		return DefaultCookieName
	}
	return o.Name
}

func (o CookieOptions) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     o.name(),
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}

func (o CookieOptions) set(w http.ResponseWriter, value string) {
	http.SetCookie(w, o.cookie(value, int(o.MaxAge.Seconds())))
}

func (o CookieOptions) clear(w http.ResponseWriter) {
	http.SetCookie(w, o.cookie("", -1))
}

// CookieStore keeps the whole session sealed inside the cookie.
type CookieStore struct {
	codec *Codec
	opts  CookieOptions
}

// NewCookieStore creates a store that needs no server-side state.
func NewCookieStore(codec *Codec, opts CookieOptions) *CookieStore {
	return &CookieStore{codec: codec, opts: opts}
}

func (s *CookieStore) Load(r *http.Request) (*Data, error) {
	c, err := r.Cookie(s.opts.name())
	if err != nil || c.Value == "" {
		return nil, errors.ErrSessionNotFound
	}
	plaintext, err := s.codec.Open(s.opts.name(), c.Value)
	if err != nil {
		return nil, err
	}
	var data Data
	if err := json.Unmarshal(plaintext, &data); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidSession, "decoding session")
	}
	return &data, nil
}

func (s *CookieStore) Save(w http.ResponseWriter, _ *http.Request, data *Data) error {
	b, err := json.Marshal(data)
	if err != nil {
		return errors.Wrapf(err, "[CookieStore Save] encoding session")
	}
	value, err := s.codec.Seal(s.opts.name(), b)
	if err != nil {
		return errors.Wrapf(err, "[CookieStore Save] sealing session")
	}
	s.opts.set(w, value)
	return nil
}

func (s *CookieStore) Create(w http.ResponseWriter, r *http.Request, data *Data) error {
	return s.Save(w, r, data)
}

func (s *CookieStore) Destroy(w http.ResponseWriter, _ *http.Request) error {
	s.opts.clear(w)
	return nil
}

// backend is server-side session storage addressed by an opaque id.
type backend interface {
	get(ctx context.Context, id string) (*Data, error)
	set(ctx context.Context, id string, data *Data, ttl time.Duration) error
	delete(ctx context.Context, id string) error
}

// serverStore keeps session data in a backend. The cookie carries only the
// sealed session id.
type serverStore struct {
	codec   *Codec
	opts    CookieOptions
	backend backend
}

func (s *serverStore) sessionID(r *http.Request) (string, error) {
	c, err := r.Cookie(s.opts.name())
	if err != nil || c.Value == "" {
		return "", errors.ErrSessionNotFound
	}
	id, err := s.codec.Open(s.opts.name(), c.Value)
	if err != nil {
		return "", err
	}
	return string(id), nil
}

func (s *serverStore) Load(r *http.Request) (*Data, error) {
	id, err := s.sessionID(r)
	if err != nil {
		return nil, err
	}
	return s.backend.get(r.Context(), id)
}

func (s *serverStore) Save(w http.ResponseWriter, r *http.Request, data *Data) error {
	id, err := s.sessionID(r)
	if err != nil {
		id = uuid.NewString()
	}
	return s.save(r.Context(), w, id, data)
}

func (s *serverStore) Create(w http.ResponseWriter, r *http.Request, data *Data) error {
	if old, err := s.sessionID(r); err == nil {
		if err := s.backend.delete(r.Context(), old); err != nil {
			return errors.Wrapf(err, "[sessions Create] dropping previous session")
		}
	}
	return s.save(r.Context(), w, uuid.NewString(), data)
}

func (s *serverStore) save(ctx context.Context, w http.ResponseWriter, id string, data *Data) error {
	if err := s.backend.set(ctx, id, data, s.opts.MaxAge); err != nil {
		return errors.Wrapf(err, "[sessions Save] storing session")
	}
	value, err := s.codec.Seal(s.opts.name(), []byte(id))
	if err != nil {
		return errors.Wrapf(err, "[sessions Save] sealing session id")
	}
	s.opts.set(w, value)
	return nil
}

func (s *serverStore) Destroy(w http.ResponseWriter, r *http.Request) error {
	s.opts.clear(w)
	id, err := s.sessionID(r)
	if err != nil {
		return nil
	}
	return s.backend.delete(r.Context(), id)
}
