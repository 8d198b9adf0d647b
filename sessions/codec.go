package sessions

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/jrsteele09/go-waste-portal/internal/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const codecInfo = "waste-portal session cookie v1"

// Codec seals cookie values with XChaCha20-Poly1305. Sealed values are
// confidential and any modification is detected on Open.
type Codec struct {
	key []byte
}

// NewCodec derives the cookie key from secret with HKDF-SHA256.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("[sessions NewCodec] secret is required")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(codecInfo)), key); err != nil {
		return nil, fmt.Errorf("[sessions NewCodec] deriving key: %w", err)
	}
	return &Codec{key: key}, nil
}

// Seal encrypts plaintext bound to name, so a value cannot be moved between cookies.
func (c *Codec) Seal(name string, plaintext []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, plaintext, []byte(name))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Any tampering yields ErrInvalidSession.
func (c *Codec) Open(name, value string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidSession, "decoding cookie")
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, err
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return nil, errors.Wrapf(errors.ErrInvalidSession, "cookie too short")
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(name))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidSession, "opening cookie")
	}
	return plaintext, nil
}
