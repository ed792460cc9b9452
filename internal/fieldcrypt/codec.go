// Package fieldcrypt encodes sensitive string fields at the persistence
// boundary. Repositories call Encode on write and Decode on read; the
// transaction core never sees ciphertext.
package fieldcrypt

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const prefix = "v1:"

var ErrBadKey = errors.New("field key must be 32 hex-encoded bytes")

type Codec interface {
	Encode(plain string) (string, error)
	Decode(stored string) (string, error)
}

// Noop passes values through unchanged. Used when no FIELD_KEY is configured.
type Noop struct{}

func (Noop) Encode(s string) (string, error) { return s, nil }
func (Noop) Decode(s string) (string, error) { return s, nil }

type aead struct {
	key []byte
}

// NewAEAD builds a ChaCha20-Poly1305 codec from a hex key.
func NewAEAD(keyHex string) (Codec, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil || len(key) != chacha20poly1305.KeySize {
		return nil, ErrBadKey
	}
	return &aead{key: key}, nil
}

// FromKey returns Noop for an empty key, an AEAD codec otherwise.
func FromKey(keyHex string) (Codec, error) {
	if keyHex == "" {
		return Noop{}, nil
	}
	return NewAEAD(keyHex)
}

func (a *aead) Encode(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	c, err := chacha20poly1305.New(a.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := c.Seal(nonce, nonce, []byte(plain), nil)
	return prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decode returns stored values without the version prefix unchanged, so rows
// written before encryption was enabled stay readable.
func (a *aead) Decode(stored string) (string, error) {
	if !strings.HasPrefix(stored, prefix) {
		return stored, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, prefix))
	if err != nil {
		return "", fmt.Errorf("fieldcrypt: %w", err)
	}
	if len(raw) < chacha20poly1305.NonceSize {
		return "", errors.New("fieldcrypt: ciphertext too short")
	}
	c, err := chacha20poly1305.New(a.key)
	if err != nil {
		return "", err
	}
	plain, err := c.Open(nil, raw[:chacha20poly1305.NonceSize], raw[chacha20poly1305.NonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("fieldcrypt: %w", err)
	}
	return string(plain), nil
}
