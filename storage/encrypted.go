package storage

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/chacha20poly1305"
)

// Encrypted wraps a Store and encrypts values at rest with
// XChaCha20-Poly1305. The browser host keeps the bearer token behind the
// cookie jar; a Go host has no such boundary, so values written to shared
// storage are sealed instead. Keys (names) stay in the clear.
type Encrypted struct {
	inner Store
	aead  cipher.AEAD
}

var _ Store = (*Encrypted)(nil)

// NewEncrypted wraps inner with value encryption. key must be
// chacha20poly1305.KeySize (32) bytes.
func NewEncrypted(inner Store, key []byte) (*Encrypted, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "[NewEncrypted] NewX")
	}
	return &Encrypted{inner: inner, aead: aead}, nil
}

func (e *Encrypted) Get(key string) (string, error) {
	sealed, err := e.inner.Get(key)
	if err != nil {
		return "", err
	}
	return e.open(sealed)
}

func (e *Encrypted) Set(key, value string) error {
	sealed, err := e.seal(value)
	if err != nil {
		return err
	}
	return e.inner.Set(key, sealed)
}

func (e *Encrypted) Delete(key string) error {
	return e.inner.Delete(key)
}

func (e *Encrypted) Watch(key string, handler ChangeHandler) (cancel func()) {
	return e.inner.Watch(key, func(key string, sealed *string) {
		if sealed == nil {
			handler(key, nil)
			return
		}
		value, err := e.open(*sealed)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("discarding undecryptable storage change")
			return
		}
		handler(key, &value)
	})
}

func (e *Encrypted) seal(value string) (string, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.Wrap(err, "[Encrypted.seal] rand.Read")
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(value), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (e *Encrypted) open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", errors.Wrap(err, "[Encrypted.open] DecodeString")
	}
	if len(raw) < chacha20poly1305.NonceSizeX {
		return "", errors.New("[Encrypted.open] value too short")
	}
	nonce, ciphertext := raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:]
	plaintext, err := e.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errors.Wrap(err, "[Encrypted.open] Open")
	}
	return string(plaintext), nil
}
