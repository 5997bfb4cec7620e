// Package fieldcrypt seals individual sensitive fields (bank account
// numbers) before they reach storage.
//
// Sealed values are laid out as version || nonce || ciphertext, using
// XChaCha20-Poly1305 with a random 24 byte nonce per value.
package fieldcrypt

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const formatVersion byte = 1

// KeySize is the length of a raw key.
const KeySize = chacha20poly1305.KeySize

var (
	ErrBadKey    = errors.New("fieldcrypt: key must be 32 bytes")
	ErrMalformed = errors.New("fieldcrypt: malformed sealed value")
	ErrOpen      = errors.New("fieldcrypt: wrong key or corrupted value")
)

// Box seals and opens field values with one key.
type Box struct {
	key []byte
}

// New builds a Box from a raw 32 byte key.
func New(key []byte) (*Box, error) {
	if len(key) != KeySize {
		return nil, ErrBadKey
	}
	return &Box{key: append([]byte(nil), key...)}, nil
}

// FromPassphrase derives the key with Argon2id.
func FromPassphrase(passphrase string, salt []byte) (*Box, error) {
	if passphrase == "" {
		return nil, errors.New("fieldcrypt: empty passphrase")
	}
	if len(salt) < 8 {
		return nil, errors.New("fieldcrypt: salt must be at least 8 bytes")
	}
	return New(argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 2, KeySize))
}

func (b *Box) Seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 1+aead.NonceSize(), 1+aead.NonceSize()+len(plaintext)+aead.Overhead())
	out[0] = formatVersion
	if _, err := rand.Read(out[1:]); err != nil {
		return nil, fmt.Errorf("fieldcrypt: nonce: %w", err)
	}
	return aead.Seal(out, out[1:], plaintext, out[:1]), nil
}

func (b *Box) Open(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < 1+aead.NonceSize()+aead.Overhead() || sealed[0] != formatVersion {
		return nil, ErrMalformed
	}
	nonce := sealed[1 : 1+aead.NonceSize()]
	pt, err := aead.Open(nil, nonce, sealed[1+aead.NonceSize():], sealed[:1])
	if err != nil {
		return nil, ErrOpen
	}
	return pt, nil
}
