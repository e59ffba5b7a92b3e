// Package crypto seals secrets kept in the settings store with AES-256-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// sealedPrefix marks values written by a Sealer. Values without it are
// returned unchanged by Open so settings saved before a key was configured
// stay readable.
const sealedPrefix = "sealed:v1:"

var (
	ErrInvalidKey        = errors.New("encryption key must be 32 bytes")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrDecryptionFailed  = errors.New("decryption failed")
)

// ParseKey accepts a base64-encoded 32-byte key or a raw 32-byte string.
// An empty string yields a nil key and no error.
func ParseKey(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(s); err == nil && len(decoded) == 32 {
		return decoded, nil
	}
	if len(s) == 32 {
		return []byte(s), nil
	}
	return nil, fmt.Errorf("%w (got %d bytes), preferably base64 encoded", ErrInvalidKey, len(s))
}

// Sealer encrypts and decrypts individual string values.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer creates a sealer for a 32-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: gcm}, nil
}

// IsSealed reports whether v was produced by Seal.
func IsSealed(v string) bool {
	return strings.HasPrefix(v, sealedPrefix)
}

// Seal encrypts plaintext. Empty and already sealed values pass through.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if plaintext == "" || IsSealed(plaintext) {
		return plaintext, nil
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open decrypts a sealed value. Unsealed values pass through.
func (s *Sealer) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return "", ErrInvalidCiphertext
	}

	plaintext, err := s.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}
