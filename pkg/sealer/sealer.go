// Package sealer encrypts small records at rest with XChaCha20-Poly1305.
package sealer

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var ErrMalformed = errors.New("sealed payload malformed")

// Sealer seals and opens payloads. A Sealer built from an empty secret is a
// pass-through so development setups work without key material.
type Sealer struct {
	aead cipher.AEAD
}

// New derives a 256-bit key from secret using HKDF-SHA256 with the given context label.
func New(secret, label string) (*Sealer, error) {
	if secret == "" {
		return &Sealer{}, nil
	}
	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(label))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Enabled reports whether payloads are actually encrypted.
func (s *Sealer) Enabled() bool {
	return s != nil && s.aead != nil
}

// Seal encrypts plaintext, binding it to associated data (for example the record key).
func (s *Sealer) Seal(plaintext, associated []byte) ([]byte, error) {
	if !s.Enabled() {
		return plaintext, nil
	}
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, associated), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed, associated []byte) ([]byte, error) {
	if !s.Enabled() {
		return sealed, nil
	}
	if len(sealed) < s.aead.NonceSize()+s.aead.Overhead() {
		return nil, ErrMalformed
	}
	nonce, ciphertext := sealed[:s.aead.NonceSize()], sealed[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, associated)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return plaintext, nil
}
