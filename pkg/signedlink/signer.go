package signedlink

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalid = errors.New("invalid link signature")
	ErrExpired = errors.New("link expired")
)

// Signer issues short-lived signatures binding a subject (a VM id) to an opaque value
// (the connection token handed out by the lab backend).
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner constructs a signer with the provided secret and TTL.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Signer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Sign returns a signature of the form "<expiry>.<hex mac>".
func (s *Signer) Sign(subject, value string) (string, time.Time, error) {
	if subject == "" || value == "" {
		return "", time.Time{}, fmt.Errorf("subject and value required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	return ts + "." + s.mac(subject, value, ts), expiresAt, nil
}

// Verify checks a signature produced by Sign.
func (s *Signer) Verify(subject, value, signature string) (time.Time, error) {
	parts := strings.SplitN(signature, ".", 2)
	if len(parts) != 2 {
		return time.Time{}, ErrInvalid
	}
	expUnix, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, ErrInvalid
	}
	expected := s.mac(subject, value, parts[0])
	if !hmac.Equal([]byte(expected), []byte(parts[1])) {
		return time.Time{}, ErrInvalid
	}
	expiresAt := time.Unix(expUnix, 0)
	if s.now().After(expiresAt) {
		return expiresAt, ErrExpired
	}
	return expiresAt, nil
}

func (s *Signer) mac(subject, value, ts string) string {
	encoded := base64.RawURLEncoding.EncodeToString([]byte(value))
	payload := fmt.Sprintf("%s|%s|%s", subject, ts, encoded)
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
