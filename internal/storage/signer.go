// Package storage implements the upload delegation: it issues time-bounded,
// HMAC-signed write destinations and serves the resulting readable objects
// from a disk-backed bucket.
package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"time"
)

// Signer produces and checks signed object URLs. The access key identifies
// the credential in the URL; the secret never leaves the server.
type Signer struct {
	accessKey string
	secretKey string
}

func NewSigner(accessKey, secretKey string) *Signer {
	return &Signer{accessKey: accessKey, secretKey: secretKey}
}

// SignedURL returns endpoint+path with key id, expiry, and signature appended.
func (s *Signer) SignedURL(endpoint, method, path string, expiresAt time.Time) string {
	sig := s.signature(method, path, expiresAt.Unix())
	return fmt.Sprintf("%s%s?accessKey=%s&exp=%d&sig=%s",
		endpoint, path, url.QueryEscape(s.accessKey), expiresAt.Unix(), sig)
}

// Verify checks an inbound signed request against the expected signature and
// expiry. Comparison is constant time.
func (s *Signer) Verify(method, path, accessKey string, expiresAt int64, signature string, now time.Time) bool {
	if accessKey != s.accessKey {
		return false
	}
	if now.Unix() > expiresAt {
		return false
	}
	expected := s.signature(method, path, expiresAt)
	return hmac.Equal([]byte(signature), []byte(expected))
}

func (s *Signer) signature(method, path string, expiresAt int64) string {
	h := hmac.New(sha256.New, []byte(s.secretKey))
	h.Write([]byte(fmt.Sprintf("%s:%s:%d", method, path, expiresAt)))
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(h.Sum(nil))
}
