// Package auth provides the session capability check the API consumes: a
// caller either holds a valid session token or it does not. Issuance happens
// at login; everything else only asks yes or no.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/maxionmain321/podcast-automation-caio-internal/internal/config"
)

// CookieName is the session cookie the dashboard sends with every API call.
const CookieName = "session"

type Sessions struct {
	secret string
	ttl    time.Duration
}

func NewSessions(cfg config.Config) *Sessions {
	return &Sessions{secret: cfg.SessionSecret, ttl: cfg.SessionTTL}
}

// Issue mints a token valid until now+ttl.
func (s *Sessions) Issue() (string, time.Time) {
	expiresAt := time.Now().Add(s.ttl)
	payload := strconv.FormatInt(expiresAt.Unix(), 10)
	return payload + "." + s.signature(payload), expiresAt
}

// Valid reports whether token is well-formed, untampered, and unexpired.
func (s *Sessions) Valid(token string) bool {
	payload, signature, ok := strings.Cut(token, ".")
	if !ok {
		return false
	}

	if !hmac.Equal([]byte(signature), []byte(s.signature(payload))) {
		return false
	}

	expiresAt, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return false
	}
	return time.Now().Unix() < expiresAt
}

func (s *Sessions) signature(payload string) string {
	h := hmac.New(sha256.New, []byte(s.secret))
	h.Write([]byte(fmt.Sprintf("session:%s", payload)))
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(h.Sum(nil))
}
