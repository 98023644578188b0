package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/maxionmain321/podcast-automation-caio-internal/internal/config"
)

// ShareService mints expiring public links to an exported episode PDF. The
// signature binds the workflow id and expiry together, so a link can neither
// be pointed at another episode nor extended.
type ShareService struct {
	secret  string
	baseURL string
	ttl     time.Duration
}

func NewShareService(cfg config.Config) *ShareService {
	return &ShareService{
		secret:  cfg.ShareSecret,
		baseURL: cfg.BaseURL,
		ttl:     cfg.ShareTTL,
	}
}

// ShareLink is a minted public link and when it stops working.
type ShareLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Mint returns a signed link to the episode PDF, valid for the configured TTL.
func (s *ShareService) Mint(workflowID string) ShareLink {
	expiresAt := time.Now().Add(s.ttl)
	sig := s.sign(workflowID, expiresAt.Unix())

	return ShareLink{
		URL:       fmt.Sprintf("%s/pdf/%s?exp=%d&sig=%s", s.baseURL, workflowID, expiresAt.Unix(), sig),
		ExpiresAt: expiresAt,
	}
}

// Verify checks an inbound link's signature. Expiry is checked separately by
// the handler so a stale link can be reported as gone rather than forbidden.
func (s *ShareService) Verify(workflowID string, expiresAt int64, signature string) bool {
	expected := s.sign(workflowID, expiresAt)
	return hmac.Equal([]byte(signature), []byte(expected))
}

func (s *ShareService) sign(workflowID string, expiresAt int64) string {
	h := hmac.New(sha256.New, []byte(s.secret))
	fmt.Fprintf(h, "pdf:%s:%d", workflowID, expiresAt)
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(h.Sum(nil))
}
