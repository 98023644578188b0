package storage

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maxionmain321/podcast-automation-caio-internal/internal/config"
)

// ErrNotConfigured marks missing storage settings. It is a setup problem for
// the operator to fix, distinct from transfer failures at runtime.
var ErrNotConfigured = errors.New("storage is not configured")

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// Delegation issues signed write destinations and derives the public read URL
// for each uploaded object.
type Delegation struct {
	signer    *Signer
	endpoint  string
	bucket    string
	publicURL string
	uploadTTL time.Duration
	log       logrus.FieldLogger

	configured bool
}

func NewDelegation(cfg config.Config, log logrus.FieldLogger) *Delegation {
	return &Delegation{
		signer:     NewSigner(cfg.StorageAccessKey, cfg.StorageSecretKey),
		endpoint:   strings.TrimSuffix(cfg.StorageEndpoint, "/"),
		bucket:     cfg.StorageBucket,
		publicURL:  strings.TrimSuffix(cfg.StoragePublicURL, "/"),
		uploadTTL:  cfg.UploadURLTTL,
		log:        log,
		configured: cfg.StorageEndpoint != "" && cfg.StorageBucket != "" && cfg.StorageAccessKey != "" && cfg.StorageSecretKey != "",
	}
}

// PresignedUpload is the destination handed to the browser: a time-bounded
// write URL and the readable location the object will have afterwards.
type PresignedUpload struct {
	UploadURL string `json:"uploadUrl"`
	FileURL   string `json:"fileUrl"`
	Key       string `json:"key"`
}

// PresignUpload allocates a key for filename and signs a write URL for it.
func (d *Delegation) PresignUpload(filename, contentType string) (PresignedUpload, error) {
	if strings.TrimSpace(filename) == "" || strings.TrimSpace(contentType) == "" {
		return PresignedUpload{}, fmt.Errorf("filename and content type are required")
	}
	if !d.configured {
		return PresignedUpload{}, ErrNotConfigured
	}

	key := d.KeyFor(filename)
	path := d.objectPath(key)
	expiresAt := time.Now().Add(d.uploadTTL)

	return PresignedUpload{
		UploadURL: d.signer.SignedURL(d.endpoint, http.MethodPut, path, expiresAt),
		FileURL:   d.ReadURL(key),
		Key:       key,
	}, nil
}

// KeyFor derives a storage-safe key from a timestamp and the sanitized
// filename.
func (d *Delegation) KeyFor(filename string) string {
	sanitized := unsafeKeyChars.ReplaceAllString(filename, "_")
	return fmt.Sprintf("podcasts/%d-%s", time.Now().UnixMilli(), sanitized)
}

// ReadURL derives the public location of an object. Without a configured
// public base it falls back to the endpoint's object path, which is not
// guaranteed to be publicly reachable.
func (d *Delegation) ReadURL(key string) string {
	if d.publicURL != "" {
		return d.publicURL + "/" + key
	}

	if d.log != nil {
		d.log.WithField("key", key).
			Warn("no public storage URL configured; falling back to the endpoint object path, which may not be publicly reachable")
	}
	return d.endpoint + d.objectPath(key)
}

// VerifyWrite checks a signed inbound write against the signature and expiry.
func (d *Delegation) VerifyWrite(bucket, key, accessKey string, expiresAt int64, signature string) bool {
	if !d.configured || bucket != d.bucket {
		return false
	}
	return d.signer.Verify(http.MethodPut, d.objectPath(key), accessKey, expiresAt, signature, time.Now())
}

func (d *Delegation) Configured() bool { return d.configured }

func (d *Delegation) Bucket() string { return d.bucket }

func (d *Delegation) objectPath(key string) string {
	return "/objects/" + d.bucket + "/" + key
}
