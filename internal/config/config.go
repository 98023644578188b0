package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	Port    string
	BaseURL string
	DataDir string

	DashboardPassword string
	SessionSecret     string
	SessionTTL        time.Duration

	CallbackSecret string
	WebhookSecret  string

	TranscribeWebhookURL string
	TranscribeStatusURL  string
	GenerateWebhookURL   string
	PublishWebhookURL    string

	StorageEndpoint  string
	StorageBucket    string
	StorageAccessKey string
	StorageSecretKey string
	StoragePublicURL string
	UploadURLTTL     time.Duration
	MaxUploadBytes   int64

	PollInterval    time.Duration
	PollMaxAttempts int
	JobTTL          time.Duration

	ShareSecret string
	ShareTTL    time.Duration
}

func LoadConfig() (Config, error) {
	cfg := Config{}

	cfg.Port = envOrDefault("PORT", "8080")
	cfg.BaseURL = envOrDefault("BASE_URL", fmt.Sprintf("http://localhost:%s", cfg.Port))
	cfg.DataDir = envOrDefault("DATA_DIR", "data")

	cfg.DashboardPassword = os.Getenv("DASHBOARD_PASSWORD")
	cfg.SessionSecret = envOrDefault("SESSION_SECRET", "change-me")

	sessionTTLSeconds, err := parseIntEnv("SESSION_TTL_SECONDS", 86400)
	if err != nil {
		return Config{}, fmt.Errorf("parse SESSION_TTL_SECONDS: %w", err)
	}
	cfg.SessionTTL = time.Duration(sessionTTLSeconds) * time.Second

	cfg.CallbackSecret = os.Getenv("CALLBACK_SECRET")
	cfg.WebhookSecret = os.Getenv("WEBHOOK_SECRET")

	cfg.TranscribeWebhookURL = os.Getenv("TRANSCRIBE_WEBHOOK_URL")
	cfg.TranscribeStatusURL = os.Getenv("TRANSCRIBE_STATUS_URL")
	cfg.GenerateWebhookURL = os.Getenv("GENERATE_WEBHOOK_URL")
	cfg.PublishWebhookURL = os.Getenv("PUBLISH_WEBHOOK_URL")

	cfg.StorageEndpoint = envOrDefault("STORAGE_ENDPOINT", cfg.BaseURL)
	cfg.StorageBucket = os.Getenv("STORAGE_BUCKET")
	cfg.StorageAccessKey = os.Getenv("STORAGE_ACCESS_KEY")
	cfg.StorageSecretKey = os.Getenv("STORAGE_SECRET_KEY")
	cfg.StoragePublicURL = os.Getenv("STORAGE_PUBLIC_URL")

	uploadTTLSeconds, err := parseIntEnv("UPLOAD_URL_TTL_SECONDS", 3600)
	if err != nil {
		return Config{}, fmt.Errorf("parse UPLOAD_URL_TTL_SECONDS: %w", err)
	}
	cfg.UploadURLTTL = time.Duration(uploadTTLSeconds) * time.Second

	maxUploadMB, err := parseIntEnv("MAX_UPLOAD_MB", 1536)
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_UPLOAD_MB: %w", err)
	}
	cfg.MaxUploadBytes = maxUploadMB * 1024 * 1024

	pollIntervalMS, err := parseIntEnv("POLL_INTERVAL_MS", 2000)
	if err != nil {
		return Config{}, fmt.Errorf("parse POLL_INTERVAL_MS: %w", err)
	}
	cfg.PollInterval = time.Duration(pollIntervalMS) * time.Millisecond

	pollMaxAttempts, err := parseIntEnv("POLL_MAX_ATTEMPTS", 60)
	if err != nil {
		return Config{}, fmt.Errorf("parse POLL_MAX_ATTEMPTS: %w", err)
	}
	cfg.PollMaxAttempts = int(pollMaxAttempts)

	jobTTLSeconds, err := parseIntEnv("JOB_TTL_SECONDS", 600)
	if err != nil {
		return Config{}, fmt.Errorf("parse JOB_TTL_SECONDS: %w", err)
	}
	cfg.JobTTL = time.Duration(jobTTLSeconds) * time.Second

	cfg.ShareSecret = envOrDefault("SHARE_SECRET", cfg.SessionSecret)

	shareTTLSeconds, err := parseIntEnv("SHARE_TTL_SECONDS", 86400)
	if err != nil {
		return Config{}, fmt.Errorf("parse SHARE_TTL_SECONDS: %w", err)
	}
	cfg.ShareTTL = time.Duration(shareTTLSeconds) * time.Second

	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = absDataDir

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func parseIntEnv(key string, fallback int64) (int64, error) {
	value := envOrDefault(key, "")
	if value == "" {
		return fallback, nil
	}

	num, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return num, nil
}
