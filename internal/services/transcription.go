package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maxionmain321/podcast-automation-caio-internal/internal/config"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/domain"
)

const dispatchTimeout = 5 * time.Minute

// TranscriptionService talks to the external transcription workflow. The
// dispatch call either returns the finished transcript synchronously or hands
// back a job id for later reconciliation via callback or polling.
type TranscriptionService struct {
	webhookURL    string
	statusURL     string
	webhookSecret string
	httpClient    *http.Client
}

func NewTranscriptionService(cfg config.Config) *TranscriptionService {
	return &TranscriptionService{
		webhookURL:    cfg.TranscribeWebhookURL,
		statusURL:     cfg.TranscribeStatusURL,
		webhookSecret: cfg.WebhookSecret,
		httpClient:    &http.Client{Timeout: dispatchTimeout},
	}
}

// Dispatch holds the normalized response of a transcription dispatch: exactly
// one of Transcript or JobID is set.
type Dispatch struct {
	Transcript string
	JobID      string
}

func (s *TranscriptionService) Dispatch(ctx context.Context, audioURL, episodeTitle string, metadata map[string]any) (Dispatch, error) {
	if strings.TrimSpace(s.webhookURL) == "" {
		return Dispatch{}, fmt.Errorf("transcription webhook URL: %w", ErrNotConfigured)
	}

	payload := map[string]any{
		"audio_url":     audioURL,
		"episode_title": episodeTitle,
		"metadata":      metadata,
	}

	body, err := s.post(ctx, s.webhookURL, payload, "transcription")
	if err != nil {
		return Dispatch{}, err
	}

	// The service is inconsistent about field naming across versions; accept
	// every observed variant and normalize here, before anything reaches the
	// workflow record.
	var raw struct {
		Transcript string `json:"transcript"`
		Text       string `json:"text"`
		JobID      string `json:"jobId"`
		JobIDSnake string `json:"job_id"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Dispatch{}, &UpstreamError{Service: "transcription", Message: "malformed dispatch response"}
	}

	transcript := strings.TrimSpace(raw.Transcript)
	if transcript == "" {
		transcript = strings.TrimSpace(raw.Text)
	}
	jobID := raw.JobID
	if jobID == "" {
		jobID = raw.JobIDSnake
	}

	if transcript == "" && jobID == "" {
		return Dispatch{}, &UpstreamError{Service: "transcription", Message: "response carried neither a transcript nor a job id"}
	}
	if transcript != "" {
		return Dispatch{Transcript: transcript}, nil
	}
	return Dispatch{JobID: jobID}, nil
}

// HasStatusEndpoint reports whether the external service exposes a pull
// channel. Without one, polling falls back to the local job store fed by
// callbacks.
func (s *TranscriptionService) HasStatusEndpoint() bool {
	return strings.TrimSpace(s.statusURL) != ""
}

// JobStatus queries the external status endpoint for a job id.
func (s *TranscriptionService) JobStatus(ctx context.Context, jobID string) (domain.TranscriptionJob, error) {
	if !s.HasStatusEndpoint() {
		return domain.TranscriptionJob{}, fmt.Errorf("transcription status URL: %w", ErrNotConfigured)
	}

	statusURL := s.statusURL
	if strings.Contains(statusURL, "?") {
		statusURL += "&jobId=" + url.QueryEscape(jobID)
	} else {
		statusURL += "?jobId=" + url.QueryEscape(jobID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return domain.TranscriptionJob{}, fmt.Errorf("create status request: %w", err)
	}
	if s.webhookSecret != "" {
		req.Header.Set("X-Webhook-Secret", s.webhookSecret)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.TranscriptionJob{}, fmt.Errorf("transcription status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return domain.TranscriptionJob{}, decodeUpstreamError("transcription", resp)
	}

	var raw struct {
		Status     string `json:"status"`
		Transcript string `json:"transcript"`
		Text       string `json:"text"`
		Error      string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return domain.TranscriptionJob{}, &UpstreamError{Service: "transcription", Message: "malformed status response"}
	}

	transcript := strings.TrimSpace(raw.Transcript)
	if transcript == "" {
		transcript = strings.TrimSpace(raw.Text)
	}

	job := domain.TranscriptionJob{JobID: jobID, Transcript: transcript, Error: raw.Error}
	switch raw.Status {
	case "completed", "complete", "done":
		job.Status = domain.JobCompleted
	case "failed", "error":
		job.Status = domain.JobFailed
	default:
		job.Status = domain.JobProcessing
	}
	return job, nil
}

func (s *TranscriptionService) post(ctx context.Context, endpoint string, payload any, serviceName string) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", serviceName, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, buf)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", serviceName, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.webhookSecret != "" {
		req.Header.Set("X-Webhook-Secret", s.webhookSecret)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, decodeUpstreamError(serviceName, resp)
	}

	body := &bytes.Buffer{}
	if _, err := body.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("read %s response: %w", serviceName, err)
	}
	return body.Bytes(), nil
}
