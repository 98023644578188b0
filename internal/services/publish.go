package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/maxionmain321/podcast-automation-caio-internal/internal/config"
)

// PublishService forwards the final content package to the external CMS
// publishing workflow.
type PublishService struct {
	webhookURL    string
	webhookSecret string
	httpClient    *http.Client
}

func NewPublishService(cfg config.Config) *PublishService {
	return &PublishService{
		webhookURL:    cfg.PublishWebhookURL,
		webhookSecret: cfg.WebhookSecret,
		httpClient:    &http.Client{Timeout: 2 * time.Minute},
	}
}

type PublishRequest struct {
	Title              string
	BodyMarkdown       string
	PrimaryKeyword     string
	SecondaryKeywords  []string
	Category           string
	Tags               []string
	PublishImmediately *bool
}

type PublishResponse struct {
	PostURL string
	PostID  string
}

// Publish submits the package. Required fields are checked locally first so an
// invalid request never costs a round trip, and a 200 is trusted only when the
// payload explicitly says success.
func (s *PublishService) Publish(ctx context.Context, req PublishRequest) (PublishResponse, error) {
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.BodyMarkdown) == "" {
		return PublishResponse{}, fmt.Errorf("publish requires a non-empty title and body")
	}
	if strings.TrimSpace(s.webhookURL) == "" {
		return PublishResponse{}, fmt.Errorf("publish webhook URL: %w", ErrNotConfigured)
	}

	category := req.Category
	if category == "" {
		category = "Podcast"
	}
	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}
	publishImmediately := true
	if req.PublishImmediately != nil {
		publishImmediately = *req.PublishImmediately
	}

	payload := map[string]any{
		"seo_title":           req.Title,
		"blog_post_markdown":  req.BodyMarkdown,
		"primary_keyword":     req.PrimaryKeyword,
		"secondary_keywords":  req.SecondaryKeywords,
		"wordpress_category":  category,
		"tags":                tags,
		"publish_immediately": publishImmediately,
	}

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return PublishResponse{}, fmt.Errorf("encode publish payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, buf)
	if err != nil {
		return PublishResponse{}, fmt.Errorf("create publish request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.webhookSecret != "" {
		httpReq.Header.Set("X-Webhook-Secret", s.webhookSecret)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return PublishResponse{}, fmt.Errorf("publish request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return PublishResponse{}, decodeUpstreamError("publish", resp)
	}

	var raw struct {
		Success    bool   `json:"success"`
		Error      string `json:"error"`
		PostURL    string `json:"postUrl"`
		PostURLAlt string `json:"post_url"`
		PostID     string `json:"postId"`
		PostIDAlt  string `json:"post_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return PublishResponse{}, &UpstreamError{Service: "publish", Message: "malformed publish response"}
	}

	if !raw.Success {
		msg := raw.Error
		if msg == "" {
			msg = "publishing failed"
		}
		return PublishResponse{}, &UpstreamError{Service: "publish", Message: msg}
	}

	out := PublishResponse{PostURL: raw.PostURL, PostID: raw.PostID}
	if out.PostURL == "" {
		out.PostURL = raw.PostURLAlt
	}
	if out.PostID == "" {
		out.PostID = raw.PostIDAlt
	}
	return out, nil
}
