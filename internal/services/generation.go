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
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/domain"
)

// GenerationService talks to the external content-generation workflow. A
// dispatch either returns the full content bundle synchronously or an
// acknowledgment, with the result delivered later through the callback.
type GenerationService struct {
	webhookURL    string
	webhookSecret string
	httpClient    *http.Client
}

func NewGenerationService(cfg config.Config) *GenerationService {
	return &GenerationService{
		webhookURL:    cfg.GenerateWebhookURL,
		webhookSecret: cfg.WebhookSecret,
		httpClient:    &http.Client{Timeout: 5 * time.Minute},
	}
}

// GenerationDispatch is the normalized dispatch response: either Content is
// set (synchronous completion) or Processing is true.
type GenerationDispatch struct {
	Content    *domain.GeneratedContent
	Processing bool
}

func (s *GenerationService) Dispatch(ctx context.Context, workflowID, transcript, episodeTitle string) (GenerationDispatch, error) {
	if strings.TrimSpace(s.webhookURL) == "" {
		return GenerationDispatch{}, fmt.Errorf("generation webhook URL: %w", ErrNotConfigured)
	}

	payload := map[string]any{
		"transcript_text": transcript,
		"episode_title":   episodeTitle,
		"workflowId":      workflowID,
		"metadata": map[string]any{
			"transcript_length": len(transcript),
			"word_count":        len(strings.Fields(transcript)),
		},
	}

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return GenerationDispatch{}, fmt.Errorf("encode generation payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, buf)
	if err != nil {
		return GenerationDispatch{}, fmt.Errorf("create generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.webhookSecret != "" {
		req.Header.Set("X-Webhook-Secret", s.webhookSecret)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return GenerationDispatch{}, fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return GenerationDispatch{}, decodeUpstreamError("generation", resp)
	}

	body := &bytes.Buffer{}
	if _, err := body.ReadFrom(resp.Body); err != nil {
		return GenerationDispatch{}, fmt.Errorf("read generation response: %w", err)
	}

	var ack struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body.Bytes(), &ack); err == nil && ack.Status == "processing" {
		return GenerationDispatch{Processing: true}, nil
	}

	content, err := NormalizeContent(body.Bytes())
	if err != nil {
		return GenerationDispatch{}, err
	}
	return GenerationDispatch{Content: content}, nil
}

// rawContent mirrors the observed wire shapes of a generation result. The
// service has delivered the same logical payload with several field spellings
// and, occasionally, wrapped in a single-element array.
type rawContent struct {
	Success  *bool           `json:"success"`
	Titles   json.RawMessage `json:"titles"`
	BlogPost json.RawMessage `json:"blog_post"`
	Notes    json.RawMessage `json:"show_notes"`
	Error    string          `json:"error"`
}

// NormalizeContent converts whatever the generation service sent into the one
// canonical bundle. Any shape it cannot account for is an upstream semantic
// error; no best-effort guessing happens past this boundary.
func NormalizeContent(body []byte) (*domain.GeneratedContent, error) {
	raw, err := unwrapContent(body)
	if err != nil {
		return nil, err
	}

	if raw.Success != nil && !*raw.Success {
		msg := raw.Error
		if msg == "" {
			msg = "generation reported failure"
		}
		return nil, &ReportedFailure{Message: msg}
	}
	if len(raw.Titles) == 0 || len(raw.BlogPost) == 0 || len(raw.Notes) == 0 {
		return nil, &UpstreamError{Service: "generation", Message: "result is missing titles, blog post, or show notes"}
	}

	content := &domain.GeneratedContent{}

	if err := normalizeTitles(raw.Titles, &content.Titles); err != nil {
		return nil, err
	}
	if err := normalizeBlogPost(raw.BlogPost, &content.BlogPost); err != nil {
		return nil, err
	}
	if err := normalizeShowNotes(raw.Notes, &content.ShowNotes); err != nil {
		return nil, err
	}
	return content, nil
}

func unwrapContent(body []byte) (rawContent, error) {
	trimmed := bytes.TrimSpace(body)

	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []rawContent
		if err := json.Unmarshal(trimmed, &list); err != nil || len(list) == 0 {
			return rawContent{}, &UpstreamError{Service: "generation", Message: "malformed array-wrapped result"}
		}
		return list[0], nil
	}

	var raw rawContent
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return rawContent{}, &UpstreamError{Service: "generation", Message: "malformed result body"}
	}
	return raw, nil
}

func normalizeTitles(raw json.RawMessage, out *domain.TitleSet) error {
	var grouped struct {
		BlogTitles    []string `json:"blog_titles"`
		PodcastTitles []string `json:"podcast_titles"`
	}
	if err := json.Unmarshal(raw, &grouped); err == nil && (len(grouped.BlogTitles) > 0 || len(grouped.PodcastTitles) > 0) {
		out.BlogTitles = grouped.BlogTitles
		out.PodcastTitles = grouped.PodcastTitles
		return nil
	}

	// Older runs returned a flat list of blog title candidates.
	var flat []string
	if err := json.Unmarshal(raw, &flat); err == nil && len(flat) > 0 {
		out.BlogTitles = flat
		return nil
	}

	return &UpstreamError{Service: "generation", Message: "unrecognized titles shape"}
}

func normalizeBlogPost(raw json.RawMessage, out *domain.BlogPost) error {
	var structured struct {
		Markdown    string `json:"markdown"`
		WordCount   int    `json:"word_count"`
		ReadingTime string `json:"reading_time"`
	}
	if err := json.Unmarshal(raw, &structured); err == nil && structured.Markdown != "" {
		out.Markdown = structured.Markdown
		out.WordCount = structured.WordCount
		out.ReadingTime = structured.ReadingTime
		return nil
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil && strings.TrimSpace(plain) != "" {
		out.Markdown = plain
		return nil
	}

	return &UpstreamError{Service: "generation", Message: "unrecognized blog post shape"}
}

func normalizeShowNotes(raw json.RawMessage, out *domain.ShowNotes) error {
	var structured struct {
		EpisodeSummary     string   `json:"episode_summary"`
		KeyTopicsDiscussed []string `json:"key_topics_discussed"`
		KeyTakeaways       []string `json:"key_takeaways"`
		NotableQuotes      []string `json:"notable_quotes"`
		Timestamps         []struct {
			Time  string `json:"time"`
			Topic string `json:"topic"`
		} `json:"timestamps"`
	}
	if err := json.Unmarshal(raw, &structured); err == nil && structured.EpisodeSummary != "" {
		out.EpisodeSummary = structured.EpisodeSummary
		out.KeyTopicsDiscussed = structured.KeyTopicsDiscussed
		out.KeyTakeaways = structured.KeyTakeaways
		out.NotableQuotes = structured.NotableQuotes
		for _, ts := range structured.Timestamps {
			out.Timestamps = append(out.Timestamps, domain.Timestamp{Time: ts.Time, Topic: ts.Topic})
		}
		return nil
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil && strings.TrimSpace(plain) != "" {
		out.EpisodeSummary = plain
		return nil
	}

	return &UpstreamError{Service: "generation", Message: "unrecognized show notes shape"}
}
