package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxionmain321/podcast-automation-caio-internal/internal/config"
)

func TestPublishSuccess(t *testing.T) {
	var sent map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
		w.Write([]byte(`{"success": true, "postUrl": "http://blog/post-1", "postId": "1"}`))
	}))
	defer srv.Close()

	svc := NewPublishService(config.Config{PublishWebhookURL: srv.URL})

	resp, err := svc.Publish(context.Background(), PublishRequest{
		Title:        "Episode 1",
		BodyMarkdown: "# Post",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://blog/post-1", resp.PostURL)
	assert.Equal(t, "1", resp.PostID)

	// Defaults applied on the wire when the caller leaves them unset.
	assert.Equal(t, "Podcast", sent["wordpress_category"])
	assert.Equal(t, true, sent["publish_immediately"])
	assert.Equal(t, []any{}, sent["tags"])
	assert.Equal(t, "Episode 1", sent["seo_title"])
	assert.Equal(t, "# Post", sent["blog_post_markdown"])
}

func TestPublishSnakeCaseResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "post_url": "http://blog/post-2", "post_id": "2"}`))
	}))
	defer srv.Close()

	svc := NewPublishService(config.Config{PublishWebhookURL: srv.URL})

	resp, err := svc.Publish(context.Background(), PublishRequest{Title: "t", BodyMarkdown: "b"})
	require.NoError(t, err)
	assert.Equal(t, "http://blog/post-2", resp.PostURL)
	assert.Equal(t, "2", resp.PostID)
}

func TestPublishRejectsEmptyPackageLocally(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	svc := NewPublishService(config.Config{PublishWebhookURL: srv.URL})

	_, err := svc.Publish(context.Background(), PublishRequest{Title: "  ", BodyMarkdown: ""})
	require.Error(t, err)
	assert.False(t, called, "invalid request must never reach the wire")
}

func TestPublishTwoHundredWithFailurePayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "error": "quota exceeded"}`))
	}))
	defer srv.Close()

	svc := NewPublishService(config.Config{PublishWebhookURL: srv.URL})

	_, err := svc.Publish(context.Background(), PublishRequest{Title: "t", BodyMarkdown: "b"})
	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream), "a 200 that says failure is still a failure")
	assert.Equal(t, "quota exceeded", upstream.Message)
}

func TestPublishWithoutURLIsNotConfigured(t *testing.T) {
	svc := NewPublishService(config.Config{})

	_, err := svc.Publish(context.Background(), PublishRequest{Title: "t", BodyMarkdown: "b"})
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestPublishFlagFalseIsRespected(t *testing.T) {
	var sent map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
		w.Write([]byte(`{"success": true}`))
	}))
	defer srv.Close()

	svc := NewPublishService(config.Config{PublishWebhookURL: srv.URL})

	off := false
	_, err := svc.Publish(context.Background(), PublishRequest{
		Title: "t", BodyMarkdown: "b", PublishImmediately: &off,
	})
	require.NoError(t, err)
	assert.Equal(t, false, sent["publish_immediately"])
}
