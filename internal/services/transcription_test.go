package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxionmain321/podcast-automation-caio-internal/internal/config"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/domain"
)

func TestDispatchSynchronousTranscript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "topsecret", r.Header.Get("X-Webhook-Secret"))
		w.Write([]byte(`{"transcript":"Hello world."}`))
	}))
	defer srv.Close()

	svc := NewTranscriptionService(config.Config{
		TranscribeWebhookURL: srv.URL,
		WebhookSecret:        "topsecret",
	})

	disp, err := svc.Dispatch(context.Background(), "http://cdn/audio.mp3", "Episode 1", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello world.", disp.Transcript)
	assert.Empty(t, disp.JobID)
}

func TestDispatchAsyncJobID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"job_id":"job-42"}`))
	}))
	defer srv.Close()

	svc := NewTranscriptionService(config.Config{TranscribeWebhookURL: srv.URL})

	disp, err := svc.Dispatch(context.Background(), "http://cdn/audio.mp3", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "job-42", disp.JobID)
	assert.Empty(t, disp.Transcript)
}

func TestDispatchWithoutURLIsNotConfigured(t *testing.T) {
	svc := NewTranscriptionService(config.Config{})

	_, err := svc.Dispatch(context.Background(), "http://cdn/audio.mp3", "", nil)
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestDispatchRejectsEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	svc := NewTranscriptionService(config.Config{TranscribeWebhookURL: srv.URL})

	_, err := svc.Dispatch(context.Background(), "http://cdn/audio.mp3", "", nil)
	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
}

func TestDispatchMapsUpstreamErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"model overloaded"}}`))
	}))
	defer srv.Close()

	svc := NewTranscriptionService(config.Config{TranscribeWebhookURL: srv.URL})

	_, err := svc.Dispatch(context.Background(), "http://cdn/audio.mp3", "", nil)
	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusInternalServerError, upstream.Status)
	assert.Equal(t, "model overloaded", upstream.Message)
}

func TestJobStatusMapping(t *testing.T) {
	responses := map[string]string{
		"done-job":    `{"status":"done","text":"Done."}`,
		"failed-job":  `{"status":"error","error":"audio unreadable"}`,
		"pending-job": `{"status":"in_progress"}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(responses[r.URL.Query().Get("jobId")]))
	}))
	defer srv.Close()

	svc := NewTranscriptionService(config.Config{TranscribeStatusURL: srv.URL})
	require.True(t, svc.HasStatusEndpoint())

	done, err := svc.JobStatus(context.Background(), "done-job")
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, done.Status)
	assert.Equal(t, "Done.", done.Transcript)

	failed, err := svc.JobStatus(context.Background(), "failed-job")
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, failed.Status)
	assert.Equal(t, "audio unreadable", failed.Error)

	pending, err := svc.JobStatus(context.Background(), "pending-job")
	require.NoError(t, err)
	assert.Equal(t, domain.JobProcessing, pending.Status)
}

func TestJobStatusWithoutEndpoint(t *testing.T) {
	svc := NewTranscriptionService(config.Config{})
	assert.False(t, svc.HasStatusEndpoint())

	_, err := svc.JobStatus(context.Background(), "job-1")
	assert.True(t, errors.Is(err, ErrNotConfigured))
}
