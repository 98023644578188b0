package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxionmain321/podcast-automation-caio-internal/internal/config"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/domain"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/jobs"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/services"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/workflow"
)

func newTestCoordinator(t *testing.T, cfg config.Config) (*Coordinator, *workflow.Store) {
	t.Helper()

	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Millisecond
	}
	if cfg.PollMaxAttempts == 0 {
		cfg.PollMaxAttempts = 5
	}
	if cfg.JobTTL == 0 {
		cfg.JobTTL = time.Minute
	}

	store, err := workflow.NewStore(t.TempDir())
	require.NoError(t, err)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	coordinator := NewCoordinator(
		store,
		services.NewTranscriptionService(cfg),
		services.NewGenerationService(cfg),
		services.NewPublishService(cfg),
		cfg,
		log,
	)
	return coordinator, store
}

func createUploaded(t *testing.T, store *workflow.Store) domain.Workflow {
	t.Helper()

	w, err := store.Create()
	require.NoError(t, err)

	updated, err := store.Apply(w.ID, func(w *domain.Workflow) error {
		return workflow.ApplyUpload(w, domain.UploadedFile{
			URL:      "http://cdn.example.com/podcasts/1-episode.mp3",
			Filename: "episode.mp3",
			Size:     2048,
		})
	})
	require.NoError(t, err)
	return updated
}

func markPendingTranscription(t *testing.T, c *Coordinator, store *workflow.Store, workflowID, jobID string) {
	t.Helper()

	c.transcriptionJobs.Put(jobID, domain.TranscriptionJob{
		JobID:      jobID,
		WorkflowID: workflowID,
		Status:     domain.JobProcessing,
	})
	_, err := store.Apply(workflowID, func(w *domain.Workflow) error {
		workflow.MarkTranscriptionPending(w, jobID)
		return nil
	})
	require.NoError(t, err)
}

func countLogMessages(w domain.Workflow, message string) int {
	n := 0
	for _, entry := range w.ActivityLog {
		if entry.Message == message {
			n++
		}
	}
	return n
}

func TestStartTranscriptionSynchronous(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"transcript":"Hello world."}`))
	}))
	defer srv.Close()

	c, store := newTestCoordinator(t, config.Config{TranscribeWebhookURL: srv.URL})
	w := createUploaded(t, store)

	start, err := c.StartTranscription(context.Background(), w.ID, "Episode 1")
	require.NoError(t, err)
	assert.Empty(t, start.JobID)
	assert.Equal(t, "Hello world.", start.Workflow.Transcript)

	persisted, err := store.Get(w.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello world.", persisted.Transcript)
	assert.Empty(t, persisted.TranscriptionID)
}

func TestStartTranscriptionRequiresUpload(t *testing.T) {
	c, store := newTestCoordinator(t, config.Config{TranscribeWebhookURL: "http://unused"})

	w, err := store.Create()
	require.NoError(t, err)

	_, err = c.StartTranscription(context.Background(), w.ID, "")
	var transitionErr *workflow.TransitionError
	require.ErrorAs(t, err, &transitionErr)
}

func TestStartTranscriptionAsyncLandsViaWatcher(t *testing.T) {
	status := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"completed","transcript":"Done."}`))
	}))
	defer status.Close()

	dispatch := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jobId":"job-42"}`))
	}))
	defer dispatch.Close()

	c, store := newTestCoordinator(t, config.Config{
		TranscribeWebhookURL: dispatch.URL,
		TranscribeStatusURL:  status.URL,
	})
	w := createUploaded(t, store)

	start, err := c.StartTranscription(context.Background(), w.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "job-42", start.JobID)
	assert.Equal(t, "job-42", start.Workflow.TranscriptionID)

	c.Wait()

	persisted, err := store.Get(w.ID)
	require.NoError(t, err)
	assert.Equal(t, "Done.", persisted.Transcript)
	assert.Empty(t, persisted.TranscriptionID)
}

func TestWatchTranscriptionPollsUntilTerminal(t *testing.T) {
	var calls atomic.Int32
	status := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Write([]byte(`{"status":"processing"}`))
			return
		}
		w.Write([]byte(`{"status":"completed","transcript":"Done."}`))
	}))
	defer status.Close()

	c, store := newTestCoordinator(t, config.Config{TranscribeStatusURL: status.URL})
	w := createUploaded(t, store)
	markPendingTranscription(t, c, store, w.ID, "job-42")

	outcome, attempts := c.watchTranscription(context.Background(), w.ID, "job-42")

	assert.Equal(t, jobs.OutcomeCompleted, outcome)
	assert.Equal(t, 3, attempts, "two processing responses then a terminal one")

	persisted, err := store.Get(w.ID)
	require.NoError(t, err)
	assert.Equal(t, "Done.", persisted.Transcript)
}

func TestWatchTranscriptionFailure(t *testing.T) {
	status := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"failed","error":"audio unreadable"}`))
	}))
	defer status.Close()

	c, store := newTestCoordinator(t, config.Config{TranscribeStatusURL: status.URL})
	w := createUploaded(t, store)
	markPendingTranscription(t, c, store, w.ID, "job-9")

	outcome, _ := c.watchTranscription(context.Background(), w.ID, "job-9")
	assert.Equal(t, jobs.OutcomeFailed, outcome)

	persisted, err := store.Get(w.ID)
	require.NoError(t, err)
	assert.Empty(t, persisted.Transcript)
	assert.Empty(t, persisted.TranscriptionID)
	assert.Equal(t, 1, countLogMessages(persisted, "Transcription failed"))
}

func TestWatchTranscriptionAbandonment(t *testing.T) {
	// No status endpoint and no callback: the poll budget runs out.
	c, store := newTestCoordinator(t, config.Config{PollMaxAttempts: 4})
	w := createUploaded(t, store)
	markPendingTranscription(t, c, store, w.ID, "job-silent")

	outcome, attempts := c.watchTranscription(context.Background(), w.ID, "job-silent")

	assert.Equal(t, jobs.OutcomeAbandoned, outcome)
	assert.Equal(t, 4, attempts)

	persisted, err := store.Get(w.ID)
	require.NoError(t, err)
	assert.Empty(t, persisted.TranscriptionID, "abandonment must clear the pending marker")
	assert.Equal(t, 1, countLogMessages(persisted, "Transcription timed out, try again"))
	assert.Equal(t, 0, countLogMessages(persisted, "Transcription failed"),
		"abandonment is not a failure: the service never said anything went wrong")
}

func TestWatchTranscriptionCanceledWhenSuperseded(t *testing.T) {
	c, store := newTestCoordinator(t, config.Config{})
	w := createUploaded(t, store)
	markPendingTranscription(t, c, store, w.ID, "job-new")

	// The watched job is not the pending one anymore.
	outcome, attempts := c.watchTranscription(context.Background(), w.ID, "job-old")

	assert.Equal(t, jobs.OutcomeCanceled, outcome)
	assert.Equal(t, 1, attempts)
}

func TestDuplicateCallbackIsIdempotent(t *testing.T) {
	c, store := newTestCoordinator(t, config.Config{})
	w := createUploaded(t, store)
	markPendingTranscription(t, c, store, w.ID, "job-7")

	require.NoError(t, c.HandleTranscriptionCallback("job-7", domain.JobCompleted, "Done.", ""))
	require.NoError(t, c.HandleTranscriptionCallback("job-7", domain.JobCompleted, "Done again.", ""))

	persisted, err := store.Get(w.ID)
	require.NoError(t, err)
	assert.Equal(t, "Done.", persisted.Transcript, "the first delivery stands")
	assert.Equal(t, 1, countLogMessages(persisted, "Transcript received"),
		"a duplicate delivery must not add a second log entry")
}

func TestCallbackBeatsPoll(t *testing.T) {
	c, store := newTestCoordinator(t, config.Config{})
	w := createUploaded(t, store)
	markPendingTranscription(t, c, store, w.ID, "job-3")

	require.NoError(t, c.HandleTranscriptionCallback("job-3", domain.JobCompleted, "Done.", ""))

	// The poll loop observes the terminal local state and stops immediately
	// without writing anything of its own.
	outcome, attempts := c.watchTranscription(context.Background(), w.ID, "job-3")
	assert.Equal(t, jobs.OutcomeCompleted, outcome)
	assert.Equal(t, 1, attempts)

	persisted, err := store.Get(w.ID)
	require.NoError(t, err)
	assert.Equal(t, "Done.", persisted.Transcript)
	assert.Equal(t, 1, countLogMessages(persisted, "Transcript received"))
}

func TestLateCallbackAfterFailureIsIgnored(t *testing.T) {
	c, store := newTestCoordinator(t, config.Config{})
	w := createUploaded(t, store)
	markPendingTranscription(t, c, store, w.ID, "job-5")

	require.NoError(t, c.HandleTranscriptionCallback("job-5", domain.JobFailed, "", "ran out of credits"))
	require.NoError(t, c.HandleTranscriptionCallback("job-5", domain.JobCompleted, "too late", ""))

	persisted, err := store.Get(w.ID)
	require.NoError(t, err)
	assert.Empty(t, persisted.Transcript, "a completion after a terminal failure must not land")

	job := c.TranscriptionStatus("job-5")
	assert.Equal(t, domain.JobFailed, job.Status)
}

func TestTranscriptionStatusUnknownJobReadsAsProcessing(t *testing.T) {
	c, _ := newTestCoordinator(t, config.Config{})

	job := c.TranscriptionStatus("never-seen")
	assert.Equal(t, domain.JobProcessing, job.Status)
}

func approvedWorkflow(t *testing.T, store *workflow.Store) domain.Workflow {
	t.Helper()

	w := createUploaded(t, store)
	updated, err := store.Apply(w.ID, func(w *domain.Workflow) error {
		workflow.SetTranscript(w, "", "Hello world.")
		return workflow.ApproveTranscript(w)
	})
	require.NoError(t, err)
	return updated
}

const generationBundle = `{
	"success": true,
	"titles": {"blog_titles": ["A"], "podcast_titles": ["B"]},
	"blog_post": {"markdown": "# Post"},
	"show_notes": {"episode_summary": "Summary"}
}`

func TestStartGenerationRequiresApproval(t *testing.T) {
	c, store := newTestCoordinator(t, config.Config{GenerateWebhookURL: "http://unused"})

	w := createUploaded(t, store)
	_, err := store.Apply(w.ID, func(w *domain.Workflow) error {
		workflow.SetTranscript(w, "", "Hello world.")
		return nil
	})
	require.NoError(t, err)

	_, err = c.StartGeneration(context.Background(), w.ID, "")
	var transitionErr *workflow.TransitionError
	require.ErrorAs(t, err, &transitionErr)
}

func TestStartGenerationSynchronous(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(generationBundle))
	}))
	defer srv.Close()

	c, store := newTestCoordinator(t, config.Config{GenerateWebhookURL: srv.URL})
	w := approvedWorkflow(t, store)

	start, err := c.StartGeneration(context.Background(), w.ID, "Episode 1")
	require.NoError(t, err)
	assert.False(t, start.Pending)
	require.NotNil(t, start.Workflow.GeneratedContent)
	assert.Equal(t, "# Post", start.Workflow.GeneratedContent.BlogPost.Markdown)
}

func TestGenerationCallbackCompletesPendingRun(t *testing.T) {
	ack := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"processing"}`))
	}))
	defer ack.Close()

	c, store := newTestCoordinator(t, config.Config{GenerateWebhookURL: ack.URL})
	w := approvedWorkflow(t, store)

	start, err := c.StartGeneration(context.Background(), w.ID, "")
	require.NoError(t, err)
	assert.True(t, start.Pending)

	require.NoError(t, c.HandleGenerationCallback(w.ID, []byte(generationBundle)))
	c.Wait()

	persisted, err := store.Get(w.ID)
	require.NoError(t, err)
	require.NotNil(t, persisted.GeneratedContent)
	assert.False(t, persisted.ContentPending)
	assert.Equal(t, 1, countLogMessages(persisted, "Content generated"))
}

func TestGenerationCallbackReportedFailure(t *testing.T) {
	c, store := newTestCoordinator(t, config.Config{})
	w := approvedWorkflow(t, store)

	_, err := store.Apply(w.ID, func(w *domain.Workflow) error {
		workflow.MarkContentPending(w)
		return nil
	})
	require.NoError(t, err)

	// A well-formed failure report is accepted and terminates the run.
	err = c.HandleGenerationCallback(w.ID, []byte(`{"success": false, "error": "quota exceeded"}`))
	require.NoError(t, err)

	persisted, err := store.Get(w.ID)
	require.NoError(t, err)
	assert.False(t, persisted.ContentPending)
	assert.Nil(t, persisted.GeneratedContent)
	assert.Equal(t, 1, countLogMessages(persisted, "Content generation failed"))

	job := c.ContentStatus(w.ID)
	assert.Equal(t, domain.JobFailed, job.Status)
	assert.Equal(t, "quota exceeded", job.Error)
}

func TestGenerationCallbackRejectsIncomplete(t *testing.T) {
	c, store := newTestCoordinator(t, config.Config{})
	w := approvedWorkflow(t, store)

	_, err := store.Apply(w.ID, func(w *domain.Workflow) error {
		workflow.MarkContentPending(w)
		return nil
	})
	require.NoError(t, err)

	err = c.HandleGenerationCallback(w.ID, []byte(`{"titles": ["A"]}`))
	require.Error(t, err, "an incomplete bundle must be rejected, not recorded")

	persisted, err := store.Get(w.ID)
	require.NoError(t, err)
	assert.True(t, persisted.ContentPending, "a rejected callback must not terminate the run")
	assert.Nil(t, persisted.GeneratedContent)
}

func TestDuplicateGenerationCallback(t *testing.T) {
	c, store := newTestCoordinator(t, config.Config{})
	w := approvedWorkflow(t, store)

	_, err := store.Apply(w.ID, func(w *domain.Workflow) error {
		workflow.MarkContentPending(w)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, c.HandleGenerationCallback(w.ID, []byte(generationBundle)))
	require.NoError(t, c.HandleGenerationCallback(w.ID, []byte(generationBundle)))

	persisted, err := store.Get(w.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, countLogMessages(persisted, "Content generated"))
}

func TestWatchGenerationAbandonment(t *testing.T) {
	c, store := newTestCoordinator(t, config.Config{PollMaxAttempts: 3})
	w := approvedWorkflow(t, store)

	_, err := store.Apply(w.ID, func(w *domain.Workflow) error {
		workflow.MarkContentPending(w)
		return nil
	})
	require.NoError(t, err)
	c.contentJobs.Put(w.ID, domain.ContentJob{WorkflowID: w.ID, Status: domain.JobProcessing})

	outcome, attempts := c.watchGeneration(context.Background(), w.ID)

	assert.Equal(t, jobs.OutcomeAbandoned, outcome)
	assert.Equal(t, 3, attempts)

	persisted, err := store.Get(w.ID)
	require.NoError(t, err)
	assert.False(t, persisted.ContentPending)
	assert.Equal(t, 1, countLogMessages(persisted, "Content generation timed out, try again"))
}

func contentReadyWorkflow(t *testing.T, store *workflow.Store) domain.Workflow {
	t.Helper()

	w := approvedWorkflow(t, store)
	updated, err := store.Apply(w.ID, func(w *domain.Workflow) error {
		workflow.SetGeneratedContent(w, domain.GeneratedContent{
			BlogPost: domain.BlogPost{Markdown: "# Post"},
		})
		return nil
	})
	require.NoError(t, err)
	return updated
}

func TestPublishSuccessRecordsResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "postUrl": "http://blog/post-1", "postId": "1"}`))
	}))
	defer srv.Close()

	c, store := newTestCoordinator(t, config.Config{PublishWebhookURL: srv.URL})
	w := contentReadyWorkflow(t, store)

	updated, err := c.Publish(context.Background(), w.ID, services.PublishRequest{
		Title:        "Episode 1",
		BodyMarkdown: "# Post",
	})
	require.NoError(t, err)
	require.NotNil(t, updated.PublishResult)
	assert.Equal(t, "http://blog/post-1", updated.PublishResult.PostURL)
	assert.Equal(t, workflow.StagePublished, workflow.StageOf(&updated))
}

func TestPublishFailureKeepsLastGoodState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "error": "quota exceeded"}`))
	}))
	defer srv.Close()

	c, store := newTestCoordinator(t, config.Config{PublishWebhookURL: srv.URL})
	w := contentReadyWorkflow(t, store)

	_, err := c.Publish(context.Background(), w.ID, services.PublishRequest{
		Title:        "Episode 1",
		BodyMarkdown: "# Post",
	})
	require.Error(t, err)

	persisted, err := store.Get(w.ID)
	require.NoError(t, err)
	assert.Nil(t, persisted.PublishResult)
	assert.NotNil(t, persisted.GeneratedContent, "a failed publish must not disturb earlier stages")
	assert.Equal(t, 1, countLogMessages(persisted, "Publish failed"))
}
