package pipeline

import (
	"context"
	"strings"

	"github.com/maxionmain321/podcast-automation-caio-internal/internal/domain"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/jobs"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/workflow"
)

// TranscriptionStart is what a transcription dispatch produced: either the
// workflow already carries the transcript (synchronous path) or a job id is
// pending reconciliation.
type TranscriptionStart struct {
	Workflow domain.Workflow
	JobID    string
}

// StartTranscription validates the stage preconditions, dispatches the
// external job, and either lands the synchronous result or records a pending
// marker and hands the job to a background watcher.
func (c *Coordinator) StartTranscription(ctx context.Context, workflowID, episodeTitle string) (TranscriptionStart, error) {
	w, err := c.store.Get(workflowID)
	if err != nil {
		return TranscriptionStart{}, err
	}
	if err := workflow.BeginTranscription(&w); err != nil {
		return TranscriptionStart{}, err
	}

	metadata := map[string]any{
		"filename": w.UploadedFile.Filename,
		"size":     w.UploadedFile.Size,
	}
	disp, err := c.transcriber.Dispatch(ctx, w.UploadedFile.URL, episodeTitle, metadata)
	if err != nil {
		// Dispatch failure is fatal to this attempt: surface it now, leave
		// the record in its last good state apart from the log entry.
		c.logError(workflowID, domain.LogTypeError, "Transcription dispatch failed", err.Error())
		return TranscriptionStart{}, err
	}

	if disp.Transcript != "" {
		updated, err := c.store.Apply(workflowID, func(w *domain.Workflow) error {
			if w.EpisodeTitle == "" {
				w.EpisodeTitle = episodeTitle
			}
			workflow.SetTranscript(w, "", disp.Transcript)
			return nil
		})
		if err != nil {
			return TranscriptionStart{}, err
		}
		return TranscriptionStart{Workflow: updated}, nil
	}

	c.transcriptionJobs.Put(disp.JobID, domain.TranscriptionJob{
		JobID:      disp.JobID,
		WorkflowID: workflowID,
		Status:     domain.JobProcessing,
	})

	updated, err := c.store.Apply(workflowID, func(w *domain.Workflow) error {
		if w.EpisodeTitle == "" {
			w.EpisodeTitle = episodeTitle
		}
		workflow.MarkTranscriptionPending(w, disp.JobID)
		return nil
	})
	if err != nil {
		return TranscriptionStart{}, err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.watchTranscription(c.watcherContext(), workflowID, disp.JobID)
	}()

	return TranscriptionStart{Workflow: updated, JobID: disp.JobID}, nil
}

// watchTranscription is the pull side of the bridge. Every attempt re-reads
// the persisted job and workflow state so a result written concurrently by a
// callback ends the loop instead of being overwritten with stale data.
func (c *Coordinator) watchTranscription(ctx context.Context, workflowID, jobID string) (jobs.Outcome, int) {
	poller := &jobs.Poller{Interval: c.pollInterval, MaxAttempts: c.pollMaxAttempts}

	outcome := poller.Run(ctx, func(ctx context.Context) (bool, jobs.Outcome, error) {
		// A callback may already have terminated the job.
		if job, ok := c.transcriptionJobs.Get(jobID); ok && job.Status.Terminal() {
			c.finishTranscription(workflowID, job)
			if job.Status == domain.JobFailed {
				return true, jobs.OutcomeFailed, nil
			}
			return true, jobs.OutcomeCompleted, nil
		}

		// A re-upload or a newer dispatch supersedes this job.
		w, err := c.store.Get(workflowID)
		if err != nil || w.TranscriptionID != jobID {
			return true, jobs.OutcomeCanceled, nil
		}

		if !c.transcriber.HasStatusEndpoint() {
			return false, "", nil
		}

		job, err := c.transcriber.JobStatus(ctx, jobID)
		if err != nil {
			return false, "", err
		}
		if !job.Status.Terminal() {
			return false, "", nil
		}

		job.WorkflowID = workflowID
		// Only the first terminal write counts; if the callback got here in
		// the meantime, its result stands and this poll observation is
		// discarded.
		if c.transcriptionJobs.SetTerminal(jobID, job) {
			c.finishTranscription(workflowID, job)
		} else if existing, ok := c.transcriptionJobs.Get(jobID); ok {
			job = existing
		}

		if job.Status == domain.JobFailed {
			return true, jobs.OutcomeFailed, nil
		}
		return true, jobs.OutcomeCompleted, nil
	})

	if outcome == jobs.OutcomeAbandoned {
		if _, err := c.store.Apply(workflowID, func(w *domain.Workflow) error {
			workflow.AbandonTranscription(w, jobID)
			return nil
		}); err != nil && c.log != nil {
			c.log.WithError(err).WithField("workflow", workflowID).Warn("could not record abandonment")
		}
		if c.log != nil {
			c.log.WithFields(map[string]any{"workflow": workflowID, "job": jobID, "attempts": poller.Attempts}).
				Warn("transcription poll budget exhausted")
		}
	}

	return outcome, poller.Attempts
}

// HandleTranscriptionCallback is the push side of the bridge. Delivery is
// at-least-once: duplicates and late arrivals after a terminal write are safe
// no-ops.
func (c *Coordinator) HandleTranscriptionCallback(jobID string, status domain.JobStatus, transcript, errMsg string) error {
	workflowID := c.workflowForJob(jobID)

	job := domain.TranscriptionJob{
		JobID:      jobID,
		WorkflowID: workflowID,
		Status:     status,
		Transcript: transcript,
		Error:      errMsg,
	}

	if !status.Terminal() {
		c.transcriptionJobs.Put(jobID, job)
		return nil
	}

	if !c.transcriptionJobs.SetTerminal(jobID, job) {
		return nil
	}

	c.finishTranscription(workflowID, job)
	return nil
}

// finishTranscription writes a terminal job result through to the workflow
// record. The transition guards inside Apply make a second write for the same
// job a no-op, so callback and poll can race in either order.
func (c *Coordinator) finishTranscription(workflowID string, job domain.TranscriptionJob) {
	if workflowID == "" {
		return
	}

	_, err := c.store.Apply(workflowID, func(w *domain.Workflow) error {
		switch job.Status {
		case domain.JobCompleted:
			workflow.SetTranscript(w, job.JobID, job.Transcript)
		case domain.JobFailed:
			reason := job.Error
			if strings.TrimSpace(reason) == "" {
				reason = "transcription service reported failure"
			}
			workflow.FailTranscription(w, job.JobID, reason)
		}
		return nil
	})
	if err != nil && c.log != nil {
		c.log.WithError(err).WithFields(map[string]any{"workflow": workflowID, "job": job.JobID}).
			Warn("could not write transcription result through to workflow")
	}
}

// workflowForJob resolves the correlation token to a workflow id: first the
// job store, then the pending marker on any workflow, finally the token
// itself if it names a workflow directly.
func (c *Coordinator) workflowForJob(jobID string) string {
	if job, ok := c.transcriptionJobs.Get(jobID); ok && job.WorkflowID != "" {
		return job.WorkflowID
	}

	for _, w := range c.store.List() {
		if w.TranscriptionID == jobID {
			return w.ID
		}
	}

	if _, err := c.store.Get(jobID); err == nil {
		return jobID
	}
	return ""
}
