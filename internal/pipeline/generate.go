package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/maxionmain321/podcast-automation-caio-internal/internal/domain"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/jobs"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/services"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/workflow"
)

// GenerationStart mirrors TranscriptionStart for the content stage. When
// Pending is true the result will arrive via callback or poll, keyed by the
// workflow id.
type GenerationStart struct {
	Workflow domain.Workflow
	Pending  bool
}

// StartGeneration validates the approval gate, dispatches content generation,
// and either lands a synchronous bundle or records a pending marker watched in
// the background.
func (c *Coordinator) StartGeneration(ctx context.Context, workflowID, episodeTitle string) (GenerationStart, error) {
	w, err := c.store.Get(workflowID)
	if err != nil {
		return GenerationStart{}, err
	}
	if err := workflow.BeginGeneration(&w); err != nil {
		return GenerationStart{}, err
	}

	title := episodeTitle
	if title == "" {
		title = w.EpisodeTitle
	}
	if title == "" {
		title = "Untitled Episode"
	}

	disp, err := c.generator.Dispatch(ctx, workflowID, w.Transcript, title)
	if err != nil {
		c.logError(workflowID, domain.LogTypeError, "Content generation dispatch failed", err.Error())
		return GenerationStart{}, err
	}

	if disp.Content != nil {
		updated, err := c.store.Apply(workflowID, func(w *domain.Workflow) error {
			workflow.SetGeneratedContent(w, *disp.Content)
			return nil
		})
		if err != nil {
			return GenerationStart{}, err
		}
		return GenerationStart{Workflow: updated}, nil
	}

	c.contentJobs.Put(workflowID, domain.ContentJob{
		WorkflowID: workflowID,
		Status:     domain.JobProcessing,
	})

	updated, err := c.store.Apply(workflowID, func(w *domain.Workflow) error {
		workflow.MarkContentPending(w)
		return nil
	})
	if err != nil {
		return GenerationStart{}, err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.watchGeneration(c.watcherContext(), workflowID)
	}()

	return GenerationStart{Workflow: updated, Pending: true}, nil
}

// watchGeneration polls the local content job slot, which callbacks fill.
// There is no external status endpoint for generation; the pull channel
// observes what the push channel persisted.
func (c *Coordinator) watchGeneration(ctx context.Context, workflowID string) (jobs.Outcome, int) {
	poller := &jobs.Poller{Interval: c.pollInterval, MaxAttempts: c.pollMaxAttempts}

	outcome := poller.Run(ctx, func(ctx context.Context) (bool, jobs.Outcome, error) {
		if job, ok := c.contentJobs.Get(workflowID); ok && job.Status.Terminal() {
			c.finishGeneration(workflowID, job)
			if job.Status == domain.JobFailed {
				return true, jobs.OutcomeFailed, nil
			}
			return true, jobs.OutcomeCompleted, nil
		}

		w, err := c.store.Get(workflowID)
		if err != nil || !w.ContentPending {
			return true, jobs.OutcomeCanceled, nil
		}
		return false, "", nil
	})

	if outcome == jobs.OutcomeAbandoned {
		if _, err := c.store.Apply(workflowID, func(w *domain.Workflow) error {
			workflow.AbandonGeneration(w)
			return nil
		}); err != nil && c.log != nil {
			c.log.WithError(err).WithField("workflow", workflowID).Warn("could not record abandonment")
		}
	}

	return outcome, poller.Attempts
}

// HandleGenerationCallback accepts a raw callback body, validates that every
// required result section is present, normalizes the shape, and terminates the
// pending job. Duplicate deliveries are no-ops.
func (c *Coordinator) HandleGenerationCallback(workflowID string, body []byte) error {
	content, err := services.NormalizeContent(body)
	if err != nil {
		var reported *services.ReportedFailure
		if errors.As(err, &reported) {
			job := domain.ContentJob{
				WorkflowID: workflowID,
				Status:     domain.JobFailed,
				Error:      reported.Message,
			}
			if c.contentJobs.SetTerminal(workflowID, job) {
				c.finishGeneration(workflowID, job)
			}
			return nil
		}
		// Incomplete or unrecognizable payloads are rejected back to the
		// sender rather than recorded.
		return err
	}

	job := domain.ContentJob{
		WorkflowID: workflowID,
		Status:     domain.JobCompleted,
		Content:    content,
	}
	if !c.contentJobs.SetTerminal(workflowID, job) {
		return nil
	}

	c.finishGeneration(workflowID, job)
	return nil
}

func (c *Coordinator) finishGeneration(workflowID string, job domain.ContentJob) {
	if workflowID == "" {
		return
	}

	_, err := c.store.Apply(workflowID, func(w *domain.Workflow) error {
		switch job.Status {
		case domain.JobCompleted:
			if !w.ContentPending && w.GeneratedContent != nil {
				// Already landed by the other channel.
				return nil
			}
			workflow.SetGeneratedContent(w, *job.Content)
		case domain.JobFailed:
			reason := job.Error
			if strings.TrimSpace(reason) == "" {
				reason = "content generation reported failure"
			}
			workflow.FailGeneration(w, reason)
		}
		return nil
	})
	if err != nil && c.log != nil {
		c.log.WithError(err).WithField("workflow", workflowID).
			Warn("could not write generation result through to workflow")
	}
}
