// Package pipeline coordinates the long-running, externally delegated stages
// of the publishing workflow. Transcription and content generation complete on
// the external service's schedule and report back over whichever channel fires
// first: a synchronous response, an inbound callback, or a poll. The
// coordinator reconciles those channels against the persisted workflow record,
// which is the single source of truth.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maxionmain321/podcast-automation-caio-internal/internal/config"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/domain"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/jobs"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/services"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/workflow"
)

type Coordinator struct {
	store       *workflow.Store
	transcriber *services.TranscriptionService
	generator   *services.GenerationService
	publisher   *services.PublishService

	transcriptionJobs *jobs.Store[domain.TranscriptionJob]
	contentJobs       *jobs.Store[domain.ContentJob]

	pollInterval    time.Duration
	pollMaxAttempts int

	log logrus.FieldLogger

	mu      sync.Mutex
	baseCtx context.Context
	wg      sync.WaitGroup
}

func NewCoordinator(
	store *workflow.Store,
	transcriber *services.TranscriptionService,
	generator *services.GenerationService,
	publisher *services.PublishService,
	cfg config.Config,
	log logrus.FieldLogger,
) *Coordinator {
	return &Coordinator{
		store:             store,
		transcriber:       transcriber,
		generator:         generator,
		publisher:         publisher,
		transcriptionJobs: jobs.NewStore[domain.TranscriptionJob](cfg.JobTTL),
		contentJobs:       jobs.NewStore[domain.ContentJob](cfg.JobTTL),
		pollInterval:      cfg.PollInterval,
		pollMaxAttempts:   cfg.PollMaxAttempts,
		log:               log,
		baseCtx:           context.Background(),
	}
}

// Start binds background watchers and job eviction to ctx. Cancelling ctx
// stops every poll loop and the janitors; no timers outlive it.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	c.baseCtx = ctx
	c.mu.Unlock()

	janitorInterval := time.Minute
	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		jobs.NewJanitor(janitorInterval, c.log, c.transcriptionJobs.Sweep).Start(ctx)
	}()
	go func() {
		defer c.wg.Done()
		jobs.NewJanitor(janitorInterval, c.log, c.contentJobs.Sweep).Start(ctx)
	}()
}

// Wait blocks until every background watcher has finished. Main calls this
// after cancelling the Start context.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) watcherContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseCtx
}

// TranscriptionStatus serves the pull channel for the UI. An unknown job id is
// reported as still processing: the job may simply not have called back yet.
func (c *Coordinator) TranscriptionStatus(jobID string) domain.TranscriptionJob {
	if job, ok := c.transcriptionJobs.Get(jobID); ok {
		return job
	}
	return domain.TranscriptionJob{JobID: jobID, Status: domain.JobProcessing}
}

// ContentStatus serves the pull channel for content generation, keyed by
// workflow id.
func (c *Coordinator) ContentStatus(workflowID string) domain.ContentJob {
	if job, ok := c.contentJobs.Get(workflowID); ok {
		return job
	}
	return domain.ContentJob{WorkflowID: workflowID, Status: domain.JobProcessing}
}

func (c *Coordinator) logError(workflowID, logType, message, details string) {
	if _, err := c.store.Apply(workflowID, func(w *domain.Workflow) error {
		workflow.AppendLog(w, logType, message, details)
		return nil
	}); err != nil && c.log != nil {
		c.log.WithError(err).WithField("workflow", workflowID).Warn("could not record error on workflow")
	}
}
