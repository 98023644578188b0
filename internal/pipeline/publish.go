package pipeline

import (
	"context"

	"github.com/maxionmain321/podcast-automation-caio-internal/internal/domain"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/services"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/workflow"
)

// Publish validates the package locally, submits it, and maps the response to
// a terminal state. A failed publish leaves the record in its last good state
// apart from the log entry; the operator retries the whole stage.
func (c *Coordinator) Publish(ctx context.Context, workflowID string, req services.PublishRequest) (domain.Workflow, error) {
	w, err := c.store.Get(workflowID)
	if err != nil {
		return domain.Workflow{}, err
	}
	if err := workflow.BeginPublish(&w, req.Title, req.BodyMarkdown); err != nil {
		return domain.Workflow{}, err
	}

	resp, err := c.publisher.Publish(ctx, req)
	if err != nil {
		updated, applyErr := c.store.Apply(workflowID, func(w *domain.Workflow) error {
			workflow.FailPublish(w, err.Error())
			return nil
		})
		if applyErr != nil {
			return domain.Workflow{}, applyErr
		}
		return updated, err
	}

	return c.store.Apply(workflowID, func(w *domain.Workflow) error {
		workflow.CompletePublish(w, resp.PostURL, resp.PostID)
		return nil
	})
}
