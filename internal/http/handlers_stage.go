package http

import (
	"encoding/json"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/maxionmain321/podcast-automation-caio-internal/internal/domain"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/services"
	"github.com/maxionmain321/podcast-automation-caio-internal/internal/workflow"
)

// handleTranscribe kicks off transcription. The response shape depends on
// which path the upstream took: a transcript for the synchronous path, a job
// id when the result is still pending.
func (a *API) handleTranscribe(c *gin.Context) {
	var payload struct {
		WorkflowID   string `json:"workflowId" binding:"required"`
		EpisodeTitle string `json:"episodeTitle"`
		AudioURL     string `json:"audioUrl"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondMessage(c, http.StatusBadRequest, "Missing required fields")
		return
	}

	// An explicit audio URL stands in for a recorded upload, for audio hosted
	// outside the delegated bucket.
	if payload.AudioURL != "" {
		if _, err := a.store.Apply(payload.WorkflowID, func(w *domain.Workflow) error {
			if w.UploadedFile != nil && w.UploadedFile.URL == payload.AudioURL {
				return nil
			}
			return workflow.ApplyUpload(w, domain.UploadedFile{
				URL:      payload.AudioURL,
				Filename: path.Base(payload.AudioURL),
			})
		}); err != nil {
			a.respondStageError(c, err)
			return
		}
	}

	start, err := a.coordinator.StartTranscription(c.Request.Context(), payload.WorkflowID, payload.EpisodeTitle)
	if err != nil {
		a.respondStageError(c, err)
		return
	}

	if start.JobID != "" {
		c.JSON(http.StatusOK, gin.H{"status": "processing", "jobId": start.JobID})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "completed",
		"transcript": start.Workflow.Transcript,
		"workflow":   start.Workflow,
	})
}

// handleTranscriptionStatus is the pull channel the dashboard uses while a
// transcription job is in flight.
func (a *API) handleTranscriptionStatus(c *gin.Context) {
	jobID := c.Query("jobId")
	if jobID == "" {
		respondMessage(c, http.StatusBadRequest, "jobId is required")
		return
	}
	c.JSON(http.StatusOK, a.coordinator.TranscriptionStatus(jobID))
}

// handleTranscribeCallback is the push channel. Providers report in a few
// shapes: an explicit status, or just a transcript which counts as completion.
func (a *API) handleTranscribeCallback(c *gin.Context) {
	var payload struct {
		JobID         string `json:"jobId"`
		JobIDSnake    string `json:"job_id"`
		CorrelationID string `json:"correlationId"`
		Status        string `json:"status"`
		Transcript    string `json:"transcript"`
		Text          string `json:"text"`
		Error         string `json:"error"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid callback payload")
		return
	}

	jobID := payload.JobID
	if jobID == "" {
		jobID = payload.JobIDSnake
	}
	if jobID == "" {
		jobID = payload.CorrelationID
	}
	if jobID == "" {
		respondMessage(c, http.StatusBadRequest, "jobId is required")
		return
	}

	transcript := payload.Transcript
	if transcript == "" {
		transcript = payload.Text
	}

	var status domain.JobStatus
	switch strings.ToLower(payload.Status) {
	case "completed", "complete", "done":
		status = domain.JobCompleted
	case "failed", "error":
		status = domain.JobFailed
	case "":
		if transcript != "" {
			status = domain.JobCompleted
		} else {
			status = domain.JobProcessing
		}
	default:
		status = domain.JobProcessing
	}

	if status == domain.JobCompleted && transcript == "" {
		respondMessage(c, http.StatusBadRequest, "completed callback is missing the transcript")
		return
	}

	if err := a.coordinator.HandleTranscriptionCallback(jobID, status, transcript, payload.Error); err != nil {
		a.respondStageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (a *API) handleEditTranscript(c *gin.Context) {
	var payload struct {
		Transcript string `json:"transcript" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondMessage(c, http.StatusBadRequest, "Missing required fields")
		return
	}

	updated, err := a.store.Apply(c.Param("id"), func(w *domain.Workflow) error {
		return workflow.EditTranscript(w, payload.Transcript)
	})
	if err != nil {
		a.respondStageError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (a *API) handleApproveTranscript(c *gin.Context) {
	updated, err := a.store.Apply(c.Param("id"), workflow.ApproveTranscript)
	if err != nil {
		a.respondStageError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// handleGenerate starts content generation. Pending means the bundle will
// arrive via callback or poll, keyed by the workflow id.
func (a *API) handleGenerate(c *gin.Context) {
	var payload struct {
		WorkflowID   string `json:"workflowId" binding:"required"`
		EpisodeTitle string `json:"episodeTitle"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondMessage(c, http.StatusBadRequest, "Missing required fields")
		return
	}

	start, err := a.coordinator.StartGeneration(c.Request.Context(), payload.WorkflowID, payload.EpisodeTitle)
	if err != nil {
		a.respondStageError(c, err)
		return
	}

	if start.Pending {
		c.JSON(http.StatusOK, gin.H{"status": "processing", "workflowId": payload.WorkflowID})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "completed",
		"content":  start.Workflow.GeneratedContent,
		"workflow": start.Workflow,
	})
}

func (a *API) handleContentStatus(c *gin.Context) {
	workflowID := c.Query("workflowId")
	if workflowID == "" {
		respondMessage(c, http.StatusBadRequest, "workflowId is required")
		return
	}
	c.JSON(http.StatusOK, a.coordinator.ContentStatus(workflowID))
}

// handleGenerateCallback accepts the generated bundle, which some providers
// wrap in a single-element array. The workflow id rides along under a few
// different names.
func (a *API) handleGenerateCallback(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "unreadable callback payload")
		return
	}

	workflowID := extractWorkflowID(body)
	if workflowID == "" {
		respondMessage(c, http.StatusBadRequest, "workflowId is required")
		return
	}

	if err := a.coordinator.HandleGenerationCallback(workflowID, body); err != nil {
		// The only errors surfaced here are payload problems: the sender gets
		// a 400 and is expected to redeliver a complete result.
		respondError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// extractWorkflowID digs the correlation id out of a raw callback body,
// unwrapping a single-element array first when present.
func extractWorkflowID(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil || len(items) == 0 {
			return ""
		}
		body = items[0]
	}

	var ids struct {
		WorkflowID    string `json:"workflowId"`
		WorkflowSnake string `json:"workflow_id"`
		CorrelationID string `json:"correlationId"`
	}
	if err := json.Unmarshal(body, &ids); err != nil {
		return ""
	}
	if ids.WorkflowID != "" {
		return ids.WorkflowID
	}
	if ids.WorkflowSnake != "" {
		return ids.WorkflowSnake
	}
	return ids.CorrelationID
}

func (a *API) handleSelectContent(c *gin.Context) {
	var picks domain.SelectedContent
	if err := c.ShouldBindJSON(&picks); err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid selection payload")
		return
	}

	updated, err := a.store.Apply(c.Param("id"), func(w *domain.Workflow) error {
		return workflow.SelectContent(w, picks)
	})
	if err != nil {
		a.respondStageError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// handlePublish pushes the selected content to the publishing endpoint and
// records the outcome either way.
func (a *API) handlePublish(c *gin.Context) {
	var payload struct {
		WorkflowID         string   `json:"workflowId" binding:"required"`
		Title              string   `json:"title"`
		BodyMarkdown       string   `json:"bodyMarkdown"`
		PrimaryKeyword     string   `json:"primaryKeyword"`
		SecondaryKeywords  []string `json:"secondaryKeywords"`
		Category           string   `json:"category"`
		Tags               []string `json:"tags"`
		PublishImmediately *bool    `json:"publishImmediately"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondMessage(c, http.StatusBadRequest, "Missing required fields")
		return
	}

	// Omitted title or body falls back to what the operator selected on the
	// workflow, so the dashboard can publish the stored package as-is.
	if payload.Title == "" || payload.BodyMarkdown == "" {
		if w, err := a.store.Get(payload.WorkflowID); err == nil && w.SelectedContent != nil {
			if payload.Title == "" {
				payload.Title = w.SelectedContent.SEOTitle
			}
			if payload.BodyMarkdown == "" {
				payload.BodyMarkdown = w.SelectedContent.BlogPostMarkdown
			}
		}
	}

	updated, err := a.coordinator.Publish(c.Request.Context(), payload.WorkflowID, services.PublishRequest{
		Title:              payload.Title,
		BodyMarkdown:       payload.BodyMarkdown,
		PrimaryKeyword:     payload.PrimaryKeyword,
		SecondaryKeywords:  payload.SecondaryKeywords,
		Category:           payload.Category,
		Tags:               payload.Tags,
		PublishImmediately: payload.PublishImmediately,
	})
	if err != nil {
		a.respondStageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": updated.PublishResult, "workflow": updated})
}
