package workflow

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maxionmain321/podcast-automation-caio-internal/internal/domain"
)

// Stage is derived from which workflow fields are populated. It is never
// stored on the record.
type Stage string

const (
	StageEmpty           Stage = "empty"
	StageUploaded        Stage = "uploaded"
	StageTranscribing    Stage = "transcribing"
	StageTranscriptReady Stage = "transcript_ready"
	StageApproved        Stage = "approved"
	StageContentReady    Stage = "content_ready"
	StagePublishing      Stage = "publishing"
	StagePublished       Stage = "published"
)

// TransitionError is a rejected stage action. The Reason is meant to be shown
// to the operator as-is.
type TransitionError struct {
	Reason string
}

func (e *TransitionError) Error() string { return e.Reason }

func reject(reason string) error { return &TransitionError{Reason: reason} }

// StageOf derives the current stage from the record's populated fields.
func StageOf(w *domain.Workflow) Stage {
	switch {
	case w.PublishResult != nil:
		return StagePublished
	case w.UploadedFile == nil:
		return StageEmpty
	case strings.TrimSpace(w.Transcript) == "":
		if w.TranscriptionID != "" {
			return StageTranscribing
		}
		return StageUploaded
	case !w.TranscriptApproved:
		return StageTranscriptReady
	case w.GeneratedContent == nil:
		return StageApproved
	default:
		return StageContentReady
	}
}

// ApplyUpload records a completed upload. Re-uploading resets every downstream
// field: content derived from a previous file must never survive a new one.
func ApplyUpload(w *domain.Workflow, file domain.UploadedFile) error {
	if file.URL == "" || file.Filename == "" {
		return reject("upload is missing a file URL or filename")
	}

	w.UploadedFile = &file
	w.Transcript = ""
	w.TranscriptionID = ""
	w.TranscriptApproved = false
	w.GeneratedContent = nil
	w.ContentPending = false
	w.SelectedContent = nil
	w.PublishResult = nil

	AppendLog(w, domain.LogTypeUpload, "Uploaded "+file.Filename, "")
	return nil
}

// BeginTranscription validates that transcription may be dispatched.
func BeginTranscription(w *domain.Workflow) error {
	if w.UploadedFile == nil {
		return reject("upload a file before requesting transcription")
	}
	return nil
}

// MarkTranscriptionPending records an async dispatch awaiting completion.
func MarkTranscriptionPending(w *domain.Workflow, jobID string) {
	w.TranscriptionID = jobID
	w.Transcript = ""
	w.TranscriptApproved = false
	AppendLog(w, domain.LogTypeTranscribe, "Transcription started", "job "+jobID)
}

// SetTranscript writes a completed transcript. Only the first terminal write
// for a given job takes effect; a later duplicate (callback after poll, or the
// same callback delivered twice) is a no-op.
func SetTranscript(w *domain.Workflow, jobID, transcript string) bool {
	if jobID != "" && w.TranscriptionID != jobID {
		return false
	}
	if strings.TrimSpace(w.Transcript) != "" {
		return false
	}

	w.Transcript = transcript
	w.TranscriptionID = ""
	AppendLog(w, domain.LogTypeTranscribe, "Transcript received", "")
	return true
}

// FailTranscription records a terminal failure observed for the pending job.
func FailTranscription(w *domain.Workflow, jobID, reason string) bool {
	if jobID != "" && w.TranscriptionID != jobID {
		return false
	}
	if w.TranscriptionID == "" {
		return false
	}

	w.TranscriptionID = ""
	AppendLog(w, domain.LogTypeError, "Transcription failed", reason)
	return true
}

// AbandonTranscription records that the poll budget ran out without a signal.
// This is "we stopped waiting", distinct from an upstream failure.
func AbandonTranscription(w *domain.Workflow, jobID string) bool {
	if jobID != "" && w.TranscriptionID != jobID {
		return false
	}
	if w.TranscriptionID == "" {
		return false
	}

	w.TranscriptionID = ""
	AppendLog(w, domain.LogTypeError, "Transcription timed out, try again", "job "+jobID)
	return true
}

// EditTranscript replaces the transcript text before approval.
func EditTranscript(w *domain.Workflow, text string) error {
	if strings.TrimSpace(w.Transcript) == "" {
		return reject("there is no transcript to edit yet")
	}
	if strings.TrimSpace(text) == "" {
		return reject("transcript cannot be emptied")
	}

	w.Transcript = text
	w.TranscriptApproved = false
	return nil
}

// ApproveTranscript gates content generation on an explicit operator action.
func ApproveTranscript(w *domain.Workflow) error {
	if strings.TrimSpace(w.Transcript) == "" {
		return reject("transcript must be present before approval")
	}

	w.TranscriptApproved = true
	AppendLog(w, domain.LogTypeTranscribe, "Transcript approved", "")
	return nil
}

// BeginGeneration validates that content generation may be dispatched.
func BeginGeneration(w *domain.Workflow) error {
	if strings.TrimSpace(w.Transcript) == "" {
		return reject("transcript must be present before generating content")
	}
	if !w.TranscriptApproved {
		return reject("transcript must be approved first")
	}
	return nil
}

// MarkContentPending records an async generation dispatch.
func MarkContentPending(w *domain.Workflow) {
	w.ContentPending = true
	AppendLog(w, domain.LogTypeGenerate, "Content generation started", "")
}

// SetGeneratedContent writes a completed generation result. Regeneration
// replaces the bundle but deliberately leaves SelectedContent alone so the
// operator keeps earlier picks.
func SetGeneratedContent(w *domain.Workflow, content domain.GeneratedContent) {
	w.GeneratedContent = &content
	w.ContentPending = false
	AppendLog(w, domain.LogTypeGenerate, "Content generated", "")
}

// FailGeneration records a terminal generation failure if one is pending.
func FailGeneration(w *domain.Workflow, reason string) bool {
	if !w.ContentPending {
		return false
	}

	w.ContentPending = false
	AppendLog(w, domain.LogTypeError, "Content generation failed", reason)
	return true
}

// AbandonGeneration records poll-budget exhaustion for a pending generation.
func AbandonGeneration(w *domain.Workflow) bool {
	if !w.ContentPending {
		return false
	}

	w.ContentPending = false
	AppendLog(w, domain.LogTypeError, "Content generation timed out, try again", "")
	return true
}

// SelectContent records operator picks among the generated variants.
func SelectContent(w *domain.Workflow, picks domain.SelectedContent) error {
	if w.GeneratedContent == nil {
		return reject("generate content before selecting variants")
	}

	if w.SelectedContent == nil {
		w.SelectedContent = &domain.SelectedContent{}
	}
	if picks.SEOTitle != "" {
		w.SelectedContent.SEOTitle = picks.SEOTitle
	}
	if picks.BlogPostMarkdown != "" {
		w.SelectedContent.BlogPostMarkdown = picks.BlogPostMarkdown
	}
	if picks.ShowNotesMarkdown != "" {
		w.SelectedContent.ShowNotesMarkdown = picks.ShowNotesMarkdown
	}
	return nil
}

// BeginPublish validates the publish preconditions locally, before any
// external call is made.
func BeginPublish(w *domain.Workflow, title, body string) error {
	if w.GeneratedContent == nil {
		return reject("generate content before publishing")
	}
	if strings.TrimSpace(title) == "" || strings.TrimSpace(body) == "" {
		return reject("title and body are required to publish")
	}
	return nil
}

// CompletePublish records the terminal publish result.
func CompletePublish(w *domain.Workflow, postURL, postID string) {
	w.PublishResult = &domain.PublishResult{
		PostURL:     postURL,
		PostID:      postID,
		PublishedAt: time.Now().UTC(),
	}
	AppendLog(w, domain.LogTypePublish, "Published", postURL)
}

// FailPublish records a failed publish attempt; the record keeps its last good
// state so the operator can retry.
func FailPublish(w *domain.Workflow, reason string) {
	AppendLog(w, domain.LogTypeError, "Publish failed", reason)
}

// AppendLog prepends an entry so the log reads newest first. Entries are never
// edited or removed.
func AppendLog(w *domain.Workflow, logType, message, details string) {
	entry := domain.LogEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      logType,
		Message:   message,
		Details:   details,
	}
	w.ActivityLog = append([]domain.LogEntry{entry}, w.ActivityLog...)
}
