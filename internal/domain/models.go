package domain

import "time"

// Workflow is the aggregate record for one episode moving through the
// publishing pipeline. The current stage is derived from which fields are
// populated, not stored separately.
type Workflow struct {
	ID                 string            `json:"id"`
	UploadedFile       *UploadedFile     `json:"uploadedFile"`
	Transcript         string            `json:"transcript"`
	EpisodeTitle       string            `json:"episodeTitle,omitempty"`
	TranscriptionID    string            `json:"transcriptionId,omitempty"`
	TranscriptApproved bool              `json:"transcriptApproved"`
	GeneratedContent   *GeneratedContent `json:"generatedContent"`
	ContentPending     bool              `json:"contentPending,omitempty"`
	SelectedContent    *SelectedContent  `json:"selectedContent,omitempty"`
	PublishResult      *PublishResult    `json:"publishResult,omitempty"`
	PDFPath            string            `json:"pdfPath,omitempty"`
	ActivityLog        []LogEntry        `json:"activityLog"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

type UploadedFile struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// GeneratedContent is the canonical bundle produced by the content generation
// service. Upstream shape variants are normalized into this at the service
// boundary before any of it reaches the workflow record.
type GeneratedContent struct {
	Titles    TitleSet  `json:"titles"`
	BlogPost  BlogPost  `json:"blogPost"`
	ShowNotes ShowNotes `json:"showNotes"`
}

type TitleSet struct {
	BlogTitles    []string `json:"blogTitles"`
	PodcastTitles []string `json:"podcastTitles"`
}

type BlogPost struct {
	Markdown    string `json:"markdown"`
	WordCount   int    `json:"wordCount,omitempty"`
	ReadingTime string `json:"readingTime,omitempty"`
}

type ShowNotes struct {
	EpisodeSummary     string      `json:"episodeSummary"`
	KeyTopicsDiscussed []string    `json:"keyTopicsDiscussed,omitempty"`
	KeyTakeaways       []string    `json:"keyTakeaways,omitempty"`
	NotableQuotes      []string    `json:"notableQuotes,omitempty"`
	Timestamps         []Timestamp `json:"timestamps,omitempty"`
}

type Timestamp struct {
	Time  string `json:"time"`
	Topic string `json:"topic"`
}

// SelectedContent holds the operator's picks among the generated variants.
// It is kept separate from GeneratedContent so a regeneration does not discard
// previous selections.
type SelectedContent struct {
	SEOTitle          string `json:"seoTitle,omitempty"`
	BlogPostMarkdown  string `json:"blogPostMarkdown,omitempty"`
	ShowNotesMarkdown string `json:"showNotesMarkdown,omitempty"`
}

type PublishResult struct {
	PostURL     string    `json:"postUrl"`
	PostID      string    `json:"postId"`
	PublishedAt time.Time `json:"publishedAt"`
}

type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
}

const (
	LogTypeUpload     = "upload"
	LogTypeTranscribe = "transcribe"
	LogTypeGenerate   = "generate"
	LogTypePublish    = "publish"
	LogTypeError      = "error"
)

// TranscriptionJob correlates an in-flight external transcription request with
// a workflow. Jobs are transient; the workflow record is the durable copy once
// a terminal status has been written through.
type TranscriptionJob struct {
	JobID      string    `json:"jobId"`
	WorkflowID string    `json:"workflowId"`
	Status     JobStatus `json:"status"`
	Transcript string    `json:"transcript,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// ContentJob tracks an in-flight content generation run, keyed by workflow id.
type ContentJob struct {
	WorkflowID string            `json:"workflowId"`
	Status     JobStatus         `json:"status"`
	Content    *GeneratedContent `json:"content,omitempty"`
	Error      string            `json:"error,omitempty"`
}

type JobStatus string

const (
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the status is one the job can never leave.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

func (j TranscriptionJob) JobStatus() JobStatus { return j.Status }

func (j ContentJob) JobStatus() JobStatus { return j.Status }
