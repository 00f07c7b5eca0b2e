package model

import "time"

// DocumentGenerateRequest represents the request body for starting a
// document-generation job.
type DocumentGenerateRequest struct {
	Title        string       `json:"title" validate:"required,min=1,max=200"`
	Brief        string       `json:"brief" validate:"required,min=1,max=4000"`
	ProjectID    string       `json:"projectId" validate:"omitempty,uuid4"`
	Sections     []string     `json:"sections" validate:"omitempty,max=20,dive,min=1,max=120"`
	TargetWords  int          `json:"targetWords" validate:"omitempty,min=100,max=20000"`
	ResponseMode ResponseMode `json:"responseMode" validate:"omitempty,oneof=auto fast standard deep"`
	Language     Language     `json:"language" validate:"omitempty,oneof=en sv fr"`
	Tone         Tone         `json:"tone" validate:"omitempty,oneof=neutral formal confident accessible"`
}

// DocumentGenerateResponse is returned synchronously from the create
// endpoint; the job itself runs in the background.
type DocumentGenerateResponse struct {
	JobID             string    `json:"jobId"`
	Status            JobStatus `json:"status"`
	EstimatedDuration int       `json:"estimatedDuration"` // seconds
	CreatedAt         time.Time `json:"createdAt"`
}

// DocumentStatusResponse is the polling payload. It mirrors the stored job
// record; ResultReady tells the client when /result will answer.
type DocumentStatusResponse struct {
	JobID           string        `json:"jobId"`
	Status          JobStatus     `json:"status"`
	CurrentStage    string        `json:"currentStage,omitempty"`
	StageHistory    []StageRecord `json:"stageHistory"`
	Progress        int           `json:"progress"`
	Error           *JobError     `json:"error,omitempty"`
	ResultReady     bool          `json:"resultReady"`
	CancelRequested bool          `json:"cancelRequested,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	StartedAt       *time.Time    `json:"startedAt,omitempty"`
	CompletedAt     *time.Time    `json:"completedAt,omitempty"`
}

// DocumentCancelResponse acknowledges a cancellation request. Cancellation
// is cooperative: the job transitions to cancelled at the next stage
// boundary, not in this call.
type DocumentCancelResponse struct {
	Success         bool      `json:"success"`
	JobID           string    `json:"jobId"`
	Status          JobStatus `json:"status"`
	CancelRequested bool      `json:"cancelRequested"`
}

// DocumentJobSummary is one entry of the owner's job listing.
type DocumentJobSummary struct {
	JobID        string     `json:"jobId"`
	Title        string     `json:"title,omitempty"`
	Status       JobStatus  `json:"status"`
	Progress     int        `json:"progress"`
	CurrentStage string     `json:"currentStage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// SectionResult is one written section of the generated document.
type SectionResult struct {
	Heading string `json:"heading"`
	Content string `json:"content"`
}

// SourceRef points at source material used while drafting.
type SourceRef struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet,omitempty"`
}

// DocumentResult is the result payload of a succeeded job.
type DocumentResult struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Sections    []SectionResult `json:"sections"`
	Sources     []SourceRef     `json:"sources,omitempty"`
	WordCount   int             `json:"wordCount"`
	Verified    bool            `json:"verified"`
	ArtifactURL string          `json:"artifactUrl,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// OutlineGenerateRequest represents the request body for synchronous
// outline drafting.
type OutlineGenerateRequest struct {
	Title       string   `json:"title" validate:"required,min=1,max=200"`
	Brief       string   `json:"brief" validate:"required,min=1,max=4000"`
	MaxSections int      `json:"maxSections" validate:"omitempty,min=2,max=20"`
	Language    Language `json:"language" validate:"omitempty,oneof=en sv fr"`
}

// OutlineGenerateResponse represents the response for outline drafting.
type OutlineGenerateResponse struct {
	Sections []string `json:"sections"`
}

// ExportRequest asks for a succeeded job's document as a downloadable
// artifact in the given format.
type ExportRequest struct {
	JobID string `json:"jobId" validate:"required,uuid4"`
}

// ExportResponse carries the artifact location.
type ExportResponse struct {
	FileURL   string       `json:"fileUrl"`
	Format    ExportFormat `json:"format"`
	Size      int64        `json:"size"`
	ExpiresAt time.Time    `json:"expiresAt"`
}
