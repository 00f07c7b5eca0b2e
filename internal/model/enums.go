package model

// Job status
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether no further status transitions are permitted.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the status state machine permits from -> to.
// queued -> running, queued -> cancelled, running -> any terminal state.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusQueued:
		return to == JobStatusRunning || to == JobStatusCancelled
	case JobStatusRunning:
		return to.IsTerminal()
	}
	return false
}

// Job error codes stored on failed records
const (
	JobErrorStageFailed      = "STAGE_FAILED"
	JobErrorTimeout          = "TIMEOUT"
	JobErrorStoreError       = "STORE_ERROR"
	JobErrorExecutorConflict = "EXECUTOR_CONFLICT"
)

// Response modes
type ResponseMode string

const (
	ResponseModeAuto     ResponseMode = "auto"
	ResponseModeFast     ResponseMode = "fast"
	ResponseModeStandard ResponseMode = "standard"
	ResponseModeDeep     ResponseMode = "deep"
)

// Language
type Language string

const (
	LanguageEN Language = "en"
	LanguageSV Language = "sv"
	LanguageFR Language = "fr"
)

// Document tones
type Tone string

const (
	ToneNeutral    Tone = "neutral"
	ToneFormal     Tone = "formal"
	ToneConfident  Tone = "confident"
	ToneAccessible Tone = "accessible"
)

// Export formats
type ExportFormat string

const (
	ExportFormatMarkdown ExportFormat = "markdown"
	ExportFormatHTML     ExportFormat = "html"
	ExportFormatText     ExportFormat = "text"
)
