package model

import "time"

// Job represents a background document-generation job.
// Version is a monotonically incrementing counter used for optimistic
// concurrency: every successful store update bumps it, and writers must
// present the version they read (compare-and-swap).
type Job struct {
	ID           string        `json:"id"`
	Owner        string        `json:"owner"`
	Status       JobStatus     `json:"status"`
	CurrentStage string        `json:"currentStage,omitempty"`
	StageHistory []StageRecord `json:"stageHistory"`
	Progress     int           `json:"progress"`
	Payload      []byte        `json:"payload,omitempty"`
	Result       []byte        `json:"result,omitempty"` // set on success only
	Error        *JobError     `json:"error,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	StartedAt    *time.Time    `json:"startedAt,omitempty"`
	CompletedAt  *time.Time    `json:"completedAt,omitempty"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	Version      int64         `json:"version"`

	// CancelRequested is the advisory cancellation flag. It is kept outside
	// the versioned record (side key / side map in the store) so the cancel
	// path never competes with the executor for the record version; the store
	// populates it on reads.
	CancelRequested bool `json:"cancelRequested,omitempty"`
}

// StageRecord is one completed pipeline stage. The history is append-only.
type StageRecord struct {
	Name        string    `json:"name"`
	CompletedAt time.Time `json:"completedAt"`
}

// JobError describes why a job failed, including which stage broke.
type JobError struct {
	Code    string `json:"code"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message"`
}

// Clone returns a deep copy so store callers can't mutate shared state.
func (j *Job) Clone() *Job {
	cp := *j
	if j.StageHistory != nil {
		cp.StageHistory = make([]StageRecord, len(j.StageHistory))
		copy(cp.StageHistory, j.StageHistory)
	}
	if j.Payload != nil {
		cp.Payload = append([]byte(nil), j.Payload...)
	}
	if j.Result != nil {
		cp.Result = append([]byte(nil), j.Result...)
	}
	if j.Error != nil {
		e := *j.Error
		cp.Error = &e
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// IsActive reports whether the job still counts against the owner's quota.
func (j *Job) IsActive() bool {
	return !j.Status.IsTerminal()
}
