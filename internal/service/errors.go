package service

import "errors"

// Sentinel errors the handlers map to API error codes.
var (
	// ErrNotFound means the job does not exist or has aged out of retention.
	ErrNotFound = errors.New("job not found")

	// ErrForbidden means the job exists but belongs to another owner.
	ErrForbidden = errors.New("job belongs to another owner")

	// ErrQuotaExceeded means the owner already has the maximum number of
	// active jobs.
	ErrQuotaExceeded = errors.New("active job quota exceeded")

	// ErrNotCompleted means the result was requested before the job
	// succeeded.
	ErrNotCompleted = errors.New("job not completed")

	// ErrInvalidTransition means the requested status change is not
	// permitted by the state machine (for example cancelling a job that
	// already finished).
	ErrInvalidTransition = errors.New("invalid status transition")
)
