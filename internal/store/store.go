// Package store persists job records. Two interchangeable backends satisfy
// the same contract: an in-process map for single-instance development and a
// Redis-backed store for deployments where the process may restart and
// polling may hit another instance.
package store

import (
	"context"
	"errors"

	"github.com/docuforge/api/internal/model"
)

var (
	// ErrNotFound means no record exists for the given job id.
	ErrNotFound = errors.New("job not found")
	// ErrVersionConflict means another writer mutated the record since the
	// caller read it; the caller must re-read before deciding how to proceed.
	ErrVersionConflict = errors.New("job version conflict")
)

// Mutation applies an in-place change to a job record inside Update.
// Implementations call it with a private copy; the store bumps Version and
// UpdatedAt after it returns.
type Mutation func(job *model.Job) error

// Store is the durable job repository. Every successful Create/Update
// persists immediately; Get reflects the writer's own latest write.
type Store interface {
	// Create persists a new record. The record's ID must be set and unused.
	Create(ctx context.Context, job *model.Job) error

	// Get returns a copy of the record, with the cancellation flag populated.
	Get(ctx context.Context, id string) (*model.Job, error)

	// Update is compare-and-swap on Version: it applies mutate and persists
	// only if the stored version still equals expectedVersion, returning
	// ErrVersionConflict otherwise. Returns the updated record.
	Update(ctx context.Context, id string, expectedVersion int64, mutate Mutation) (*model.Job, error)

	// ListByOwner returns all records belonging to owner, newest first.
	ListByOwner(ctx context.Context, owner string) ([]*model.Job, error)

	// RequestCancel sets the advisory cancellation flag for a job. The flag
	// lives outside the versioned record so setting it never conflicts with
	// the job's executor.
	RequestCancel(ctx context.Context, id string) error
}
