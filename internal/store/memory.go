package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/docuforge/api/internal/model"
)

// MemoryStore is the in-process backend for single-instance development and
// tests. Records do not survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	jobs    map[string]*model.Job
	cancels map[string]bool
}

// NewMemoryStore creates an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:    make(map[string]*model.Job),
		cancels: make(map[string]bool),
	}
}

func (s *MemoryStore) Create(ctx context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := job.Clone()
	if cp.Version == 0 {
		cp.Version = 1
	}
	cp.UpdatedAt = time.Now()
	s.jobs[cp.ID] = cp
	job.Version = cp.Version
	job.UpdatedAt = cp.UpdatedAt
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := job.Clone()
	cp.CancelRequested = s.cancels[id]
	return cp, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, expectedVersion int64, mutate Mutation) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if job.Version != expectedVersion {
		return nil, ErrVersionConflict
	}

	cp := job.Clone()
	if err := mutate(cp); err != nil {
		return nil, err
	}
	cp.Version = expectedVersion + 1
	cp.UpdatedAt = time.Now()
	s.jobs[id] = cp

	out := cp.Clone()
	out.CancelRequested = s.cancels[id]
	return out, nil
}

func (s *MemoryStore) ListByOwner(ctx context.Context, owner string) ([]*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var jobs []*model.Job
	for id, job := range s.jobs {
		if job.Owner != owner {
			continue
		}
		cp := job.Clone()
		cp.CancelRequested = s.cancels[id]
		jobs = append(jobs, cp)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

func (s *MemoryStore) RequestCancel(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return ErrNotFound
	}
	s.cancels[id] = true
	return nil
}
