package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/docuforge/api/internal/config"
	"github.com/docuforge/api/internal/model"
	"github.com/docuforge/api/internal/store"
	"github.com/docuforge/api/internal/worker"
)

// DocumentService owns the lifecycle of document-generation jobs: creating
// the queued record, handing it to the dispatcher, and answering the polling
// and cancellation endpoints. Status reads always come from the store, never
// from executor state.
type DocumentService struct {
	store      store.Store
	dispatcher worker.Dispatcher
	jobsCfg    *config.JobsConfig
}

func NewDocumentService(jobStore store.Store, dispatcher worker.Dispatcher, jobsCfg *config.JobsConfig) *DocumentService {
	return &DocumentService{
		store:      jobStore,
		dispatcher: dispatcher,
		jobsCfg:    jobsCfg,
	}
}

// Submit creates a queued job for the owner and dispatches it. The quota
// check counts the owner's non-terminal jobs before admission.
func (s *DocumentService) Submit(ctx context.Context, owner string, req *model.DocumentGenerateRequest) (*model.DocumentGenerateResponse, error) {
	active, err := s.countActive(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to check job quota: %w", err)
	}
	if s.jobsCfg.MaxActivePerOwner > 0 && active >= s.jobsCfg.MaxActivePerOwner {
		return nil, ErrQuotaExceeded
	}

	payloadBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	now := time.Now()
	job := &model.Job{
		ID:           uuid.New().String(),
		Owner:        owner,
		Status:       model.JobStatusQueued,
		StageHistory: []model.StageRecord{},
		Progress:     0,
		Payload:      payloadBytes,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}

	if err := s.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	if err := s.dispatcher.Dispatch(ctx, job.ID); err != nil {
		// The record exists but nothing will run it; mark it failed so the
		// client is not left polling a job that never starts.
		s.markDispatchFailed(ctx, job.ID, err)
		return nil, fmt.Errorf("failed to dispatch job: %w", err)
	}

	return &model.DocumentGenerateResponse{
		JobID:             job.ID,
		Status:            model.JobStatusQueued,
		EstimatedDuration: estimateDuration(req),
		CreatedAt:         now,
	}, nil
}

// GetStatus returns the polling view of a job. Owners only see their own
// jobs; anyone else gets ErrForbidden without leaking record contents.
func (s *DocumentService) GetStatus(ctx context.Context, owner, jobID string) (*model.DocumentStatusResponse, error) {
	job, err := s.loadOwned(ctx, owner, jobID)
	if err != nil {
		return nil, err
	}

	history := job.StageHistory
	if history == nil {
		history = []model.StageRecord{}
	}

	return &model.DocumentStatusResponse{
		JobID:           job.ID,
		Status:          job.Status,
		CurrentStage:    job.CurrentStage,
		StageHistory:    history,
		Progress:        job.Progress,
		Error:           job.Error,
		ResultReady:     job.Status == model.JobStatusSucceeded,
		CancelRequested: job.CancelRequested && !job.Status.IsTerminal(),
		CreatedAt:       job.CreatedAt,
		StartedAt:       job.StartedAt,
		CompletedAt:     job.CompletedAt,
	}, nil
}

// GetResult returns the document of a succeeded job.
func (s *DocumentService) GetResult(ctx context.Context, owner, jobID string) (*model.DocumentResult, error) {
	job, err := s.loadOwned(ctx, owner, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != model.JobStatusSucceeded {
		return nil, ErrNotCompleted
	}

	var result model.DocumentResult
	if err := json.Unmarshal(job.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

// Cancel requests cooperative cancellation. A queued or running job gets the
// flag set and transitions at the executor's next stage boundary; a job
// already terminal cannot be cancelled.
func (s *DocumentService) Cancel(ctx context.Context, owner, jobID string) (*model.DocumentCancelResponse, error) {
	job, err := s.loadOwned(ctx, owner, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status.IsTerminal() {
		return nil, ErrInvalidTransition
	}

	if err := s.store.RequestCancel(ctx, jobID); err != nil {
		return nil, fmt.Errorf("failed to request cancellation: %w", err)
	}

	return &model.DocumentCancelResponse{
		Success:         true,
		JobID:           jobID,
		Status:          job.Status,
		CancelRequested: true,
	}, nil
}

// ListJobs returns the owner's jobs, newest first.
func (s *DocumentService) ListJobs(ctx context.Context, owner string) ([]model.DocumentJobSummary, error) {
	jobs, err := s.store.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	summaries := make([]model.DocumentJobSummary, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, model.DocumentJobSummary{
			JobID:        job.ID,
			Title:        titleOf(job),
			Status:       job.Status,
			Progress:     job.Progress,
			CurrentStage: job.CurrentStage,
			CreatedAt:    job.CreatedAt,
			CompletedAt:  job.CompletedAt,
		})
	}
	return summaries, nil
}

// loadOwned fetches a job and enforces ownership.
func (s *DocumentService) loadOwned(ctx context.Context, owner, jobID string) (*model.Job, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if job.Owner != owner {
		return nil, ErrForbidden
	}
	return job, nil
}

func (s *DocumentService) countActive(ctx context.Context, owner string) (int, error) {
	jobs, err := s.store.ListByOwner(ctx, owner)
	if err != nil {
		return 0, err
	}
	active := 0
	for _, job := range jobs {
		if job.IsActive() {
			active++
		}
	}
	return active, nil
}

// markDispatchFailed is best effort; the submit call already returns an
// error either way.
func (s *DocumentService) markDispatchFailed(ctx context.Context, jobID string, cause error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		log.Printf("Job %s: cannot load record after dispatch failure: %v", jobID, err)
		return
	}
	_, err = s.store.Update(ctx, jobID, job.Version, func(j *model.Job) error {
		j.Status = model.JobStatusFailed
		j.Error = &model.JobError{
			Code:    model.JobErrorStoreError,
			Message: fmt.Sprintf("dispatch failed: %v", cause),
		}
		now := time.Now()
		j.CompletedAt = &now
		return nil
	})
	if err != nil {
		log.Printf("Job %s: failed to mark dispatch failure: %v", jobID, err)
	}
}

// estimateDuration gives the client a rough polling hint in seconds.
func estimateDuration(req *model.DocumentGenerateRequest) int {
	sections := len(req.Sections)
	if sections == 0 {
		sections = 3
	}
	estimate := 20 + sections*15
	if req.ResponseMode == model.ResponseModeDeep {
		estimate *= 2
	}
	return estimate
}

func titleOf(job *model.Job) string {
	var req model.DocumentGenerateRequest
	if err := json.Unmarshal(job.Payload, &req); err != nil {
		return ""
	}
	return req.Title
}
