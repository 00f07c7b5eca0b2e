package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/docuforge/api/internal/config"
	"github.com/docuforge/api/internal/model"
	"github.com/docuforge/api/internal/pipeline"
	"github.com/docuforge/api/internal/store"
	ws "github.com/docuforge/api/internal/websocket"
)

// PipelineBuilder supplies the stage pipeline a job executes. The executor
// only ever looks at stage names and ordering.
type PipelineBuilder interface {
	Build() *pipeline.Pipeline
}

// errCancelled signals that the executor observed the cancellation flag and
// already transitioned the record.
var errCancelled = errors.New("job cancelled")

// errHalted signals that the executor wrote a terminal failure and stopped.
var errHalted = errors.New("job halted")

// Executor runs one job's pipeline to a terminal state. Exactly one executor
// is bound to a job id at dispatch time; the record's version is the
// enforcement mechanism, so any compare-and-swap conflict here is treated as
// a double-executor invariant violation and aborts the run.
type Executor struct {
	store   store.Store
	builder PipelineBuilder
	hub     *ws.Hub

	timeout        time.Duration
	retryAttempts  int
	retryBaseDelay time.Duration
}

// NewExecutor creates an executor over the given store and pipeline builder.
// hub may be nil when progress push is not wired.
func NewExecutor(jobStore store.Store, builder PipelineBuilder, hub *ws.Hub, cfg *config.JobsConfig) *Executor {
	attempts := cfg.StoreRetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	baseDelay := cfg.StoreRetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = 200 * time.Millisecond
	}
	return &Executor{
		store:          jobStore,
		builder:        builder,
		hub:            hub,
		timeout:        cfg.Timeout,
		retryAttempts:  attempts,
		retryBaseDelay: baseDelay,
	}
}

// Execute runs the pipeline for jobID until the record is terminal. It is
// the job's single writer: every record mutation goes through CAS with the
// version this executor last observed.
func (e *Executor) Execute(ctx context.Context, jobID string) error {
	job, err := e.readJob(ctx, jobID)
	if err != nil {
		log.Printf("Job %s: cannot load record: %v", jobID, err)
		return err
	}
	if job.Status.IsTerminal() {
		return nil
	}

	var req model.DocumentGenerateRequest
	if err := json.Unmarshal(job.Payload, &req); err != nil {
		e.failJob(ctx, jobID, &model.JobError{
			Code:    model.JobErrorStageFailed,
			Message: "invalid job payload",
		})
		return fmt.Errorf("failed to unmarshal job payload: %w", err)
	}

	draft := &pipeline.Draft{Request: &req}
	stages := e.builder.Build().Stages()
	total := len(stages)

	for i, stage := range stages {
		job, err = e.beginStage(ctx, jobID, stage.Name, i, total)
		if err != nil {
			if errors.Is(err, errCancelled) || errors.Is(err, errHalted) {
				return nil
			}
			return err
		}
		e.broadcastProgress(job)

		// The stage body is opaque and may be non-interruptible; the
		// executor only regains control at this boundary.
		if err := stage.Run(ctx, draft); err != nil {
			log.Printf("Job %s: stage %s failed: %v", jobID, stage.Name, err)
			e.failJob(ctx, jobID, &model.JobError{
				Code:    model.JobErrorStageFailed,
				Stage:   stage.Name,
				Message: err.Error(),
			})
			return err
		}

		job, err = e.completeStage(ctx, jobID, stage.Name, i, total)
		if err != nil {
			if errors.Is(err, errHalted) {
				return nil
			}
			return err
		}
		e.broadcastProgress(job)
	}

	result := draft.Result()
	resultBytes, err := json.Marshal(result)
	if err != nil {
		e.failJob(ctx, jobID, &model.JobError{
			Code:    model.JobErrorStageFailed,
			Message: "failed to encode result",
		})
		return err
	}

	if _, err := e.succeed(ctx, jobID, resultBytes); err != nil {
		return err
	}
	if e.hub != nil {
		e.hub.BroadcastComplete(jobID, result)
	}
	log.Printf("Job %s completed", jobID)
	return nil
}

// beginStage re-reads the record, honors cancellation and timeout, and
// writes current_stage (plus queued -> running on the first stage).
func (e *Executor) beginStage(ctx context.Context, jobID, stageName string, index, total int) (*model.Job, error) {
	job, err := e.readJob(ctx, jobID)
	if err != nil {
		return nil, e.giveUp(ctx, jobID, err)
	}

	if job.Status.IsTerminal() {
		// Nothing left for this executor to do.
		return nil, errHalted
	}

	if job.CancelRequested {
		if _, err := e.cancelJob(ctx, jobID); err != nil {
			return nil, err
		}
		return nil, errCancelled
	}

	if e.timeout > 0 && time.Since(job.CreatedAt) > e.timeout {
		e.failJob(ctx, jobID, &model.JobError{
			Code:    model.JobErrorTimeout,
			Stage:   stageName,
			Message: fmt.Sprintf("job exceeded %s time limit", e.timeout),
		})
		return nil, errHalted
	}

	applied := func(j *model.Job) bool {
		return j.Status == model.JobStatusRunning && j.CurrentStage == stageName
	}
	mutate := func(j *model.Job) error {
		if j.Status == model.JobStatusQueued {
			j.Status = model.JobStatusRunning
			now := time.Now()
			j.StartedAt = &now
		}
		j.CurrentStage = stageName
		if p := index * 100 / total; p > j.Progress {
			j.Progress = p
		}
		return nil
	}
	return e.casWrite(ctx, jobID, applied, mutate)
}

// completeStage appends the stage to the history and advances progress.
func (e *Executor) completeStage(ctx context.Context, jobID, stageName string, index, total int) (*model.Job, error) {
	applied := func(j *model.Job) bool {
		return len(j.StageHistory) > index
	}
	mutate := func(j *model.Job) error {
		j.StageHistory = append(j.StageHistory, model.StageRecord{
			Name:        stageName,
			CompletedAt: time.Now(),
		})
		if p := (index + 1) * 100 / total; p > j.Progress {
			j.Progress = p
		}
		return nil
	}
	return e.casWrite(ctx, jobID, applied, mutate)
}

func (e *Executor) succeed(ctx context.Context, jobID string, result []byte) (*model.Job, error) {
	applied := func(j *model.Job) bool {
		return j.Status == model.JobStatusSucceeded
	}
	mutate := func(j *model.Job) error {
		if !model.CanTransition(j.Status, model.JobStatusSucceeded) {
			return fmt.Errorf("invalid transition %s -> %s", j.Status, model.JobStatusSucceeded)
		}
		j.Status = model.JobStatusSucceeded
		j.Progress = 100
		j.Result = result
		j.CurrentStage = ""
		now := time.Now()
		j.CompletedAt = &now
		return nil
	}
	return e.casWrite(ctx, jobID, applied, mutate)
}

func (e *Executor) cancelJob(ctx context.Context, jobID string) (*model.Job, error) {
	applied := func(j *model.Job) bool {
		return j.Status == model.JobStatusCancelled
	}
	mutate := func(j *model.Job) error {
		if !model.CanTransition(j.Status, model.JobStatusCancelled) {
			return fmt.Errorf("invalid transition %s -> %s", j.Status, model.JobStatusCancelled)
		}
		j.Status = model.JobStatusCancelled
		j.CurrentStage = ""
		now := time.Now()
		j.CompletedAt = &now
		return nil
	}
	job, err := e.casWrite(ctx, jobID, applied, mutate)
	if err != nil {
		return nil, err
	}
	if e.hub != nil {
		e.hub.BroadcastProgress(jobID, job.Progress, job.Status, "")
	}
	log.Printf("Job %s cancelled", jobID)
	return job, nil
}

// failJob transitions the record to failed. Best effort: if even this write
// cannot land within the retry budget there is nothing further to do but log.
func (e *Executor) failJob(ctx context.Context, jobID string, jobErr *model.JobError) {
	applied := func(j *model.Job) bool {
		return j.Status.IsTerminal()
	}
	mutate := func(j *model.Job) error {
		if !model.CanTransition(j.Status, model.JobStatusFailed) {
			return fmt.Errorf("invalid transition %s -> %s", j.Status, model.JobStatusFailed)
		}
		j.Status = model.JobStatusFailed
		j.Error = jobErr
		j.CurrentStage = ""
		now := time.Now()
		j.CompletedAt = &now
		return nil
	}
	if _, err := e.casWrite(ctx, jobID, applied, mutate); err != nil {
		log.Printf("Job %s: failed to record failure (%s): %v", jobID, jobErr.Code, err)
		return
	}
	if e.hub != nil {
		e.hub.BroadcastError(jobID, jobErr.Code, jobErr.Message)
	}
}

// casWrite is the executor's only write path: read, check whether the write
// already applied (a retried write may have landed before a transient
// error), then compare-and-swap. A version conflict whose re-read does not
// show our own write means a second writer holds this job. That is a
// correctness bug and is never retried.
func (e *Executor) casWrite(ctx context.Context, jobID string, applied func(*model.Job) bool, mutate store.Mutation) (*model.Job, error) {
	var lastErr error
	for attempt := 0; attempt < e.retryAttempts; attempt++ {
		if attempt > 0 {
			e.sleep(ctx, attempt)
		}

		job, err := e.readJobOnce(ctx, jobID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, err
			}
			lastErr = err
			continue
		}
		if applied(job) {
			return job, nil
		}

		updated, err := e.store.Update(ctx, jobID, job.Version, mutate)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, store.ErrVersionConflict) {
			recheck, rerr := e.readJobOnce(ctx, jobID)
			if rerr == nil && applied(recheck) {
				return recheck, nil
			}
			log.Printf("Job %s: version conflict, second executor detected, aborting", jobID)
			e.failJob(ctx, jobID, &model.JobError{
				Code:    model.JobErrorExecutorConflict,
				Message: "concurrent executor detected for this job",
			})
			return nil, errHalted
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		lastErr = err
	}

	return nil, e.giveUp(ctx, jobID, lastErr)
}

// giveUp marks the job failed with a store-error classification after the
// retry budget is spent, so it is never left stuck in running.
func (e *Executor) giveUp(ctx context.Context, jobID string, cause error) error {
	log.Printf("Job %s: store unavailable after %d attempts: %v", jobID, e.retryAttempts, cause)
	e.failJob(ctx, jobID, &model.JobError{
		Code:    model.JobErrorStoreError,
		Message: fmt.Sprintf("job store unavailable: %v", cause),
	})
	return errHalted
}

// readJob reads with the transient-error retry budget.
func (e *Executor) readJob(ctx context.Context, jobID string) (*model.Job, error) {
	var lastErr error
	for attempt := 0; attempt < e.retryAttempts; attempt++ {
		if attempt > 0 {
			e.sleep(ctx, attempt)
		}
		job, err := e.readJobOnce(ctx, jobID)
		if err == nil || errors.Is(err, store.ErrNotFound) {
			return job, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (e *Executor) readJobOnce(ctx context.Context, jobID string) (*model.Job, error) {
	return e.store.Get(ctx, jobID)
}

// sleep waits the backoff delay for the given attempt (doubling each time).
func (e *Executor) sleep(ctx context.Context, attempt int) {
	delay := e.retryBaseDelay << uint(attempt-1)
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}

func (e *Executor) broadcastProgress(job *model.Job) {
	if e.hub == nil || job == nil {
		return
	}
	e.hub.BroadcastProgress(job.ID, job.Progress, job.Status, job.CurrentStage)
}
