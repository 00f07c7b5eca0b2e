package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/docuforge/api/internal/config"
	"github.com/docuforge/api/internal/model"
	"github.com/docuforge/api/internal/store"
)

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(ctx context.Context, jobID string) error { return nil }

type failingDispatcher struct{}

func (failingDispatcher) Dispatch(ctx context.Context, jobID string) error {
	return errors.New("queue unreachable")
}

func testService(dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}) (*DocumentService, *store.MemoryStore) {
	st := store.NewMemoryStore()
	cfg := &config.JobsConfig{
		MaxActivePerOwner:   2,
		Timeout:             15 * time.Minute,
		Retention:           24 * time.Hour,
		StoreRetryAttempts:  3,
		StoreRetryBaseDelay: 5 * time.Millisecond,
	}
	return NewDocumentService(st, dispatcher, cfg), st
}

func validRequest() *model.DocumentGenerateRequest {
	return &model.DocumentGenerateRequest{
		Title: "Ops Handbook",
		Brief: "Day-two operations for the platform.",
	}
}

func TestSubmit_QuotaCountsOnlyActiveJobs(t *testing.T) {
	svc, st := testService(noopDispatcher{})
	ctx := context.Background()

	first, err := svc.Submit(ctx, "alice", validRequest())
	if err != nil {
		t.Fatalf("submit 1: %v", err)
	}
	if _, err := svc.Submit(ctx, "alice", validRequest()); err != nil {
		t.Fatalf("submit 2: %v", err)
	}

	// Quota full
	if _, err := svc.Submit(ctx, "alice", validRequest()); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	// Another owner is unaffected
	if _, err := svc.Submit(ctx, "bob", validRequest()); err != nil {
		t.Fatalf("submit for other owner: %v", err)
	}

	// Finishing a job frees a slot
	job, _ := st.Get(ctx, first.JobID)
	_, err = st.Update(ctx, first.JobID, job.Version, func(j *model.Job) error {
		j.Status = model.JobStatusCancelled
		return nil
	})
	if err != nil {
		t.Fatalf("cancel job: %v", err)
	}
	if _, err := svc.Submit(ctx, "alice", validRequest()); err != nil {
		t.Fatalf("expected slot freed, got %v", err)
	}
}

func TestSubmit_DispatchFailureMarksJobFailed(t *testing.T) {
	svc, st := testService(failingDispatcher{})
	ctx := context.Background()

	_, err := svc.Submit(ctx, "alice", validRequest())
	if err == nil {
		t.Fatal("expected submit to fail when dispatch fails")
	}

	// The record must not stay queued forever
	jobs, err := st.ListByOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(jobs))
	}
	if jobs[0].Status != model.JobStatusFailed {
		t.Errorf("expected failed record, got %s", jobs[0].Status)
	}
}

func TestGetStatus_OwnershipAndNotFound(t *testing.T) {
	svc, _ := testService(noopDispatcher{})
	ctx := context.Background()

	resp, err := svc.Submit(ctx, "alice", validRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := svc.GetStatus(ctx, "mallory", resp.JobID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.GetStatus(ctx, "alice", "no-such-job"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	status, err := svc.GetStatus(ctx, "alice", resp.JobID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if status.Status != model.JobStatusQueued || status.ResultReady {
		t.Errorf("unexpected status view: %+v", status)
	}
}

func TestCancel_TerminalJobRejected(t *testing.T) {
	svc, st := testService(noopDispatcher{})
	ctx := context.Background()

	resp, err := svc.Submit(ctx, "alice", validRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	job, _ := st.Get(ctx, resp.JobID)
	_, err = st.Update(ctx, resp.JobID, job.Version, func(j *model.Job) error {
		j.Status = model.JobStatusRunning
		return nil
	})
	if err != nil {
		t.Fatalf("mark running: %v", err)
	}
	job, _ = st.Get(ctx, resp.JobID)
	_, err = st.Update(ctx, resp.JobID, job.Version, func(j *model.Job) error {
		j.Status = model.JobStatusSucceeded
		return nil
	})
	if err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}

	if _, err := svc.Cancel(ctx, "alice", resp.JobID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCancel_SetsFlagWithoutTouchingVersion(t *testing.T) {
	svc, st := testService(noopDispatcher{})
	ctx := context.Background()

	resp, err := svc.Submit(ctx, "alice", validRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	before, _ := st.Get(ctx, resp.JobID)

	ack, err := svc.Cancel(ctx, "alice", resp.JobID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !ack.Success || !ack.CancelRequested {
		t.Errorf("unexpected cancel ack: %+v", ack)
	}

	after, _ := st.Get(ctx, resp.JobID)
	if after.Version != before.Version {
		t.Errorf("cancel request must not bump the record version: %d -> %d", before.Version, after.Version)
	}
	if !after.CancelRequested {
		t.Error("expected cancel flag visible on reads")
	}
}
