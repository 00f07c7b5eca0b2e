package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

// TaskTypeDocument is the asynq task type for document generation jobs.
const TaskTypeDocument = "document:generate"

// QueueDocuments is the asynq queue generation tasks are enqueued on.
const QueueDocuments = "documents"

// Dispatcher hands a queued job to exactly one executor. Implementations do
// not keep the job alive beyond their own process: if the process dies
// mid-run the record stays in its last written state until the timeout check
// or retention reaps it.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

// InProcessDispatcher runs the executor on a goroutine in the API process.
// Used with the in-memory store in development and tests.
type InProcessDispatcher struct {
	executor *Executor
}

// NewInProcessDispatcher creates a dispatcher bound to the given executor.
func NewInProcessDispatcher(executor *Executor) *InProcessDispatcher {
	return &InProcessDispatcher{executor: executor}
}

// Dispatch starts the job in the background. The job runs on a detached
// context so request cancellation does not abort it.
func (d *InProcessDispatcher) Dispatch(ctx context.Context, jobID string) error {
	go func() {
		if err := d.executor.Execute(context.Background(), jobID); err != nil {
			log.Printf("Job %s execution ended with error: %v", jobID, err)
		}
	}()
	return nil
}

// documentTaskPayload is the asynq task body.
type documentTaskPayload struct {
	JobID string `json:"job_id"`
}

// AsynqDispatcher enqueues jobs on Redis for the worker server. MaxRetry is
// zero: a failed run must not be re-executed automatically, since a retry
// would be a second executor against a record the first one already wrote.
type AsynqDispatcher struct {
	client    *asynq.Client
	retention time.Duration
}

// NewAsynqDispatcher creates a dispatcher over the given asynq client.
func NewAsynqDispatcher(client *asynq.Client, retention time.Duration) *AsynqDispatcher {
	return &AsynqDispatcher{
		client:    client,
		retention: retention,
	}
}

// Dispatch enqueues the job for the worker server.
func (d *AsynqDispatcher) Dispatch(ctx context.Context, jobID string) error {
	payload, err := json.Marshal(documentTaskPayload{JobID: jobID})
	if err != nil {
		return fmt.Errorf("failed to marshal task payload: %w", err)
	}

	task := asynq.NewTask(TaskTypeDocument, payload)
	info, err := d.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueDocuments),
		asynq.MaxRetry(0),
		asynq.Retention(d.retention),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", jobID, err)
	}

	log.Printf("Job %s enqueued as task %s", jobID, info.ID)
	return nil
}

// NewTaskHandler returns the asynq handler that runs the executor for
// document tasks.
func NewTaskHandler(executor *Executor) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload documentTaskPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("failed to unmarshal task payload: %w", err)
		}
		return executor.Execute(ctx, payload.JobID)
	}
}
