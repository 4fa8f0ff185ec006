package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rpattn/travelcms/internal/lock"
	"github.com/rpattn/travelcms/internal/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// ProcessUploadTask is enqueued each time an upload job is started.
	ProcessUploadTask = "upload:process"
)

// ProcessPayload is serialized into the task payload.
type ProcessPayload struct {
	JobID string `json:"job_id"`
}

// Enqueuer is the part of *asynq.Client the dispatcher uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqDispatcher hands jobs to a Redis backed asynq queue. Tasks are not
// retried; a failed job is restarted explicitly.
type AsynqDispatcher struct {
	client Enqueuer
	queue  string
}

func NewAsynqDispatcher(client Enqueuer, queueName string) *AsynqDispatcher {
	return &AsynqDispatcher{client: client, queue: queueName}
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, jobID uuid.UUID) error {
	data, err := json.Marshal(ProcessPayload{JobID: jobID.String()})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	opts := []asynq.Option{asynq.MaxRetry(0)}
	if d.queue != "" {
		opts = append(opts, asynq.Queue(d.queue))
	}
	task := asynq.NewTask(ProcessUploadTask, data)
	if _, err := d.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue process task: %w", err)
	}
	return nil
}

// Worker executes queued upload tasks.
type Worker struct {
	runner JobRunner
	logger *logger.Logger
}

func NewWorker(runner JobRunner, log *logger.Logger) *Worker {
	if log == nil {
		log = logger.NewNop()
	}
	return &Worker{runner: runner, logger: log}
}

// Handler registers the task handlers.
func (w *Worker) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(ProcessUploadTask, w.HandleProcess)
	return mux
}

func (w *Worker) HandleProcess(ctx context.Context, task *asynq.Task) error {
	var payload ProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", errors.Join(err, asynq.SkipRetry))
	}
	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		return fmt.Errorf("invalid job id %q: %w", payload.JobID, asynq.SkipRetry)
	}

	if err := w.runner.Run(ctx, jobID); err != nil {
		if errors.Is(err, lock.ErrLocked) {
			w.logger.Info("upload job already running elsewhere", "job_id", jobID)
			return nil
		}
		w.logger.Error("upload task failed", "job_id", jobID, "error", err)
		return err
	}
	return nil
}
