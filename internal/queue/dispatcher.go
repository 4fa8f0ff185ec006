// Package queue runs upload processing away from the request goroutine.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rpattn/travelcms/internal/lock"
	"github.com/rpattn/travelcms/internal/logger"

	"github.com/google/uuid"
)

// JobRunner processes one upload job to completion.
type JobRunner interface {
	Run(ctx context.Context, jobID uuid.UUID) error
}

// InlineDispatcher runs each job on its own goroutine in this process. A job
// id is launched at most once at a time.
type InlineDispatcher struct {
	runner     JobRunner
	logger     *logger.Logger
	jobTimeout time.Duration

	wg      sync.WaitGroup
	running sync.Map // map[uuid.UUID]*inlineRun
}

type inlineRun struct {
	cancel context.CancelFunc
}

type InlineOption func(*InlineDispatcher)

func WithJobTimeout(timeout time.Duration) InlineOption {
	return func(d *InlineDispatcher) {
		if timeout > 0 {
			d.jobTimeout = timeout
		}
	}
}

func WithInlineLogger(log *logger.Logger) InlineOption {
	return func(d *InlineDispatcher) {
		if log != nil {
			d.logger = log
		}
	}
}

func NewInlineDispatcher(runner JobRunner, opts ...InlineOption) *InlineDispatcher {
	d := &InlineDispatcher{runner: runner, logger: logger.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch starts the job and returns immediately. The request context is
// not used for the run itself. Dispatching a job that is still running here
// returns lock.ErrLocked.
func (d *InlineDispatcher) Dispatch(_ context.Context, jobID uuid.UUID) error {
	return d.launchWorker(jobID)
}

func (d *InlineDispatcher) launchWorker(jobID uuid.UUID) error {
	baseCtx, baseCancel := context.WithCancel(context.Background())
	ctx := baseCtx
	cancelFunc := baseCancel
	if d.jobTimeout > 0 {
		timeoutCtx, timeoutCancel := context.WithTimeout(baseCtx, d.jobTimeout)
		ctx = timeoutCtx
		cancelFunc = func() {
			timeoutCancel()
			baseCancel()
		}
	}

	run := &inlineRun{cancel: cancelFunc}
	if _, loaded := d.running.LoadOrStore(jobID, run); loaded {
		cancelFunc()
		return fmt.Errorf("%w: upload job %s is already running", lock.ErrLocked, jobID)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			cancelFunc()
			d.running.CompareAndDelete(jobID, run)
		}()
		defer func() {
			if rec := recover(); rec != nil {
				d.logger.Error("panic while dispatching upload job", "job_id", jobID, "panic", rec)
			}
		}()
		if err := d.runner.Run(ctx, jobID); err != nil {
			switch {
			case errors.Is(err, context.Canceled):
				d.logger.Info("upload job cancelled", "job_id", jobID)
			case errors.Is(err, lock.ErrLocked):
				d.logger.Info("upload job already running elsewhere", "job_id", jobID)
			default:
				d.logger.Error("upload job run failed", "job_id", jobID, "error", err)
			}
		}
	}()
	return nil
}

// Cancel stops a running job between rows.
func (d *InlineDispatcher) Cancel(jobID uuid.UUID) bool {
	value, ok := d.running.Load(jobID)
	if !ok {
		return false
	}
	value.(*inlineRun).cancel()
	return true
}

// Shutdown cancels every running job and waits for them, or for ctx.
func (d *InlineDispatcher) Shutdown(ctx context.Context) error {
	d.running.Range(func(_, value any) bool {
		value.(*inlineRun).cancel()
		return true
	})
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("inline dispatcher shutdown: %w", ctx.Err())
	}
}

// Wait blocks until every dispatched job has returned.
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}
