package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rpattn/travelcms/internal/lock"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	mu    sync.Mutex
	runs  []uuid.UUID
	err   error
	block chan struct{}
	panic bool
}

func (s *stubRunner) Run(ctx context.Context, jobID uuid.UUID) error {
	s.mu.Lock()
	s.runs = append(s.runs, jobID)
	s.mu.Unlock()
	if s.panic {
		panic("boom")
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.err
}

func (s *stubRunner) calls() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uuid.UUID(nil), s.runs...)
}

type stubEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (s *stubEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{ID: uuid.NewString()}, nil
}

var _ Enqueuer = (*stubEnqueuer)(nil)

func TestInlineDispatcherRunsJob(t *testing.T) {
	runner := &stubRunner{}
	d := NewInlineDispatcher(runner)
	jobID := uuid.New()

	require.NoError(t, d.Dispatch(context.Background(), jobID))
	d.Wait()

	require.Equal(t, []uuid.UUID{jobID}, runner.calls())
}

func TestInlineDispatcherSurvivesPanic(t *testing.T) {
	d := NewInlineDispatcher(&stubRunner{panic: true})
	require.NoError(t, d.Dispatch(context.Background(), uuid.New()))
	d.Wait()
}

func TestInlineDispatcherCancel(t *testing.T) {
	runner := &stubRunner{block: make(chan struct{})}
	d := NewInlineDispatcher(runner)
	jobID := uuid.New()

	require.NoError(t, d.Dispatch(context.Background(), jobID))
	require.Eventually(t, func() bool { return len(runner.calls()) == 1 }, time.Second, time.Millisecond)

	require.True(t, d.Cancel(jobID))
	d.Wait()
	require.False(t, d.Cancel(jobID))
}

func TestInlineDispatcherShutdownWaits(t *testing.T) {
	runner := &stubRunner{block: make(chan struct{})}
	d := NewInlineDispatcher(runner)
	require.NoError(t, d.Dispatch(context.Background(), uuid.New()))
	require.Eventually(t, func() bool { return len(runner.calls()) == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
}

func TestInlineDispatcherRefusesSecondLaunchOfRunningJob(t *testing.T) {
	runner := &stubRunner{block: make(chan struct{})}
	d := NewInlineDispatcher(runner)
	jobID := uuid.New()

	require.NoError(t, d.Dispatch(context.Background(), jobID))
	require.Eventually(t, func() bool { return len(runner.calls()) == 1 }, time.Second, time.Millisecond)

	err := d.Dispatch(context.Background(), jobID)
	require.ErrorIs(t, err, lock.ErrLocked)
	require.Len(t, runner.calls(), 1)

	// the first run is still tracked and stops on shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
}

func TestInlineDispatcherRelaunchesFinishedJob(t *testing.T) {
	runner := &stubRunner{}
	d := NewInlineDispatcher(runner)
	jobID := uuid.New()

	require.NoError(t, d.Dispatch(context.Background(), jobID))
	d.Wait()
	require.NoError(t, d.Dispatch(context.Background(), jobID))
	d.Wait()

	require.Equal(t, []uuid.UUID{jobID, jobID}, runner.calls())
}

func TestAsynqDispatcherEnqueuesTask(t *testing.T) {
	enq := &stubEnqueuer{}
	d := NewAsynqDispatcher(enq, "uploads")
	jobID := uuid.New()

	require.NoError(t, d.Dispatch(context.Background(), jobID))
	require.Len(t, enq.tasks, 1)
	require.Equal(t, ProcessUploadTask, enq.tasks[0].Type())

	var payload ProcessPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	require.Equal(t, jobID.String(), payload.JobID)
}

func TestAsynqDispatcherWrapsEnqueueError(t *testing.T) {
	d := NewAsynqDispatcher(&stubEnqueuer{err: errors.New("redis down")}, "")
	err := d.Dispatch(context.Background(), uuid.New())
	require.ErrorContains(t, err, "redis down")
}

func TestWorkerHandleProcess(t *testing.T) {
	runner := &stubRunner{}
	w := NewWorker(runner, nil)
	jobID := uuid.New()
	data, err := json.Marshal(ProcessPayload{JobID: jobID.String()})
	require.NoError(t, err)

	require.NoError(t, w.HandleProcess(context.Background(), asynq.NewTask(ProcessUploadTask, data)))
	require.Equal(t, []uuid.UUID{jobID}, runner.calls())
}

func TestWorkerTreatsHeldLockAsDone(t *testing.T) {
	w := NewWorker(&stubRunner{err: fmt.Errorf("%w: upload-job:x", lock.ErrLocked)}, nil)
	data, err := json.Marshal(ProcessPayload{JobID: uuid.NewString()})
	require.NoError(t, err)
	require.NoError(t, w.HandleProcess(context.Background(), asynq.NewTask(ProcessUploadTask, data)))
}

func TestWorkerRejectsBadPayload(t *testing.T) {
	w := NewWorker(&stubRunner{}, nil)
	err := w.HandleProcess(context.Background(), asynq.NewTask(ProcessUploadTask, []byte(`{"job_id":"nope"}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
