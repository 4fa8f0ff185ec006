// Package ledger records upload jobs and moves them through their lifecycle.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rpattn/travelcms/internal/domain"
	"github.com/rpattn/travelcms/internal/repository"

	"github.com/google/uuid"
)

// Ledger is the single writer of upload job state. It does not guard status
// transitions: callers own the lifecycle and concurrent writers race with
// last-writer-wins semantics.
type Ledger struct {
	jobs repository.UploadJobRepository
	now  func() time.Time
}

type Option func(*Ledger)

// WithClock overrides the time source used for lifecycle stamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

func New(jobs repository.UploadJobRepository, opts ...Option) *Ledger {
	l := &Ledger{jobs: jobs, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CreateJob records a pending job with zeroed counters.
func (l *Ledger) CreateJob(ctx context.Context, templateID, jobName, fileName string, fileSize int64, totalRows int) (domain.UploadJob, error) {
	if strings.TrimSpace(templateID) == "" {
		return domain.UploadJob{}, errors.New("template id is required")
	}
	if strings.TrimSpace(jobName) == "" {
		return domain.UploadJob{}, errors.New("job name is required")
	}
	if totalRows < 0 {
		return domain.UploadJob{}, fmt.Errorf("total rows must not be negative, got %d", totalRows)
	}

	job := domain.NewUploadJob(templateID, jobName, fileName, fileSize, totalRows)
	now := l.now()
	job.CreatedAt = now
	job.UpdatedAt = now

	created, err := l.jobs.Create(ctx, job)
	if err != nil {
		return domain.UploadJob{}, fmt.Errorf("failed to create upload job: %w", err)
	}
	return created, nil
}

// UpdateStatus merges patch into the stored job and moves it to status.
func (l *Ledger) UpdateStatus(ctx context.Context, jobID uuid.UUID, status domain.UploadJobStatus, patch *domain.UploadJobPatch) (domain.UploadJob, error) {
	if !status.Valid() {
		return domain.UploadJob{}, fmt.Errorf("unknown upload job status %q", status)
	}

	current, err := l.jobs.GetByID(ctx, jobID)
	if err != nil {
		return domain.UploadJob{}, fmt.Errorf("failed to load upload job %s: %w", jobID, err)
	}

	next := current.WithStatus(status, patch, l.now())
	updated, err := l.jobs.Update(ctx, next)
	if err != nil {
		return domain.UploadJob{}, fmt.Errorf("failed to update upload job %s: %w", jobID, err)
	}
	return updated, nil
}

// GetJob returns the job or an error wrapping repository.ErrNotFound.
func (l *Ledger) GetJob(ctx context.Context, jobID uuid.UUID) (domain.UploadJob, error) {
	job, err := l.jobs.GetByID(ctx, jobID)
	if err != nil {
		return domain.UploadJob{}, fmt.Errorf("failed to load upload job %s: %w", jobID, err)
	}
	return job, nil
}

// ListJobs returns jobs newest first.
func (l *Ledger) ListJobs(ctx context.Context, limit, offset int) ([]domain.UploadJob, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	jobs, err := l.jobs.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list upload jobs: %w", err)
	}
	return jobs, nil
}
