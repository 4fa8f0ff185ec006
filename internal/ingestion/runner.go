package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rpattn/travelcms/internal/domain"
	"github.com/rpattn/travelcms/internal/ledger"
	"github.com/rpattn/travelcms/internal/lock"
	"github.com/rpattn/travelcms/internal/logger"
	"github.com/rpattn/travelcms/internal/repository"

	"github.com/google/uuid"
)

const defaultLockTTL = 30 * time.Minute

// TemplateSource resolves post templates by id.
type TemplateSource interface {
	Get(id string) (domain.PostTemplate, error)
}

// RowProcessor converts one row into stored content.
type RowProcessor interface {
	ProcessRow(ctx context.Context, row domain.CSVRow, tpl domain.PostTemplate) RowResult
}

// Runner drives a job's pending rows through the processor and keeps the
// ledger counters current after every row.
type Runner struct {
	ledger    *ledger.Ledger
	rows      repository.CSVRowRepository
	generated repository.GeneratedPostRepository
	templates TemplateSource
	processor RowProcessor
	locker    lock.Locker
	lockTTL   time.Duration
	logger    *logger.Logger
}

type RunnerOption func(*Runner)

// WithLocker makes Run take an exclusive lock per job id.
func WithLocker(l lock.Locker, ttl time.Duration) RunnerOption {
	return func(r *Runner) {
		r.locker = l
		if ttl > 0 {
			r.lockTTL = ttl
		}
	}
}

func WithRunnerLogger(log *logger.Logger) RunnerOption {
	return func(r *Runner) {
		if log != nil {
			r.logger = log
		}
	}
}

func NewRunner(l *ledger.Ledger, rows repository.CSVRowRepository, generated repository.GeneratedPostRepository, templates TemplateSource, processor RowProcessor, opts ...RunnerOption) *Runner {
	r := &Runner{
		ledger:    l,
		rows:      rows,
		generated: generated,
		templates: templates,
		processor: processor,
		lockTTL:   defaultLockTTL,
		logger:    logger.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes every pending row of the job. Row failures are recorded on
// the job and do not fail it; infrastructure errors and panics do. A
// cancelled context stops between rows and leaves the job in processing.
func (r *Runner) Run(ctx context.Context, jobID uuid.UUID) (err error) {
	if r.locker != nil {
		release, lockErr := r.locker.Acquire(ctx, "upload-job:"+jobID.String(), r.lockTTL)
		if lockErr != nil {
			return lockErr
		}
		defer func() {
			if releaseErr := release(context.Background()); releaseErr != nil {
				r.logger.Warn("failed to release job lock", "job_id", jobID, "error", releaseErr)
			}
		}()
	}

	job, err := r.ledger.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
			r.logger.Error("panic while processing upload job", "job_id", jobID, "panic", rec)
			r.failJob(jobID, err)
		}
	}()

	if err := r.process(ctx, job); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			r.logger.Info("upload job interrupted", "job_id", jobID)
			return err
		}
		r.failJob(jobID, err)
		return err
	}
	return nil
}

func (r *Runner) process(ctx context.Context, job domain.UploadJob) error {
	tpl, err := r.templates.Get(job.TemplateID)
	if err != nil {
		return fmt.Errorf("failed to resolve template %s: %w", job.TemplateID, err)
	}

	stored, err := r.rows.ListByJob(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("failed to load rows for job %s: %w", job.ID, err)
	}
	pending := make([]domain.CSVRow, 0, len(stored))
	for _, row := range stored {
		if row.ProcessingStatus != domain.CSVRowStatusSkipped {
			pending = append(pending, row)
		}
	}

	total := len(pending)
	processed, successful, failed := 0, 0, 0
	rowErrors := []string{}
	if _, err := r.ledger.UpdateStatus(ctx, job.ID, domain.UploadJobStatusProcessing, counters(total, 0, 0, 0, rowErrors)); err != nil {
		return err
	}
	r.logger.Info("upload job started", "job_id", job.ID, "rows", total)

	for _, row := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}

		result := r.processor.ProcessRow(ctx, row, tpl)
		processed++
		if result.Success {
			successful++
			if _, err := r.generated.Create(ctx, domain.NewGeneratedPost(row, tpl.ID, result.Post)); err != nil {
				return fmt.Errorf("failed to record generated post for row %d: %w", row.RowNumber, err)
			}
			row = row.WithOutcome(domain.CSVRowStatusProcessed, result.ProcessedData, "")
		} else {
			failed++
			message := "processing failed"
			if len(result.Errors) > 0 {
				message = result.Errors[0]
			}
			rowErrors = append(rowErrors, fmt.Sprintf("Row %d: %s", row.RowNumber, message))
			row = row.WithOutcome(domain.CSVRowStatusFailed, nil, message)
			r.logger.Warn("row failed", "job_id", job.ID, "row", row.RowNumber, "error", message)
		}

		if err := r.rows.Update(ctx, row); err != nil {
			return fmt.Errorf("failed to update row %d: %w", row.RowNumber, err)
		}
		if _, err := r.ledger.UpdateStatus(ctx, job.ID, domain.UploadJobStatusProcessing, counters(total, processed, successful, failed, rowErrors)); err != nil {
			return err
		}
	}

	if _, err := r.ledger.UpdateStatus(ctx, job.ID, domain.UploadJobStatusCompleted, counters(total, processed, successful, failed, rowErrors)); err != nil {
		return err
	}
	r.logger.Info("upload job completed", "job_id", job.ID, "successful", successful, "failed", failed)
	return nil
}

func (r *Runner) failJob(jobID uuid.UUID, cause error) {
	if _, err := r.ledger.UpdateStatus(context.Background(), jobID, domain.UploadJobStatusFailed, &domain.UploadJobPatch{
		Errors: []string{cause.Error()},
	}); err != nil {
		r.logger.Error("failed to mark upload job failed", "job_id", jobID, "error", err, "cause", cause)
		return
	}
	r.logger.Error("upload job failed", "job_id", jobID, "error", cause)
}

func counters(total, processed, successful, failed int, errs []string) *domain.UploadJobPatch {
	return &domain.UploadJobPatch{
		TotalRows:      &total,
		ProcessedRows:  &processed,
		SuccessfulRows: &successful,
		FailedRows:     &failed,
		Errors:         append([]string{}, errs...),
	}
}
