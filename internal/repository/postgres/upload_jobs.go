package postgres

import (
	"context"
	"fmt"

	"github.com/rpattn/travelcms/internal/db"
	"github.com/rpattn/travelcms/internal/domain"
	"github.com/rpattn/travelcms/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const uploadJobColumns = `id, template_id, job_name, file_name, file_size, total_rows, processed_rows,
	successful_rows, failed_rows, errors, warnings, status, archive_key,
	processing_started_at, processing_completed_at, created_at, updated_at`

type uploadJobRepository struct {
	conn *db.Connection
}

func NewUploadJobRepository(conn *db.Connection) repository.UploadJobRepository {
	return &uploadJobRepository{conn: conn}
}

func (r *uploadJobRepository) Create(ctx context.Context, job domain.UploadJob) (domain.UploadJob, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	row := r.conn.Pool.QueryRow(ctx,
		`INSERT INTO upload_jobs (`+uploadJobColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 RETURNING `+uploadJobColumns,
		jobArgs(job)...,
	)
	created, err := scanUploadJob(row)
	if err != nil {
		return domain.UploadJob{}, fmt.Errorf("failed to create upload job: %w", err)
	}
	return created, nil
}

func (r *uploadJobRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.UploadJob, error) {
	row := r.conn.Pool.QueryRow(ctx, `SELECT `+uploadJobColumns+` FROM upload_jobs WHERE id = $1`, id)
	job, err := scanUploadJob(row)
	if err != nil {
		return domain.UploadJob{}, notFound(err, "upload job "+id.String())
	}
	return job, nil
}

func (r *uploadJobRepository) List(ctx context.Context, limit int, offset int) ([]domain.UploadJob, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT `+uploadJobColumns+` FROM upload_jobs ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list upload jobs: %w", err)
	}
	defer rows.Close()

	jobs := []domain.UploadJob{}
	for rows.Next() {
		job, scanErr := scanUploadJob(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan upload job: %w", scanErr)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate upload jobs: %w", err)
	}
	return jobs, nil
}

func (r *uploadJobRepository) Update(ctx context.Context, job domain.UploadJob) (domain.UploadJob, error) {
	row := r.conn.Pool.QueryRow(ctx,
		`UPDATE upload_jobs SET
			template_id = $2, job_name = $3, file_name = $4, file_size = $5, total_rows = $6,
			processed_rows = $7, successful_rows = $8, failed_rows = $9, errors = $10,
			warnings = $11, status = $12, archive_key = $13, processing_started_at = $14,
			processing_completed_at = $15, created_at = $16, updated_at = $17
		 WHERE id = $1
		 RETURNING `+uploadJobColumns,
		jobArgs(job)...,
	)
	updated, err := scanUploadJob(row)
	if err != nil {
		return domain.UploadJob{}, notFound(err, "upload job "+job.ID.String())
	}
	return updated, nil
}

func jobArgs(job domain.UploadJob) []any {
	archiveKey := pgtype.Text{}
	if job.ArchiveKey != nil {
		archiveKey = pgtype.Text{String: *job.ArchiveKey, Valid: true}
	}
	return []any{
		job.ID,
		job.TemplateID,
		job.JobName,
		job.FileName,
		job.FileSize,
		job.TotalRows,
		job.ProcessedRows,
		job.SuccessfulRows,
		job.FailedRows,
		nonNilStrings(job.Errors),
		nonNilStrings(job.Warnings),
		string(job.Status),
		archiveKey,
		job.ProcessingStartedAt,
		job.ProcessingCompletedAt,
		job.CreatedAt,
		job.UpdatedAt,
	}
}

func scanUploadJob(row pgx.Row) (domain.UploadJob, error) {
	var (
		job        domain.UploadJob
		status     string
		archiveKey pgtype.Text
		started    pgtype.Timestamptz
		completed  pgtype.Timestamptz
	)
	if err := row.Scan(
		&job.ID,
		&job.TemplateID,
		&job.JobName,
		&job.FileName,
		&job.FileSize,
		&job.TotalRows,
		&job.ProcessedRows,
		&job.SuccessfulRows,
		&job.FailedRows,
		&job.Errors,
		&job.Warnings,
		&status,
		&archiveKey,
		&started,
		&completed,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return domain.UploadJob{}, err
	}

	job.Status = domain.UploadJobStatus(status)
	if archiveKey.Valid {
		key := archiveKey.String
		job.ArchiveKey = &key
	}
	if started.Valid {
		t := started.Time
		job.ProcessingStartedAt = &t
	}
	if completed.Valid {
		t := completed.Time
		job.ProcessingCompletedAt = &t
	}
	job.Errors = nonNilStrings(job.Errors)
	job.Warnings = nonNilStrings(job.Warnings)
	return job, nil
}
