package domain

import (
	"time"

	"github.com/google/uuid"
)

// UploadJobStatus enumerates the upload job lifecycle.
type UploadJobStatus string

const (
	UploadJobStatusPending    UploadJobStatus = "pending"
	UploadJobStatusProcessing UploadJobStatus = "processing"
	UploadJobStatusCompleted  UploadJobStatus = "completed"
	UploadJobStatusFailed     UploadJobStatus = "failed"
	// UploadJobStatusPaused is reserved. No code path enters or leaves it.
	UploadJobStatusPaused UploadJobStatus = "paused"
)

// IsTerminal reports whether the status ends the lifecycle.
func (s UploadJobStatus) IsTerminal() bool {
	return s == UploadJobStatusCompleted || s == UploadJobStatusFailed
}

// Valid reports whether s is a declared status.
func (s UploadJobStatus) Valid() bool {
	switch s {
	case UploadJobStatusPending, UploadJobStatusProcessing, UploadJobStatusCompleted,
		UploadJobStatusFailed, UploadJobStatusPaused:
		return true
	}
	return false
}

// UploadJob is one bulk upload attempt.
type UploadJob struct {
	ID                    uuid.UUID       `json:"id"`
	TemplateID            string          `json:"template_id"`
	JobName               string          `json:"job_name"`
	FileName              string          `json:"file_name"`
	FileSize              int64           `json:"file_size"`
	TotalRows             int             `json:"total_rows"`
	ProcessedRows         int             `json:"processed_rows"`
	SuccessfulRows        int             `json:"successful_rows"`
	FailedRows            int             `json:"failed_rows"`
	Errors                []string        `json:"errors"`
	Warnings              []string        `json:"warnings"`
	Status                UploadJobStatus `json:"status"`
	ArchiveKey            *string         `json:"archive_key,omitempty"`
	ProcessingStartedAt   *time.Time      `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time      `json:"processing_completed_at,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// NewUploadJob creates a pending job with zeroed counters.
func NewUploadJob(templateID, jobName, fileName string, fileSize int64, totalRows int) UploadJob {
	now := time.Now()
	return UploadJob{
		ID:         uuid.New(),
		TemplateID: templateID,
		JobName:    jobName,
		FileName:   fileName,
		FileSize:   fileSize,
		TotalRows:  totalRows,
		Errors:     []string{},
		Warnings:   []string{},
		Status:     UploadJobStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// UploadJobPatch carries the fields merged by a status update. Nil fields are
// left untouched.
type UploadJobPatch struct {
	TotalRows      *int
	ProcessedRows  *int
	SuccessfulRows *int
	FailedRows     *int
	Errors         []string
	Warnings       []string
	ArchiveKey     *string
}

// WithStatus returns a copy of the job moved to status with patch merged in.
// processing_started_at is stamped on entry into processing when it was not
// already processing or was never stamped; processing_completed_at is stamped
// on entry into completed. updated_at always moves to now.
func (j UploadJob) WithStatus(status UploadJobStatus, patch *UploadJobPatch, now time.Time) UploadJob {
	next := j
	next.Errors = append([]string(nil), j.Errors...)
	next.Warnings = append([]string(nil), j.Warnings...)

	if patch != nil {
		if patch.TotalRows != nil {
			next.TotalRows = *patch.TotalRows
		}
		if patch.ProcessedRows != nil {
			next.ProcessedRows = *patch.ProcessedRows
		}
		if patch.SuccessfulRows != nil {
			next.SuccessfulRows = *patch.SuccessfulRows
		}
		if patch.FailedRows != nil {
			next.FailedRows = *patch.FailedRows
		}
		if patch.Errors != nil {
			next.Errors = append([]string(nil), patch.Errors...)
		}
		if patch.Warnings != nil {
			next.Warnings = append([]string(nil), patch.Warnings...)
		}
		if patch.ArchiveKey != nil {
			key := *patch.ArchiveKey
			next.ArchiveKey = &key
		}
	}

	if status == UploadJobStatusProcessing && (j.Status != UploadJobStatusProcessing || j.ProcessingStartedAt == nil) {
		started := now
		next.ProcessingStartedAt = &started
	}
	if status == UploadJobStatusCompleted {
		completed := now
		next.ProcessingCompletedAt = &completed
	}

	next.Status = status
	next.UpdatedAt = now
	return next
}

// JobProgress is the read projection polled by the admin UI.
type JobProgress struct {
	JobID          uuid.UUID       `json:"job_id"`
	TotalRows      int             `json:"total_rows"`
	ProcessedRows  int             `json:"processed_rows"`
	SuccessfulRows int             `json:"successful_rows"`
	FailedRows     int             `json:"failed_rows"`
	Status         UploadJobStatus `json:"status"`
	Errors         []string        `json:"errors"`
	Warnings       []string        `json:"warnings"`
}

// Progress projects the job into its progress view.
func (j UploadJob) Progress() JobProgress {
	errs := j.Errors
	if errs == nil {
		errs = []string{}
	}
	warnings := j.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return JobProgress{
		JobID:          j.ID,
		TotalRows:      j.TotalRows,
		ProcessedRows:  j.ProcessedRows,
		SuccessfulRows: j.SuccessfulRows,
		FailedRows:     j.FailedRows,
		Status:         j.Status,
		Errors:         errs,
		Warnings:       warnings,
	}
}
