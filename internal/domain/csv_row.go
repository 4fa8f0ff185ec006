package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CSVRowStatus tracks a single parsed row through processing.
type CSVRowStatus string

const (
	CSVRowStatusPending   CSVRowStatus = "pending"
	CSVRowStatusProcessed CSVRowStatus = "processed"
	CSVRowStatusFailed    CSVRowStatus = "failed"
	CSVRowStatusSkipped   CSVRowStatus = "skipped"
)

// Severity grades a validation finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationError is a single field level finding. It is never stored on its
// own, only attached to a row or returned to the caller.
type ValidationError struct {
	Field    string   `json:"field"`
	Value    any      `json:"value"`
	Error    string   `json:"error"`
	Severity Severity `json:"severity"`
}

// CSVRow is one row of an uploaded file.
type CSVRow struct {
	ID               uuid.UUID         `json:"id"`
	JobID            uuid.UUID         `json:"job_id"`
	RowNumber        int               `json:"row_number"`
	RawData          map[string]any    `json:"raw_data"`
	ProcessedData    map[string]any    `json:"processed_data,omitempty"`
	ValidationErrors []ValidationError `json:"validation_errors"`
	ProcessingStatus CSVRowStatus      `json:"processing_status"`
	ErrorMessage     *string           `json:"error_message,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// NewCSVRow creates a pending row for jobID.
func NewCSVRow(jobID uuid.UUID, rowNumber int, raw map[string]any) CSVRow {
	now := time.Now()
	return CSVRow{
		ID:               uuid.New(),
		JobID:            jobID,
		RowNumber:        rowNumber,
		RawData:          CopyData(raw),
		ValidationErrors: []ValidationError{},
		ProcessingStatus: CSVRowStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// WithValidationErrors marks the row skipped with its validation findings.
func (r CSVRow) WithValidationErrors(errs []ValidationError) CSVRow {
	next := r
	next.ValidationErrors = append([]ValidationError(nil), errs...)
	for _, e := range errs {
		if e.Severity == SeverityError {
			next.ProcessingStatus = CSVRowStatusSkipped
			break
		}
	}
	next.UpdatedAt = time.Now()
	return next
}

// WithOutcome records the processing result for the row.
func (r CSVRow) WithOutcome(status CSVRowStatus, processed map[string]any, errorMessage string) CSVRow {
	next := r
	next.ProcessingStatus = status
	if processed != nil {
		next.ProcessedData = CopyData(processed)
	}
	if errorMessage != "" {
		msg := errorMessage
		next.ErrorMessage = &msg
	} else {
		next.ErrorMessage = nil
	}
	next.UpdatedAt = time.Now()
	return next
}

// RawDataJSON serializes raw data for storage.
func (r CSVRow) RawDataJSON() ([]byte, error) {
	return json.Marshal(r.RawData)
}

// ValidationErrorsJSON serializes the validation findings for storage.
func (r CSVRow) ValidationErrorsJSON() ([]byte, error) {
	if r.ValidationErrors == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.ValidationErrors)
}

// GeneratedPost links a processed row to the blog post it produced.
type GeneratedPost struct {
	ID         uuid.UUID `json:"id"`
	JobID      uuid.UUID `json:"job_id"`
	CSVRowID   uuid.UUID `json:"csv_row_id"`
	TemplateID string    `json:"template_id"`
	PostID     uuid.UUID `json:"post_id"`
	Title      string    `json:"title"`
	Slug       string    `json:"slug"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewGeneratedPost records the outcome of a successfully processed row.
func NewGeneratedPost(row CSVRow, templateID string, post BlogPost) GeneratedPost {
	return GeneratedPost{
		ID:         uuid.New(),
		JobID:      row.JobID,
		CSVRowID:   row.ID,
		TemplateID: templateID,
		PostID:     post.ID,
		Title:      post.Title,
		Slug:       post.Slug,
		Status:     post.Status,
		CreatedAt:  time.Now(),
	}
}
