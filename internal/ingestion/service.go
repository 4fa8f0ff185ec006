package ingestion

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rpattn/travelcms/internal/apierr"
	"github.com/rpattn/travelcms/internal/domain"
	"github.com/rpattn/travelcms/internal/ledger"
	"github.com/rpattn/travelcms/internal/logger"
	"github.com/rpattn/travelcms/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const defaultPreviewLimit = 10

// Dispatcher starts processing of a job somewhere other than the caller's
// goroutine.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID uuid.UUID) error
}

// Archive keeps the original uploaded file.
type Archive interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Service accepts uploads, records them in the ledger and hands them to the
// dispatcher.
type Service struct {
	ledger       *ledger.Ledger
	rows         repository.CSVRowRepository
	generated    repository.GeneratedPostRepository
	templates    TemplateSource
	validator    *RowValidator
	requests     *validator.Validate
	dispatcher   Dispatcher
	archive      Archive
	logger       *logger.Logger
	previewLimit int
}

type Option func(*Service)

func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) {
		s.dispatcher = d
	}
}

func WithArchive(a Archive) Option {
	return func(s *Service) {
		s.archive = a
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

func WithPreviewLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.previewLimit = n
		}
	}
}

// NewService creates an upload service.
func NewService(l *ledger.Ledger, rows repository.CSVRowRepository, generated repository.GeneratedPostRepository, templates TemplateSource, opts ...Option) *Service {
	s := &Service{
		ledger:       l,
		rows:         rows,
		generated:    generated,
		templates:    templates,
		validator:    NewRowValidator(),
		requests:     validator.New(),
		logger:       logger.NewNop(),
		previewLimit: defaultPreviewLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UploadRequest describes one file upload.
type UploadRequest struct {
	TemplateID string `validate:"required"`
	JobName    string `validate:"required,max=200"`
	FileName   string `validate:"required"`
	Data       []byte `validate:"gt=0"`
	AutoStart  bool
}

// UploadResult summarizes an accepted upload.
type UploadResult struct {
	Job         domain.UploadJob `json:"job"`
	TotalRows   int              `json:"total_rows"`
	ValidRows   int              `json:"valid_rows"`
	InvalidRows int              `json:"invalid_rows"`
	RowErrors   []RowErrors      `json:"row_errors"`
	ParseErrors []string         `json:"parse_errors"`
	Dispatched  bool             `json:"dispatched"`
}

// PreviewRequest describes a dry run of an upload.
type PreviewRequest struct {
	TemplateID string `validate:"required"`
	FileName   string `validate:"required"`
	Data       []byte `validate:"gt=0"`
	Limit      int    `validate:"gte=0"`
}

// PreviewResult returns what an upload would do without persisting it.
type PreviewResult struct {
	Headers     []string         `json:"headers"`
	TotalRows   int              `json:"total_rows"`
	ValidRows   int              `json:"valid_rows"`
	InvalidRows int              `json:"invalid_rows"`
	Rows        []map[string]any `json:"rows"`
	RowErrors   []RowErrors      `json:"row_errors"`
	ParseErrors []string         `json:"parse_errors"`
}

// Upload parses and validates the file, records the job and every parsed row,
// archives the original and optionally starts processing. total_rows is the
// number of rows that will be processed.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	if err := s.requests.Struct(req); err != nil {
		return UploadResult{}, apierr.Invalid(err)
	}

	tpl, parsed, validation, err := s.check(req.TemplateID, req.FileName, req.Data)
	if err != nil {
		return UploadResult{}, err
	}

	job, err := s.ledger.CreateJob(ctx, tpl.ID, req.JobName, req.FileName, int64(len(req.Data)), len(validation.ValidRows))
	if err != nil {
		return UploadResult{}, err
	}

	findings := make(map[int][]domain.ValidationError, len(validation.Errors)+len(validation.ValidRows))
	for _, rowErr := range validation.Errors {
		findings[rowErr.Row] = rowErr.Errors
	}
	for _, valid := range validation.ValidRows {
		if len(valid.Warnings) > 0 {
			findings[valid.RowNumber] = valid.Warnings
		}
	}

	rows := make([]domain.CSVRow, 0, len(parsed.Rows))
	for idx, raw := range parsed.Rows {
		row := domain.NewCSVRow(job.ID, idx+1, raw)
		if errs, ok := findings[idx+1]; ok {
			row = row.WithValidationErrors(errs)
		}
		rows = append(rows, row)
	}
	if err := s.rows.CreateBatch(ctx, rows); err != nil {
		return UploadResult{}, s.abandon(job.ID, fmt.Errorf("failed to store rows: %w", err))
	}

	warnings := skipWarnings(validation.Errors)
	warnings = append(warnings, parsed.Errors...)
	patch := &domain.UploadJobPatch{Warnings: warnings}

	if s.archive != nil {
		key := ArchiveKey(job.ID, req.FileName)
		if err := s.archive.Put(ctx, key, req.Data, contentType(req.FileName)); err != nil {
			s.logger.Warn("failed to archive upload", "job_id", job.ID, "error", err)
		} else {
			patch.ArchiveKey = &key
		}
	}

	job, err = s.ledger.UpdateStatus(ctx, job.ID, domain.UploadJobStatusPending, patch)
	if err != nil {
		return UploadResult{}, err
	}

	result := UploadResult{
		Job:         job,
		TotalRows:   len(parsed.Rows),
		ValidRows:   len(validation.ValidRows),
		InvalidRows: len(validation.Errors),
		RowErrors:   validation.Errors,
		ParseErrors: nonNil(parsed.Errors),
	}

	s.logger.Info("upload accepted",
		"job_id", job.ID,
		"template_id", tpl.ID,
		"rows", result.TotalRows,
		"valid", result.ValidRows,
	)

	if req.AutoStart && result.ValidRows > 0 {
		if err := s.StartProcessing(ctx, job.ID); err != nil {
			s.logger.Warn("failed to dispatch upload job", "job_id", job.ID, "error", err)
		} else {
			result.Dispatched = true
		}
	}
	return result, nil
}

// Preview parses and validates without touching the store.
func (s *Service) Preview(ctx context.Context, req PreviewRequest) (PreviewResult, error) {
	if err := s.requests.StructCtx(ctx, req); err != nil {
		return PreviewResult{}, apierr.Invalid(err)
	}

	_, parsed, validation, err := s.check(req.TemplateID, req.FileName, req.Data)
	if err != nil {
		return PreviewResult{}, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.previewLimit
	}
	sample := parsed.Rows
	if len(sample) > limit {
		sample = sample[:limit]
	}

	return PreviewResult{
		Headers:     parsed.Headers,
		TotalRows:   len(parsed.Rows),
		ValidRows:   len(validation.ValidRows),
		InvalidRows: len(validation.Errors),
		Rows:        sample,
		RowErrors:   validation.Errors,
		ParseErrors: nonNil(parsed.Errors),
	}, nil
}

func (s *Service) check(templateID, fileName string, data []byte) (domain.PostTemplate, ParseResult, ValidationResult, error) {
	tpl, err := s.templates.Get(strings.TrimSpace(templateID))
	if err != nil {
		return domain.PostTemplate{}, ParseResult{}, ValidationResult{}, apierr.Invalid(err)
	}
	parsed, err := Parse(fileName, data)
	if err != nil {
		return domain.PostTemplate{}, ParseResult{}, ValidationResult{}, apierr.Invalid(err)
	}
	return tpl, parsed, s.validator.Validate(parsed.Rows, tpl), nil
}

// StartProcessing hands the job to the dispatcher.
func (s *Service) StartProcessing(ctx context.Context, jobID uuid.UUID) error {
	if s.dispatcher == nil {
		return fmt.Errorf("no dispatcher configured")
	}
	if _, err := s.ledger.GetJob(ctx, jobID); err != nil {
		return err
	}
	if err := s.dispatcher.Dispatch(ctx, jobID); err != nil {
		return fmt.Errorf("failed to dispatch job %s: %w", jobID, err)
	}
	return nil
}

func (s *Service) GetJob(ctx context.Context, jobID uuid.UUID) (domain.UploadJob, error) {
	return s.ledger.GetJob(ctx, jobID)
}

func (s *Service) GetProgress(ctx context.Context, jobID uuid.UUID) (domain.JobProgress, error) {
	return s.ledger.GetProgress(ctx, jobID)
}

func (s *Service) ListJobs(ctx context.Context, limit, offset int) ([]domain.UploadJob, error) {
	return s.ledger.ListJobs(ctx, limit, offset)
}

// ListRows returns the stored rows of a job in row order.
func (s *Service) ListRows(ctx context.Context, jobID uuid.UUID) ([]domain.CSVRow, error) {
	if _, err := s.ledger.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	rows, err := s.rows.ListByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rows for job %s: %w", jobID, err)
	}
	return rows, nil
}

// ListGeneratedPosts returns the posts a job produced.
func (s *Service) ListGeneratedPosts(ctx context.Context, jobID uuid.UUID) ([]domain.GeneratedPost, error) {
	if _, err := s.ledger.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	posts, err := s.generated.ListByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list generated posts for job %s: %w", jobID, err)
	}
	return posts, nil
}

// OpenArchive returns the original upload of a job.
func (s *Service) OpenArchive(ctx context.Context, jobID uuid.UUID) (domain.UploadJob, []byte, error) {
	job, err := s.ledger.GetJob(ctx, jobID)
	if err != nil {
		return domain.UploadJob{}, nil, err
	}
	if s.archive == nil || job.ArchiveKey == nil {
		return job, nil, fmt.Errorf("job %s has no archived file: %w", jobID, repository.ErrNotFound)
	}
	data, err := s.archive.Get(ctx, *job.ArchiveKey)
	if err != nil {
		return job, nil, err
	}
	return job, data, nil
}

// abandon marks a job failed after a setup error and returns the cause.
func (s *Service) abandon(jobID uuid.UUID, cause error) error {
	if _, err := s.ledger.UpdateStatus(context.Background(), jobID, domain.UploadJobStatusFailed, &domain.UploadJobPatch{
		Errors: []string{cause.Error()},
	}); err != nil {
		s.logger.Error("failed to mark upload job failed", "job_id", jobID, "error", err)
	}
	return cause
}

// ArchiveKey is the object key of a job's original upload.
func ArchiveKey(jobID uuid.UUID, fileName string) string {
	return fmt.Sprintf("uploads/%s/%s", jobID, filepath.Base(fileName))
}

func skipWarnings(rowErrors []RowErrors) []string {
	warnings := make([]string, 0, len(rowErrors))
	for _, rowErr := range rowErrors {
		for _, finding := range rowErr.Errors {
			if finding.Severity == domain.SeverityError {
				warnings = append(warnings, fmt.Sprintf("Row %d skipped: %s", rowErr.Row, finding.Error))
				break
			}
		}
	}
	return warnings
}

func contentType(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv"
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
