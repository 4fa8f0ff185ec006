package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rpattn/travelcms/internal/apierr"
	"github.com/rpattn/travelcms/internal/domain"
	"github.com/rpattn/travelcms/internal/middleware"
	"github.com/rpattn/travelcms/internal/repository"
	"github.com/rpattn/travelcms/internal/storage"

	"github.com/google/uuid"
)

type stubDispatcher struct {
	mu   sync.Mutex
	jobs []uuid.UUID
	err  error
}

func (s *stubDispatcher) Dispatch(_ context.Context, jobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, jobID)
	return nil
}

var _ Dispatcher = (*stubDispatcher)(nil)

type failingRowRepo struct {
	repository.CSVRowRepository
}

func (failingRowRepo) CreateBatch(context.Context, []domain.CSVRow) error {
	return errors.New("copy failed")
}

func TestServiceUploadRecordsJobAndRows(t *testing.T) {
	h := newHarness(t)
	archive := storage.NewMemoryArchive()
	dispatcher := &stubDispatcher{}
	service := NewService(h.ledger, h.store.Rows, h.store.GeneratedPosts, h.registry,
		WithArchive(archive), WithDispatcher(dispatcher))

	data := "title,excerpt,faq_items\nParis Guide,Lights,\nRome Guide,,\nOslo Guide,Fjords,{oops\n"
	result, err := service.Upload(context.Background(), UploadRequest{
		TemplateID: "travel-guide",
		JobName:    "March",
		FileName:   "march.csv",
		Data:       []byte(data),
		AutoStart:  true,
	})
	if err != nil {
		t.Fatalf("upload returned error: %v", err)
	}

	if result.TotalRows != 3 || result.ValidRows != 2 || result.InvalidRows != 1 {
		t.Fatalf("unexpected summary %+v", result)
	}
	job := result.Job
	if job.Status != domain.UploadJobStatusPending || job.TotalRows != 2 || job.FileSize != int64(len(data)) {
		t.Fatalf("unexpected job %+v", job)
	}
	wantWarnings := []string{
		"Row 2 skipped: Required field 'excerpt' is missing or empty",
		"Row 3: Invalid JSON in field 'faq_items': {oops",
	}
	if len(job.Warnings) != 2 || job.Warnings[0] != wantWarnings[0] || job.Warnings[1] != wantWarnings[1] {
		t.Fatalf("unexpected warnings %q", job.Warnings)
	}

	rows, err := h.store.Rows.ListByJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("list rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("every parsed row must be stored, got %d", len(rows))
	}
	if rows[0].ProcessingStatus != domain.CSVRowStatusPending || rows[1].ProcessingStatus != domain.CSVRowStatusSkipped {
		t.Fatalf("unexpected row statuses %s %s", rows[0].ProcessingStatus, rows[1].ProcessingStatus)
	}
	if len(rows[1].ValidationErrors) != 1 || rows[1].ValidationErrors[0].Field != "excerpt" {
		t.Fatalf("skipped row should carry its findings: %+v", rows[1].ValidationErrors)
	}

	if job.ArchiveKey == nil {
		t.Fatal("expected archive key on job")
	}
	stored, err := archive.Get(context.Background(), *job.ArchiveKey)
	if err != nil || string(stored) != data {
		t.Fatalf("archive mismatch: %v", err)
	}

	if !result.Dispatched || len(dispatcher.jobs) != 1 || dispatcher.jobs[0] != job.ID {
		t.Fatalf("expected job to be dispatched, got %v", dispatcher.jobs)
	}
}

func TestServiceUploadWithoutAutoStartDoesNotDispatch(t *testing.T) {
	h := newHarness(t)
	dispatcher := &stubDispatcher{}
	service := NewService(h.ledger, h.store.Rows, h.store.GeneratedPosts, h.registry, WithDispatcher(dispatcher))

	result, err := service.Upload(context.Background(), UploadRequest{
		TemplateID: "travel-guide", JobName: "x", FileName: "x.csv", Data: []byte("title,excerpt\nAbc,d\n"),
	})
	if err != nil {
		t.Fatalf("upload returned error: %v", err)
	}
	if result.Dispatched || len(dispatcher.jobs) != 0 {
		t.Fatal("job must wait for an explicit start")
	}
}

func TestServiceUploadRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	cases := map[string]UploadRequest{
		"missing template": {JobName: "x", FileName: "x.csv", Data: []byte("title\nA\n")},
		"unknown template": {TemplateID: "nope", JobName: "x", FileName: "x.csv", Data: []byte("title\nA\n")},
		"empty payload":    {TemplateID: "travel-guide", JobName: "x", FileName: "x.csv"},
		"unsupported file": {TemplateID: "travel-guide", JobName: "x", FileName: "x.pdf", Data: []byte("%PDF")},
		"header only":      {TemplateID: "travel-guide", JobName: "x", FileName: "x.csv", Data: []byte("\n")},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.service.Upload(context.Background(), req)
			if err == nil {
				t.Fatal("expected error")
			}
			if status, _ := apierr.Classify(err); status != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d (%v)", status, err)
			}
		})
	}

	jobs, err := h.ledger.ListJobs(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("rejected uploads must not create jobs, got %d", len(jobs))
	}
}

func TestServiceUploadMarksJobFailedWhenRowsCannotBeStored(t *testing.T) {
	h := newHarness(t)
	service := NewService(h.ledger, failingRowRepo{}, h.store.GeneratedPosts, h.registry)

	_, err := service.Upload(context.Background(), UploadRequest{
		TemplateID: "travel-guide", JobName: "x", FileName: "x.csv", Data: []byte("title,excerpt\nAbc,d\n"),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	jobs, _ := h.ledger.ListJobs(context.Background(), 0, 0)
	if len(jobs) != 1 || jobs[0].Status != domain.UploadJobStatusFailed {
		t.Fatalf("expected one failed job, got %+v", jobs)
	}
}

func TestServicePreviewDoesNotPersist(t *testing.T) {
	h := newHarness(t)
	data := "title,excerpt\nAaa,1\nBbb,2\nCcc,\n"

	result, err := h.service.Preview(context.Background(), PreviewRequest{
		TemplateID: "travel-guide", FileName: "p.csv", Data: []byte(data), Limit: 2,
	})
	if err != nil {
		t.Fatalf("preview returned error: %v", err)
	}
	if result.TotalRows != 3 || result.ValidRows != 2 || result.InvalidRows != 1 || len(result.Rows) != 2 {
		t.Fatalf("unexpected preview %+v", result)
	}
	jobs, _ := h.ledger.ListJobs(context.Background(), 0, 0)
	if len(jobs) != 0 {
		t.Fatalf("preview must not create jobs")
	}
}

func TestServiceStartProcessingUnknownJob(t *testing.T) {
	h := newHarness(t)
	service := NewService(h.ledger, h.store.Rows, h.store.GeneratedPosts, h.registry, WithDispatcher(&stubDispatcher{}))
	err := service.StartProcessing(context.Background(), uuid.New())
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func multipartUpload(t *testing.T, fields map[string]string, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestHTTPHandlerUploadAndPoll(t *testing.T) {
	h := newHarness(t)
	runner := h.runner(nil)
	dispatcher := &inlineTestDispatcher{runner: runner}
	service := NewService(h.ledger, h.store.Rows, h.store.GeneratedPosts, h.registry,
		WithDispatcher(dispatcher), WithArchive(storage.NewMemoryArchive()))
	handler := middleware.PostLoaderMiddleware(h.posts)(NewHTTPHandler(service))

	body, contentType := multipartUpload(t, map[string]string{
		"template_id": "travel-guide",
		"job_name":    "Spring batch",
		"auto_start":  "true",
	}, "spring.csv", "title,excerpt,tags\nParis Guide,Lights,\"france, city\"\nRome Guide,Ruins,italy\n")
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var uploaded UploadResult
	if err := json.Unmarshal(rec.Body.Bytes(), &uploaded); err != nil {
		t.Fatalf("decode upload: %v", err)
	}
	jobID := uploaded.Job.ID.String()

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/upload-jobs/"+jobID+"/progress", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected progress status %d", rec.Code)
	}
	var progress domain.JobProgress
	if err := json.Unmarshal(rec.Body.Bytes(), &progress); err != nil {
		t.Fatalf("decode progress: %v", err)
	}
	if progress.Status != domain.UploadJobStatusCompleted || progress.SuccessfulRows != 2 {
		t.Fatalf("unexpected progress %+v", progress)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/upload-jobs/"+jobID+"/posts", nil))
	var posts struct {
		Posts []generatedPostView `json:"posts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &posts); err != nil {
		t.Fatalf("decode posts: %v", err)
	}
	if len(posts.Posts) != 2 || posts.Posts[0].Slug != "paris-guide" || posts.Posts[0].Language != "en" {
		t.Fatalf("unexpected posts %+v", posts.Posts)
	}
	if len(posts.Posts[0].Tags) != 2 {
		t.Fatalf("post loader should enrich tags, got %v", posts.Posts[0].Tags)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/upload-jobs/"+jobID+"/file", nil))
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte("Paris Guide")) {
		t.Fatalf("unexpected archive download %d", rec.Code)
	}
}

func TestHTTPHandlerErrors(t *testing.T) {
	h := newHarness(t)
	handler := NewHTTPHandler(h.service)

	cases := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/api/upload-jobs/not-a-uuid", http.StatusBadRequest},
		{http.MethodGet, "/api/upload-jobs/" + uuid.NewString(), http.StatusNotFound},
		{http.MethodGet, "/api/upload-jobs/" + uuid.NewString() + "/progress", http.StatusNotFound},
		{http.MethodPost, "/api/uploads", http.StatusBadRequest},
		{http.MethodDelete, "/api/upload-jobs", http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != tc.status {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.status, rec.Code)
		}
	}
}

// inlineTestDispatcher runs the job synchronously so tests can poll right away.
type inlineTestDispatcher struct {
	runner *Runner
}

func (d *inlineTestDispatcher) Dispatch(ctx context.Context, jobID uuid.UUID) error {
	return d.runner.Run(ctx, jobID)
}
