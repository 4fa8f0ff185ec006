package ingestion

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rpattn/travelcms/internal/apierr"
	"github.com/rpattn/travelcms/internal/domain"
	"github.com/rpattn/travelcms/internal/postloader"

	"github.com/google/uuid"
)

const maxUploadMemory = 32 << 20

// Handler exposes uploads and upload jobs over HTTP.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// NewHTTPHandler wraps the service with the upload routes.
func NewHTTPHandler(service *Service) http.Handler {
	h := NewHandler(service)
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

// Register adds the upload routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/uploads", h.handleUpload)
	mux.HandleFunc("POST /api/uploads/preview", h.handlePreview)
	mux.HandleFunc("GET /api/upload-jobs", h.handleListJobs)
	mux.HandleFunc("GET /api/upload-jobs/{id}", h.handleGetJob)
	mux.HandleFunc("GET /api/upload-jobs/{id}/progress", h.handleProgress)
	mux.HandleFunc("GET /api/upload-jobs/{id}/rows", h.handleListRows)
	mux.HandleFunc("GET /api/upload-jobs/{id}/posts", h.handleListPosts)
	mux.HandleFunc("GET /api/upload-jobs/{id}/file", h.handleDownloadFile)
	mux.HandleFunc("POST /api/upload-jobs/{id}/process", h.handleProcess)
}

type uploadForm struct {
	fileName string
	data     []byte
}

func readUpload(r *http.Request) (uploadForm, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return uploadForm{}, apierr.Invalid(fmt.Errorf("invalid form data: %w", err))
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return uploadForm{}, apierr.Invalid(fmt.Errorf("file required: %w", err))
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return uploadForm{}, apierr.Invalid(fmt.Errorf("failed to read file: %w", err))
	}
	return uploadForm{fileName: header.Filename, data: data}, nil
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	form, err := readUpload(r)
	if err != nil {
		apierr.Write(w, err)
		return
	}

	jobName := strings.TrimSpace(r.FormValue("job_name"))
	if jobName == "" {
		jobName = form.fileName
	}
	autoStart, _ := strconv.ParseBool(r.FormValue("auto_start"))

	result, err := h.service.Upload(r.Context(), UploadRequest{
		TemplateID: strings.TrimSpace(r.FormValue("template_id")),
		JobName:    jobName,
		FileName:   form.fileName,
		Data:       form.data,
		AutoStart:  autoStart,
	})
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	form, err := readUpload(r)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.FormValue("limit"))

	result, err := h.service.Preview(r.Context(), PreviewRequest{
		TemplateID: strings.TrimSpace(r.FormValue("template_id")),
		FileName:   form.fileName,
		Data:       form.data,
		Limit:      max(limit, 0),
	})
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))

	jobs, err := h.service.ListJobs(r.Context(), limit, offset)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (h *Handler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	job, err := h.service.GetJob(r.Context(), id)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	progress, err := h.service.GetProgress(r.Context(), id)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *Handler) handleListRows(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	rows, err := h.service.ListRows(r.Context(), id)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

type generatedPostView struct {
	domain.GeneratedPost
	FeaturedImage string   `json:"featured_image,omitempty"`
	Language      string   `json:"language,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

func (h *Handler) handleListPosts(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	generated, err := h.service.ListGeneratedPosts(r.Context(), id)
	if err != nil {
		apierr.Write(w, err)
		return
	}

	views := make([]generatedPostView, len(generated))
	for i, g := range generated {
		views[i] = generatedPostView{GeneratedPost: g}
	}

	if loader := postloader.FromContext(r.Context()); loader != nil && len(generated) > 0 {
		ids := make([]uuid.UUID, len(generated))
		for i, g := range generated {
			ids[i] = g.PostID
		}
		// posts deleted since the upload keep the generated record as is
		posts, _ := loader.LoadMany(r.Context(), ids)
		for i, post := range posts {
			if post.ID == uuid.Nil {
				continue
			}
			views[i].FeaturedImage = post.FeaturedImage
			views[i].Language = post.Language
			views[i].Tags = post.Tags
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"posts": views})
}

func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	if err := h.service.StartProcessing(r.Context(), id); err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted", "job_id": id})
}

func (h *Handler) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	job, data, err := h.service.OpenArchive(r.Context(), id)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType(job.FileName))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", job.FileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		apierr.Write(w, apierr.Invalidf("invalid job id %q", r.PathValue("id")))
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
