package translation

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rpattn/travelcms/internal/apierr"

	"github.com/google/uuid"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func NewHTTPHandler(service *Service) http.Handler {
	h := NewHandler(service)
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

// Register adds the translation routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/posts/{id}/translations", h.handleTranslate)
	mux.HandleFunc("GET /api/posts/{id}/translations", h.handleList)
	mux.HandleFunc("POST /api/translations/bulk", h.handleStartBulk)
	mux.HandleFunc("GET /api/translations/bulk/{id}", h.handleGetBulk)
}

type translateRequest struct {
	Language string `json:"language"`
}

type bulkBody struct {
	PostIDs   []uuid.UUID `json:"post_ids"`
	Languages []string    `json:"languages"`
}

func (h *Handler) handleTranslate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.Write(w, apierr.Invalid(fmt.Errorf("invalid request body: %w", err)))
		return
	}
	translation, err := h.service.TranslatePost(r.Context(), id, req.Language)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, translation)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	translations, err := h.service.ListTranslations(r.Context(), id)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"translations": translations})
}

func (h *Handler) handleStartBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.Write(w, apierr.Invalid(fmt.Errorf("invalid request body: %w", err)))
		return
	}
	run, err := h.service.StartBulk(r.Context(), req.PostIDs, req.Languages)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, run)
}

func (h *Handler) handleGetBulk(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	run, err := h.service.GetBulk(id)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		apierr.Write(w, apierr.Invalidf("invalid id %q", r.PathValue("id")))
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
