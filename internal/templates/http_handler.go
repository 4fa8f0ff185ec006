package templates

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rpattn/travelcms/internal/apierr"
	"github.com/rpattn/travelcms/internal/domain"
)

// Handler serves the template catalog.
type Handler struct {
	registry *Registry
}

func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

func NewHTTPHandler(registry *Registry) http.Handler {
	h := NewHandler(registry)
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/templates", h.handleList)
	mux.HandleFunc("GET /api/templates/{id}", h.handleGet)
	mux.HandleFunc("GET /api/templates/{id}/download", h.handleDownload)
}

type templateView struct {
	domain.PostTemplate
	OptionalFieldLabels map[string]string `json:"optional_field_labels"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list := h.registry.List()
	views := make([]templateView, len(list))
	for i, tpl := range list {
		views[i] = templateView{PostTemplate: tpl, OptionalFieldLabels: tpl.OptionalFieldLabels()}
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": views})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	tpl, err := h.lookup(r.PathValue("id"))
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, templateView{PostTemplate: tpl, OptionalFieldLabels: tpl.OptionalFieldLabels()})
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	tpl, err := h.lookup(r.PathValue("id"))
	if err != nil {
		apierr.Write(w, err)
		return
	}

	var (
		payload     []byte
		contentType string
		ext         string
	)
	switch format := strings.ToLower(r.URL.Query().Get("format")); format {
	case "", "csv":
		payload, err = BuildTemplateCSV(tpl)
		contentType, ext = "text/csv; charset=utf-8", "csv"
	case "xlsx":
		payload, err = BuildTemplateXLSX(tpl)
		contentType, ext = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx"
	default:
		apierr.Write(w, apierr.Invalidf("unsupported template format %q", format))
		return
	}
	if err != nil {
		apierr.Write(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-template.%s"`, tpl.ID, ext))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (h *Handler) lookup(id string) (domain.PostTemplate, error) {
	tpl, err := h.registry.Get(id)
	if errors.Is(err, ErrTemplateNotFound) {
		return domain.PostTemplate{}, apierr.NotFound(err)
	}
	return tpl, err
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
