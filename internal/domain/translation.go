package domain

import (
	"time"

	"github.com/google/uuid"
)

// TranslationStatus reports how complete a stored translation is.
type TranslationStatus string

const (
	TranslationStatusCompleted TranslationStatus = "completed"
	// TranslationStatusPartial means at least one chunk fell back to source text.
	TranslationStatusPartial TranslationStatus = "partial"
	TranslationStatusFailed  TranslationStatus = "failed"
)

// PostTranslation holds the translated text of one post in one language.
type PostTranslation struct {
	ID             uuid.UUID                 `json:"id"`
	PostID         uuid.UUID                 `json:"post_id"`
	Language       string                    `json:"language"`
	SourceLanguage string                    `json:"source_language"`
	Fields         map[string]string         `json:"fields"`
	Sections       map[string]map[string]any `json:"sections"`
	Status         TranslationStatus         `json:"status"`
	Warnings       []string                  `json:"warnings"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
}

// NewPostTranslation creates an empty translation record.
func NewPostTranslation(postID uuid.UUID, language, sourceLanguage string) PostTranslation {
	now := time.Now()
	return PostTranslation{
		ID:             uuid.New(),
		PostID:         postID,
		Language:       language,
		SourceLanguage: sourceLanguage,
		Fields:         map[string]string{},
		Sections:       map[string]map[string]any{},
		Status:         TranslationStatusCompleted,
		Warnings:       []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// BulkRunStatus tracks a bulk re-translation run.
type BulkRunStatus string

const (
	BulkRunStatusRunning   BulkRunStatus = "running"
	BulkRunStatusCompleted BulkRunStatus = "completed"
	BulkRunStatusCancelled BulkRunStatus = "cancelled"
)

// BulkTranslationRun is the in-memory progress record of a bulk run.
type BulkTranslationRun struct {
	ID         uuid.UUID     `json:"id"`
	PostIDs    []uuid.UUID   `json:"post_ids"`
	Languages  []string      `json:"languages"`
	Total      int           `json:"total"`
	Completed  int           `json:"completed"`
	Failed     int           `json:"failed"`
	Status     BulkRunStatus `json:"status"`
	Errors     []string      `json:"errors"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}
