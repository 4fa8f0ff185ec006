package repository

import (
	"context"
	"errors"

	"github.com/rpattn/travelcms/internal/domain"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// UploadJobRepository persists upload jobs. Updates are whole-record writes;
// the last writer wins.
type UploadJobRepository interface {
	Create(ctx context.Context, job domain.UploadJob) (domain.UploadJob, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.UploadJob, error)
	List(ctx context.Context, limit int, offset int) ([]domain.UploadJob, error)
	Update(ctx context.Context, job domain.UploadJob) (domain.UploadJob, error)
}

// CSVRowRepository persists parsed rows of an upload.
type CSVRowRepository interface {
	CreateBatch(ctx context.Context, rows []domain.CSVRow) error
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]domain.CSVRow, error)
	Update(ctx context.Context, row domain.CSVRow) error
}

// GeneratedPostRepository is the append-only log of posts produced by uploads.
type GeneratedPostRepository interface {
	Create(ctx context.Context, post domain.GeneratedPost) (domain.GeneratedPost, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]domain.GeneratedPost, error)
}

// BlogPostRepository persists primary content records.
type BlogPostRepository interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
	Create(ctx context.Context, post domain.BlogPost) (domain.BlogPost, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.BlogPost, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.BlogPost, error)
}

// SectionRepository persists the dependent sections of a post.
type SectionRepository interface {
	CreateBatch(ctx context.Context, sections []domain.PostSection) error
	ListByPost(ctx context.Context, postID uuid.UUID) ([]domain.PostSection, error)
}

// TranslationRepository persists one translation per post and language.
type TranslationRepository interface {
	Upsert(ctx context.Context, translation domain.PostTranslation) (domain.PostTranslation, error)
	ListByPost(ctx context.Context, postID uuid.UUID) ([]domain.PostTranslation, error)
}

// Store bundles the repositories of one back end.
type Store struct {
	Jobs           UploadJobRepository
	Rows           CSVRowRepository
	GeneratedPosts GeneratedPostRepository
	Posts          BlogPostRepository
	Sections       SectionRepository
	Translations   TranslationRepository
}
