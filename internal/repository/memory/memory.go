// Package memory provides in-process repositories used by tests and local
// development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rpattn/travelcms/internal/domain"
	"github.com/rpattn/travelcms/internal/repository"

	"github.com/google/uuid"
)

// NewStore returns a repository.Store backed by process memory.
func NewStore() repository.Store {
	return repository.Store{
		Jobs:           NewUploadJobRepository(),
		Rows:           NewCSVRowRepository(),
		GeneratedPosts: NewGeneratedPostRepository(),
		Posts:          NewBlogPostRepository(),
		Sections:       NewSectionRepository(),
		Translations:   NewTranslationRepository(),
	}
}

// UploadJobRepository keeps jobs in a map.
type UploadJobRepository struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]domain.UploadJob
}

var _ repository.UploadJobRepository = (*UploadJobRepository)(nil)

func NewUploadJobRepository() *UploadJobRepository {
	return &UploadJobRepository{jobs: make(map[uuid.UUID]domain.UploadJob)}
}

func (r *UploadJobRepository) Create(_ context.Context, job domain.UploadJob) (domain.UploadJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if _, exists := r.jobs[job.ID]; exists {
		return domain.UploadJob{}, fmt.Errorf("upload job %s already exists", job.ID)
	}
	r.jobs[job.ID] = cloneJob(job)
	return cloneJob(job), nil
}

func (r *UploadJobRepository) GetByID(_ context.Context, id uuid.UUID) (domain.UploadJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return domain.UploadJob{}, repository.ErrNotFound
	}
	return cloneJob(job), nil
}

func (r *UploadJobRepository) List(_ context.Context, limit int, offset int) ([]domain.UploadJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	jobs := make([]domain.UploadJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, cloneJob(job))
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return paginate(jobs, limit, offset), nil
}

func (r *UploadJobRepository) Update(_ context.Context, job domain.UploadJob) (domain.UploadJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; !ok {
		return domain.UploadJob{}, repository.ErrNotFound
	}
	r.jobs[job.ID] = cloneJob(job)
	return cloneJob(job), nil
}

func cloneJob(job domain.UploadJob) domain.UploadJob {
	job.Errors = append([]string{}, job.Errors...)
	job.Warnings = append([]string{}, job.Warnings...)
	return job
}

// CSVRowRepository keeps rows grouped by job.
type CSVRowRepository struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]domain.CSVRow
}

var _ repository.CSVRowRepository = (*CSVRowRepository)(nil)

func NewCSVRowRepository() *CSVRowRepository {
	return &CSVRowRepository{rows: make(map[uuid.UUID]domain.CSVRow)}
}

func (r *CSVRowRepository) CreateBatch(_ context.Context, rows []domain.CSVRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		r.rows[row.ID] = row
	}
	return nil
}

func (r *CSVRowRepository) ListByJob(_ context.Context, jobID uuid.UUID) ([]domain.CSVRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rows := []domain.CSVRow{}
	for _, row := range r.rows {
		if row.JobID == jobID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].RowNumber < rows[j].RowNumber })
	return rows, nil
}

func (r *CSVRowRepository) Update(_ context.Context, row domain.CSVRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[row.ID]; !ok {
		return repository.ErrNotFound
	}
	r.rows[row.ID] = row
	return nil
}

// GeneratedPostRepository is an append-only slice.
type GeneratedPostRepository struct {
	mu    sync.RWMutex
	posts []domain.GeneratedPost
}

var _ repository.GeneratedPostRepository = (*GeneratedPostRepository)(nil)

func NewGeneratedPostRepository() *GeneratedPostRepository {
	return &GeneratedPostRepository{}
}

func (r *GeneratedPostRepository) Create(_ context.Context, post domain.GeneratedPost) (domain.GeneratedPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	r.posts = append(r.posts, post)
	return post, nil
}

func (r *GeneratedPostRepository) ListByJob(_ context.Context, jobID uuid.UUID) ([]domain.GeneratedPost, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.GeneratedPost{}
	for _, post := range r.posts {
		if post.JobID == jobID {
			out = append(out, post)
		}
	}
	return out, nil
}

// BlogPostRepository keeps posts in insertion order.
type BlogPostRepository struct {
	mu    sync.RWMutex
	posts map[uuid.UUID]domain.BlogPost
	slugs map[string]uuid.UUID
	order []uuid.UUID
}

var _ repository.BlogPostRepository = (*BlogPostRepository)(nil)

func NewBlogPostRepository() *BlogPostRepository {
	return &BlogPostRepository{
		posts: make(map[uuid.UUID]domain.BlogPost),
		slugs: make(map[string]uuid.UUID),
	}
}

func (r *BlogPostRepository) SlugExists(_ context.Context, slug string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.slugs[slug]
	return ok, nil
}

func (r *BlogPostRepository) Create(_ context.Context, post domain.BlogPost) (domain.BlogPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	if _, taken := r.slugs[post.Slug]; taken {
		return domain.BlogPost{}, fmt.Errorf("duplicate key value violates unique constraint on slug %q", post.Slug)
	}
	r.posts[post.ID] = post
	r.slugs[post.Slug] = post.ID
	r.order = append(r.order, post.ID)
	return post, nil
}

func (r *BlogPostRepository) GetByID(_ context.Context, id uuid.UUID) (domain.BlogPost, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	post, ok := r.posts[id]
	if !ok {
		return domain.BlogPost{}, repository.ErrNotFound
	}
	return post, nil
}

func (r *BlogPostRepository) GetByIDs(_ context.Context, ids []uuid.UUID) ([]domain.BlogPost, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.BlogPost, 0, len(ids))
	for _, id := range ids {
		if post, ok := r.posts[id]; ok {
			out = append(out, post)
		}
	}
	return out, nil
}

// All returns every post in creation order.
func (r *BlogPostRepository) All() []domain.BlogPost {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.BlogPost, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.posts[id])
	}
	return out
}

// SectionRepository keeps sections keyed by post.
type SectionRepository struct {
	mu       sync.RWMutex
	sections map[uuid.UUID][]domain.PostSection
}

var _ repository.SectionRepository = (*SectionRepository)(nil)

func NewSectionRepository() *SectionRepository {
	return &SectionRepository{sections: make(map[uuid.UUID][]domain.PostSection)}
}

func (r *SectionRepository) CreateBatch(_ context.Context, sections []domain.PostSection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, section := range sections {
		r.sections[section.PostID] = append(r.sections[section.PostID], section)
	}
	return nil
}

func (r *SectionRepository) ListByPost(_ context.Context, postID uuid.UUID) ([]domain.PostSection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]domain.PostSection{}, r.sections[postID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// TranslationRepository keeps one translation per post and language.
type TranslationRepository struct {
	mu           sync.RWMutex
	translations map[uuid.UUID]map[string]domain.PostTranslation
}

var _ repository.TranslationRepository = (*TranslationRepository)(nil)

func NewTranslationRepository() *TranslationRepository {
	return &TranslationRepository{translations: make(map[uuid.UUID]map[string]domain.PostTranslation)}
}

func (r *TranslationRepository) Upsert(_ context.Context, translation domain.PostTranslation) (domain.PostTranslation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byLang, ok := r.translations[translation.PostID]
	if !ok {
		byLang = make(map[string]domain.PostTranslation)
		r.translations[translation.PostID] = byLang
	}
	if existing, ok := byLang[translation.Language]; ok {
		translation.ID = existing.ID
		translation.CreatedAt = existing.CreatedAt
	}
	byLang[translation.Language] = translation
	return translation, nil
}

func (r *TranslationRepository) ListByPost(_ context.Context, postID uuid.UUID) ([]domain.PostTranslation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.PostTranslation{}
	for _, translation := range r.translations[postID] {
		out = append(out, translation)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Language < out[j].Language })
	return out, nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
