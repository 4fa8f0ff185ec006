// Package supabase implements the repositories over the Supabase REST
// (PostgREST) interface, for deployments that share the admin app's
// project instead of a direct database connection.
package supabase

import (
	"context"
	"fmt"

	"github.com/rpattn/travelcms/internal/domain"
	"github.com/rpattn/travelcms/internal/repository"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

const (
	tableUploadJobs     = "upload_jobs"
	tableCSVRows        = "csv_rows"
	tableGeneratedPosts = "generated_posts"
	tableBlogPosts      = "blog_posts"
	tablePostSections   = "post_sections"
	tableTranslations   = "post_translations"
)

// Client is the query entry point shared by supabase-go and postgrest-go
// clients.
type Client interface {
	From(table string) *postgrest.QueryBuilder
}

var (
	_ Client = (*supa.Client)(nil)
	_ Client = (*postgrest.Client)(nil)
)

// NewClient connects to a Supabase project with a service key.
func NewClient(url, key string) (*supa.Client, error) {
	client, err := supa.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize supabase client: %w", err)
	}
	return client, nil
}

// NewStore wires every repository to client.
func NewStore(client Client) repository.Store {
	return repository.Store{
		Jobs:           &uploadJobRepository{client: client},
		Rows:           &csvRowRepository{client: client},
		GeneratedPosts: &generatedPostRepository{client: client},
		Posts:          &blogPostRepository{client: client},
		Sections:       &sectionRepository{client: client},
		Translations:   &translationRepository{client: client},
	}
}

// The REST client carries no context; ctx is checked before each call so a
// cancelled request does not start new work.

type uploadJobRepository struct{ client Client }

func (r *uploadJobRepository) Create(ctx context.Context, job domain.UploadJob) (domain.UploadJob, error) {
	if err := ctx.Err(); err != nil {
		return domain.UploadJob{}, err
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	var created []domain.UploadJob
	if _, err := r.client.From(tableUploadJobs).Insert(job, false, "", "representation", "").ExecuteTo(&created); err != nil {
		return domain.UploadJob{}, fmt.Errorf("failed to create upload job: %w", err)
	}
	if len(created) == 0 {
		return job, nil
	}
	return created[0], nil
}

func (r *uploadJobRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.UploadJob, error) {
	if err := ctx.Err(); err != nil {
		return domain.UploadJob{}, err
	}
	var jobs []domain.UploadJob
	if _, err := r.client.From(tableUploadJobs).
		Select("*", "", false).
		Eq("id", id.String()).
		Limit(1, "").
		ExecuteTo(&jobs); err != nil {
		return domain.UploadJob{}, fmt.Errorf("failed to get upload job: %w", err)
	}
	if len(jobs) == 0 {
		return domain.UploadJob{}, fmt.Errorf("upload job %s: %w", id, repository.ErrNotFound)
	}
	return jobs[0], nil
}

func (r *uploadJobRepository) List(ctx context.Context, limit int, offset int) ([]domain.UploadJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	jobs := []domain.UploadJob{}
	if _, err := r.client.From(tableUploadJobs).
		Select("*", "", false).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Range(offset, offset+limit-1, "").
		ExecuteTo(&jobs); err != nil {
		return nil, fmt.Errorf("failed to list upload jobs: %w", err)
	}
	return jobs, nil
}

func (r *uploadJobRepository) Update(ctx context.Context, job domain.UploadJob) (domain.UploadJob, error) {
	if err := ctx.Err(); err != nil {
		return domain.UploadJob{}, err
	}
	var updated []domain.UploadJob
	if _, err := r.client.From(tableUploadJobs).
		Update(job, "representation", "").
		Eq("id", job.ID.String()).
		ExecuteTo(&updated); err != nil {
		return domain.UploadJob{}, fmt.Errorf("failed to update upload job: %w", err)
	}
	if len(updated) == 0 {
		return domain.UploadJob{}, fmt.Errorf("upload job %s: %w", job.ID, repository.ErrNotFound)
	}
	return updated[0], nil
}

type csvRowRepository struct{ client Client }

func (r *csvRowRepository) CreateBatch(ctx context.Context, rows []domain.CSVRow) error {
	if len(rows) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for i := range rows {
		if rows[i].ID == uuid.Nil {
			rows[i].ID = uuid.New()
		}
	}
	if _, _, err := r.client.From(tableCSVRows).Insert(rows, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("failed to insert csv rows: %w", err)
	}
	return nil
}

func (r *csvRowRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]domain.CSVRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows := []domain.CSVRow{}
	if _, err := r.client.From(tableCSVRows).
		Select("*", "", false).
		Eq("job_id", jobID.String()).
		Order("row_number", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("failed to list csv rows: %w", err)
	}
	return rows, nil
}

func (r *csvRowRepository) Update(ctx context.Context, row domain.CSVRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var updated []domain.CSVRow
	if _, err := r.client.From(tableCSVRows).
		Update(row, "representation", "").
		Eq("id", row.ID.String()).
		ExecuteTo(&updated); err != nil {
		return fmt.Errorf("failed to update csv row %d: %w", row.RowNumber, err)
	}
	if len(updated) == 0 {
		return fmt.Errorf("csv row %s: %w", row.ID, repository.ErrNotFound)
	}
	return nil
}

type generatedPostRepository struct{ client Client }

func (r *generatedPostRepository) Create(ctx context.Context, post domain.GeneratedPost) (domain.GeneratedPost, error) {
	if err := ctx.Err(); err != nil {
		return domain.GeneratedPost{}, err
	}
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	if _, _, err := r.client.From(tableGeneratedPosts).Insert(post, false, "", "minimal", "").Execute(); err != nil {
		return domain.GeneratedPost{}, fmt.Errorf("failed to record generated post: %w", err)
	}
	return post, nil
}

func (r *generatedPostRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]domain.GeneratedPost, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	posts := []domain.GeneratedPost{}
	if _, err := r.client.From(tableGeneratedPosts).
		Select("*", "", false).
		Eq("job_id", jobID.String()).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&posts); err != nil {
		return nil, fmt.Errorf("failed to list generated posts: %w", err)
	}
	return posts, nil
}

type blogPostRepository struct{ client Client }

func (r *blogPostRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var matches []struct {
		ID uuid.UUID `json:"id"`
	}
	if _, err := r.client.From(tableBlogPosts).
		Select("id", "", false).
		Eq("slug", slug).
		Limit(1, "").
		ExecuteTo(&matches); err != nil {
		return false, fmt.Errorf("failed to check slug %q: %w", slug, err)
	}
	return len(matches) > 0, nil
}

func (r *blogPostRepository) Create(ctx context.Context, post domain.BlogPost) (domain.BlogPost, error) {
	if err := ctx.Err(); err != nil {
		return domain.BlogPost{}, err
	}
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	var created []domain.BlogPost
	if _, err := r.client.From(tableBlogPosts).Insert(post, false, "", "representation", "").ExecuteTo(&created); err != nil {
		return domain.BlogPost{}, fmt.Errorf("failed to create blog post: %w", err)
	}
	if len(created) == 0 {
		return post, nil
	}
	return created[0], nil
}

func (r *blogPostRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.BlogPost, error) {
	posts, err := r.GetByIDs(ctx, []uuid.UUID{id})
	if err != nil {
		return domain.BlogPost{}, err
	}
	if len(posts) == 0 {
		return domain.BlogPost{}, fmt.Errorf("blog post %s: %w", id, repository.ErrNotFound)
	}
	return posts[0], nil
}

func (r *blogPostRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.BlogPost, error) {
	if len(ids) == 0 {
		return []domain.BlogPost{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	values := make([]string, len(ids))
	for i, id := range ids {
		values[i] = id.String()
	}
	posts := []domain.BlogPost{}
	if _, err := r.client.From(tableBlogPosts).
		Select("*", "", false).
		In("id", values).
		ExecuteTo(&posts); err != nil {
		return nil, fmt.Errorf("failed to load blog posts: %w", err)
	}
	return posts, nil
}

type sectionRepository struct{ client Client }

func (r *sectionRepository) CreateBatch(ctx context.Context, sections []domain.PostSection) error {
	if len(sections) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, err := r.client.From(tablePostSections).Insert(sections, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("failed to insert %d sections: %w", len(sections), err)
	}
	return nil
}

func (r *sectionRepository) ListByPost(ctx context.Context, postID uuid.UUID) ([]domain.PostSection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sections := []domain.PostSection{}
	if _, err := r.client.From(tablePostSections).
		Select("*", "", false).
		Eq("post_id", postID.String()).
		Order("position", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&sections); err != nil {
		return nil, fmt.Errorf("failed to list post sections: %w", err)
	}
	return sections, nil
}

type translationRepository struct{ client Client }

// Upsert keeps the id and created_at of an existing translation for the
// same post and language.
func (r *translationRepository) Upsert(ctx context.Context, translation domain.PostTranslation) (domain.PostTranslation, error) {
	if err := ctx.Err(); err != nil {
		return domain.PostTranslation{}, err
	}
	var existing []domain.PostTranslation
	if _, err := r.client.From(tableTranslations).
		Select("id,created_at", "", false).
		Eq("post_id", translation.PostID.String()).
		Eq("language", translation.Language).
		Limit(1, "").
		ExecuteTo(&existing); err != nil {
		return domain.PostTranslation{}, fmt.Errorf("failed to look up translation: %w", err)
	}
	if len(existing) > 0 {
		translation.ID = existing[0].ID
		translation.CreatedAt = existing[0].CreatedAt
	} else if translation.ID == uuid.Nil {
		translation.ID = uuid.New()
	}

	var stored []domain.PostTranslation
	if _, err := r.client.From(tableTranslations).
		Upsert(translation, "post_id,language", "representation", "").
		ExecuteTo(&stored); err != nil {
		return domain.PostTranslation{}, fmt.Errorf("failed to store translation: %w", err)
	}
	if len(stored) == 0 {
		return translation, nil
	}
	return stored[0], nil
}

func (r *translationRepository) ListByPost(ctx context.Context, postID uuid.UUID) ([]domain.PostTranslation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	translations := []domain.PostTranslation{}
	if _, err := r.client.From(tableTranslations).
		Select("*", "", false).
		Eq("post_id", postID.String()).
		Order("language", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&translations); err != nil {
		return nil, fmt.Errorf("failed to list translations: %w", err)
	}
	return translations, nil
}
