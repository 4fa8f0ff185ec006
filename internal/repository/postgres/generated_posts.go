package postgres

import (
	"context"
	"fmt"

	"github.com/rpattn/travelcms/internal/db"
	"github.com/rpattn/travelcms/internal/domain"
	"github.com/rpattn/travelcms/internal/repository"

	"github.com/google/uuid"
)

type generatedPostRepository struct {
	conn *db.Connection
}

func NewGeneratedPostRepository(conn *db.Connection) repository.GeneratedPostRepository {
	return &generatedPostRepository{conn: conn}
}

func (r *generatedPostRepository) Create(ctx context.Context, post domain.GeneratedPost) (domain.GeneratedPost, error) {
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	_, err := r.conn.Pool.Exec(ctx,
		`INSERT INTO generated_posts (id, job_id, csv_row_id, template_id, post_id, title, slug, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		post.ID, post.JobID, post.CSVRowID, post.TemplateID, post.PostID,
		post.Title, post.Slug, post.Status, post.CreatedAt,
	)
	if err != nil {
		return domain.GeneratedPost{}, fmt.Errorf("failed to record generated post: %w", err)
	}
	return post, nil
}

func (r *generatedPostRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]domain.GeneratedPost, error) {
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT id, job_id, csv_row_id, template_id, post_id, title, slug, status, created_at
		 FROM generated_posts
		 WHERE job_id = $1
		 ORDER BY created_at, id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list generated posts: %w", err)
	}
	defer rows.Close()

	out := []domain.GeneratedPost{}
	for rows.Next() {
		var post domain.GeneratedPost
		if scanErr := rows.Scan(
			&post.ID, &post.JobID, &post.CSVRowID, &post.TemplateID, &post.PostID,
			&post.Title, &post.Slug, &post.Status, &post.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan generated post: %w", scanErr)
		}
		out = append(out, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate generated posts: %w", err)
	}
	return out, nil
}
