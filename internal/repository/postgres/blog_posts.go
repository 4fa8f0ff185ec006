package postgres

import (
	"context"
	"fmt"

	"github.com/rpattn/travelcms/internal/db"
	"github.com/rpattn/travelcms/internal/domain"
	"github.com/rpattn/travelcms/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const blogPostColumns = `id, title, slug, excerpt, content, status, template_id, featured_image,
	author_name, tags, reading_time, language, meta_title, meta_description, focus_keyword,
	seo_keywords, canonical_url, og_title, og_description, og_image, twitter_title,
	twitter_description, twitter_image, robots_index, robots_follow, robots_noarchive,
	robots_nosnippet, structured_data_enabled, custom_json_ld, published_at, created_at, updated_at`

type blogPostRepository struct {
	conn *db.Connection
}

func NewBlogPostRepository(conn *db.Connection) repository.BlogPostRepository {
	return &blogPostRepository{conn: conn}
}

func (r *blogPostRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	if err := r.conn.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM blog_posts WHERE slug = $1)`, slug).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check slug %q: %w", slug, err)
	}
	return exists, nil
}

func (r *blogPostRepository) Create(ctx context.Context, post domain.BlogPost) (domain.BlogPost, error) {
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	customJSONLD, err := post.CustomJSONLDBytes()
	if err != nil {
		return domain.BlogPost{}, fmt.Errorf("failed to encode custom json-ld: %w", err)
	}

	row := r.conn.Pool.QueryRow(ctx,
		`INSERT INTO blog_posts (`+blogPostColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32)
		 RETURNING `+blogPostColumns,
		post.ID, post.Title, post.Slug, post.Excerpt, post.Content, post.Status, post.TemplateID,
		post.FeaturedImage, post.AuthorName, nonNilStrings(post.Tags), post.ReadingTime, post.Language,
		post.MetaTitle, post.MetaDescription, post.FocusKeyword, nonNilStrings(post.SEOKeywords),
		post.CanonicalURL, post.OGTitle, post.OGDescription, post.OGImage, post.TwitterTitle,
		post.TwitterDescription, post.TwitterImage, post.RobotsIndex, post.RobotsFollow,
		post.RobotsNoarchive, post.RobotsNosnippet, post.StructuredDataEnabled, customJSONLD,
		post.PublishedAt, post.CreatedAt, post.UpdatedAt,
	)
	created, err := scanBlogPost(row)
	if err != nil {
		return domain.BlogPost{}, fmt.Errorf("failed to create blog post: %w", err)
	}
	return created, nil
}

func (r *blogPostRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.BlogPost, error) {
	post, err := scanBlogPost(r.conn.Pool.QueryRow(ctx, `SELECT `+blogPostColumns+` FROM blog_posts WHERE id = $1`, id))
	if err != nil {
		return domain.BlogPost{}, notFound(err, "blog post "+id.String())
	}
	return post, nil
}

func (r *blogPostRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.BlogPost, error) {
	if len(ids) == 0 {
		return []domain.BlogPost{}, nil
	}
	rows, err := r.conn.Pool.Query(ctx, `SELECT `+blogPostColumns+` FROM blog_posts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load blog posts: %w", err)
	}
	defer rows.Close()

	out := make([]domain.BlogPost, 0, len(ids))
	for rows.Next() {
		post, scanErr := scanBlogPost(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan blog post: %w", scanErr)
		}
		out = append(out, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate blog posts: %w", err)
	}
	return out, nil
}

func scanBlogPost(row pgx.Row) (domain.BlogPost, error) {
	var (
		post         domain.BlogPost
		customJSONLD []byte
		publishedAt  pgtype.Timestamptz
	)
	if err := row.Scan(
		&post.ID, &post.Title, &post.Slug, &post.Excerpt, &post.Content, &post.Status, &post.TemplateID,
		&post.FeaturedImage, &post.AuthorName, &post.Tags, &post.ReadingTime, &post.Language,
		&post.MetaTitle, &post.MetaDescription, &post.FocusKeyword, &post.SEOKeywords,
		&post.CanonicalURL, &post.OGTitle, &post.OGDescription, &post.OGImage, &post.TwitterTitle,
		&post.TwitterDescription, &post.TwitterImage, &post.RobotsIndex, &post.RobotsFollow,
		&post.RobotsNoarchive, &post.RobotsNosnippet, &post.StructuredDataEnabled, &customJSONLD,
		&publishedAt, &post.CreatedAt, &post.UpdatedAt,
	); err != nil {
		return domain.BlogPost{}, err
	}
	if err := decodeJSON(customJSONLD, &post.CustomJSONLD); err != nil {
		return domain.BlogPost{}, fmt.Errorf("failed to decode custom json-ld: %w", err)
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		post.PublishedAt = &t
	}
	return post, nil
}
