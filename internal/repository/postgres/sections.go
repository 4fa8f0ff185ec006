package postgres

import (
	"context"
	"fmt"

	"github.com/rpattn/travelcms/internal/db"
	"github.com/rpattn/travelcms/internal/domain"
	"github.com/rpattn/travelcms/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type sectionRepository struct {
	conn *db.Connection
}

func NewSectionRepository(conn *db.Connection) repository.SectionRepository {
	return &sectionRepository{conn: conn}
}

// CreateBatch inserts the sections with one batch round trip. It is not
// transactional with the post insert.
func (r *sectionRepository) CreateBatch(ctx context.Context, sections []domain.PostSection) error {
	if len(sections) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, section := range sections {
		if section.ID == uuid.Nil {
			section.ID = uuid.New()
		}
		data, err := jsonValue(section.Data)
		if err != nil {
			return fmt.Errorf("failed to encode %s section: %w", section.SectionType, err)
		}
		if data == nil {
			data = []byte("{}")
		}
		batch.Queue(
			`INSERT INTO post_sections (id, post_id, section_type, position, data, is_active, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			section.ID, section.PostID, string(section.SectionType), section.Position, data,
			section.IsActive, section.CreatedAt,
		)
	}
	if err := r.conn.Pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert post sections: %w", err)
	}
	return nil
}

func (r *sectionRepository) ListByPost(ctx context.Context, postID uuid.UUID) ([]domain.PostSection, error) {
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT id, post_id, section_type, position, data, is_active, created_at
		 FROM post_sections
		 WHERE post_id = $1
		 ORDER BY position`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list post sections: %w", err)
	}
	defer rows.Close()

	out := []domain.PostSection{}
	for rows.Next() {
		var (
			section     domain.PostSection
			sectionType string
			data        []byte
		)
		if scanErr := rows.Scan(
			&section.ID, &section.PostID, &sectionType, &section.Position, &data,
			&section.IsActive, &section.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan post section: %w", scanErr)
		}
		section.SectionType = domain.SectionType(sectionType)
		if err := decodeJSON(data, &section.Data); err != nil {
			return nil, fmt.Errorf("failed to decode %s section: %w", sectionType, err)
		}
		out = append(out, section)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate post sections: %w", err)
	}
	return out, nil
}
