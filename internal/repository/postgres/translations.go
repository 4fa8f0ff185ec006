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

const translationColumns = `id, post_id, language, source_language, fields, sections, status, warnings, created_at, updated_at`

type translationRepository struct {
	conn *db.Connection
}

func NewTranslationRepository(conn *db.Connection) repository.TranslationRepository {
	return &translationRepository{conn: conn}
}

// Upsert replaces the translation for (post_id, language), keeping the
// original id and created_at.
func (r *translationRepository) Upsert(ctx context.Context, translation domain.PostTranslation) (domain.PostTranslation, error) {
	if translation.ID == uuid.Nil {
		translation.ID = uuid.New()
	}
	fields, err := jsonValue(translation.Fields)
	if err != nil {
		return domain.PostTranslation{}, fmt.Errorf("failed to encode translated fields: %w", err)
	}
	sections, err := jsonValue(translation.Sections)
	if err != nil {
		return domain.PostTranslation{}, fmt.Errorf("failed to encode translated sections: %w", err)
	}

	row := r.conn.Pool.QueryRow(ctx,
		`INSERT INTO post_translations (`+translationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (post_id, language) DO UPDATE SET
			source_language = EXCLUDED.source_language,
			fields = EXCLUDED.fields,
			sections = EXCLUDED.sections,
			status = EXCLUDED.status,
			warnings = EXCLUDED.warnings,
			updated_at = EXCLUDED.updated_at
		 RETURNING `+translationColumns,
		translation.ID, translation.PostID, translation.Language, translation.SourceLanguage,
		fields, sections, string(translation.Status), nonNilStrings(translation.Warnings),
		translation.CreatedAt, translation.UpdatedAt,
	)
	stored, err := scanTranslation(row)
	if err != nil {
		return domain.PostTranslation{}, fmt.Errorf("failed to store translation: %w", err)
	}
	return stored, nil
}

func (r *translationRepository) ListByPost(ctx context.Context, postID uuid.UUID) ([]domain.PostTranslation, error) {
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT `+translationColumns+` FROM post_translations WHERE post_id = $1 ORDER BY language`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list translations: %w", err)
	}
	defer rows.Close()

	out := []domain.PostTranslation{}
	for rows.Next() {
		translation, scanErr := scanTranslation(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan translation: %w", scanErr)
		}
		out = append(out, translation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate translations: %w", err)
	}
	return out, nil
}

func scanTranslation(row pgx.Row) (domain.PostTranslation, error) {
	var (
		translation domain.PostTranslation
		fields      []byte
		sections    []byte
		status      string
	)
	if err := row.Scan(
		&translation.ID, &translation.PostID, &translation.Language, &translation.SourceLanguage,
		&fields, &sections, &status, &translation.Warnings,
		&translation.CreatedAt, &translation.UpdatedAt,
	); err != nil {
		return domain.PostTranslation{}, err
	}
	if err := decodeJSON(fields, &translation.Fields); err != nil {
		return domain.PostTranslation{}, err
	}
	if err := decodeJSON(sections, &translation.Sections); err != nil {
		return domain.PostTranslation{}, err
	}
	translation.Status = domain.TranslationStatus(status)
	translation.Warnings = nonNilStrings(translation.Warnings)
	return translation, nil
}
