// Package postgres implements the repositories on a pgx connection pool.
package postgres

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rpattn/travelcms/internal/db"
	"github.com/rpattn/travelcms/internal/repository"

	"github.com/jackc/pgx/v5"
)

// NewStore wires every repository to conn.
func NewStore(conn *db.Connection) repository.Store {
	return repository.Store{
		Jobs:           NewUploadJobRepository(conn),
		Rows:           NewCSVRowRepository(conn),
		GeneratedPosts: NewGeneratedPostRepository(conn),
		Posts:          NewBlogPostRepository(conn),
		Sections:       NewSectionRepository(conn),
		Translations:   NewTranslationRepository(conn),
	}
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, repository.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

// jsonValue marshals v for a JSONB parameter, NULL when v is nil.
func jsonValue(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// decodeJSON unmarshals a nullable JSONB column into dst.
func decodeJSON(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
