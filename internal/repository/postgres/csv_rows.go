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

type csvRowRepository struct {
	conn *db.Connection
}

func NewCSVRowRepository(conn *db.Connection) repository.CSVRowRepository {
	return &csvRowRepository{conn: conn}
}

// CreateBatch inserts every row in one transaction.
func (r *csvRowRepository) CreateBatch(ctx context.Context, rows []domain.CSVRow) error {
	if len(rows) == 0 {
		return nil
	}
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, row := range rows {
			if row.ID == uuid.Nil {
				row.ID = uuid.New()
			}
			args, err := csvRowArgs(row)
			if err != nil {
				return err
			}
			batch.Queue(
				`INSERT INTO csv_rows (id, job_id, row_number, raw_data, processed_data, validation_errors,
					processing_status, error_message, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				args...,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert csv rows: %w", err)
		}
		return nil
	})
}

func (r *csvRowRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]domain.CSVRow, error) {
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT id, job_id, row_number, raw_data, processed_data, validation_errors,
			processing_status, error_message, created_at, updated_at
		 FROM csv_rows
		 WHERE job_id = $1
		 ORDER BY row_number`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list csv rows: %w", err)
	}
	defer rows.Close()

	out := []domain.CSVRow{}
	for rows.Next() {
		var (
			row          domain.CSVRow
			rawData      []byte
			processed    []byte
			validation   []byte
			status       string
			errorMessage pgtype.Text
		)
		if scanErr := rows.Scan(
			&row.ID,
			&row.JobID,
			&row.RowNumber,
			&rawData,
			&processed,
			&validation,
			&status,
			&errorMessage,
			&row.CreatedAt,
			&row.UpdatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan csv row: %w", scanErr)
		}
		if err := decodeJSON(rawData, &row.RawData); err != nil {
			return nil, fmt.Errorf("failed to decode raw data of row %d: %w", row.RowNumber, err)
		}
		if err := decodeJSON(processed, &row.ProcessedData); err != nil {
			return nil, fmt.Errorf("failed to decode processed data of row %d: %w", row.RowNumber, err)
		}
		if err := decodeJSON(validation, &row.ValidationErrors); err != nil {
			return nil, fmt.Errorf("failed to decode validation errors of row %d: %w", row.RowNumber, err)
		}
		if row.ValidationErrors == nil {
			row.ValidationErrors = []domain.ValidationError{}
		}
		row.ProcessingStatus = domain.CSVRowStatus(status)
		if errorMessage.Valid {
			msg := errorMessage.String
			row.ErrorMessage = &msg
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate csv rows: %w", err)
	}
	return out, nil
}

func (r *csvRowRepository) Update(ctx context.Context, row domain.CSVRow) error {
	args, err := csvRowArgs(row)
	if err != nil {
		return err
	}
	tag, err := r.conn.Pool.Exec(ctx,
		`UPDATE csv_rows SET
			job_id = $2, row_number = $3, raw_data = $4, processed_data = $5, validation_errors = $6,
			processing_status = $7, error_message = $8, created_at = $9, updated_at = $10
		 WHERE id = $1`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to update csv row %d: %w", row.RowNumber, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("csv row %s: %w", row.ID, repository.ErrNotFound)
	}
	return nil
}

func csvRowArgs(row domain.CSVRow) ([]any, error) {
	rawData, err := row.RawDataJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode raw data of row %d: %w", row.RowNumber, err)
	}
	var processed []byte
	if row.ProcessedData != nil {
		if processed, err = jsonValue(row.ProcessedData); err != nil {
			return nil, fmt.Errorf("failed to encode processed data of row %d: %w", row.RowNumber, err)
		}
	}
	validation, err := row.ValidationErrorsJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode validation errors of row %d: %w", row.RowNumber, err)
	}
	errorMessage := pgtype.Text{}
	if row.ErrorMessage != nil {
		errorMessage = pgtype.Text{String: *row.ErrorMessage, Valid: true}
	}
	return []any{
		row.ID,
		row.JobID,
		row.RowNumber,
		rawData,
		processed,
		validation,
		string(row.ProcessingStatus),
		errorMessage,
		row.CreatedAt,
		row.UpdatedAt,
	}, nil
}
