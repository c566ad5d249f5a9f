package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"leadrelay/internal/models"
)

// quoteColumns is the standard column list for quote submission queries.
const quoteColumns = `id, quote_type, first_name, last_name, email, phone, zip_code,
	payload, metadata, status, created_at, updated_at`

// scanQuote scans a row into a QuoteSubmission.
func scanQuote(row pgx.Row, table string) (*models.QuoteSubmission, error) {
	var q models.QuoteSubmission
	var payload, metadata []byte
	err := row.Scan(
		&q.ID,
		&q.QuoteType,
		&q.FirstName,
		&q.LastName,
		&q.Email,
		&q.Phone,
		&q.ZipCode,
		&payload,
		&metadata,
		&q.Status,
		&q.CreatedAt,
		&q.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrQuoteNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := decodeJSONB(payload, &q.Payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if err := decodeJSONB(metadata, &q.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	q.Table = table
	return &q, nil
}

func decodeJSONB(raw []byte, dst *map[string]any) error {
	if len(raw) == 0 {
		*dst = map[string]any{}
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func encodeJSONB(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// InsertQuote inserts a submission into q.Table and fills in its ID,
// status and timestamps. The table name must come from the routing table.
func (d *DB) InsertQuote(ctx context.Context, q *models.QuoteSubmission) error {
	payload, err := encodeJSONB(q.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	metadata, err := encodeJSONB(q.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (quote_type, first_name, last_name, email, phone, zip_code, payload, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, status, created_at, updated_at
	`, pgx.Identifier{q.Table}.Sanitize())

	return d.Pool.QueryRow(ctx, query,
		q.QuoteType,
		q.FirstName,
		q.LastName,
		q.Email,
		q.Phone,
		q.ZipCode,
		payload,
		metadata,
	).Scan(&q.ID, &q.Status, &q.CreatedAt, &q.UpdatedAt)
}

// GetQuote returns one submission from table.
func (d *DB) GetQuote(ctx context.Context, table string, id uuid.UUID) (*models.QuoteSubmission, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, quoteColumns, pgx.Identifier{table}.Sanitize())
	return scanQuote(d.Pool.QueryRow(ctx, query, id), table)
}

// ListQuotes returns the newest submissions in table, optionally filtered by status.
func (d *DB) ListQuotes(ctx context.Context, table, status string, limit int) ([]models.QuoteSubmission, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, quoteColumns, pgx.Identifier{table}.Sanitize())

	rows, err := d.Pool.Query(ctx, query, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quotes []models.QuoteSubmission
	for rows.Next() {
		q, err := scanQuote(rows, table)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, *q)
	}
	return quotes, rows.Err()
}

// UpdateQuoteStatus moves a submission to a new pipeline status.
func (d *DB) UpdateQuoteStatus(ctx context.Context, table string, id uuid.UUID, status string) error {
	query := fmt.Sprintf(`UPDATE %s SET status = $2, updated_at = NOW() WHERE id = $1`,
		pgx.Identifier{table}.Sanitize())

	tag, err := d.Pool.Exec(ctx, query, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrQuoteNotFound
	}
	return nil
}

// CountQuotesByStatus returns submission counts per table and status.
func (d *DB) CountQuotesByStatus(ctx context.Context, tables []string) ([]models.TableCount, error) {
	var counts []models.TableCount
	for _, table := range tables {
		query := fmt.Sprintf(`SELECT status, COUNT(*) FROM %s GROUP BY status`, pgx.Identifier{table}.Sanitize())
		rows, err := d.Pool.Query(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		for rows.Next() {
			c := models.TableCount{Table: table}
			if err := rows.Scan(&c.Status, &c.Count); err != nil {
				rows.Close()
				return nil, err
			}
			counts = append(counts, c)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return counts, nil
}

// ScrubQuoteMetadata removes client network identifiers from submissions
// created before cutoff. Returns the number of rows changed.
func (d *DB) ScrubQuoteMetadata(ctx context.Context, table string, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET metadata = metadata - 'ip_address' - 'user_agent'
		WHERE created_at < $1
		  AND (metadata ? 'ip_address' OR metadata ? 'user_agent')
	`, pgx.Identifier{table}.Sanitize())

	tag, err := d.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
