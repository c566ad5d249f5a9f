package db

import (
	"context"
	"fmt"
	"time"

	"leadrelay/internal/models"
)

// InsertAuditEvent stores an audit event and fills in its ID and timestamp.
func (d *DB) InsertAuditEvent(ctx context.Context, e *models.AuditEvent) error {
	detail, err := encodeJSONB(e.Detail)
	if err != nil {
		return fmt.Errorf("encode detail: %w", err)
	}

	return d.Pool.QueryRow(ctx, `
		INSERT INTO audit_events (event_type, quote_type, table_name, record_id, ip_address, request_id, actor, detail)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8)
		RETURNING id, created_at
	`,
		e.EventType,
		e.QuoteType,
		e.TableName,
		e.RecordID,
		e.IPAddress,
		e.RequestID,
		e.Actor,
		detail,
	).Scan(&e.ID, &e.CreatedAt)
}

// ListAuditEvents returns the newest audit events, optionally filtered by type.
func (d *DB) ListAuditEvents(ctx context.Context, eventType string, limit int) ([]models.AuditEvent, error) {
	rows, err := d.Pool.Query(ctx, `
		SELECT id, event_type, COALESCE(quote_type, ''), COALESCE(table_name, ''), record_id,
		       COALESCE(ip_address, ''), COALESCE(request_id, ''), COALESCE(actor, ''), detail, created_at
		FROM audit_events
		WHERE ($1 = '' OR event_type = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, eventType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.AuditEvent
	for rows.Next() {
		var e models.AuditEvent
		var detail []byte
		if err := rows.Scan(
			&e.ID,
			&e.EventType,
			&e.QuoteType,
			&e.TableName,
			&e.RecordID,
			&e.IPAddress,
			&e.RequestID,
			&e.Actor,
			&detail,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := decodeJSONB(detail, &e.Detail); err != nil {
			return nil, fmt.Errorf("decode detail: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeleteAuditEventsBefore removes audit events created before cutoff.
func (d *DB) DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := d.Pool.Exec(ctx, `DELETE FROM audit_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
