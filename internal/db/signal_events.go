package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"leadrelay/internal/models"
)

// InsertSignalEvent stores a classified signal and fills in its ID and timestamp.
func (d *DB) InsertSignalEvent(ctx context.Context, s *models.StoredSignal) error {
	event, err := json.Marshal(s.Event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	return d.Pool.QueryRow(ctx, `
		INSERT INTO signal_events (event, label, rule, ip_address)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING id, created_at
	`, event, s.Label, s.Rule, s.IPAddress).Scan(&s.ID, &s.CreatedAt)
}

// ListSignalEvents returns the newest classified signals, optionally filtered by label.
func (d *DB) ListSignalEvents(ctx context.Context, label string, limit int) ([]models.StoredSignal, error) {
	rows, err := d.Pool.Query(ctx, `
		SELECT id, event, label, rule, COALESCE(ip_address, ''), created_at
		FROM signal_events
		WHERE ($1 = '' OR label = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, label, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []models.StoredSignal
	for rows.Next() {
		var s models.StoredSignal
		var event []byte
		if err := rows.Scan(&s.ID, &event, &s.Label, &s.Rule, &s.IPAddress, &s.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(event, &s.Event); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		signals = append(signals, s)
	}
	return signals, rows.Err()
}

// DeleteSignalEventsBefore removes signals created before cutoff.
func (d *DB) DeleteSignalEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := d.Pool.Exec(ctx, `DELETE FROM signal_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
