package jobs

import (
	"context"
	"log"
	"time"
)

// RetentionStore is the storage the retention sweeper prunes.
type RetentionStore interface {
	ScrubQuoteMetadata(ctx context.Context, table string, cutoff time.Time) (int64, error)
	DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteSignalEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionSweeper strips client identifiers from old submissions and
// deletes old audit and signal events.
type RetentionSweeper struct {
	db          RetentionStore
	tables      []string
	interval    time.Duration
	metadataAge time.Duration
	eventAge    time.Duration
	now         func() time.Time
}

// NewRetentionSweeper creates a new retention sweeper.
func NewRetentionSweeper(database RetentionStore, tables []string, interval time.Duration, metadataDays, eventDays int) *RetentionSweeper {
	return &RetentionSweeper{
		db:          database,
		tables:      tables,
		interval:    interval,
		metadataAge: time.Duration(metadataDays) * 24 * time.Hour,
		eventAge:    time.Duration(eventDays) * 24 * time.Hour,
		now:         time.Now,
	}
}

// Start begins the background retention loop.
// A non-positive interval disables the sweeper.
func (r *RetentionSweeper) Start(ctx context.Context) {
	if r.interval <= 0 {
		log.Println("Retention sweeper disabled (RETENTION_INTERVAL is not positive)")
		return
	}

	log.Printf("Retention sweeper started (interval: %v, metadata: %v, events: %v)", r.interval, r.metadataAge, r.eventAge)

	// Run immediately on start
	r.Sweep(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Retention sweeper stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one retention pass. A zero age disables that part.
func (r *RetentionSweeper) Sweep(ctx context.Context) {
	now := r.now()

	if r.metadataAge > 0 {
		cutoff := now.Add(-r.metadataAge)
		for _, table := range r.tables {
			select {
			case <-ctx.Done():
				return
			default:
			}

			n, err := r.db.ScrubQuoteMetadata(ctx, table, cutoff)
			if err != nil {
				log.Printf("Retention sweeper: failed to scrub %s: %v", table, err)
				continue
			}
			if n > 0 {
				log.Printf("Retention sweeper: scrubbed client metadata from %d rows in %s", n, table)
			}
		}
	}

	if r.eventAge > 0 {
		cutoff := now.Add(-r.eventAge)

		if n, err := r.db.DeleteAuditEventsBefore(ctx, cutoff); err != nil {
			log.Printf("Retention sweeper: failed to prune audit events: %v", err)
		} else if n > 0 {
			log.Printf("Retention sweeper: deleted %d audit events", n)
		}

		if n, err := r.db.DeleteSignalEventsBefore(ctx, cutoff); err != nil {
			log.Printf("Retention sweeper: failed to prune signal events: %v", err)
		} else if n > 0 {
			log.Printf("Retention sweeper: deleted %d signal events", n)
		}
	}
}
