package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yieldbet/marketd/internal/domain"
)

// EventLogStore implements domain.EventLogStore using PostgreSQL.
type EventLogStore struct {
	pool *pgxpool.Pool
}

func NewEventLogStore(pool *pgxpool.Pool) *EventLogStore {
	return &EventLogStore{pool: pool}
}

// Append writes one audit row for a processed notification.
func (s *EventLogStore) Append(ctx context.Context, entry domain.EventLogEntry) error {
	const query = `
		INSERT INTO event_processing_log (
			event_type, event_data, transaction_version,
			processing_status, error_message, processing_duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, query,
		entry.EventType, entry.EventData, entry.TransactionVersion,
		string(entry.Status), entry.ErrorMessage, entry.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("postgres: append event log %s: %w", entry.EventType, err)
	}
	return nil
}

// Stats aggregates processing outcomes per channel over the whole log.
func (s *EventLogStore) Stats(ctx context.Context) ([]domain.EventStats, error) {
	const query = `
		SELECT event_type,
		       COUNT(*) AS total_processed,
		       COUNT(*) FILTER (WHERE processing_status = 'success') AS successful,
		       COUNT(*) FILTER (WHERE processing_status = 'error') AS errors,
		       COALESCE(AVG(processing_duration_ms), 0) AS avg_duration_ms,
		       MAX(created_at) AS last_processed_at
		FROM event_processing_log
		GROUP BY event_type
		ORDER BY event_type`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: event log stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.EventStats
	for rows.Next() {
		var st domain.EventStats
		if err := rows.Scan(&st.EventType, &st.TotalProcessed, &st.Successful,
			&st.Errors, &st.AvgDurationMs, &st.LastProcessedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan event stats: %w", err)
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: event stats rows: %w", err)
	}
	return stats, nil
}

// ExportBefore streams entries older than cutoff to fn in insertion order.
// An error from fn aborts the export.
func (s *EventLogStore) ExportBefore(ctx context.Context, cutoff time.Time, fn func(domain.EventLogEntry) error) (int64, error) {
	const query = `
		SELECT id, event_type, event_data, transaction_version,
		       processing_status, error_message, processing_duration_ms, created_at
		FROM event_processing_log
		WHERE created_at < $1
		ORDER BY id`

	rows, err := s.pool.Query(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: export event log: %w", err)
	}
	defer rows.Close()

	var visited int64
	for rows.Next() {
		var e domain.EventLogEntry
		var status string
		if err := rows.Scan(&e.ID, &e.EventType, &e.EventData, &e.TransactionVersion,
			&status, &e.ErrorMessage, &e.DurationMs, &e.CreatedAt); err != nil {
			return visited, fmt.Errorf("postgres: scan event log entry: %w", err)
		}
		e.Status = domain.EventLogStatus(status)
		if err := fn(e); err != nil {
			return visited, err
		}
		visited++
	}
	if err := rows.Err(); err != nil {
		return visited, fmt.Errorf("postgres: export event log rows: %w", err)
	}
	return visited, nil
}

// DeleteBefore removes entries older than cutoff and returns how many.
func (s *EventLogStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM event_processing_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete event log before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

var _ domain.EventLogStore = (*EventLogStore)(nil)
