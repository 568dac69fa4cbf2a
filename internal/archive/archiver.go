// Package archive exports aged audit-log entries to cold storage and prunes
// them from the database on a cron schedule.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/yieldbet/marketd/internal/domain"
)

// Exports above the threshold go through the multipart upload path.
const (
	multipartThreshold int64 = 64 * 1024 * 1024
	multipartPartSize  int64 = 8 * 1024 * 1024
)

// Archiver moves event_processing_log rows older than the retention window
// to blob storage as JSON lines, then deletes them.
type Archiver struct {
	events        domain.EventLogStore
	blob          domain.BlobWriter
	retentionDays int
	logger        *slog.Logger
}

// NewArchiver creates an Archiver with the given retention window in days.
func NewArchiver(events domain.EventLogStore, blob domain.BlobWriter, retentionDays int, logger *slog.Logger) *Archiver {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &Archiver{
		events:        events,
		blob:          blob,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

type archivedEntry struct {
	ID                 int64           `json:"id"`
	EventType          string          `json:"event_type"`
	EventData          json.RawMessage `json:"event_data"`
	TransactionVersion *int64          `json:"transaction_version,omitempty"`
	Status             string          `json:"status"`
	ErrorMessage       *string         `json:"error_message,omitempty"`
	DurationMs         int64           `json:"duration_ms"`
	CreatedAt          time.Time       `json:"created_at"`
}

// ArchiveEventLog exports entries older than cutoff and deletes them. The
// upload happens before the delete so a failure loses nothing. Returns how
// many rows were archived.
func (a *Archiver) ArchiveEventLog(ctx context.Context, cutoff time.Time) (int64, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	exported, err := a.events.ExportBefore(ctx, cutoff, func(e domain.EventLogEntry) error {
		return enc.Encode(archivedEntry{
			ID:                 e.ID,
			EventType:          e.EventType,
			EventData:          json.RawMessage(e.EventData),
			TransactionVersion: e.TransactionVersion,
			Status:             string(e.Status),
			ErrorMessage:       e.ErrorMessage,
			DurationMs:         e.DurationMs,
			CreatedAt:          e.CreatedAt,
		})
	})
	if err != nil {
		return 0, fmt.Errorf("archive: export event log: %w", err)
	}
	if exported == 0 {
		return 0, nil
	}

	key := fmt.Sprintf("event-log/%s/events-%s.jsonl",
		cutoff.UTC().Format("2006/01"), time.Now().UTC().Format("20060102T150405Z"))
	if int64(buf.Len()) > multipartThreshold {
		err = a.blob.PutMultipart(ctx, key, &buf, multipartPartSize)
	} else {
		err = a.blob.Put(ctx, key, &buf, "application/x-ndjson")
	}
	if err != nil {
		return 0, fmt.Errorf("archive: upload %s: %w", key, err)
	}

	deleted, err := a.events.DeleteBefore(ctx, cutoff)
	if err != nil {
		return exported, fmt.Errorf("archive: prune event log: %w", err)
	}

	a.logger.InfoContext(ctx, "archive: event log archived",
		slog.String("key", key),
		slog.Int64("exported", exported),
		slog.Int64("deleted", deleted),
	)
	return exported, nil
}

// Run executes a single archive pass using the configured retention window.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
	if _, err := a.ArchiveEventLog(ctx, cutoff); err != nil {
		return err
	}
	return nil
}

// RunCron runs archive passes on a 5-field cron schedule ("minute hour
// day-of-month month day-of-week") until ctx is cancelled.
func (a *Archiver) RunCron(ctx context.Context, cronExpr string) error {
	a.logger.Info("archive: cron started", slog.String("cron", cronExpr))

	for {
		next, err := NextCronTime(cronExpr, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("archive: parse cron %q: %w", cronExpr, err)
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			if err := a.Run(ctx); err != nil {
				a.logger.ErrorContext(ctx, "archive: run failed", slog.Any("error", err))
			}
		}
	}
}

var _ domain.AuditArchiver = (*Archiver)(nil)
