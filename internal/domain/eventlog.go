package domain

import "time"

// EventLogStatus marks whether a notification was handled successfully.
type EventLogStatus string

const (
	EventLogSuccess EventLogStatus = "success"
	EventLogError   EventLogStatus = "error"
)

// EventLogEntry is one row of the append-only event-processing audit trail.
// The core writes one entry per received notification regardless of outcome
// and only ever reads the table back for aggregate statistics.
type EventLogEntry struct {
	ID                 int64
	EventType          string
	EventData          []byte
	TransactionVersion *int64
	Status             EventLogStatus
	ErrorMessage       *string
	DurationMs         int64
	CreatedAt          time.Time
}

// EventStats summarizes processing outcomes for one notification channel.
type EventStats struct {
	EventType       string    `json:"event_type"`
	TotalProcessed  int64     `json:"total_processed"`
	Successful      int64     `json:"successful"`
	Errors          int64     `json:"errors"`
	AvgDurationMs   float64   `json:"avg_duration_ms"`
	LastProcessedAt time.Time `json:"last_processed_at"`
}
