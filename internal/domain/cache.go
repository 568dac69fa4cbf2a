package domain

import (
	"context"
	"io"
	"time"
)

// MarketCache is a read-side cache for extended markets, invalidated by the
// sync handlers whenever a market mutates.
type MarketCache interface {
	Get(ctx context.Context, id string) (ExtendedMarket, error)
	Set(ctx context.Context, market ExtendedMarket) error
	Invalidate(ctx context.Context, id string) error
}

// SignalBus is an ephemeral pub/sub fan-out. Sync handlers publish market and
// sync updates on it; the websocket hub subscribes and forwards to clients.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a channel of raw payloads that closes when ctx is
	// cancelled.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// BlobWriter uploads objects to cold storage. Put is a single request;
// PutMultipart splits data into parts of partSize bytes for payloads too
// large for one request.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// AuditArchiver exports aged audit-log entries to cold storage and prunes
// them from the database.
type AuditArchiver interface {
	ArchiveEventLog(ctx context.Context, cutoff time.Time) (int64, error)
}
