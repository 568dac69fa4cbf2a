package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/yieldbet/marketd/internal/domain"
)

const (
	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// Listener holds a dedicated Postgres connection subscribed to the indexer
// trigger channels and dispatches every notification to the event handler.
// The connection is separate from the pool: LISTEN binds to a session, and a
// pooled connection could be recycled out from under it.
type Listener struct {
	connString string
	handler    *EventHandler
	audit      domain.EventLogStore
	logger     *slog.Logger
}

// NewListener creates a Listener that connects with connString.
func NewListener(connString string, handler *EventHandler, audit domain.EventLogStore, logger *slog.Logger) *Listener {
	return &Listener{
		connString: connString,
		handler:    handler,
		audit:      audit,
		logger:     logger,
	}
}

// Run listens until ctx is cancelled. Connection loss is retried with capped
// exponential backoff; each successful (re)connect re-issues every LISTEN, so
// only notifications emitted while disconnected are missed. Those rows are
// healed by the periodic reconciliation pass.
func (l *Listener) Run(ctx context.Context) error {
	delay := reconnectBaseDelay
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.logger.WarnContext(ctx, "listener: connection lost, reconnecting",
			slog.Duration("backoff", delay),
			slog.Any("error", err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, reconnectMaxDelay)
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.connString)
	if err != nil {
		return fmt.Errorf("listener: connect: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	for _, ch := range domain.Channels() {
		if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{ch}.Sanitize()); err != nil {
			return fmt.Errorf("listener: listen %s: %w", ch, err)
		}
	}
	l.logger.InfoContext(ctx, "listener: subscribed",
		slog.Int("channels", len(domain.Channels())),
	)

	for {
		notif, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("listener: wait: %w", err)
		}
		l.process(ctx, notif.Channel, []byte(notif.Payload))
	}
}

// process decodes and dispatches one notification and appends the audit
// entry. Failures are logged and audited; they never abort the listen loop.
func (l *Listener) process(ctx context.Context, channel string, payload []byte) {
	started := time.Now()

	ev, err := domain.DecodeNotification(channel, payload)
	if err == nil {
		err = l.handler.Handle(ctx, ev)
	}

	entry := domain.EventLogEntry{
		EventType:  channel,
		EventData:  payload,
		Status:     domain.EventLogSuccess,
		DurationMs: time.Since(started).Milliseconds(),
	}
	if ev != nil {
		v := ev.TxVersion()
		entry.TransactionVersion = &v
	} else {
		entry.TransactionVersion = domain.ExtractTxVersion(payload)
	}
	if err != nil {
		msg := err.Error()
		entry.Status = domain.EventLogError
		entry.ErrorMessage = &msg

		level := slog.LevelError
		if errors.Is(err, domain.ErrUnknownChannel) || errors.Is(err, domain.ErrBadPayload) {
			level = slog.LevelWarn
		}
		l.logger.Log(ctx, level, "listener: event processing failed",
			slog.String("channel", channel),
			slog.Any("error", err),
		)
	}

	if aerr := l.audit.Append(ctx, entry); aerr != nil {
		l.logger.ErrorContext(ctx, "listener: audit append failed",
			slog.String("channel", channel),
			slog.Any("error", aerr),
		)
	}
}
