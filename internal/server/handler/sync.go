package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/yieldbet/marketd/internal/domain"
)

// SyncScheduler is the scheduler surface the sync endpoints need.
type SyncScheduler interface {
	TriggerSyncNow(ctx context.Context) domain.SyncSummary
	Status() domain.SchedulerStatus
}

// SyncHandler serves the sync trigger and observability endpoints.
type SyncHandler struct {
	scheduler SyncScheduler
	ledger    domain.LedgerStore
	markets   domain.ExtendedMarketStore
	bets      domain.ExtendedBetStore
	events    domain.EventLogStore
	logger    *slog.Logger
}

// NewSyncHandler creates a SyncHandler.
func NewSyncHandler(
	scheduler SyncScheduler,
	ledger domain.LedgerStore,
	markets domain.ExtendedMarketStore,
	bets domain.ExtendedBetStore,
	events domain.EventLogStore,
	logger *slog.Logger,
) *SyncHandler {
	return &SyncHandler{
		scheduler: scheduler,
		ledger:    ledger,
		markets:   markets,
		bets:      bets,
		events:    events,
		logger:    logger,
	}
}

// TriggerSync runs one reconciliation pass immediately and returns its
// summary.
// POST /api/sync/trigger
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	summary := h.scheduler.TriggerSyncNow(r.Context())
	writeJSON(w, http.StatusOK, summary)
}

// SchedulerStatus reports the configured background jobs.
// GET /api/sync/status
func (h *SyncHandler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.scheduler.Status())
}

// EventStats aggregates the notification audit log per channel.
// GET /api/sync/event-stats
func (h *SyncHandler) EventStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.events.Stats(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: event stats failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load event stats")
		return
	}
	if stats == nil {
		stats = []domain.EventStats{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"event_stats": stats})
}

// RealtimeStatus reports serving-store freshness: the newest market and bet
// updates plus the count of ledger bets awaiting materialization.
// GET /api/sync/realtime-status
func (h *SyncHandler) RealtimeStatus(w http.ResponseWriter, r *http.Request) {
	var status domain.RealtimeStatus
	var err error

	status.LastMarketSync, err = h.markets.LastUpdatedAt(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: realtime status failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load realtime status")
		return
	}
	status.LastBetSync, err = h.bets.LastUpdatedAt(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load realtime status")
		return
	}
	status.PendingBets, err = h.ledger.PendingBetCount(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load realtime status")
		return
	}

	writeJSON(w, http.StatusOK, status)
}
