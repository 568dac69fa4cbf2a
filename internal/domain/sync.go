package domain

import "time"

// SyncResult reports one reconciliation step.
type SyncResult struct {
	Step      string `json:"step"`
	Processed int64  `json:"processed"`
	Created   int64  `json:"created"`
	Skipped   int64  `json:"skipped"`
	Errors    int64  `json:"errors"`
}

// SyncSummary aggregates a full reconciliation pass. Per-step failures are
// recorded rather than raised; a summary is always produced.
type SyncSummary struct {
	TotalProcessed int64        `json:"total_processed"`
	TotalErrors    int64        `json:"total_errors"`
	Results        []SyncResult `json:"results"`
	DurationMs     int64        `json:"duration_ms"`
}

// SchedulerStatus reports the configured background jobs.
type SchedulerStatus struct {
	IndexerSyncEnabled      bool  `json:"indexer_sync_enabled"`
	IndexerSyncIntervalSecs int64 `json:"indexer_sync_interval_secs"`
	YieldCalcEnabled        bool  `json:"yield_calc_enabled"`
	YieldCalcIntervalSecs   int64 `json:"yield_calc_interval_secs"`
}

// ImmediateSyncOutcome records each step of the post-write refresh. Only
// BetsSynced is load-bearing for staleness; the remaining steps are
// best-effort and their errors are captured here so callers and tests can
// observe partial failure without the write path ever failing.
type ImmediateSyncOutcome struct {
	MarketRef   string
	BetsSynced  int64
	SyncErr     error
	StatsErr    error
	YieldErr    error
	WebhookErr  error
	CompletedAt time.Time
}

// Degraded reports whether any best-effort step failed. The periodic
// reconciliation pass is the consistency backstop either way.
func (o ImmediateSyncOutcome) Degraded() bool {
	return o.SyncErr != nil || o.StatsErr != nil || o.YieldErr != nil || o.WebhookErr != nil
}

// RealtimeStatus summarizes serving-store freshness for the status endpoint.
type RealtimeStatus struct {
	LastBetSync    *time.Time `json:"last_bet_sync"`
	LastMarketSync *time.Time `json:"last_market_sync"`
	PendingBets    int64      `json:"pending_bets"`
}
