// Package sync implements the ledger-to-serving synchronization core: the
// periodic reconciler that materializes missed ledger rows, the push-path
// listener fed by Postgres NOTIFY, and the immediate post-write refresh.
package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/yieldbet/marketd/internal/domain"
)

// Reconciler pulls unsynced ledger rows into the serving tables and
// recomputes derived market statistics. Every operation is idempotent, so
// overlapping runs and races with the push path are harmless.
type Reconciler struct {
	ledger  domain.LedgerStore
	markets domain.ExtendedMarketStore
	bets    domain.ExtendedBetStore
	users   domain.UserStore
	logger  *slog.Logger

	marketBatch int
	betBatch    int
}

// NewReconciler creates a Reconciler. Batch sizes cap how many ledger rows a
// single pass materializes; the next pass picks up the remainder.
func NewReconciler(
	ledger domain.LedgerStore,
	markets domain.ExtendedMarketStore,
	bets domain.ExtendedBetStore,
	users domain.UserStore,
	marketBatch, betBatch int,
	logger *slog.Logger,
) *Reconciler {
	if marketBatch <= 0 {
		marketBatch = 100
	}
	if betBatch <= 0 {
		betBatch = 500
	}
	return &Reconciler{
		ledger:      ledger,
		markets:     markets,
		bets:        bets,
		users:       users,
		logger:      logger,
		marketBatch: marketBatch,
		betBatch:    betBatch,
	}
}

// SyncMarkets materializes serving rows for ledger markets that have none.
// Per-row failures are counted and logged, never raised: one bad row must not
// stall the rest of the batch.
func (r *Reconciler) SyncMarkets(ctx context.Context) (domain.SyncResult, error) {
	res := domain.SyncResult{Step: "markets"}

	records, err := r.ledger.UnsyncedMarkets(ctx, r.marketBatch)
	if err != nil {
		return res, err
	}

	for _, rec := range records {
		res.Processed++
		created, err := r.markets.CreateFromLedger(ctx, rec)
		if err != nil {
			res.Errors++
			r.logger.ErrorContext(ctx, "sync: create market failed",
				slog.Int64("market_id", rec.MarketID),
				slog.Any("error", err),
			)
			continue
		}
		if created {
			res.Created++
		} else {
			res.Skipped++
		}
	}

	if res.Processed > 0 {
		r.logger.InfoContext(ctx, "sync: markets reconciled",
			slog.Int64("processed", res.Processed),
			slog.Int64("created", res.Created),
			slog.Int64("skipped", res.Skipped),
			slog.Int64("errors", res.Errors),
		)
	}
	return res, nil
}

// SyncBets materializes serving rows for ledger bets that have none. Users
// are lazily created from the bet's address. A bet whose market has not been
// materialized yet is skipped with a warning; the next pass retries it once
// SyncMarkets has healed the gap.
func (r *Reconciler) SyncBets(ctx context.Context) (domain.SyncResult, error) {
	res := domain.SyncResult{Step: "bets"}

	records, err := r.ledger.UnsyncedBets(ctx, r.betBatch)
	if err != nil {
		return res, err
	}

	for _, rec := range records {
		res.Processed++

		market, err := r.markets.GetByBlockchainID(ctx, rec.MarketID)
		if errors.Is(err, domain.ErrNotFound) {
			res.Skipped++
			r.logger.WarnContext(ctx, "sync: bet references unsynced market, skipping",
				slog.Int64("bet_id", rec.BetID),
				slog.Int64("market_id", rec.MarketID),
			)
			continue
		}
		if err != nil {
			res.Errors++
			r.logger.ErrorContext(ctx, "sync: market lookup failed",
				slog.Int64("bet_id", rec.BetID),
				slog.Int64("market_id", rec.MarketID),
				slog.Any("error", err),
			)
			continue
		}

		user, err := r.users.GetOrCreate(ctx, rec.UserAddr)
		if err != nil {
			res.Errors++
			r.logger.ErrorContext(ctx, "sync: get or create user failed",
				slog.Int64("bet_id", rec.BetID),
				slog.String("user_addr", rec.UserAddr),
				slog.Any("error", err),
			)
			continue
		}

		created, err := r.bets.CreateFromLedger(ctx, rec, user.ID, market.ID)
		if err != nil {
			res.Errors++
			r.logger.ErrorContext(ctx, "sync: create bet failed",
				slog.Int64("bet_id", rec.BetID),
				slog.Any("error", err),
			)
			continue
		}
		if created {
			res.Created++
		} else {
			res.Skipped++
		}
	}

	if res.Processed > 0 {
		r.logger.InfoContext(ctx, "sync: bets reconciled",
			slog.Int64("processed", res.Processed),
			slog.Int64("created", res.Created),
			slog.Int64("skipped", res.Skipped),
			slog.Int64("errors", res.Errors),
		)
	}
	return res, nil
}

// UpdateMarketStats recomputes pools, counts, and probability for every
// serving market in one set-based statement.
func (r *Reconciler) UpdateMarketStats(ctx context.Context) (domain.SyncResult, error) {
	res := domain.SyncResult{Step: "market_stats"}

	upd, err := r.markets.UpdateStats(ctx)
	if err != nil {
		return res, err
	}
	res.Processed = upd.MarketsUpdated
	return res, nil
}

// UpdateMarketStatsFor recomputes the aggregates for a single market.
func (r *Reconciler) UpdateMarketStatsFor(ctx context.Context, blockchainMarketID int64) (domain.SyncResult, error) {
	res := domain.SyncResult{Step: "market_stats"}

	upd, err := r.markets.UpdateStatsFor(ctx, blockchainMarketID)
	if err != nil {
		return res, err
	}
	res.Processed = upd.MarketsUpdated
	return res, nil
}

// RunFullSync runs markets, bets, and stats in order and aggregates the
// outcome. A failed step contributes an error count to the summary instead of
// aborting it; the summary is always produced.
func (r *Reconciler) RunFullSync(ctx context.Context) domain.SyncSummary {
	started := time.Now()
	var summary domain.SyncSummary

	steps := []func(context.Context) (domain.SyncResult, error){
		r.SyncMarkets,
		r.SyncBets,
		r.UpdateMarketStats,
	}

	for _, step := range steps {
		res, err := step(ctx)
		if err != nil {
			res.Errors++
			r.logger.ErrorContext(ctx, "sync: step failed",
				slog.String("step", res.Step),
				slog.Any("error", err),
			)
		}
		summary.Results = append(summary.Results, res)
		summary.TotalProcessed += res.Processed
		summary.TotalErrors += res.Errors
	}

	summary.DurationMs = time.Since(started).Milliseconds()
	r.logger.InfoContext(ctx, "sync: full pass complete",
		slog.Int64("total_processed", summary.TotalProcessed),
		slog.Int64("total_errors", summary.TotalErrors),
		slog.Int64("duration_ms", summary.DurationMs),
	)
	return summary
}
