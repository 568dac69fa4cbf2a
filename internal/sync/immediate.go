package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yieldbet/marketd/internal/domain"
)

// YieldRefresher recomputes and persists the yield estimate for one market.
type YieldRefresher interface {
	RecalculateMarket(ctx context.Context, m domain.ExtendedMarket) error
}

// SyncNotifier delivers an operator notification about a completed sync.
type SyncNotifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// ImmediateSyncer runs the post-write refresh after a bet is placed so the
// API serves fresh aggregates without waiting for the next scheduled pass.
// Every step is best effort: the outcome records per-step errors and the
// caller's write path never fails because of it.
type ImmediateSyncer struct {
	reconciler *Reconciler
	markets    domain.ExtendedMarketStore
	yield      YieldRefresher
	notifier   SyncNotifier
	logger     *slog.Logger
}

// NewImmediateSyncer creates an ImmediateSyncer. yield and notifier may be
// nil; the corresponding steps are skipped.
func NewImmediateSyncer(
	reconciler *Reconciler,
	markets domain.ExtendedMarketStore,
	yield YieldRefresher,
	notifier SyncNotifier,
	logger *slog.Logger,
) *ImmediateSyncer {
	return &ImmediateSyncer{
		reconciler: reconciler,
		markets:    markets,
		yield:      yield,
		notifier:   notifier,
		logger:     logger,
	}
}

// SyncAfterBet refreshes serving state for the market identified by ref
// (serving id or blockchain id). It always returns an outcome; inspect
// Degraded for partial failure.
func (s *ImmediateSyncer) SyncAfterBet(ctx context.Context, ref string) domain.ImmediateSyncOutcome {
	out := domain.ImmediateSyncOutcome{MarketRef: ref}

	res, err := s.reconciler.SyncBets(ctx)
	if err != nil {
		out.SyncErr = err
	} else {
		out.BetsSynced = res.Created
	}

	market, merr := s.markets.GetByRef(ctx, ref)
	if merr != nil {
		out.StatsErr = fmt.Errorf("sync: resolve market %s: %w", ref, merr)
	} else {
		if market.BlockchainMarketID != nil {
			if _, err := s.reconciler.UpdateMarketStatsFor(ctx, *market.BlockchainMarketID); err != nil {
				out.StatsErr = err
			}
		}
		if s.yield != nil {
			if err := s.yield.RecalculateMarket(ctx, market); err != nil {
				out.YieldErr = err
			}
		}
	}

	if s.notifier != nil {
		msg := fmt.Sprintf("market %s refreshed, %d bets synced", ref, out.BetsSynced)
		if err := s.notifier.Notify(ctx, "bet_sync", "Bet sync", msg); err != nil {
			out.WebhookErr = err
		}
	}

	out.CompletedAt = time.Now()
	if out.Degraded() {
		s.logger.WarnContext(ctx, "sync: immediate refresh degraded",
			slog.String("market_ref", ref),
			slog.Any("sync_err", out.SyncErr),
			slog.Any("stats_err", out.StatsErr),
			slog.Any("yield_err", out.YieldErr),
			slog.Any("webhook_err", out.WebhookErr),
		)
	} else {
		s.logger.InfoContext(ctx, "sync: immediate refresh complete",
			slog.String("market_ref", ref),
			slog.Int64("bets_synced", out.BetsSynced),
		)
	}
	return out
}
