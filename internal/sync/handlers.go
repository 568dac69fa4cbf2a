package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yieldbet/marketd/internal/domain"
)

// Signal-bus channels the handlers publish on. The websocket hub subscribes
// to both and forwards payloads to connected clients.
const (
	BusMarketUpdates = "market_updates"
	BusSyncEvents    = "sync_events"
)

// EventHandler reacts to decoded push notifications. Each handler is
// idempotent: notifications may be re-delivered after a listener reconnect,
// and the reconciler may have materialized the same rows already.
type EventHandler struct {
	reconciler *Reconciler
	markets    domain.ExtendedMarketStore
	bets       domain.ExtendedBetStore
	cache      domain.MarketCache
	bus        domain.SignalBus
	logger     *slog.Logger
}

// NewEventHandler creates an EventHandler. cache and bus may be nil when the
// deployment runs without Redis; the corresponding fan-out steps are skipped.
func NewEventHandler(
	reconciler *Reconciler,
	markets domain.ExtendedMarketStore,
	bets domain.ExtendedBetStore,
	cache domain.MarketCache,
	bus domain.SignalBus,
	logger *slog.Logger,
) *EventHandler {
	return &EventHandler{
		reconciler: reconciler,
		markets:    markets,
		bets:       bets,
		cache:      cache,
		bus:        bus,
		logger:     logger,
	}
}

// Handle dispatches a decoded event to its handler. The returned error is
// recorded in the audit log by the listener; it never stops the listen loop.
func (h *EventHandler) Handle(ctx context.Context, ev domain.Event) error {
	switch e := ev.(type) {
	case domain.BetEvent:
		return h.handleBet(ctx, e)
	case domain.MarketEvent:
		return h.handleMarket(ctx, e)
	case domain.MarketResolutionEvent:
		return h.handleResolution(ctx, e)
	case domain.WinningsClaimEvent:
		return h.handleClaim(ctx, e)
	case domain.YieldDepositEvent:
		return h.handleYieldDeposit(ctx, e)
	case domain.ProtocolFeeEvent:
		h.logger.InfoContext(ctx, "sync: protocol fee collected",
			slog.Int64("market_id", e.MarketID),
			slog.Int64("fee_amount", e.FeeAmount),
		)
		return nil
	case domain.GenericEvent:
		h.logger.DebugContext(ctx, "sync: generic event recorded",
			slog.String("event_type", e.EventType),
		)
		return nil
	default:
		return fmt.Errorf("sync: no handler for event on channel %s", ev.Channel())
	}
}

// handleBet materializes the bet (and its user and market when the batch
// sync has not seen them yet) and refreshes the market's aggregates.
func (h *EventHandler) handleBet(ctx context.Context, e domain.BetEvent) error {
	if _, err := h.reconciler.SyncBets(ctx); err != nil {
		return fmt.Errorf("sync: bet event %d: %w", e.BetID, err)
	}
	if _, err := h.reconciler.UpdateMarketStatsFor(ctx, e.MarketID); err != nil {
		return fmt.Errorf("sync: bet event %d stats: %w", e.BetID, err)
	}

	h.invalidateMarket(ctx, e.MarketID)
	h.publish(ctx, BusMarketUpdates, map[string]any{
		"type":      "bet_placed",
		"market_id": e.MarketID,
		"bet_id":    e.BetID,
		"amount":    e.Amount,
		"position":  e.Position,
	})
	return nil
}

// handleMarket materializes new ledger markets. A market event carrying
// resolved=true is treated like a resolution so the serving side converges
// even when the dedicated resolution notification was missed.
func (h *EventHandler) handleMarket(ctx context.Context, e domain.MarketEvent) error {
	if _, err := h.reconciler.SyncMarkets(ctx); err != nil {
		return fmt.Errorf("sync: market event %d: %w", e.MarketID, err)
	}

	if e.Resolved != nil && *e.Resolved && e.Outcome != nil {
		return h.resolveMarket(ctx, e.MarketID, *e.Outcome)
	}

	h.invalidateMarket(ctx, e.MarketID)
	h.publish(ctx, BusMarketUpdates, map[string]any{
		"type":      "market_updated",
		"market_id": e.MarketID,
	})
	return nil
}

func (h *EventHandler) handleResolution(ctx context.Context, e domain.MarketResolutionEvent) error {
	return h.resolveMarket(ctx, e.MarketID, e.Outcome)
}

// resolveMarket flips the market to resolved, settles its active bets, and
// refreshes the aggregates. Steps are individually idempotent so a replay of
// the same resolution converges to the same state.
func (h *EventHandler) resolveMarket(ctx context.Context, blockchainMarketID int64, outcome bool) error {
	if err := h.markets.MarkResolved(ctx, blockchainMarketID, outcome); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// The market was never materialized; the next reconciliation pass
			// creates it and the resolved flag arrives via the ledger row.
			h.logger.WarnContext(ctx, "sync: resolution for unknown market",
				slog.Int64("market_id", blockchainMarketID),
			)
			return nil
		}
		return fmt.Errorf("sync: resolve market %d: %w", blockchainMarketID, err)
	}
	if err := h.bets.SettleForResolution(ctx, blockchainMarketID, outcome); err != nil {
		return fmt.Errorf("sync: settle market %d: %w", blockchainMarketID, err)
	}
	if _, err := h.reconciler.UpdateMarketStatsFor(ctx, blockchainMarketID); err != nil {
		return fmt.Errorf("sync: resolve market %d stats: %w", blockchainMarketID, err)
	}

	h.invalidateMarket(ctx, blockchainMarketID)
	h.publish(ctx, BusMarketUpdates, map[string]any{
		"type":      "market_resolved",
		"market_id": blockchainMarketID,
		"outcome":   outcome,
	})
	return nil
}

// handleClaim marks the bet claimed with payout = winnings + yield share.
func (h *EventHandler) handleClaim(ctx context.Context, e domain.WinningsClaimEvent) error {
	payout := e.WinningAmount + e.YieldShare
	if err := h.bets.MarkClaimed(ctx, e.BetID, payout); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.logger.WarnContext(ctx, "sync: claim for unknown bet",
				slog.Int64("bet_id", e.BetID),
			)
			return nil
		}
		return fmt.Errorf("sync: claim bet %d: %w", e.BetID, err)
	}

	h.publish(ctx, BusSyncEvents, map[string]any{
		"type":   "winnings_claimed",
		"bet_id": e.BetID,
		"payout": payout,
	})
	return nil
}

func (h *EventHandler) handleYieldDeposit(ctx context.Context, e domain.YieldDepositEvent) error {
	if err := h.markets.AddYieldEarned(ctx, e.MarketID, e.Amount); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.logger.WarnContext(ctx, "sync: yield deposit for unknown market",
				slog.Int64("market_id", e.MarketID),
			)
			return nil
		}
		return fmt.Errorf("sync: yield deposit market %d: %w", e.MarketID, err)
	}

	h.invalidateMarket(ctx, e.MarketID)
	h.publish(ctx, BusSyncEvents, map[string]any{
		"type":      "yield_deposited",
		"market_id": e.MarketID,
		"amount":    e.Amount,
	})
	return nil
}

// invalidateMarket drops the cached serving market, if caching is wired.
// Failures are logged only; the cache entry expires on its TTL regardless.
func (h *EventHandler) invalidateMarket(ctx context.Context, blockchainMarketID int64) {
	if h.cache == nil {
		return
	}
	m, err := h.markets.GetByBlockchainID(ctx, blockchainMarketID)
	if err != nil {
		return
	}
	if err := h.cache.Invalidate(ctx, m.ID); err != nil {
		h.logger.WarnContext(ctx, "sync: cache invalidate failed",
			slog.String("market_id", m.ID),
			slog.Any("error", err),
		)
	}
}

// publish fans a payload out on the signal bus, if wired. Failures are
// logged only: realtime fan-out is best effort.
func (h *EventHandler) publish(ctx context.Context, channel string, payload map[string]any) {
	if h.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := h.bus.Publish(ctx, channel, data); err != nil {
		h.logger.WarnContext(ctx, "sync: signal bus publish failed",
			slog.String("channel", channel),
			slog.Any("error", err),
		)
	}
}
