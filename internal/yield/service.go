package yield

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yieldbet/marketd/internal/domain"
)

// Service recomputes per-market yield estimates from the best active
// protocol APY and persists them as current_yield.
type Service struct {
	markets    domain.ExtendedMarketStore
	protocols  domain.ProtocolStore
	sweepLimit int
	logger     *slog.Logger
}

// NewService creates a yield Service. sweepLimit caps how many markets one
// RecalculateAll pass touches, largest pools first.
func NewService(markets domain.ExtendedMarketStore, protocols domain.ProtocolStore, sweepLimit int, logger *slog.Logger) *Service {
	if sweepLimit <= 0 {
		sweepLimit = 100
	}
	return &Service{
		markets:    markets,
		protocols:  protocols,
		sweepLimit: sweepLimit,
		logger:     logger,
	}
}

// RecalculateAll refreshes yield estimates for active markets with a
// non-empty pool. Per-market failures are logged and counted; the sweep
// continues.
func (s *Service) RecalculateAll(ctx context.Context) (updated int, err error) {
	apy, name, ok, err := s.protocols.BestAPY(ctx)
	if err != nil {
		return 0, fmt.Errorf("yield: best apy: %w", err)
	}
	if !ok {
		s.logger.WarnContext(ctx, "yield: no active protocols, skipping sweep")
		return 0, nil
	}

	markets, err := s.markets.ActiveWithPool(ctx, s.sweepLimit)
	if err != nil {
		return 0, fmt.Errorf("yield: list markets: %w", err)
	}

	now := time.Now()
	var failures int
	for _, m := range markets {
		est := Calculate(m.TotalPoolSize, apy, m.EndDate, now)
		if err := s.markets.SetCurrentYield(ctx, m.ID, est.DailyYield); err != nil {
			failures++
			s.logger.ErrorContext(ctx, "yield: persist estimate failed",
				slog.String("market_id", m.ID),
				slog.Any("error", err),
			)
			continue
		}
		updated++
	}

	s.logger.InfoContext(ctx, "yield: sweep complete",
		slog.String("protocol", name),
		slog.Float64("apy", apy),
		slog.Int("updated", updated),
		slog.Int("failures", failures),
	)
	return updated, nil
}

// RecalculateMarket refreshes the yield estimate for one market.
func (s *Service) RecalculateMarket(ctx context.Context, m domain.ExtendedMarket) error {
	apy, _, ok, err := s.protocols.BestAPY(ctx)
	if err != nil {
		return fmt.Errorf("yield: best apy: %w", err)
	}
	if !ok {
		return nil
	}

	est := Calculate(m.TotalPoolSize, apy, m.EndDate, time.Now())
	if err := s.markets.SetCurrentYield(ctx, m.ID, est.DailyYield); err != nil {
		return fmt.Errorf("yield: market %s: %w", m.ID, err)
	}
	return nil
}
