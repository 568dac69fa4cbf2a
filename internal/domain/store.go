package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// LedgerStore reads the append-only indexer tables. The serving side never
// writes through this interface.
type LedgerStore interface {
	// UnsyncedMarkets returns ledger markets with no serving counterpart,
	// newest transaction_version first, capped at limit.
	UnsyncedMarkets(ctx context.Context, limit int) ([]MarketRecord, error)
	// UnsyncedBets returns ledger bets with no serving counterpart, newest
	// transaction_version first, capped at limit.
	UnsyncedBets(ctx context.Context, limit int) ([]BetRecord, error)
	// PendingBetCount counts ledger bets not yet materialized.
	PendingBetCount(ctx context.Context) (int64, error)
}

// ExtendedMarketStore persists the serving-side market projections.
type ExtendedMarketStore interface {
	// CreateFromLedger idempotently materializes a serving market for a
	// ledger market id. It reports created=false when a row already existed
	// for that blockchain market id.
	CreateFromLedger(ctx context.Context, rec MarketRecord) (created bool, err error)
	GetByID(ctx context.Context, id string) (ExtendedMarket, error)
	// GetByRef resolves a market by serving id or by blockchain market id
	// rendered as a string, whichever matches.
	GetByRef(ctx context.Context, ref string) (ExtendedMarket, error)
	GetByBlockchainID(ctx context.Context, blockchainMarketID int64) (ExtendedMarket, error)
	ListActive(ctx context.Context, opts ListOpts) ([]ExtendedMarket, error)
	List(ctx context.Context, opts ListOpts) ([]ExtendedMarket, error)
	// UpdateStats recomputes pools, counts, and probability for every serving
	// market from the current active bets, in one set-based statement.
	UpdateStats(ctx context.Context) (MarketStatsUpdate, error)
	// UpdateStatsFor recomputes the same aggregates for a single market
	// identified by its blockchain market id.
	UpdateStatsFor(ctx context.Context, blockchainMarketID int64) (MarketStatsUpdate, error)
	// MarkResolved sets status=resolved and the outcome for a market.
	MarkResolved(ctx context.Context, blockchainMarketID int64, outcome bool) error
	// AddYieldEarned increments the accumulated yield for a market.
	AddYieldEarned(ctx context.Context, blockchainMarketID int64, amount int64) error
	// SetCurrentYield persists a freshly computed yield estimate.
	SetCurrentYield(ctx context.Context, id string, currentYield float64) error
	// ActiveWithPool lists active markets with a non-empty pool for the
	// yield sweep, capped at limit.
	ActiveWithPool(ctx context.Context, limit int) ([]ExtendedMarket, error)
	LastUpdatedAt(ctx context.Context) (*time.Time, error)
}

// ExtendedBetStore persists the serving-side bet projections.
type ExtendedBetStore interface {
	// CreateFromLedger idempotently materializes a serving bet. created is
	// false when the blockchain bet id was already present.
	CreateFromLedger(ctx context.Context, rec BetRecord, userID, marketID string) (created bool, err error)
	GetByBlockchainID(ctx context.Context, blockchainBetID int64) (ExtendedBet, error)
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]ExtendedBet, error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]ExtendedBet, error)
	// SettleForResolution flips every active bet of the market to won or
	// lost by comparing its position against the outcome.
	SettleForResolution(ctx context.Context, blockchainMarketID int64, outcome bool) error
	// MarkClaimed transitions a bet to claimed and records its payout.
	MarkClaimed(ctx context.Context, blockchainBetID int64, payout int64) error
	LastUpdatedAt(ctx context.Context) (*time.Time, error)
}

// UserStore persists users keyed by normalized address.
type UserStore interface {
	// GetOrCreate returns the user for a normalized address, creating it if
	// missing. Creation races are resolved by the unique constraint plus a
	// re-fetch.
	GetOrCreate(ctx context.Context, address string) (User, error)
	GetByAddress(ctx context.Context, address string) (User, error)
}

// EventLogStore persists the append-only notification audit trail.
type EventLogStore interface {
	Append(ctx context.Context, entry EventLogEntry) error
	// Stats aggregates outcomes per channel over the whole log.
	Stats(ctx context.Context) ([]EventStats, error)
	// ExportBefore streams entries older than cutoff to the callback and
	// returns how many were visited.
	ExportBefore(ctx context.Context, cutoff time.Time, fn func(EventLogEntry) error) (int64, error)
	// DeleteBefore removes entries older than cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ProtocolStore persists the yield-protocol reference rows the yield sweep
// reads APYs from.
type ProtocolStore interface {
	Upsert(ctx context.Context, p Protocol) error
	ListActive(ctx context.Context) ([]Protocol, error)
	// BestAPY returns the highest active base APY, or ok=false when no
	// protocol rows exist.
	BestAPY(ctx context.Context) (apy float64, name string, ok bool, err error)
}
