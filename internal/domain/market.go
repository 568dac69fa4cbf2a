package domain

import "time"

// MarketStatus is the lifecycle state of an extended market.
type MarketStatus string

const (
	MarketActive   MarketStatus = "active"
	MarketResolved MarketStatus = "resolved"
)

// DefaultProbability is the implied probability assigned to a market with an
// empty pool.
const DefaultProbability = 50

// ExtendedMarket is the mutable, query-optimized projection of a ledger
// market. At most one ExtendedMarket exists per non-nil BlockchainMarketID;
// the unique constraint on that column is what makes creation idempotent.
type ExtendedMarket struct {
	ID                 string
	BlockchainMarketID *int64
	Question           string
	Status             MarketStatus
	Probability        int
	YesPoolSize        int64
	NoPoolSize         int64
	TotalPoolSize      int64
	CountYes           int
	CountNo            int
	CurrentYield       float64
	TotalYieldEarned   int64
	Outcome            *bool
	EndDate            *time.Time
	ResolutionDate     *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// MarketStatsUpdate reports how many serving rows a set-based stats
// recomputation touched.
type MarketStatsUpdate struct {
	MarketsUpdated int64
}
