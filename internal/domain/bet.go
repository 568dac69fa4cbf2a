package domain

import "time"

// BetStatus is the lifecycle state of an extended bet. Transitions are
// monotone: active -> won|lost (set exactly once at resolution) -> claimed.
type BetStatus string

const (
	BetActive  BetStatus = "active"
	BetWon     BetStatus = "won"
	BetLost    BetStatus = "lost"
	BetClaimed BetStatus = "claimed"
)

// PlaceholderOdds is the odds value assigned when a bet is materialized from
// the ledger. Authoritative odds are computed by the betting write path at
// placement time, never recomputed during reconciliation.
const PlaceholderOdds = 1.0

// ExtendedBet is the mutable serving projection of a ledger bet. At most one
// ExtendedBet exists per BlockchainBetID.
type ExtendedBet struct {
	ID               string
	BlockchainBetID  int64
	UserID           string
	MarketID         string
	Position         bool
	Amount           int64
	Odds             float64
	Status           BetStatus
	Payout           int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
