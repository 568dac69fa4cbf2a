// Package domain defines the core entities of the yieldbet backend: the
// append-only ledger records written by the external blockchain indexer, the
// mutable serving records derived from them, the push-notification event
// variants, and the store interfaces the rest of the system programs against.
package domain

import "time"

// MarketRecord is a row in the indexer-owned markets ledger table. Ledger
// rows are immutable once written; this service only reads them.
type MarketRecord struct {
	MarketID               int64
	Question               string
	EndTime                time.Time
	YieldProtocolAddr      string
	Resolved               bool
	Outcome                bool
	TotalYieldEarned       int64
	TransactionVersion     int64
	TransactionBlockHeight int64
	InsertedAt             time.Time
}

// BetRecord is a row in the indexer-owned bets ledger table.
type BetRecord struct {
	BetID                  int64
	MarketID               int64
	UserAddr               string
	Position               bool
	Amount                 int64
	Claimed                bool
	WinningAmount          int64
	YieldShare             int64
	TransactionVersion     int64
	TransactionBlockHeight int64
	InsertedAt             time.Time
}

// ResolutionRecord is a row in the market_resolutions ledger table.
type ResolutionRecord struct {
	MarketID           int64
	Outcome            bool
	TotalYesPool       int64
	TotalNoPool        int64
	TransactionVersion int64
	InsertedAt         time.Time
}

// ClaimRecord is a row in the winnings_claims ledger table.
type ClaimRecord struct {
	BetID              int64
	UserAddr           string
	WinningAmount      int64
	YieldShare         int64
	TransactionVersion int64
	InsertedAt         time.Time
}

// YieldDepositRecord is a row in the yield_deposits ledger table.
type YieldDepositRecord struct {
	MarketID           int64
	Amount             int64
	ProtocolAddr       string
	TransactionVersion int64
	InsertedAt         time.Time
}

// FeeRecord is a row in the protocol_fees ledger table.
type FeeRecord struct {
	MarketID           int64
	FeeAmount          int64
	TransactionVersion int64
	InsertedAt         time.Time
}
