package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yieldbet/marketd/internal/domain"
)

// LedgerStore implements domain.LedgerStore with read-only queries over the
// indexer tables.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a LedgerStore backed by the given connection pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// UnsyncedMarkets returns ledger markets with no serving counterpart via a
// left anti-join on blockchain_market_id, newest first.
func (s *LedgerStore) UnsyncedMarkets(ctx context.Context, limit int) ([]domain.MarketRecord, error) {
	const query = `
		SELECT m.market_id, m.question, m.end_time, m.yield_protocol_addr,
		       m.resolved, m.outcome, m.total_yield_earned,
		       m.transaction_version, m.transaction_block_height, m.inserted_at
		FROM markets m
		LEFT JOIN markets_extended me ON m.market_id = me.blockchain_market_id
		WHERE me.id IS NULL
		ORDER BY m.transaction_version DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: query unsynced markets: %w", err)
	}
	defer rows.Close()

	var records []domain.MarketRecord
	for rows.Next() {
		var r domain.MarketRecord
		if err := rows.Scan(
			&r.MarketID, &r.Question, &r.EndTime, &r.YieldProtocolAddr,
			&r.Resolved, &r.Outcome, &r.TotalYieldEarned,
			&r.TransactionVersion, &r.TransactionBlockHeight, &r.InsertedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan unsynced market: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: unsynced markets rows: %w", err)
	}
	return records, nil
}

// UnsyncedBets returns ledger bets with no serving counterpart via a left
// anti-join on blockchain_bet_id, newest first.
func (s *LedgerStore) UnsyncedBets(ctx context.Context, limit int) ([]domain.BetRecord, error) {
	const query = `
		SELECT b.bet_id, b.market_id, b.user_addr, b.position, b.amount,
		       b.claimed, b.winning_amount, b.yield_share,
		       b.transaction_version, b.transaction_block_height, b.inserted_at
		FROM bets b
		LEFT JOIN bets_extended be ON b.bet_id = be.blockchain_bet_id
		WHERE be.id IS NULL
		ORDER BY b.transaction_version DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: query unsynced bets: %w", err)
	}
	defer rows.Close()

	var records []domain.BetRecord
	for rows.Next() {
		var r domain.BetRecord
		if err := rows.Scan(
			&r.BetID, &r.MarketID, &r.UserAddr, &r.Position, &r.Amount,
			&r.Claimed, &r.WinningAmount, &r.YieldShare,
			&r.TransactionVersion, &r.TransactionBlockHeight, &r.InsertedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan unsynced bet: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: unsynced bets rows: %w", err)
	}
	return records, nil
}

// PendingBetCount counts ledger bets not yet materialized in the serving
// store.
func (s *LedgerStore) PendingBetCount(ctx context.Context) (int64, error) {
	const query = `
		SELECT COUNT(*)
		FROM bets b
		LEFT JOIN bets_extended be ON b.bet_id = be.blockchain_bet_id
		WHERE be.id IS NULL`

	var count int64
	if err := s.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count pending bets: %w", err)
	}
	return count, nil
}

// Compile-time interface check.
var _ domain.LedgerStore = (*LedgerStore)(nil)
