package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yieldbet/marketd/internal/domain"
)

// ExtendedBetStore implements domain.ExtendedBetStore using PostgreSQL.
type ExtendedBetStore struct {
	pool *pgxpool.Pool
}

func NewExtendedBetStore(pool *pgxpool.Pool) *ExtendedBetStore {
	return &ExtendedBetStore{pool: pool}
}

const betCols = `id, blockchain_bet_id, user_id, market_id, position, amount,
	odds, status, payout, created_at, updated_at`

func scanBet(row pgx.Row) (domain.ExtendedBet, error) {
	var b domain.ExtendedBet
	var status string
	err := row.Scan(
		&b.ID, &b.BlockchainBetID, &b.UserID, &b.MarketID, &b.Position, &b.Amount,
		&b.Odds, &status, &b.Payout, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return domain.ExtendedBet{}, err
	}
	b.Status = domain.BetStatus(status)
	return b, nil
}

// CreateFromLedger materializes a serving bet for a ledger bet row. The odds
// column gets the placeholder value; authoritative odds are written by the
// betting path at placement time.
func (s *ExtendedBetStore) CreateFromLedger(ctx context.Context, rec domain.BetRecord, userID, marketID string) (bool, error) {
	const query = `
		INSERT INTO bets_extended (
			id, blockchain_bet_id, user_id, market_id, position, amount,
			odds, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 'active', NOW(), NOW())
		ON CONFLICT (blockchain_bet_id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		uuid.NewString(), rec.BetID, userID, marketID,
		rec.Position, rec.Amount, domain.PlaceholderOdds,
	)
	if err != nil {
		return false, fmt.Errorf("postgres: create extended bet %d: %w", rec.BetID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *ExtendedBetStore) GetByBlockchainID(ctx context.Context, blockchainBetID int64) (domain.ExtendedBet, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+betCols+` FROM bets_extended WHERE blockchain_bet_id = $1`, blockchainBetID)
	b, err := scanBet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ExtendedBet{}, domain.ErrNotFound
		}
		return domain.ExtendedBet{}, fmt.Errorf("postgres: get bet by blockchain id %d: %w", blockchainBetID, err)
	}
	return b, nil
}

func (s *ExtendedBetStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.ExtendedBet, error) {
	return s.list(ctx,
		`SELECT `+betCols+` FROM bets_extended WHERE market_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		marketID, opts)
}

func (s *ExtendedBetStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.ExtendedBet, error) {
	return s.list(ctx,
		`SELECT `+betCols+` FROM bets_extended WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, opts)
}

func (s *ExtendedBetStore) list(ctx context.Context, query, key string, opts domain.ListOpts) ([]domain.ExtendedBet, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, query, key, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets: %w", err)
	}
	defer rows.Close()

	var bets []domain.ExtendedBet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bet: %w", err)
		}
		bets = append(bets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list bets rows: %w", err)
	}
	return bets, nil
}

// SettleForResolution flips every still-active bet of the market to won or
// lost by comparing its position with the outcome. Only active bets are
// touched, so re-delivery of the same resolution is a no-op.
func (s *ExtendedBetStore) SettleForResolution(ctx context.Context, blockchainMarketID int64, outcome bool) error {
	const query = `
		UPDATE bets_extended be
		SET status = CASE WHEN be.position = $1 THEN 'won' ELSE 'lost' END,
		    updated_at = NOW()
		FROM markets_extended me
		WHERE be.market_id = me.id
		  AND me.blockchain_market_id = $2
		  AND be.status = 'active'`

	if _, err := s.pool.Exec(ctx, query, outcome, blockchainMarketID); err != nil {
		return fmt.Errorf("postgres: settle bets for market %d: %w", blockchainMarketID, err)
	}
	return nil
}

// MarkClaimed transitions a bet to claimed and records the payout.
func (s *ExtendedBetStore) MarkClaimed(ctx context.Context, blockchainBetID int64, payout int64) error {
	const query = `
		UPDATE bets_extended
		SET status = 'claimed', payout = $1, updated_at = NOW()
		WHERE blockchain_bet_id = $2`

	tag, err := s.pool.Exec(ctx, query, payout, blockchainBetID)
	if err != nil {
		return fmt.Errorf("postgres: mark bet %d claimed: %w", blockchainBetID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: mark bet %d claimed: %w", blockchainBetID, domain.ErrNotFound)
	}
	return nil
}

func (s *ExtendedBetStore) LastUpdatedAt(ctx context.Context) (*time.Time, error) {
	var t *time.Time
	if err := s.pool.QueryRow(ctx, `SELECT MAX(updated_at) FROM bets_extended`).Scan(&t); err != nil {
		return nil, fmt.Errorf("postgres: last bet update: %w", err)
	}
	return t, nil
}

var _ domain.ExtendedBetStore = (*ExtendedBetStore)(nil)
