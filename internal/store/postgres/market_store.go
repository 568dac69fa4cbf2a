package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yieldbet/marketd/internal/domain"
)

// ExtendedMarketStore implements domain.ExtendedMarketStore using PostgreSQL.
type ExtendedMarketStore struct {
	pool *pgxpool.Pool
}

// NewExtendedMarketStore creates a store backed by the given connection pool.
func NewExtendedMarketStore(pool *pgxpool.Pool) *ExtendedMarketStore {
	return &ExtendedMarketStore{pool: pool}
}

const marketCols = `id, blockchain_market_id, question, status, probability,
	yes_pool_size, no_pool_size, total_pool_size, count_yes, count_no,
	current_yield, total_yield_earned, outcome, end_date, resolution_date,
	created_at, updated_at`

func scanMarket(row pgx.Row) (domain.ExtendedMarket, error) {
	var m domain.ExtendedMarket
	var status string
	err := row.Scan(
		&m.ID, &m.BlockchainMarketID, &m.Question, &status, &m.Probability,
		&m.YesPoolSize, &m.NoPoolSize, &m.TotalPoolSize, &m.CountYes, &m.CountNo,
		&m.CurrentYield, &m.TotalYieldEarned, &m.Outcome, &m.EndDate, &m.ResolutionDate,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.ExtendedMarket{}, err
	}
	m.Status = domain.MarketStatus(status)
	return m, nil
}

// CreateFromLedger materializes a serving market for a ledger market row.
// ON CONFLICT DO NOTHING makes a race with the push path harmless; created
// reports whether this call inserted the row.
func (s *ExtendedMarketStore) CreateFromLedger(ctx context.Context, rec domain.MarketRecord) (bool, error) {
	const query = `
		INSERT INTO markets_extended (
			id, blockchain_market_id, question, status, probability,
			end_date, created_at, updated_at
		) VALUES ($1, $2, $3, 'active', $4, $5, NOW(), NOW())
		ON CONFLICT (blockchain_market_id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		uuid.NewString(), rec.MarketID, rec.Question,
		domain.DefaultProbability, rec.EndTime,
	)
	if err != nil {
		return false, fmt.Errorf("postgres: create extended market %d: %w", rec.MarketID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetByID retrieves a market by its serving primary key.
func (s *ExtendedMarketStore) GetByID(ctx context.Context, id string) (domain.ExtendedMarket, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets_extended WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ExtendedMarket{}, domain.ErrNotFound
		}
		return domain.ExtendedMarket{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// GetByBlockchainID retrieves a market by its ledger market id.
func (s *ExtendedMarketStore) GetByBlockchainID(ctx context.Context, blockchainMarketID int64) (domain.ExtendedMarket, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets_extended WHERE blockchain_market_id = $1`,
		blockchainMarketID)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ExtendedMarket{}, domain.ErrNotFound
		}
		return domain.ExtendedMarket{}, fmt.Errorf("postgres: get market by blockchain id %d: %w", blockchainMarketID, err)
	}
	return m, nil
}

// GetByRef resolves a market by serving id first, then by blockchain market
// id when ref parses as an integer.
func (s *ExtendedMarketStore) GetByRef(ctx context.Context, ref string) (domain.ExtendedMarket, error) {
	m, err := s.GetByID(ctx, ref)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.ExtendedMarket{}, err
	}

	id, perr := strconv.ParseInt(ref, 10, 64)
	if perr != nil {
		return domain.ExtendedMarket{}, domain.ErrNotFound
	}
	return s.GetByBlockchainID(ctx, id)
}

// List returns markets newest first.
func (s *ExtendedMarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.ExtendedMarket, error) {
	return s.list(ctx, `SELECT `+marketCols+` FROM markets_extended ORDER BY created_at DESC LIMIT $1 OFFSET $2`, opts)
}

// ListActive returns active markets newest first.
func (s *ExtendedMarketStore) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.ExtendedMarket, error) {
	return s.list(ctx, `SELECT `+marketCols+` FROM markets_extended WHERE status = 'active' ORDER BY created_at DESC LIMIT $1 OFFSET $2`, opts)
}

func (s *ExtendedMarketStore) list(ctx context.Context, query string, opts domain.ListOpts) ([]domain.ExtendedMarket, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, query, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.ExtendedMarket
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

// statsUpdate recomputes pools, counts, and probability from the current set
// of active bets in a single set-based statement. Being one UPDATE ... FROM
// it needs no in-process locking: concurrent recomputations produce the same
// values.
const statsUpdate = `
	UPDATE markets_extended me
	SET yes_pool_size   = COALESCE(subq.yes_pool, 0),
	    no_pool_size    = COALESCE(subq.no_pool, 0),
	    total_pool_size = COALESCE(subq.total_pool, 0),
	    count_yes       = COALESCE(subq.yes_count, 0),
	    count_no        = COALESCE(subq.no_count, 0),
	    probability     = CASE
	        WHEN COALESCE(subq.total_pool, 0) > 0 THEN
	            ROUND(COALESCE(subq.yes_pool, 0)::numeric / subq.total_pool * 100)::int
	        ELSE 50
	    END,
	    updated_at      = NOW()
	FROM (
	    SELECT me2.id AS market_id,
	           SUM(CASE WHEN be.position THEN be.amount ELSE 0 END) AS yes_pool,
	           SUM(CASE WHEN NOT be.position THEN be.amount ELSE 0 END) AS no_pool,
	           SUM(be.amount) AS total_pool,
	           COUNT(*) FILTER (WHERE be.position) AS yes_count,
	           COUNT(*) FILTER (WHERE NOT be.position) AS no_count
	    FROM markets_extended me2
	    LEFT JOIN bets_extended be ON be.market_id = me2.id AND be.status = 'active'
	    %s
	    GROUP BY me2.id
	) subq
	WHERE me.id = subq.market_id`

// UpdateStats recomputes aggregates for every serving market.
func (s *ExtendedMarketStore) UpdateStats(ctx context.Context) (domain.MarketStatsUpdate, error) {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(statsUpdate, ""))
	if err != nil {
		return domain.MarketStatsUpdate{}, fmt.Errorf("postgres: update market stats: %w", err)
	}
	return domain.MarketStatsUpdate{MarketsUpdated: tag.RowsAffected()}, nil
}

// UpdateStatsFor recomputes aggregates for a single market identified by its
// blockchain market id.
func (s *ExtendedMarketStore) UpdateStatsFor(ctx context.Context, blockchainMarketID int64) (domain.MarketStatsUpdate, error) {
	query := fmt.Sprintf(statsUpdate, "WHERE me2.blockchain_market_id = $1")
	tag, err := s.pool.Exec(ctx, query, blockchainMarketID)
	if err != nil {
		return domain.MarketStatsUpdate{}, fmt.Errorf("postgres: update stats for market %d: %w", blockchainMarketID, err)
	}
	return domain.MarketStatsUpdate{MarketsUpdated: tag.RowsAffected()}, nil
}

// MarkResolved sets the market resolved with its outcome. Idempotent: keyed
// by the ledger market id, re-running sets the same values.
func (s *ExtendedMarketStore) MarkResolved(ctx context.Context, blockchainMarketID int64, outcome bool) error {
	const query = `
		UPDATE markets_extended
		SET status = 'resolved', outcome = $1, resolution_date = COALESCE(resolution_date, NOW()), updated_at = NOW()
		WHERE blockchain_market_id = $2`

	tag, err := s.pool.Exec(ctx, query, outcome, blockchainMarketID)
	if err != nil {
		return fmt.Errorf("postgres: mark market %d resolved: %w", blockchainMarketID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: mark market %d resolved: %w", blockchainMarketID, domain.ErrNotFound)
	}
	return nil
}

// AddYieldEarned increments the accumulated on-chain yield for a market.
func (s *ExtendedMarketStore) AddYieldEarned(ctx context.Context, blockchainMarketID int64, amount int64) error {
	const query = `
		UPDATE markets_extended
		SET total_yield_earned = total_yield_earned + $1, updated_at = NOW()
		WHERE blockchain_market_id = $2`

	tag, err := s.pool.Exec(ctx, query, amount, blockchainMarketID)
	if err != nil {
		return fmt.Errorf("postgres: add yield for market %d: %w", blockchainMarketID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: add yield for market %d: %w", blockchainMarketID, domain.ErrNotFound)
	}
	return nil
}

// SetCurrentYield persists a freshly computed yield estimate.
func (s *ExtendedMarketStore) SetCurrentYield(ctx context.Context, id string, currentYield float64) error {
	const query = `UPDATE markets_extended SET current_yield = $1, updated_at = NOW() WHERE id = $2`
	tag, err := s.pool.Exec(ctx, query, currentYield, id)
	if err != nil {
		return fmt.Errorf("postgres: set current yield for market %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: set current yield for market %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ActiveWithPool lists active markets holding a non-empty pool, for the
// periodic yield sweep.
func (s *ExtendedMarketStore) ActiveWithPool(ctx context.Context, limit int) ([]domain.ExtendedMarket, error) {
	const query = `SELECT ` + marketCols + `
		FROM markets_extended
		WHERE status = 'active' AND total_pool_size > 0
		ORDER BY total_pool_size DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active markets with pool: %w", err)
	}
	defer rows.Close()

	var markets []domain.ExtendedMarket
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: active markets rows: %w", err)
	}
	return markets, nil
}

// LastUpdatedAt returns the newest updated_at across serving markets, or nil
// when the table is empty.
func (s *ExtendedMarketStore) LastUpdatedAt(ctx context.Context) (*time.Time, error) {
	var t *time.Time
	if err := s.pool.QueryRow(ctx, `SELECT MAX(updated_at) FROM markets_extended`).Scan(&t); err != nil {
		return nil, fmt.Errorf("postgres: last market update: %w", err)
	}
	return t, nil
}

// Compile-time interface check.
var _ domain.ExtendedMarketStore = (*ExtendedMarketStore)(nil)
