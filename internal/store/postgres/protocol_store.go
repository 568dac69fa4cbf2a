package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yieldbet/marketd/internal/domain"
)

// ProtocolStore implements domain.ProtocolStore using PostgreSQL.
type ProtocolStore struct {
	pool *pgxpool.Pool
}

func NewProtocolStore(pool *pgxpool.Pool) *ProtocolStore {
	return &ProtocolStore{pool: pool}
}

// Upsert inserts or refreshes a protocol row keyed by name.
func (s *ProtocolStore) Upsert(ctx context.Context, p domain.Protocol) error {
	const query = `
		INSERT INTO protocols (id, name, display_name, base_apy, is_active, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (name) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			base_apy     = EXCLUDED.base_apy,
			is_active    = EXCLUDED.is_active,
			description  = EXCLUDED.description,
			updated_at   = NOW()`

	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, err := s.pool.Exec(ctx, query, id, p.Name, p.DisplayName, p.BaseAPY, p.IsActive, p.Description); err != nil {
		return fmt.Errorf("postgres: upsert protocol %s: %w", p.Name, err)
	}
	return nil
}

// ListActive returns active protocols, highest APY first.
func (s *ProtocolStore) ListActive(ctx context.Context) ([]domain.Protocol, error) {
	const query = `
		SELECT id, name, display_name, base_apy, is_active, description, created_at, updated_at
		FROM protocols
		WHERE is_active
		ORDER BY base_apy DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list protocols: %w", err)
	}
	defer rows.Close()

	var protos []domain.Protocol
	for rows.Next() {
		var p domain.Protocol
		if err := rows.Scan(&p.ID, &p.Name, &p.DisplayName, &p.BaseAPY,
			&p.IsActive, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan protocol: %w", err)
		}
		protos = append(protos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list protocols rows: %w", err)
	}
	return protos, nil
}

// BestAPY returns the highest active APY, or ok=false when no active
// protocol rows exist.
func (s *ProtocolStore) BestAPY(ctx context.Context) (float64, string, bool, error) {
	var apy float64
	var name string
	err := s.pool.QueryRow(ctx,
		`SELECT base_apy, name FROM protocols WHERE is_active ORDER BY base_apy DESC LIMIT 1`,
	).Scan(&apy, &name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, "", false, nil
		}
		return 0, "", false, fmt.Errorf("postgres: best apy: %w", err)
	}
	return apy, name, true, nil
}

var _ domain.ProtocolStore = (*ProtocolStore)(nil)
