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

// UserStore implements domain.UserStore using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

// GetOrCreate returns the user for an address, creating the row when it does
// not exist. Addresses are normalized before lookup. A concurrent insert for
// the same address loses on the unique constraint and the re-fetch returns
// the winner's row.
func (s *UserStore) GetOrCreate(ctx context.Context, address string) (domain.User, error) {
	addr := domain.NormalizeAddress(address)

	u, err := s.GetByAddress(ctx, addr)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, err
	}

	const insert = `
		INSERT INTO users (id, address, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (address) DO NOTHING`

	if _, err := s.pool.Exec(ctx, insert, uuid.NewString(), addr); err != nil {
		return domain.User{}, fmt.Errorf("postgres: create user %s: %w", addr, err)
	}
	return s.GetByAddress(ctx, addr)
}

// GetByAddress looks up a user by normalized address.
func (s *UserStore) GetByAddress(ctx context.Context, address string) (domain.User, error) {
	addr := domain.NormalizeAddress(address)

	var u domain.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, address, created_at, updated_at FROM users WHERE address = $1`, addr,
	).Scan(&u.ID, &u.Address, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("postgres: get user %s: %w", addr, err)
	}
	return u, nil
}

var _ domain.UserStore = (*UserStore)(nil)
