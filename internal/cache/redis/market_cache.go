package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yieldbet/marketd/internal/domain"
)

// marketTTL bounds staleness when an invalidation is lost.
const marketTTL = 5 * time.Minute

// MarketCache implements domain.MarketCache with JSON values under a
// per-market key.
type MarketCache struct {
	rdb *redis.Client
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{rdb: c.rdb}
}

func marketKey(id string) string {
	return "market:" + id
}

// Get returns the cached market or domain.ErrNotFound on a miss.
func (mc *MarketCache) Get(ctx context.Context, id string) (domain.ExtendedMarket, error) {
	data, err := mc.rdb.Get(ctx, marketKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ExtendedMarket{}, domain.ErrNotFound
		}
		return domain.ExtendedMarket{}, fmt.Errorf("redis: get market %s: %w", id, err)
	}

	var m domain.ExtendedMarket
	if err := json.Unmarshal(data, &m); err != nil {
		// Treat a corrupt entry as a miss; the caller refills it.
		_ = mc.rdb.Del(ctx, marketKey(id)).Err()
		return domain.ExtendedMarket{}, domain.ErrNotFound
	}
	return m, nil
}

// Set caches the market with the standard TTL.
func (mc *MarketCache) Set(ctx context.Context, market domain.ExtendedMarket) error {
	data, err := json.Marshal(market)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", market.ID, err)
	}
	if err := mc.rdb.Set(ctx, marketKey(market.ID), data, marketTTL).Err(); err != nil {
		return fmt.Errorf("redis: set market %s: %w", market.ID, err)
	}
	return nil
}

// Invalidate drops the cached market.
func (mc *MarketCache) Invalidate(ctx context.Context, id string) error {
	if err := mc.rdb.Del(ctx, marketKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate market %s: %w", id, err)
	}
	return nil
}

var _ domain.MarketCache = (*MarketCache)(nil)
