package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bizdesk/crm-api/internal/core/domain"
)

const (
	statsKey             = "dashboard:stats"
	DefaultStatsCacheTTL = 30 * time.Second
)

// StatsCache memoizes the dashboard aggregate as JSON. A nil client makes
// every Get a miss.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = DefaultStatsCacheTTL
	}
	return &StatsCache{client: client, ttl: ttl}
}

// Get returns nil, nil on a miss.
func (c *StatsCache) Get(ctx context.Context) (*domain.DashboardStats, error) {
	if c.client == nil {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, statsKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("stats cache get: %w", err)
	}

	var stats domain.DashboardStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, fmt.Errorf("stats cache decode: %w", err)
	}
	return &stats, nil
}

func (c *StatsCache) Set(ctx context.Context, stats domain.DashboardStats) error {
	if c.client == nil {
		return nil
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("stats cache encode: %w", err)
	}
	return c.client.Set(ctx, statsKey, raw, c.ttl).Err()
}

func (c *StatsCache) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, statsKey).Err()
}
