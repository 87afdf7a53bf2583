package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

const (
	dashboardKeyPrefix = "cache:dashboard-stats:"
	dashboardVersion   = "cache:dashboard-stats:version"
)

// DashboardCache stores dashboard snapshots in Redis as JSON, keyed by a generation counter.
// Invalidate bumps the counter, so a snapshot computed before an invalidation is written under a
// generation nobody reads any more.
type DashboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDashboardCache returns a cache writing entries with the given TTL.
func NewDashboardCache(client *redis.Client, ttl time.Duration) *DashboardCache {
	return &DashboardCache{client: client, ttl: ttl}
}

// Version returns the current generation; 0 before the first invalidation.
func (c *DashboardCache) Version(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, dashboardVersion).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Get returns the snapshot stored for version, or nil on a miss.
func (c *DashboardCache) Get(ctx context.Context, version int64) (*domain.DashboardStats, error) {
	data, err := c.client.Get(ctx, snapshotKey(version)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var stats domain.DashboardStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Set stores the snapshot under version.
func (c *DashboardCache) Set(ctx context.Context, version int64, stats *domain.DashboardStats) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, snapshotKey(version), payload, c.ttl).Err()
}

// Invalidate starts a new generation and drops the previous snapshot.
func (c *DashboardCache) Invalidate(ctx context.Context) error {
	next, err := c.client.Incr(ctx, dashboardVersion).Result()
	if err != nil {
		return err
	}
	return c.client.Del(ctx, snapshotKey(next-1)).Err()
}

func snapshotKey(version int64) string {
	return dashboardKeyPrefix + strconv.FormatInt(version, 10)
}
