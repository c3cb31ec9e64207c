package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/frahmantamala/office-erp/internal/authz"
)

const generationKey = "authz:generation"

// GrantCache stores per-role grants in redis. Keys embed a generation number, so
// Invalidate only has to bump the generation; stale keys expire through their TTL.
type GrantCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewGrantCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *GrantCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &GrantCache{client: client, ttl: ttl, logger: logger}
}

func (c *GrantCache) Get(ctx context.Context, roleID int64, resource authz.Resource) (authz.CapabilitySet, bool) {
	gen, err := c.generation(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "grant cache unavailable", "error", err)
		return authz.CapabilitySet{}, false
	}

	raw, err := c.client.Get(ctx, key(gen, roleID, resource)).Bytes()
	if errors.Is(err, redis.Nil) {
		return authz.CapabilitySet{}, false
	}
	if err != nil {
		c.logger.WarnContext(ctx, "grant cache read failed", "error", err, "role_id", roleID, "resource", resource)
		return authz.CapabilitySet{}, false
	}

	var set authz.CapabilitySet
	if err := json.Unmarshal(raw, &set); err != nil {
		c.logger.WarnContext(ctx, "grant cache entry corrupt", "error", err, "role_id", roleID, "resource", resource)
		return authz.CapabilitySet{}, false
	}
	return set, true
}

func (c *GrantCache) Epoch(ctx context.Context) (int64, bool) {
	gen, err := c.generation(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "grant cache unavailable", "error", err)
		return 0, false
	}
	return gen, true
}

// Put writes under the generation the set was read in. After an Invalidate that key is
// never read again and expires through its TTL.
func (c *GrantCache) Put(ctx context.Context, epoch int64, roleID int64, resource authz.Resource, set authz.CapabilitySet) {
	raw, err := json.Marshal(set)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key(epoch, roleID, resource), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "grant cache write failed", "error", err, "role_id", roleID, "resource", resource)
	}
}

func (c *GrantCache) Invalidate(ctx context.Context) error {
	gen, err := c.client.Incr(ctx, generationKey).Result()
	if err != nil {
		return fmt.Errorf("bump grant cache generation: %w", err)
	}
	c.logger.InfoContext(ctx, "grant cache invalidated", "generation", gen)
	return nil
}

func (c *GrantCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func key(gen, roleID int64, resource authz.Resource) string {
	return fmt.Sprintf("authz:grants:%d:%d:%s", gen, roleID, resource)
}

// NewClient opens a client and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return client, nil
}
