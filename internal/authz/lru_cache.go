package authz

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// LRUCache is an in-process GrantCache for single-instance deployments.
type LRUCache struct {
	mu      sync.Mutex
	epoch   int64
	entries *lru.Cache
	ttl     time.Duration
	now     func() time.Time
}

type lruEntry struct {
	set     CapabilitySet
	expires time.Time
}

func NewLRUCache(size int, ttl time.Duration) (*LRUCache, error) {
	if size <= 0 {
		size = 1024
	}
	entries, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create grant cache: %w", err)
	}
	return &LRUCache{entries: entries, ttl: ttl, now: time.Now}, nil
}

func (c *LRUCache) Epoch(context.Context) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch, true
}

func (c *LRUCache) Get(_ context.Context, roleID int64, resource Resource) (CapabilitySet, bool) {
	v, ok := c.entries.Get(lruKey(roleID, resource))
	if !ok {
		return CapabilitySet{}, false
	}
	entry := v.(lruEntry)
	if c.ttl > 0 && c.now().After(entry.expires) {
		c.entries.Remove(lruKey(roleID, resource))
		return CapabilitySet{}, false
	}
	return entry.set, true
}

// Put stores set unless an Invalidate happened after epoch was read.
func (c *LRUCache) Put(_ context.Context, epoch int64, roleID int64, resource Resource, set CapabilitySet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return
	}
	c.entries.Add(lruKey(roleID, resource), lruEntry{set: set, expires: c.now().Add(c.ttl)})
}

func (c *LRUCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.entries.Purge()
	return nil
}

func lruKey(roleID int64, resource Resource) string {
	return fmt.Sprintf("%d:%s", roleID, resource)
}
