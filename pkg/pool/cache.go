package pool

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"heliox-hq/charon/pkg/pool/storage"
)

// activeCache holds the ordered snapshot of active credentials so every
// allocation does not hit SQLite. Entries expire after a short TTL;
// concurrent refreshes collapse into one query via singleflight.
type activeCache struct {
	store storage.Store
	ttl   time.Duration

	mu        sync.RWMutex
	records   []*storage.Record
	fetchedAt time.Time

	group singleflight.Group
}

func newActiveCache(store storage.Store, ttl time.Duration) *activeCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &activeCache{store: store, ttl: ttl}
}

// snapshot returns the cached active list, refreshing if the TTL lapsed
// or force is set.
func (c *activeCache) snapshot(ctx context.Context, force bool) ([]*storage.Record, error) {
	c.mu.RLock()
	fresh := !force && time.Since(c.fetchedAt) < c.ttl && c.records != nil
	records := c.records
	c.mu.RUnlock()

	if fresh {
		return records, nil
	}

	v, err, _ := c.group.Do("active", func() (any, error) {
		recs, err := c.store.ListActive(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.records = recs
		c.fetchedAt = time.Now()
		c.mu.Unlock()
		return recs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*storage.Record), nil
}

// invalidate drops the snapshot so the next read refetches.
func (c *activeCache) invalidate() {
	c.mu.Lock()
	c.records = nil
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}

// age returns how old the current snapshot is, or -1 with no snapshot.
func (c *activeCache) age() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.fetchedAt.IsZero() {
		return -1
	}
	return time.Since(c.fetchedAt)
}
