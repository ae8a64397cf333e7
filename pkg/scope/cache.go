package scope

import (
	"sync"
	"time"
)

// cache is a small in-memory map with per-entry expiry. A positive limit
// bounds the number of entries.
type cache[V any] struct {
	mu    sync.Mutex
	items map[string]cacheItem[V]
	limit int
	now   func() time.Time
}

type cacheItem[V any] struct {
	value      V
	expiration time.Time
}

func newCache[V any](limit int) *cache[V] {
	return &cache[V]{items: make(map[string]cacheItem[V]), limit: limit, now: time.Now}
}

// Set stores value for ttl. When the cache is full, expired entries are
// swept first and then the entry closest to expiry is evicted.
func (c *cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if _, ok := c.items[key]; !ok && c.limit > 0 && len(c.items) >= c.limit {
		c.removeExpired(now)
		if len(c.items) >= c.limit {
			c.evictOldest()
		}
	}
	c.items[key] = cacheItem[V]{value: value, expiration: now.Add(ttl)}
}

// Get returns the live entry for key. Expired entries are dropped.
func (c *cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, found := c.items[key]
	if !found {
		var zero V
		return zero, false
	}
	if c.now().After(item.expiration) {
		delete(c.items, key)
		var zero V
		return zero, false
	}
	return item.value, true
}

// CleanupExpired removes every expired entry.
func (c *cache[V]) CleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeExpired(c.now())
}

func (c *cache[V]) removeExpired(now time.Time) {
	for key, item := range c.items {
		if now.After(item.expiration) {
			delete(c.items, key)
		}
	}
}

func (c *cache[V]) evictOldest() {
	var (
		oldest string
		at     time.Time
	)
	for key, item := range c.items {
		if at.IsZero() || item.expiration.Before(at) {
			oldest, at = key, item.expiration
		}
	}
	delete(c.items, oldest)
}

func (c *cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
