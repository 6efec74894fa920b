package cache

import (
	"sync"
	"time"
)

// sweepThreshold is the size at which Set drops expired entries
const sweepThreshold = 512

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is an in-memory map whose entries expire after a fixed TTL
type Cache[V any] struct {
	mu    sync.RWMutex
	items map[string]entry[V]
	ttl   time.Duration
	now   func() time.Time
}

// New creates a cache whose entries live for ttl
func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{items: map[string]entry[V]{}, ttl: ttl, now: time.Now}
}

// Set stores value under key, replacing any previous entry
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if len(c.items) >= sweepThreshold {
		for k, e := range c.items {
			if !now.Before(e.expiresAt) {
				delete(c.items, k)
			}
		}
	}
	c.items[key] = entry[V]{value: value, expiresAt: now.Add(c.ttl)}
}

// Get returns the value for key if present and not expired
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[key]
	if !ok || !c.now().Before(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Delete removes key
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len counts stored entries, expired ones included until they are swept
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
