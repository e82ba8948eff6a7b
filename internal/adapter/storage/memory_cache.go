package storage

import (
	"context"
	"sync"
	"time"
)

type cacheItem struct {
	value     string
	expiresAt time.Time
}

// MemoryCache is a process-local CacheRepository with per-key expiry.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]cacheItem
	now   func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]cacheItem), now: time.Now}
}

// WithClock replaces the time source, for tests that need to step past a TTL.
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	c.now = now
	return c
}

func (c *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = cacheItem{value: value, expiresAt: c.expiry(ttl)}
	return nil
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	item, ok := c.lookup(key)
	return item.value, ok, nil
}

func (c *MemoryCache) HasKey(_ context.Context, key string) (bool, error) {
	_, ok := c.lookup(key)
	return ok, nil
}

func (c *MemoryCache) SetIfAbsent(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if item, ok := c.items[key]; ok && !c.expired(item) {
		return false, nil
	}
	c.items[key] = cacheItem{value: value, expiresAt: c.expiry(ttl)}
	return true, nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

func (c *MemoryCache) lookup(key string) (cacheItem, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return cacheItem{}, false
	}
	if c.expired(item) {
		c.mu.Lock()
		if cur, ok := c.items[key]; ok && c.expired(cur) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return cacheItem{}, false
	}
	return item, true
}

// A zero ttl never expires.
func (c *MemoryCache) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(ttl)
}

func (c *MemoryCache) expired(item cacheItem) bool {
	return !item.expiresAt.IsZero() && !c.now().Before(item.expiresAt)
}
