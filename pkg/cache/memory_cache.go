// Package cache provides a small in-memory TTL cache used to avoid
// hammering upstream APIs (metric discovery, template listings).
package cache

import (
	"context"
	"sync"
	"time"
)

// CacheEntry is a single cached value with its expiration time.
type CacheEntry struct {
	Value      interface{}
	Expiration time.Time
}

// IsExpired reports whether the entry is past its expiration time.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expiration)
}

// Statistics holds cache hit/miss counters.
type Statistics struct {
	Entries   int     `json:"entries"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

// MemoryCache is a thread-safe in-memory cache with per-entry TTL.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]*CacheEntry
	defaultTTL time.Duration

	hits      int64
	misses    int64
	evictions int64

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMemoryCache creates a cache with the given default TTL and starts a
// background janitor that removes expired entries.
func NewMemoryCache(defaultTTL time.Duration) *MemoryCache {
	c := &MemoryCache{
		entries:    make(map[string]*CacheEntry),
		defaultTTL: defaultTTL,
		stopCh:     make(chan struct{}),
	}

	go c.janitor()

	return c
}

// Set stores a value with the default TTL.
func (c *MemoryCache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores a value with a custom TTL.
func (c *MemoryCache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &CacheEntry{
		Value:      value,
		Expiration: time.Now().Add(ttl),
	}
}

// Get returns the value for key if present and not expired.
func (c *MemoryCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}

	if entry.IsExpired() {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}

	c.hits++
	return entry.Value, true
}

// Delete removes a key from the cache.
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.evictions++
	}
}

// Clear removes all entries.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*CacheEntry)
}

// GetOrSet returns the cached value for key, computing and storing it with
// the default TTL on a miss. The compute function runs under no lock, so
// concurrent misses may compute more than once; last writer wins.
func (c *MemoryCache) GetOrSet(ctx context.Context, key string, compute func() (interface{}, error)) (interface{}, error) {
	return c.GetOrSetWithTTL(ctx, key, c.defaultTTL, compute)
}

// GetOrSetWithTTL is GetOrSet with a custom TTL.
func (c *MemoryCache) GetOrSetWithTTL(ctx context.Context, key string, ttl time.Duration, compute func() (interface{}, error)) (interface{}, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	value, err := compute()
	if err != nil {
		return nil, err
	}

	c.SetWithTTL(key, value, ttl)
	return value, nil
}

// GetStatistics returns a snapshot of the cache counters.
func (c *MemoryCache) GetStatistics() Statistics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Statistics{
		Entries:   len(c.entries),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}

	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}

	return stats
}

// ResetStatistics zeroes the counters without touching the entries.
func (c *MemoryCache) ResetStatistics() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hits = 0
	c.misses = 0
	c.evictions = 0
}

// Close stops the background janitor.
func (c *MemoryCache) Close() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

// janitor periodically drops expired entries so long-lived caches don't
// grow without bound between reads.
func (c *MemoryCache) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stopCh:
			return
		}
	}
}

func (c *MemoryCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if entry.IsExpired() {
			delete(c.entries, key)
			c.evictions++
		}
	}
}
