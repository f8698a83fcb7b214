package cache

import (
	"sync"
	"time"
)

const defaultMaxLocalEntries = 10000

type localEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is the in-process tier: a map with wall-clock expiry
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]localEntry
	maxEntries int
	now        func() time.Time
}

// NewMemoryCache creates an empty in-process cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries:    make(map[string]localEntry),
		maxEntries: defaultMaxLocalEntries,
		now:        time.Now,
	}
}

// Get returns the value for key if present and not expired
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		// re-check: a concurrent Set may have refreshed the entry
		if current, still := c.entries[key]; still && !c.now().Before(current.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

// Set stores value under key for ttl
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.purgeExpiredLocked()
		if len(c.entries) >= c.maxEntries {
			c.entries = make(map[string]localEntry)
		}
	}
	c.entries[key] = localEntry{value: value, expiresAt: c.now().Add(ttl)}
}

// Clear drops every entry
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]localEntry)
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) purgeExpiredLocked() {
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}
