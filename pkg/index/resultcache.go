package index

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/TheEntropyCollective/propindex/pkg/search"
)

// cacheEntry represents a cached result set with TTL
type cacheEntry struct {
	results   *search.ResultSet
	createdAt time.Time
	ttl       time.Duration
}

// isExpired checks if the cache entry has expired
func (e *cacheEntry) isExpired() bool {
	return time.Since(e.createdAt) > e.ttl
}

// ResultCache is an LRU cache with TTL for authorized result sets.
// Entries are keyed on the full request, the caller's token and the
// index generation, so a cached set can never leak across principals
// or survive an index mutation.
type ResultCache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	order      []string // LRU order (most recent at end)
	maxSize    int
	defaultTTL time.Duration
}

// NewResultCache creates a result cache holding at most maxSize entries.
func NewResultCache(maxSize int, defaultTTL time.Duration) *ResultCache {
	return &ResultCache{
		entries:    make(map[string]*cacheEntry),
		order:      make([]string, 0),
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
	}
}

// Get retrieves a cached result set
func (c *ResultCache) Get(key string) (*search.ResultSet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, false
	}

	if entry.isExpired() {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return nil, false
	}

	// Move to end (most recently used)
	c.moveToEnd(key)

	return entry.results, true
}

// Put stores a result set in the cache
func (c *ResultCache) Put(key string, results *search.ResultSet) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &cacheEntry{
		results:   results,
		createdAt: time.Now(),
		ttl:       c.defaultTTL,
	}

	if _, exists := c.entries[key]; exists {
		c.entries[key] = entry
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictLRU()
	}

	c.entries[key] = entry
	c.order = append(c.order, key)
}

// Clear removes all entries from the cache
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
}

// Size returns the current number of entries
func (c *ResultCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CleanExpired removes all expired entries
func (c *ResultCache) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if entry.isExpired() {
			delete(c.entries, key)
			c.removeFromOrder(key)
			removed++
		}
	}

	return removed
}

// moveToEnd moves key to end of order slice (most recently used)
func (c *ResultCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

// removeFromOrder removes key from order slice
func (c *ResultCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// evictLRU removes the least recently used entry
func (c *ResultCache) evictLRU() {
	if len(c.order) == 0 {
		return
	}
	lruKey := c.order[0]
	delete(c.entries, lruKey)
	c.order = c.order[1:]
}

// cacheKey derives a deterministic key from the request, the caller's
// token and the index generation. %#v rendering includes concrete node
// type names, so structurally different query trees never collide on
// an identical field layout.
func cacheKey(req search.Request, generation uint64) string {
	data := fmt.Sprintf("%d|%s|%#v", generation, req.Token, req)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
