package quotecache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"swapRouter/internal/model"
)

// DefaultTTL is how long a cached quote counts as fresh.
const DefaultTTL = 60 * time.Second

// Freshness classifies a cache lookup.
type Freshness int

const (
	Miss Freshness = iota
	Fresh
	// Stale entries are still served while a refresh runs in the
	// background; on-chain prices drift, they do not invalidate.
	Stale
)

// Entry is one cached quote. Detail is nil until the route detail is
// attached; the quote is usable for display before then.
type Entry struct {
	Quote     model.Quote
	Detail    *model.RouteDetail
	Timestamp time.Time
}

// Key builds the cache key for a quote request. Token addresses are
// normalized so checksummed and lowercase forms hit the same entry.
func Key(tokenIn, tokenOut, amountIn string) string {
	return fmt.Sprintf("%s|%s|%s",
		model.NormalizeAddress(tokenIn),
		model.NormalizeAddress(tokenOut),
		strings.TrimSpace(amountIn),
	)
}

// Cache holds quotes keyed by (tokenIn, tokenOut, amountIn) with a
// freshness TTL. Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
}

// NewCache builds a Cache. ttl <= 0 selects DefaultTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]Entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the entry for key and its freshness. A Stale result still
// carries the entry; callers serve it and refresh in the background.
func (c *Cache) Get(key string) (Entry, Freshness) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return Entry{}, Miss
	}
	if c.now().Sub(entry.Timestamp) <= c.ttl {
		return entry, Fresh
	}
	return entry, Stale
}

// Set stores a quote under key, resetting its freshness window. Any
// previously attached route detail is dropped: detail always describes the
// quote it was computed with.
func (c *Cache) Set(key string, quote model.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry{Quote: quote, Timestamp: c.now()}
}

// AttachRouteDetail adds execution-grade route detail to an existing entry.
// A miss is a no-op: the quote was superseded or evicted while the detail
// was being computed.
func (c *Cache) AttachRouteDetail(key string, detail model.RouteDetail) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return
	}
	entry.Detail = &detail
	c.entries[key] = entry
}

// Delete removes an entry.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of cached entries, fresh or stale.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
