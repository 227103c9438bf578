// Package match runs the customer-matching pass: one global cascade of lookup
// strategies over a complete deduplicated batch, against one consistent view
// of the customer directory.
package match

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sells-group/donation-cli/internal/model"
)

// Searcher resolves a lookup string to zero or more directory candidates.
type Searcher interface {
	Search(ctx context.Context, query string) ([]model.DirectoryEntry, error)
}

// DirectoryCache is a time-bounded cache of directory search results keyed by
// lowercased lookup string. Writers hold a per-key lock so concurrent lookups
// of the same key fetch once; distinct keys proceed fully in parallel.
// Entries are evicted on expiry, not invalidated eagerly.
type DirectoryCache struct {
	searcher Searcher
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	mu      sync.Mutex
	fetched bool
	expires time.Time
	results []model.DirectoryEntry
}

// DefaultTTL bounds how long a resolved directory entry may serve nearby
// batches before a fresh search is required.
const DefaultTTL = 5 * time.Minute

// NewDirectoryCache creates a cache over the given searcher. A non-positive
// ttl falls back to DefaultTTL.
func NewDirectoryCache(searcher Searcher, ttl time.Duration) *DirectoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DirectoryCache{
		searcher: searcher,
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[string]*cacheEntry),
	}
}

// WithNow sets the clock used for expiry checks. For tests.
func (c *DirectoryCache) WithNow(now func() time.Time) *DirectoryCache {
	c.now = now
	return c
}

// Resolve returns the cached candidates for query, fetching through the
// searcher on a miss or after expiry. Failed fetches are not cached.
func (c *DirectoryCache) Resolve(ctx context.Context, query string) ([]model.DirectoryEntry, error) {
	key := CacheKey(query)

	c.mu.Lock()
	ent, ok := c.entries[key]
	if !ok {
		ent = &cacheEntry{}
		c.entries[key] = ent
	}
	c.mu.Unlock()

	ent.mu.Lock()
	defer ent.mu.Unlock()

	if ent.fetched && c.now().Before(ent.expires) {
		return append([]model.DirectoryEntry(nil), ent.results...), nil
	}

	results, err := c.searcher.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	ent.fetched = true
	ent.expires = c.now().Add(c.ttl)
	ent.results = results
	return append([]model.DirectoryEntry(nil), results...), nil
}

// CacheKey is the canonical cache key for a lookup string.
func CacheKey(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}
