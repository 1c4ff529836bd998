package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"chanrag/internal/domain"
)

// QueryCache memoizes result sets per (question, topK, filters). Entries
// expire by TTL and are invalidated wholesale when the index generation
// moves, so a cached result never outlives the index state it was computed
// from.
type QueryCache struct {
	mu       sync.RWMutex
	entries  map[string]*cacheEntry
	order    []string
	maxSize  int
	ttl      time.Duration
	indexGen uint64
}

type cacheEntry struct {
	results   []domain.Retrieved
	timestamp time.Time
	indexGen  uint64
}

// NewQueryCache creates a cache with the given capacity and TTL.
func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func cacheKey(question string, topK int, filters domain.Filters) string {
	var b strings.Builder
	b.WriteString(question)
	fmt.Fprintf(&b, "|k=%d", topK)
	fmt.Fprintf(&b, "|e=%s", strings.Join(filters.Entities, ","))
	fmt.Fprintf(&b, "|v=%s", strings.Join(filters.VideoIDs, ","))
	if !filters.After.IsZero() {
		fmt.Fprintf(&b, "|a=%d", filters.After.Unix())
	}
	if !filters.Before.IsZero() {
		fmt.Fprintf(&b, "|b=%d", filters.Before.Unix())
	}
	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:16])
}

// Get returns the cached result set for the query, if fresh.
func (c *QueryCache) Get(question string, topK int, filters domain.Filters, gen uint64) ([]domain.Retrieved, bool) {
	c.mu.RLock()
	entry, exists := c.entries[cacheKey(question, topK, filters)]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}
	if entry.indexGen != gen {
		return nil, false
	}
	if time.Since(entry.timestamp) > c.ttl {
		return nil, false
	}
	return entry.results, true
}

// Put stores a result set computed at the given index generation.
func (c *QueryCache) Put(question string, topK int, filters domain.Filters, gen uint64, results []domain.Retrieved) {
	key := cacheKey(question, topK, filters)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		if len(c.order) >= c.maxSize {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = &cacheEntry{
		results:   results,
		timestamp: time.Now(),
		indexGen:  gen,
	}
}
