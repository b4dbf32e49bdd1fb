// Package cache holds the process-local result cache for /search. The cache
// is a mutex-guarded ordered map: O(1) lookup, insert and LRU eviction, with
// lazy TTL expiry on access.
package cache

import (
	"container/list"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wikivec/wikivec/internal/metrics"
	"github.com/wikivec/wikivec/internal/models"
)

// ResultCache maps query keys to search results. Safe for concurrent use.
type ResultCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	ll       *list.List               // front = most recently used
	items    map[uint64]*list.Element // key -> element

	nowFn func() time.Time // injectable clock for TTL tests
}

type entry struct {
	key       uint64
	matches   []models.SearchMatch
	expiresAt time.Time
}

// New builds a cache with the given capacity and TTL, both required
// positive.
func New(capacity int, ttl time.Duration) (*ResultCache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache: capacity must be positive, got %d", capacity)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cache: ttl must be positive, got %v", ttl)
	}
	return &ResultCache{
		capacity: capacity,
		ttl:      ttl,
		ll:       list.New(),
		items:    make(map[uint64]*list.Element, capacity),
		nowFn:    time.Now,
	}, nil
}

// MakeKey derives the cache key for a query. The query is trimmed and
// lower-cased so equivalent spellings share an entry; k is part of the key
// because different neighbor counts produce different result sets.
func MakeKey(query string, k int) uint64 {
	normalized := strings.ToLower(strings.TrimSpace(query))
	h := fnv.New64a()
	h.Write([]byte(normalized))
	h.Write([]byte("|"))
	h.Write([]byte(strconv.Itoa(k)))
	return h.Sum64()
}

// Get returns the cached results for key. Entries past their TTL are
// removed and reported as misses.
func (c *ResultCache) Get(key uint64) ([]models.SearchMatch, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		metrics.ResultCacheMisses.Inc()
		return nil, false
	}

	ent := el.Value.(*entry)
	if !ent.expiresAt.After(c.nowFn()) {
		c.removeLocked(el, "ttl")
		metrics.ResultCacheMisses.Inc()
		return nil, false
	}

	c.ll.MoveToFront(el)
	metrics.ResultCacheHits.Inc()
	return ent.matches, true
}

// Put stores results under key, refreshing recency and TTL. When a new key
// arrives at capacity the least-recently-used entry is evicted. A raw key
// collision overwrites: the later write wins.
func (c *ResultCache) Put(key uint64, matches []models.SearchMatch) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.nowFn().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		ent := el.Value.(*entry)
		ent.matches = matches
		ent.expiresAt = expires
		c.ll.MoveToFront(el)
		return
	}

	if c.ll.Len() >= c.capacity {
		if back := c.ll.Back(); back != nil {
			c.removeLocked(back, "capacity")
		}
	}

	el := c.ll.PushFront(&entry{key: key, matches: matches, expiresAt: expires})
	c.items[key] = el
	metrics.ResultCacheEntries.Set(float64(c.ll.Len()))
}

// Len reports the number of entries currently held, including any not yet
// lazily expired.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *ResultCache) removeLocked(el *list.Element, reason string) {
	ent := el.Value.(*entry)
	delete(c.items, ent.key)
	c.ll.Remove(el)
	metrics.ResultCacheEvictions.WithLabelValues(reason).Inc()
	metrics.ResultCacheEntries.Set(float64(c.ll.Len()))
}
