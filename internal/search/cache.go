package search

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultCacheCapacity bounds the result cache when no capacity is
// configured.
const DefaultCacheCapacity = 1000

// ResultCache is a bounded LRU cache of fused rankings keyed by the full
// request shape. Entries do not expire by default; the index is assumed to
// change only through out-of-band reindexing. A TTL can be set for
// deployments that reindex frequently. Safe for concurrent use.
type ResultCache struct {
	lru *expirable.LRU[string, FusedResult]
}

// NewResultCache creates a cache holding up to capacity entries.
// capacity <= 0 falls back to DefaultCacheCapacity. ttl 0 disables
// time-based expiry.
func NewResultCache(capacity int, ttl time.Duration) *ResultCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &ResultCache{
		lru: expirable.NewLRU[string, FusedResult](capacity, nil, ttl),
	}
}

// CacheKey derives the cache key for a request. Two requests differing in
// normalized text, strategy set, fusion mode, effective weights, or limit
// occupy distinct entries. Strategy and weight order do not matter.
func CacheKey(queryText string, strategies []Strategy, mode FusionMode, weights Weights, limit int) string {
	names := make([]string, 0, len(strategies))
	for _, s := range strategies {
		names = append(names, string(s))
	}
	sort.Strings(names)

	wparts := make([]string, 0, len(weights))
	for s, w := range weights {
		wparts = append(wparts, string(s)+"="+strconv.FormatFloat(w, 'g', -1, 64))
	}
	sort.Strings(wparts)

	h := sha256.New()
	h.Write([]byte(normalizeQueryText(queryText)))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(names, ",")))
	h.Write([]byte{0})
	h.Write([]byte(mode))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(wparts, ",")))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(limit)))
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeQueryText lowercases and collapses whitespace so trivially
// different spellings of the same query share an entry.
func normalizeQueryText(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// Get returns the cached ranking for key, if present and unexpired.
func (c *ResultCache) Get(key string) (FusedResult, bool) {
	return c.lru.Get(key)
}

// Put stores a ranking under key, evicting the least recently used entry
// when at capacity.
func (c *ResultCache) Put(key string, value FusedResult) {
	c.lru.Add(key, value)
}

// Flush drops every entry. Called after an index snapshot reload so stale
// rankings are never served against new data.
func (c *ResultCache) Flush() {
	c.lru.Purge()
}

// Len returns the current number of cached entries.
func (c *ResultCache) Len() int {
	return c.lru.Len()
}
