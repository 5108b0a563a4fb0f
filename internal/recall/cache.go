package recall

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/quantdesk/recall/internal/models"
)

// Cache defaults.
const (
	DefaultCacheSize = 100
	DefaultCacheTTL  = 5 * time.Minute
)

// QueryCache holds recent recall snapshots. Entries expire after the TTL
// and the least recently used entry is evicted once the cache is full.
// Safe for concurrent use; a nil *QueryCache behaves as a permanent miss.
type QueryCache struct {
	lru *expirable.LRU[string, *models.RecallResult]
}

func NewQueryCache(size int, ttl time.Duration) *QueryCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &QueryCache{
		lru: expirable.NewLRU[string, *models.RecallResult](size, nil, ttl),
	}
}

// cacheKey derives the lookup key from the normalized query text plus every
// option that changes the result set.
func cacheKey(query, workspaceID string, opts models.RecallOptions) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))

	parts := []string{
		normalized,
		workspaceID,
		strconv.Itoa(opts.Limit),
		fmt.Sprintf("%.4f", opts.MinImportance),
	}
	if len(opts.Categories) > 0 {
		cats := append([]string(nil), opts.Categories...)
		sort.Strings(cats)
		parts = append(parts, "c:"+strings.Join(cats, ","))
	}
	if len(opts.Symbols) > 0 {
		syms := append([]string(nil), opts.Symbols...)
		sort.Strings(syms)
		parts = append(parts, "s:"+strings.Join(syms, ","))
	}

	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("%x", h[:16])
}

// Get returns the cached snapshot for a key, or nil on a miss.
func (c *QueryCache) Get(key string) *models.RecallResult {
	if c == nil {
		return nil
	}
	res, ok := c.lru.Get(key)
	if !ok {
		return nil
	}
	return res
}

// Set stores a snapshot, evicting the least recently used entry when full.
func (c *QueryCache) Set(key string, res *models.RecallResult) {
	if c == nil {
		return
	}
	c.lru.Add(key, res)
}

// Size returns the number of live entries.
func (c *QueryCache) Size() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

// Clear drops every entry.
func (c *QueryCache) Clear() {
	if c == nil {
		return
	}
	c.lru.Purge()
}
