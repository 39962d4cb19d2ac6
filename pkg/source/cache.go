package source

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/chazu/lineage/pkg/graph"
)

// DefaultCacheEntries bounds the number of indexes kept by NewCache
const DefaultCacheEntries = 32

// Cache holds built indexes keyed by content digest. Once full, the least
// recently used index is dropped. Safe for concurrent use.
type Cache struct {
	entries *lru.Cache
}

// NewCache creates a cache holding up to maxEntries indexes
func NewCache(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	// only fails for a non-positive size
	entries, _ := lru.NewWithEvict(maxEntries, func(_, _ interface{}) {
		RecordCacheEviction()
	})
	return &Cache{entries: entries}
}

// Get returns the index cached under key
func (c *Cache) Get(key string) (*graph.Index, bool) {
	value, found := c.entries.Get(key)
	if !found {
		RecordCacheMiss()
		return nil, false
	}
	RecordCacheHit()
	return value.(*graph.Index), true
}

// Set caches idx under key, dropping the least recently used index if the
// cache is full
func (c *Cache) Set(key string, idx *graph.Index) {
	c.entries.Add(key, idx)
	UpdateCacheEntries(c.entries.Len())
}

// Clear drops every cached index
func (c *Cache) Clear() {
	c.entries.Purge()
	UpdateCacheEntries(0)
}

// Size returns the number of cached indexes
func (c *Cache) Size() int {
	return c.entries.Len()
}
