package sync

import (
	"log"
	"strings"
	gosync "sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// MetadataCache is a read-through cache for CRM schema metadata.
// Entries are filled lazily, at most once per key even under concurrent first access,
// and live until the TTL elapses (a zero TTL means they never expire) or an
// operator invalidates them. Failed fills are not cached.
type MetadataCache struct {
	ttl time.Duration
	now func() time.Time

	mu      gosync.RWMutex
	entries map[string]metadataCacheEntry
	group   singleflight.Group
}

type metadataCacheEntry struct {
	value    interface{}
	storedAt time.Time
}

// NewMetadataCache creates an empty cache whose entries expire after ttl.
func NewMetadataCache(ttl time.Duration) *MetadataCache {
	return &MetadataCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]metadataCacheEntry),
	}
}

func (c *MetadataCache) lookup(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(e.storedAt) >= c.ttl {
		return nil, false
	}
	return e.value, true
}

func (c *MetadataCache) store(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = metadataCacheEntry{value: value, storedAt: c.now()}
}

// GetOrFill returns the cached value for key, calling fill to populate it on a miss.
// Concurrent callers missing the same key share a single fill.
func (c *MetadataCache) GetOrFill(key string, fill func() (interface{}, error)) (interface{}, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// another caller may have stored it while we waited on the group
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		v, err := fill()
		if err != nil {
			return nil, err
		}
		c.store(key, v)
		return v, nil
	})
	return v, err
}

// Set stores a value directly, replacing any existing entry.
func (c *MetadataCache) Set(key string, value interface{}) {
	c.store(key, value)
}

// Invalidate drops every entry whose key starts with prefix and returns how many were dropped.
func (c *MetadataCache) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			n++
		}
	}
	log.Printf("metadata cache: invalidated %d entries with prefix %q", n, prefix)
	return n
}

// InvalidateAll empties the cache.
func (c *MetadataCache) InvalidateAll() int {
	return c.Invalidate("")
}

// Len returns the number of stored entries, including expired ones not yet replaced.
func (c *MetadataCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// cached is a typed wrapper around GetOrFill.
func cached[T any](c *MetadataCache, key string, fill func() (T, error)) (T, error) {
	v, err := c.GetOrFill(key, func() (interface{}, error) {
		return fill()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
