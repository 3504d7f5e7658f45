// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

// Cache memoizes resolutions for the lifetime of one run, keyed by the exact
// trimmed address. Not-found outcomes are cached too, so every key reaches
// the providers at most once. It is not safe for concurrent use; each run
// owns its own.
type Cache struct {
	entries map[string]Resolution
	hits    int
	misses  int
}

// CacheStats summarizes cache usage.
type CacheStats struct {
	Entries int
	Hits    int
	Misses  int
}

// NewCache creates an empty run cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]Resolution)}
}

// Get returns the cached resolution for key.
func (c *Cache) Get(key string) (Resolution, bool) {
	r, ok := c.entries[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}

	return r, ok
}

// Put stores a resolution.
func (c *Cache) Put(key string, r Resolution) {
	c.entries[key] = r
}

// Len returns the number of cached keys.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Stats returns the usage counters.
func (c *Cache) Stats() CacheStats {
	return CacheStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}
