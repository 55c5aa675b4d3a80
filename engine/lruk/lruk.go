// Package lruk implements the two-tier LRU-K engine: a cold tier that
// counts admission accesses and a hot tier holding promoted entries.
package lruk

import (
	"sync"

	"github.com/meshcache/meshcache/engine/lru"
)

// Cache is the LRU-K engine. K is the number of cold accesses (gets or
// write-updates) required before an entry is promoted into the hot tier.
type Cache[K comparable, V any] struct {
	mu   sync.Mutex
	hot  *lru.Cache[K, V]
	cold *lru.Cache[K, V]
	k    int
}

// New creates an LRU-K engine with hot capacity mainCap, cold capacity
// coldCap, and promotion threshold k. k must be >= 1.
func New[K comparable, V any](mainCap, coldCap, k int) *Cache[K, V] {
	if k < 1 {
		k = 1
	}
	return &Cache[K, V]{
		hot:  lru.New[K, V](mainCap),
		cold: lru.New[K, V](coldCap),
		k:    k,
	}
}

// Get returns the value for key, promoting it from cold to hot once the
// cold-access count reaches K. Promotion on Get does not bump the
// promoted entry's frequency further; the just-crossed access already
// satisfied the threshold.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.hot.Get(key); ok {
		return v, true
	}

	v, ok := c.cold.Get(key)
	if !ok {
		var zero V
		return zero, false
	}

	f, _ := c.cold.GetFreq(key)
	if f >= c.k {
		c.cold.Remove(key)
		c.hot.Put(key, v)
		return v, true
	}

	c.cold.SetFreq(key, f+1)
	return v, true
}

// Put inserts or updates key. Writes count toward promotion exactly like
// reads: a write to a cold entry bumps its cold-hit count, and once that
// count reaches K the entry moves to hot.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hot.Contains(key) {
		c.hot.Put(key, value)
		return
	}

	f, coldOK := c.cold.GetFreq(key)
	if coldOK && f >= c.k {
		c.cold.Remove(key)
		c.hot.Put(key, value)
		return
	}

	c.cold.Put(key, value)
	newFreq := f + 1
	if newFreq < 1 {
		newFreq = 1
	}
	c.cold.SetFreq(key, newFreq)
}

// Remove deletes key from whichever tier holds it.
func (c *Cache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hot.Remove(key)
	c.cold.Remove(key)
}

// Contains reports presence in either tier without side effects.
func (c *Cache[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hot.Contains(key) || c.cold.Contains(key)
}

// Len returns the combined live entry count across both tiers.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hot.Len() + c.cold.Len()
}
