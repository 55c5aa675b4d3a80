// Package avglfu layers an averaging-frequency controller on top of an
// LFU engine: it tracks the mean frequency of live entries and, once that
// mean exceeds a configured ceiling, decays every entry's frequency so
// long-hot-now-cold entries stop resisting eviction.
//
// Composition, not virtual dispatch: this package holds an *lfu.Cache and
// supplies its Hooks, per the composition-over-inheritance Design Note in
// spec.md §9.
package avglfu

import (
	"sync"

	"github.com/meshcache/meshcache/engine/lfu"
)

// Cache is the AvgLFU engine.
type Cache[K comparable, V any] struct {
	inner *lfu.Cache[K, V]
	m     int // maximum average frequency
}

// New creates an AvgLFU engine of the given capacity with maximum average
// frequency m. Decay runs automatically whenever a hit pushes the running
// average above m.
func New[K comparable, V any](capacity, m int) *Cache[K, V] {
	c := &Cache[K, V]{m: m}
	h := &hooks[K, V]{owner: c}
	c.inner = lfu.NewWithHooks[K, V](capacity, h)
	return c
}

// hooks adapts lfu.Hooks to call back into the typed Cache, avoiding the
// any/any erasure controller would otherwise require.
type hooks[K comparable, V any] struct {
	owner *Cache[K, V]
	mu    sync.Mutex
	total int
}

func (h *hooks[K, V]) OnHit() {
	h.mu.Lock()
	h.total++
	size := h.owner.inner.SizeLocked()
	avg := 0.0
	if size > 0 {
		avg = float64(h.total) / float64(size)
	}
	exceeded := avg > float64(h.owner.m)
	h.mu.Unlock()

	if exceeded {
		h.decay()
	}
}

func (h *hooks[K, V]) OnEvict(freq int) {
	h.mu.Lock()
	h.total -= freq
	if h.total < 0 {
		h.total = 0
	}
	h.mu.Unlock()
}

// decay reduces every live entry's frequency by m (floored at 1) and
// recomputes the running total. Called from OnHit with the inner engine
// already locked by the Get call that fired it (OnHit runs inside
// lfu.Cache's own critical section), so it uses RelocateAll directly
// rather than WithLock to avoid re-entering the same mutex.
func (h *hooks[K, V]) decay() {
	h.mu.Lock()
	defer h.mu.Unlock()
	newTotal := 0
	h.owner.inner.RelocateAll(func(_ K, freq int) int {
		nf := freq - h.owner.m
		if nf < 1 {
			nf = 1
		}
		newTotal += nf
		return nf
	})
	h.total = newTotal
}

// Get bumps key's frequency, runs decay if the average now exceeds M, and
// returns the value.
func (c *Cache[K, V]) Get(key K) (V, bool) { return c.inner.Get(key) }

// Put inserts or updates key, exactly as the underlying LFU engine does.
func (c *Cache[K, V]) Put(key K, value V) { c.inner.Put(key, value) }

// Remove deletes key if present.
func (c *Cache[K, V]) Remove(key K) { c.inner.Remove(key) }

// Contains reports presence without affecting frequency.
func (c *Cache[K, V]) Contains(key K) bool { return c.inner.Contains(key) }

// Len returns the number of live entries.
func (c *Cache[K, V]) Len() int { return c.inner.Len() }

// MinFreq exposes the inner engine's minFreq, "none" when empty.
func (c *Cache[K, V]) MinFreq() (int, bool) { return c.inner.MinFreq() }

// TotalFreq returns T, the sum of frequencies over all live entries.
func (c *Cache[K, V]) TotalFreq() int {
	var total int
	c.inner.WithLock(func() {
		total = c.inner.TotalFreqLocked()
	})
	return total
}

// AverageFreq returns A = T / size, or 0 when empty.
func (c *Cache[K, V]) AverageFreq() float64 {
	var avg float64
	c.inner.WithLock(func() {
		size := c.inner.SizeLocked()
		if size > 0 {
			avg = float64(c.inner.TotalFreqLocked()) / float64(size)
		}
	})
	return avg
}
