// Package engine defines the common contract every single-node eviction
// engine (LRU, LRU-K, LFU, AvgLFU, their sharded variants, and ARC) in this
// module satisfies, so the cache group in package group can swap engines
// without caring about their internals.
package engine

// Cache is the minimal surface a cache group needs from a local engine.
// All of LRU, LRU-K, LFU, AvgLFU and ARC implement it for comparable keys
// and any value type; the caller constructs the concrete engine and hands
// it to group.Registry.GetOrCreate.
type Cache[K comparable, V any] interface {
	Get(key K) (value V, ok bool)
	Put(key K, value V)
	Remove(key K)
	Contains(key K) bool
	Len() int
}
