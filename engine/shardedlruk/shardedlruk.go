// Package shardedlruk partitions the key space statically across N
// independent LRU-K engines to reduce lock contention. There is no
// cross-shard coordination and no rebalance on shard imbalance: a poor
// hash function yields uneven shard utilization, by design.
package shardedlruk

import (
	"github.com/meshcache/meshcache/engine/lruk"
	"github.com/segmentio/fasthash/fnv1a"
)

// Cache is a statically sharded LRU-K engine keyed by string (sharding
// requires hashing the key, so unlike the generic engines above this one
// is specialized to string keys — the same choice the ring and peer
// picker make for routing keys).
type Cache[V any] struct {
	shards []*lruk.Cache[string, V]
}

// New creates shardCount independent LRU-K shards. The hot capacity of
// each shard is totalCap/shardCount (at least 1), so that under an even
// hash the hot tiers together hold about totalCap entries; the cold
// capacity is coldCapPerShard for every shard, not divided.
func New[V any](totalCap, shardCount, coldCapPerShard, k int) *Cache[V] {
	if shardCount < 1 {
		shardCount = 1
	}
	perShard := totalCap / shardCount
	if perShard < 1 {
		perShard = 1
	}
	shards := make([]*lruk.Cache[string, V], shardCount)
	for i := range shards {
		shards[i] = lruk.New[string, V](perShard, coldCapPerShard, k)
	}
	return &Cache[V]{shards: shards}
}

func (c *Cache[V]) shardFor(key string) *lruk.Cache[string, V] {
	h := fnv1a.HashString64(key)
	idx := int(h % uint64(len(c.shards)))
	return c.shards[idx]
}

func (c *Cache[V]) Get(key string) (V, bool)  { return c.shardFor(key).Get(key) }
func (c *Cache[V]) Put(key string, value V)   { c.shardFor(key).Put(key, value) }
func (c *Cache[V]) Remove(key string)         { c.shardFor(key).Remove(key) }
func (c *Cache[V]) Contains(key string) bool  { return c.shardFor(key).Contains(key) }

// Len returns the aggregate live entry count across every shard.
func (c *Cache[V]) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.Len()
	}
	return total
}

// ShardCount returns the number of shards, mostly useful for tests that
// want to assert distribution.
func (c *Cache[V]) ShardCount() int { return len(c.shards) }
