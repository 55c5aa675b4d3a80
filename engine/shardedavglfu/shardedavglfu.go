// Package shardedavglfu statically partitions the key space across N
// independent AvgLFU engines, mirroring shardedlruk's routing shape.
package shardedavglfu

import (
	"github.com/meshcache/meshcache/engine/avglfu"
	"github.com/segmentio/fasthash/fnv1a"
)

// Cache is a statically sharded AvgLFU engine keyed by string.
type Cache[V any] struct {
	shards []*avglfu.Cache[string, V]
}

// New creates shardCount independent AvgLFU shards, each with capacity
// totalCap/shardCount and maximum average frequency m.
func New[V any](totalCap, shardCount, m int) *Cache[V] {
	if shardCount < 1 {
		shardCount = 1
	}
	perShard := totalCap / shardCount
	if perShard < 1 {
		perShard = 1
	}
	shards := make([]*avglfu.Cache[string, V], shardCount)
	for i := range shards {
		shards[i] = avglfu.New[string, V](perShard, m)
	}
	return &Cache[V]{shards: shards}
}

func (c *Cache[V]) shardFor(key string) *avglfu.Cache[string, V] {
	h := fnv1a.HashString64(key)
	idx := int(h % uint64(len(c.shards)))
	return c.shards[idx]
}

func (c *Cache[V]) Get(key string) (V, bool) { return c.shardFor(key).Get(key) }
func (c *Cache[V]) Put(key string, value V)  { c.shardFor(key).Put(key, value) }
func (c *Cache[V]) Remove(key string)        { c.shardFor(key).Remove(key) }
func (c *Cache[V]) Contains(key string) bool { return c.shardFor(key).Contains(key) }

// Len returns the aggregate live entry count across every shard.
func (c *Cache[V]) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.Len()
	}
	return total
}

// ShardCount returns the number of shards.
func (c *Cache[V]) ShardCount() int { return len(c.shards) }
