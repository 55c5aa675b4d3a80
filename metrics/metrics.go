// Package metrics exports cache and group counters to Prometheus.
//
// Grounded on IvanBrykalov-shardcache's metrics/prom.Adapter: the same
// hits/misses/evictions/size shape, registered the same way (an
// Registerer passed in, nil meaning prometheus.DefaultRegisterer), but
// wired to this module's engine.Cache contract and group.Stats instead
// of shardcache's cache.Metrics interface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/meshcache/meshcache/engine"
	"github.com/meshcache/meshcache/group"
)

// EngineRecorder holds the Prometheus series for one local engine.
type EngineRecorder struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	puts      prometheus.Counter
	removes   prometheus.Counter
	evictions prometheus.Counter
	size      prometheus.Gauge
}

// NewEngineRecorder registers hit/miss/put/remove counters and a size
// gauge under namespace "meshcache", subsystem "engine", labeled by
// group name. reg nil means prometheus.DefaultRegisterer.
func NewEngineRecorder(reg prometheus.Registerer, groupName string) *EngineRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	labels := prometheus.Labels{"group": groupName}
	r := &EngineRecorder{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meshcache", Subsystem: "engine", Name: "hits_total",
			Help: "Local engine hits", ConstLabels: labels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meshcache", Subsystem: "engine", Name: "misses_total",
			Help: "Local engine misses", ConstLabels: labels,
		}),
		puts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meshcache", Subsystem: "engine", Name: "puts_total",
			Help: "Local engine writes", ConstLabels: labels,
		}),
		removes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meshcache", Subsystem: "engine", Name: "removes_total",
			Help: "Local engine removals", ConstLabels: labels,
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meshcache", Subsystem: "engine", Name: "evictions_total",
			Help: "Entries evicted to make room for a new key", ConstLabels: labels,
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "meshcache", Subsystem: "engine", Name: "size_entries",
			Help: "Number of resident entries", ConstLabels: labels,
		}),
	}
	reg.MustRegister(r.hits, r.misses, r.puts, r.removes, r.evictions, r.size)
	return r
}

// InstrumentedCache wraps an engine.Cache so every call also updates an
// EngineRecorder, without the wrapped engine needing to know metrics
// exist.
type InstrumentedCache[K comparable, V any] struct {
	inner engine.Cache[K, V]
	rec   *EngineRecorder
}

// Instrument wraps inner with rec, returning an engine.Cache a group can
// use exactly like the bare inner.
func Instrument[K comparable, V any](inner engine.Cache[K, V], rec *EngineRecorder) *InstrumentedCache[K, V] {
	return &InstrumentedCache[K, V]{inner: inner, rec: rec}
}

func (c *InstrumentedCache[K, V]) Get(key K) (V, bool) {
	v, ok := c.inner.Get(key)
	if ok {
		c.rec.hits.Inc()
	} else {
		c.rec.misses.Inc()
	}
	return v, ok
}

// Put records the write, then infers an eviction from Len() rather than
// requiring every engine.Cache implementation to grow a hook (lfu's
// Hooks.OnEvict is exactly that hook, but it's internal to lfu/avglfu's
// own composition and plumbing it out through lru/lru-k/arc and their
// sharded variants as well would mean widening engine.Cache for every
// implementation): inserting a key this engine didn't already hold
// should grow Len() by one; if it doesn't, something else had to make
// room.
func (c *InstrumentedCache[K, V]) Put(key K, value V) {
	isNewKey := !c.inner.Contains(key)
	before := c.inner.Len()
	c.inner.Put(key, value)
	after := c.inner.Len()
	c.rec.puts.Inc()
	c.rec.size.Set(float64(after))
	if isNewKey && before > 0 && after <= before {
		c.rec.evictions.Inc()
	}
}

func (c *InstrumentedCache[K, V]) Remove(key K) {
	c.inner.Remove(key)
	c.rec.removes.Inc()
	c.rec.size.Set(float64(c.inner.Len()))
}

func (c *InstrumentedCache[K, V]) Contains(key K) bool { return c.inner.Contains(key) }
func (c *InstrumentedCache[K, V]) Len() int            { return c.inner.Len() }

// RegisterGroupStats exposes a group's running counters as Prometheus
// gauges, read live off the group's atomic counters via GaugeFunc rather
// than mirrored into a second set of counters that could drift.
func RegisterGroupStats(reg prometheus.Registerer, groupName string, stats *group.Stats) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	labels := prometheus.Labels{"group": groupName}
	gauge := func(name, help string, get func() int64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "meshcache", Subsystem: "group", Name: name,
			Help: help, ConstLabels: labels,
		}, func() float64 { return float64(get()) })
	}
	reg.MustRegister(
		gauge("gets_total", "Gets served by the group", stats.Gets.Load),
		gauge("hits_total", "Local hits", stats.Hits.Load),
		gauge("misses_total", "Local misses", stats.Misses.Load),
		gauge("peer_hits_total", "Hits served by a remote peer", stats.PeerHits.Load),
		gauge("peer_misses_total", "Misses reported by a remote peer", stats.PeerMisses.Load),
		gauge("peer_errors_total", "Peer Get calls that failed (excluding caller cancellation)", stats.PeerErrors.Load),
		gauge("loads_total", "Loads routed through the coalescer", stats.Loads.Load),
		gauge("loads_deduped_total", "Loads that shared an in-flight result", stats.LoadsDeduped.Load),
		gauge("broadcast_errors_total", "Failed one-hop broadcasts", stats.BroadcastErrors.Load),
	)
}

var _ engine.Cache[string, int] = (*InstrumentedCache[string, int])(nil)
