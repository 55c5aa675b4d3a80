package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/meshcache/meshcache/engine/lru"
	"github.com/meshcache/meshcache/group"
)

func TestInstrumentedCacheCountsHitsAndMisses(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewEngineRecorder(reg, "widgets")
	c := Instrument[string, int](lru.New[string, int](4), rec)

	c.Put("a", 1)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a hit")
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected a miss")
	}

	if got := testutil.ToFloat64(rec.hits); got != 1 {
		t.Fatalf("hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rec.misses); got != 1 {
		t.Fatalf("misses = %v, want 1", got)
	}
}

func TestInstrumentedCacheTracksSize(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewEngineRecorder(reg, "widgets")
	c := Instrument[string, int](lru.New[string, int](4), rec)

	c.Put("a", 1)
	c.Put("b", 2)
	if got := testutil.ToFloat64(rec.size); got != 2 {
		t.Fatalf("size = %v, want 2", got)
	}

	c.Remove("a")
	if got := testutil.ToFloat64(rec.size); got != 1 {
		t.Fatalf("size after remove = %v, want 1", got)
	}
}

func TestInstrumentedCachePutPastCapacityCountsEviction(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewEngineRecorder(reg, "widgets")
	c := Instrument[string, int](lru.New[string, int](2), rec)

	c.Put("a", 1)
	c.Put("b", 2)
	if got := testutil.ToFloat64(rec.evictions); got != 0 {
		t.Fatalf("evictions before capacity = %v, want 0", got)
	}

	c.Put("c", 3) // past capacity: "a" is evicted to make room
	if got := testutil.ToFloat64(rec.evictions); got != 1 {
		t.Fatalf("evictions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rec.size); got != 2 {
		t.Fatalf("size = %v, want 2", got)
	}
}

func TestInstrumentedCacheOverwriteDoesNotCountAsEviction(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewEngineRecorder(reg, "widgets")
	c := Instrument[string, int](lru.New[string, int](2), rec)

	c.Put("a", 1)
	c.Put("a", 2) // same key, no eviction
	if got := testutil.ToFloat64(rec.evictions); got != 0 {
		t.Fatalf("evictions = %v, want 0", got)
	}
}

func TestRegisterGroupStatsExposesLiveCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	var stats group.Stats
	RegisterGroupStats(reg, "widgets", &stats)

	stats.Gets.Add(3)
	stats.Hits.Add(2)
	stats.PeerErrors.Add(1)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := map[string]float64{}
	for _, mf := range mfs {
		for _, m := range mf.Metric {
			found[mf.GetName()] = m.GetGauge().GetValue()
		}
	}
	if found["meshcache_group_gets_total"] != 3 {
		t.Fatalf("gets_total = %v, want 3", found["meshcache_group_gets_total"])
	}
	if found["meshcache_group_hits_total"] != 2 {
		t.Fatalf("hits_total = %v, want 2", found["meshcache_group_hits_total"])
	}
	if found["meshcache_group_peer_errors_total"] != 1 {
		t.Fatalf("peer_errors_total = %v, want 1", found["meshcache_group_peer_errors_total"])
	}
}
