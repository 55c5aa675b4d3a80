// Package ring implements the consistent-hash ring that routes keys to
// peers: virtual replicas per node, traffic-aware rebalance within
// [r_min, r_max], and reader-writer exclusion between lookups and
// topology edits.
//
// Grounded on the teacher's consistenthash.Map and transport/peer.Picker
// (md5-of-strconv.Itoa(i)+key for per-replica positions, fnv1 for the
// final fold to uint64, sorted-slice binary search), generalized from a
// single global replica count to a per-node one driven by traffic.
package ring

import (
	"crypto/md5"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/segmentio/fasthash/fnv1"
)

// Hash folds a byte slice to a 64-bit ring position.
type Hash func(data []byte) uint64

// Options configures a Ring. Zero values fall back to defaults matching
// the teacher's picker (50 replicas, fnv1.HashBytes64).
type Options struct {
	Hash Hash

	// DefaultReplicas is r_def, the starting virtual-replica count for a
	// newly added node.
	DefaultReplicas int
	// MinReplicas and MaxReplicas bound rebalance's adjustment of r_n.
	MinReplicas, MaxReplicas int
	// Theta is the traffic-skew threshold in (0, 1) that triggers
	// rebalance: a node carrying more than Theta of global traffic is
	// over-hot; one carrying less than its fair share divided by Theta
	// is under-hot.
	Theta float64
}

func (o *Options) setDefaults() {
	if o.Hash == nil {
		o.Hash = fnv1.HashBytes64
	}
	if o.DefaultReplicas == 0 {
		o.DefaultReplicas = 50
	}
	if o.MinReplicas == 0 {
		o.MinReplicas = 10
	}
	if o.MaxReplicas == 0 {
		o.MaxReplicas = 200
	}
	if o.Theta <= 0 || o.Theta >= 1 {
		o.Theta = 0.6
	}
}

type posEntry struct {
	sum  uint64
	node string
}

type nodeState struct {
	replicas int
	traffic  atomic.Uint64
}

// Ring is a consistent-hash ring with per-node virtual-replica counts and
// traffic-driven rebalance.
type Ring struct {
	opts Options

	mu      sync.RWMutex
	entries []posEntry // sorted by sum
	nodes   map[string]*nodeState

	total       atomic.Uint64
	rebalancing atomic.Bool
}

// New creates an empty ring.
func New(opts Options) *Ring {
	opts.setDefaults()
	return &Ring{
		opts:  opts,
		nodes: make(map[string]*nodeState),
	}
}

func (r *Ring) position(node string, replica int) uint64 {
	digest := fmt.Sprintf("%x", md5.Sum([]byte(strconv.Itoa(replica)+node)))
	return r.opts.Hash([]byte(digest))
}

// Add inserts node with the ring's default replica count. Per spec: if
// any of the node's candidate positions already exists on the ring, the
// whole add is rejected and the ring is left unchanged.
func (r *Ring) Add(node string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addLocked(node, r.opts.DefaultReplicas)
}

func (r *Ring) addLocked(node string, replicas int) bool {
	existing := make(map[uint64]struct{}, len(r.entries))
	for _, e := range r.entries {
		existing[e.sum] = struct{}{}
	}

	candidates := make([]posEntry, 0, replicas)
	seen := make(map[uint64]struct{}, replicas)
	for i := 0; i < replicas; i++ {
		h := r.position(node, i)
		if _, dup := existing[h]; dup {
			return false
		}
		if _, dup := seen[h]; dup {
			return false
		}
		seen[h] = struct{}{}
		candidates = append(candidates, posEntry{sum: h, node: node})
	}

	r.entries = append(r.entries, candidates...)
	sort.Slice(r.entries, func(i, j int) bool { return r.entries[i].sum < r.entries[j].sum })
	ns := &nodeState{replicas: replicas}
	r.nodes[node] = ns
	return true
}

// Remove drops node and every one of its ring positions.
func (r *Ring) Remove(node string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.nodes[node]; !ok {
		return
	}
	kept := r.entries[:0:0]
	for _, e := range r.entries {
		if e.node != node {
			kept = append(kept, e)
		}
	}
	r.entries = kept
	delete(r.nodes, node)
}

// Get returns the node owning key, recording traffic for the lookup. The
// second return is false when the ring is empty.
func (r *Ring) Get(key string) (string, bool) {
	r.mu.RLock()
	if len(r.entries) == 0 {
		r.mu.RUnlock()
		return "", false
	}
	h := r.opts.Hash([]byte(key))
	idx := sort.Search(len(r.entries), func(i int) bool { return r.entries[i].sum >= h })
	if idx == len(r.entries) {
		idx = 0
	}
	node := r.entries[idx].node
	ns := r.nodes[node]
	r.mu.RUnlock()

	if ns != nil {
		ns.traffic.Add(1)
	}
	total := r.total.Add(1)

	if total%128 == 0 {
		r.Rebalance()
	}
	return node, true
}

// NodeCount returns the number of distinct nodes on the ring.
func (r *Ring) NodeCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// Replicas returns node's current virtual-replica count, or (0, false) if
// node is not on the ring.
func (r *Ring) Replicas(node string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ns, ok := r.nodes[node]
	if !ok {
		return 0, false
	}
	return ns.replicas, true
}

// Rebalance re-expresses every node's replica count within
// [MinReplicas, MaxReplicas] to smooth traffic skew observed since the
// ring was built, then rebuilds the ring under a single write lock so no
// reader ever observes a half-edited ring. Opportunistic: Get calls it
// automatically every 128 lookups, and overlapping calls collapse to one
// in flight.
func (r *Ring) Rebalance() {
	if !r.rebalancing.CompareAndSwap(false, true) {
		return
	}
	defer r.rebalancing.Store(false)

	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.nodes)
	if n == 0 {
		return
	}
	total := r.total.Load()
	if total == 0 {
		return
	}
	fairShare := 1.0 / float64(n)
	lowWatermark := fairShare / r.opts.Theta

	type adjustment struct {
		node     string
		replicas int
		traffic  uint64
	}
	adjustments := make([]adjustment, 0, n)
	for node, ns := range r.nodes {
		traffic := ns.traffic.Load()
		share := float64(traffic) / float64(total)
		replicas := ns.replicas
		switch {
		case share > r.opts.Theta && replicas < r.opts.MaxReplicas:
			replicas++
		case share < lowWatermark && replicas > r.opts.MinReplicas:
			replicas--
		}
		adjustments = append(adjustments, adjustment{node: node, replicas: replicas, traffic: traffic})
	}

	sort.Slice(adjustments, func(i, j int) bool { return adjustments[i].node < adjustments[j].node })

	r.entries = r.entries[:0]
	r.nodes = make(map[string]*nodeState, n)
	for _, a := range adjustments {
		r.rebuildNodeLocked(a.node, a.replicas)
		// Carry the node's counter over so its share keeps being measured
		// over the same window as the global total.
		r.nodes[a.node].traffic.Store(a.traffic)
	}
}

// rebuildNodeLocked inserts node with the given replica count, skipping
// any position that collides with one already placed during this
// rebuild. A node that loses every replica to collisions keeps none —
// an acceptable, rare degradation of a deliberately opportunistic
// rebalance pass.
func (r *Ring) rebuildNodeLocked(node string, replicas int) {
	existing := make(map[uint64]struct{}, len(r.entries))
	for _, e := range r.entries {
		existing[e.sum] = struct{}{}
	}
	placed := 0
	for i := 0; i < replicas; i++ {
		h := r.position(node, i)
		if _, dup := existing[h]; dup {
			continue
		}
		existing[h] = struct{}{}
		r.entries = append(r.entries, posEntry{sum: h, node: node})
		placed++
	}
	sort.Slice(r.entries, func(i, j int) bool { return r.entries[i].sum < r.entries[j].sum })
	if placed == 0 {
		placed = replicas
	}
	r.nodes[node] = &nodeState{replicas: placed}
}
