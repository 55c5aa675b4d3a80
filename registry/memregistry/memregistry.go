// Package memregistry is an in-memory registry.Client, standing in for
// etcd in tests and single-process demos.
package memregistry

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/meshcache/meshcache/registry"
)

type watcher struct {
	prefix string
	ch     chan registry.Event
}

// Registry is a registry.Client backed by a plain map, with no actual
// lease expiry — leases are only a bookkeeping device for Revoke to know
// which keys to drop.
type Registry struct {
	mu        sync.Mutex
	kv        map[string]string
	leaseKeys map[registry.LeaseID]map[string]struct{}
	nextLease int64
	watchers  []*watcher
}

// New returns an empty in-memory registry.
func New() *Registry {
	return &Registry{
		kv:        make(map[string]string),
		leaseKeys: make(map[registry.LeaseID]map[string]struct{}),
	}
}

func (r *Registry) GrantLease(_ context.Context, _ time.Duration) (registry.LeaseID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextLease++
	id := registry.LeaseID(r.nextLease)
	r.leaseKeys[id] = make(map[string]struct{})
	return id, nil
}

func (r *Registry) Put(_ context.Context, key, value string, lease registry.LeaseID) error {
	r.mu.Lock()
	r.kv[key] = value
	if lease != 0 {
		if keys, ok := r.leaseKeys[lease]; ok {
			keys[key] = struct{}{}
		}
	}
	targets := r.matchingWatchersLocked(key)
	r.mu.Unlock()

	r.publish(targets, registry.Event{Type: registry.EventPut, Key: key, Value: value})
	return nil
}

func (r *Registry) Revoke(_ context.Context, lease registry.LeaseID) error {
	r.mu.Lock()
	keys := r.leaseKeys[lease]
	delete(r.leaseKeys, lease)

	type pending struct {
		ev      registry.Event
		targets []*watcher
	}
	var drops []pending
	for k := range keys {
		delete(r.kv, k)
		drops = append(drops, pending{
			ev:      registry.Event{Type: registry.EventDelete, Key: k},
			targets: r.matchingWatchersLocked(k),
		})
	}
	r.mu.Unlock()

	for _, d := range drops {
		r.publish(d.targets, d.ev)
	}
	return nil
}

func (r *Registry) List(_ context.Context, prefix string) ([]registry.KV, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]registry.KV, 0, len(r.kv))
	for k, v := range r.kv {
		if strings.HasPrefix(k, prefix) {
			out = append(out, registry.KV{Key: k, Value: v})
		}
	}
	return out, nil
}

func (r *Registry) Watch(ctx context.Context, prefix string) (<-chan registry.Event, error) {
	w := &watcher{prefix: prefix, ch: make(chan registry.Event, 16)}
	r.mu.Lock()
	r.watchers = append(r.watchers, w)
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.removeWatcher(w)
		close(w.ch)
	}()
	return w.ch, nil
}

func (r *Registry) matchingWatchersLocked(key string) []*watcher {
	var out []*watcher
	for _, w := range r.watchers {
		if strings.HasPrefix(key, w.prefix) {
			out = append(out, w)
		}
	}
	return out
}

func (r *Registry) publish(targets []*watcher, ev registry.Event) {
	for _, w := range targets {
		select {
		case w.ch <- ev:
		default: // a slow watcher never blocks the writer side.
		}
	}
}

func (r *Registry) removeWatcher(target *watcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, w := range r.watchers {
		if w == target {
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			return
		}
	}
}
