// Package coalesce deduplicates concurrent loads for the same key: the
// first caller runs the supplied function, every concurrent caller with
// the same key waits on that single run and receives its outcome.
//
// Grounded on the teacher's group.go, which dedups loads/sets/removes
// through *singleflight.Group (its own internal/singleflight package).
// The contract here — run(key, f), no lock held across f, identical
// outcome fanned out to every waiter — is exactly
// golang.org/x/sync/singleflight.Group.Do, already a teacher dependency,
// so this package is a thin typed wrapper over it rather than a
// second hand-rolled implementation.
package coalesce

import "golang.org/x/sync/singleflight"

// Group coalesces concurrent Run calls sharing the same key. The zero
// value is ready to use; New returns a pointer to one.
type Group[V any] struct {
	g singleflight.Group
}

// New returns a ready-to-use Group.
func New[V any]() *Group[V] {
	return &Group[V]{}
}

// Run executes fn for key, sharing the result among every caller that
// arrives for the same key while fn is still running. fn is called with
// no lock of the Group's held, so it may block or call back into the
// cache freely. The shared bool reports whether the result was handed to
// more than one caller; it is true for the caller whose fn ran as well.
func (g *Group[V]) Run(key string, fn func() (V, error)) (value V, shared bool, err error) {
	resI, err, shared := g.g.Do(key, func() (interface{}, error) {
		return fn()
	})
	value, _ = resI.(V)
	return value, shared, err
}

// Forget removes key from the in-flight table, so the next Run for it
// starts a fresh call even if one is (erroneously) believed in-flight.
func (g *Group[V]) Forget(key string) { g.g.Forget(key) }
