package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/meshcache/meshcache/peer"
	"github.com/meshcache/meshcache/registry/memregistry"
	"github.com/meshcache/meshcache/ring"
)

type fakePeerClient struct{ addr string }

func (f *fakePeerClient) Get(context.Context, string, string) (peer.Value, bool, error) { return peer.Value{}, false, nil }
func (f *fakePeerClient) Set(context.Context, string, string, peer.Value) error          { return nil }
func (f *fakePeerClient) Delete(context.Context, string, string) error                   { return nil }
func (f *fakePeerClient) Address() string                                                { return f.addr }

func newTestDirectory(selfAddr string) *Directory {
	r := ring.New(ring.Options{DefaultReplicas: 10})
	return New(r, selfAddr, func(addr string) peer.Client { return &fakePeerClient{addr: addr} }, nil)
}

const prefix = "/services/cache/"

func TestAttachEnumeratesExistingEntries(t *testing.T) {
	reg := memregistry.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = reg.Put(ctx, prefix+"10.0.0.1:9090", "", 0)
	_ = reg.Put(ctx, prefix+"10.0.0.2:9090", "", 0)

	d := newTestDirectory("self:9090")
	if err := d.Attach(ctx, reg, prefix); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	if got := len(d.Peers()); got != 2 {
		t.Fatalf("Peers() = %d, want 2", got)
	}
}

func TestWatchPutAddsPeer(t *testing.T) {
	reg := memregistry.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newTestDirectory("self:9090")
	if err := d.Attach(ctx, reg, prefix); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	_ = reg.Put(ctx, prefix+"10.0.0.3:9090", "", 0)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(d.Peers()) == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected the watched PUT to add a peer, got %d peers", len(d.Peers()))
}

func TestWatchDeleteRemovesPeer(t *testing.T) {
	reg := memregistry.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lease, _ := reg.GrantLease(ctx, time.Minute)
	_ = reg.Put(ctx, prefix+"10.0.0.4:9090", "", lease)

	d := newTestDirectory("self:9090")
	if err := d.Attach(ctx, reg, prefix); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if len(d.Peers()) != 1 {
		t.Fatalf("expected one peer after attach, got %d", len(d.Peers()))
	}

	_ = reg.Revoke(ctx, lease)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(d.Peers()) == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected the watched DELETE to remove the peer, got %d peers", len(d.Peers()))
}

func TestPickPeerReturnsNoPeerForSelf(t *testing.T) {
	reg := memregistry.New()
	ctx := context.Background()

	d := newTestDirectory("self:9090")
	// The ring has no nodes at all yet, so any key is a miss: "no peer".
	if _, ok := d.PickPeer("any-key"); ok {
		t.Fatal("expected no peer on an empty ring")
	}

	_ = reg.Put(ctx, prefix+"self:9090", "", 0)
	if err := d.Attach(ctx, reg, prefix); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	// The only node on the ring is self, so every key must resolve to
	// "no peer" rather than a client for "self:9090".
	if _, ok := d.PickPeer("any-key"); ok {
		t.Fatal("expected no peer when the ring's only node is self")
	}
}
