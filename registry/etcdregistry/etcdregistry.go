// Package etcdregistry implements registry.Client over etcd, matching
// original_source's etcd::Client / etcd::Watcher / etcd::KeepAlive usage
// (include/peerpicker.h, include/registry.h) — the one concrete registry
// this module ships, go.etcd.io/etcd/client/v3 being a deliberately
// out-of-pack but directly-grounded dependency (see DESIGN.md).
package etcdregistry

import (
	"context"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/meshcache/meshcache/registry"
)

// Client adapts an etcd v3 client to registry.Client.
type Client struct {
	cli *clientv3.Client
}

// Dial connects to the given etcd endpoints.
func Dial(endpoints []string, dialTimeout time.Duration) (*Client, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &Client{cli: cli}, nil
}

// Close releases the underlying etcd connection.
func (c *Client) Close() error { return c.cli.Close() }

// GrantLease creates an etcd lease and starts a background keepalive
// loop for it (the original's etcd::KeepAlive), stopped by Revoke.
func (c *Client) GrantLease(ctx context.Context, ttl time.Duration) (registry.LeaseID, error) {
	resp, err := c.cli.Grant(ctx, int64(ttl.Seconds()))
	if err != nil {
		return 0, err
	}
	keepAlive, err := c.cli.KeepAlive(context.Background(), resp.ID)
	if err != nil {
		return 0, err
	}
	go func() {
		for range keepAlive {
			// draining renewal acknowledgements keeps the lease alive;
			// the channel closes on Revoke or connection loss.
		}
	}()
	return registry.LeaseID(resp.ID), nil
}

func (c *Client) Put(ctx context.Context, key, value string, lease registry.LeaseID) error {
	var opts []clientv3.OpOption
	if lease != 0 {
		opts = append(opts, clientv3.WithLease(clientv3.LeaseID(lease)))
	}
	_, err := c.cli.Put(ctx, key, value, opts...)
	return err
}

func (c *Client) Revoke(ctx context.Context, lease registry.LeaseID) error {
	_, err := c.cli.Revoke(ctx, clientv3.LeaseID(lease))
	return err
}

func (c *Client) List(ctx context.Context, prefix string) ([]registry.KV, error) {
	resp, err := c.cli.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	out := make([]registry.KV, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		out = append(out, registry.KV{Key: string(kv.Key), Value: string(kv.Value)})
	}
	return out, nil
}

func (c *Client) Watch(ctx context.Context, prefix string) (<-chan registry.Event, error) {
	out := make(chan registry.Event)
	wch := c.cli.Watch(ctx, prefix, clientv3.WithPrefix())
	go func() {
		defer close(out)
		for resp := range wch {
			for _, ev := range resp.Events {
				et := registry.EventPut
				if ev.Type == clientv3.EventTypeDelete {
					et = registry.EventDelete
				}
				select {
				case out <- registry.Event{Type: et, Key: string(ev.Kv.Key), Value: string(ev.Kv.Value)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
