// Package peer is the RPC channel abstraction a cache group uses to talk
// to the peer that owns a key: typed Get/Set/Delete, deadlines on the
// reads, and a type-tagged value envelope across the wire.
//
// Grounded on the teacher's transport/peer.Client interface shape
// (PeerInfo/HashKey) and transport/http_transport.go's HttpClient, but
// speaking net/rpc instead of the teacher's protobuf-over-HTTP, since
// spec.md §4.11 and §6 place the wire transport out of scope and the RPC
// server this talks to (package rpcserver) is a plain net/rpc service.
package peer

import (
	"context"
	"net/rpc"
	"sync"
	"time"
)

// Client is what a cache group uses to reach one remote node.
type Client interface {
	// Get fetches key from group on the remote peer. The second return
	// is false for both a genuine miss and a failed deserialization —
	// never distinguishable from the caller's point of view, per
	// spec.md §4.11.
	Get(ctx context.Context, group, key string) (Value, bool, error)
	// Set writes key=value into group on the remote peer. No
	// acknowledgement beyond a nil error is required for success.
	Set(ctx context.Context, group, key string, value Value) error
	// Delete removes key from group on the remote peer.
	Delete(ctx context.Context, group, key string) error
	// Address returns the peer's dial address, also its ring identity.
	Address() string
}

// ServiceName is the net/rpc registration name both this client and
// package rpcserver's Service agree on.
const ServiceName = "CacheService"

// getDeleteDeadline is the fixed deadline spec.md §4.11 places on Get and
// Delete. Set uses the transport default (the caller's own context, with
// no additional deadline layered on).
const getDeleteDeadline = 3 * time.Second

// RPCClient is the net/rpc-backed Client implementation.
type RPCClient struct {
	addr string

	mu     sync.Mutex
	client *rpc.Client
}

// NewRPCClient returns a Client that dials addr lazily on first use.
func NewRPCClient(addr string) *RPCClient {
	return &RPCClient{addr: addr}
}

func (c *RPCClient) Address() string { return c.addr }

func (c *RPCClient) ensureConn() (*rpc.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	conn, err := rpc.Dial("tcp", c.addr)
	if err != nil {
		return nil, &ErrRemoteCall{Peer: c.addr, Err: err}
	}
	c.client = conn
	return conn, nil
}

// dropConn discards a connection that appears dead so the next call
// redials instead of repeating the same failure forever.
func (c *RPCClient) dropConn(bad *rpc.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == bad {
		_ = c.client.Close()
		c.client = nil
	}
}

// callCtx runs one RPC under ctx's deadline. The remote bool tells the
// caller whether a non-nil error came from the peer/transport (wrap it
// as ErrRemoteCall) or from ctx itself expiring (return it unwrapped —
// that's the caller giving up, not the peer failing).
func callCtx(ctx context.Context, conn *rpc.Client, method string, args, reply any) (err error, remote bool) {
	call := conn.Go(ServiceName+"."+method, args, reply, make(chan *rpc.Call, 1))
	select {
	case <-ctx.Done():
		return ctx.Err(), false
	case done := <-call.Done:
		return done.Error, true
	}
}

func (c *RPCClient) Get(ctx context.Context, group, key string) (Value, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, getDeleteDeadline)
	defer cancel()

	conn, err := c.ensureConn()
	if err != nil {
		return Value{}, false, err
	}
	var reply GetReply
	if err, remote := callCtx(ctx, conn, "Get", &GetArgs{Group: group, Key: key}, &reply); err != nil {
		c.dropConn(conn)
		if remote {
			err = &ErrRemoteCall{Peer: c.addr, Err: err}
		}
		return Value{}, false, err
	}
	if !reply.Found || !reply.Value.valid() {
		return Value{}, false, nil
	}
	return reply.Value, true, nil
}

func (c *RPCClient) Set(ctx context.Context, group, key string, value Value) error {
	conn, err := c.ensureConn()
	if err != nil {
		return err
	}
	var reply SetReply
	if err, remote := callCtx(ctx, conn, "Set", &SetArgs{Group: group, Key: key, Value: value}, &reply); err != nil {
		c.dropConn(conn)
		if remote {
			err = &ErrRemoteCall{Peer: c.addr, Err: err}
		}
		return err
	}
	return nil
}

func (c *RPCClient) Delete(ctx context.Context, group, key string) error {
	ctx, cancel := context.WithTimeout(ctx, getDeleteDeadline)
	defer cancel()

	conn, err := c.ensureConn()
	if err != nil {
		return err
	}
	var reply DeleteReply
	if err, remote := callCtx(ctx, conn, "Delete", &DeleteArgs{Group: group, Key: key}, &reply); err != nil {
		c.dropConn(conn)
		if remote {
			err = &ErrRemoteCall{Peer: c.addr, Err: err}
		}
		return err
	}
	return nil
}
