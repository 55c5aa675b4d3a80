// Package rpcserver is the thin net/rpc glue spec.md §4.14 and §6.2
// describe: three handlers dispatching to the group registry, modeled
// on the teacher's transport/http_transport.go ServeHTTP parse-dispatch
// shape but speaking a typed RPC service instead of re-deriving the
// teacher's HTTP+protobuf transport, since the wire format itself is
// explicitly out of scope and only the three verbs' contracts matter.
package rpcserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"

	"github.com/meshcache/meshcache/group"
	"github.com/meshcache/meshcache/peer"
)

// ErrGroupNotFound is returned (via net/rpc, as the call's error string)
// when a handler is asked for a group that hasn't been registered.
var ErrGroupNotFound = errors.New("rpcserver: group not found")

// Service is the net/rpc-registered type; its exported methods are the
// Get/Set/Delete verbs, each taking the *peer.XArgs/XReply types the
// peer client already speaks.
type Service struct {
	groups *group.Registry
	logger *slog.Logger
}

// New returns a Service dispatching to groups.
func New(groups *group.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{groups: groups, logger: logger}
}

// Get looks up args.Group and returns its value for args.Key, or a
// not-found reply if the group itself is unknown. A cache miss within a
// known group is not an error — it's Found=false.
func (s *Service) Get(args *peer.GetArgs, reply *peer.GetReply) error {
	g, ok := s.groups.Lookup(args.Group)
	if !ok {
		return fmt.Errorf("%w: %q", ErrGroupNotFound, args.Group)
	}
	v, found, err := g.Get(context.Background(), args.Key)
	if err != nil {
		return err
	}
	reply.Value = v
	reply.Found = found
	return nil
}

// Set writes args.Key=args.Value into args.Group with broadcast=true:
// the node the RPC arrives on re-broadcasts to the key's owning peer,
// which under consistent hashing is typically the original sender,
// making that second hop a no-op when pickPeer resolves to "self".
func (s *Service) Set(args *peer.SetArgs, _ *peer.SetReply) error {
	g, ok := s.groups.Lookup(args.Group)
	if !ok {
		return fmt.Errorf("%w: %q", ErrGroupNotFound, args.Group)
	}
	return g.Set(context.Background(), args.Key, args.Value, true)
}

// Delete removes args.Key from args.Group with broadcast=true, same
// one-hop/no-op-on-self rule as Set.
func (s *Service) Delete(args *peer.DeleteArgs, _ *peer.DeleteReply) error {
	g, ok := s.groups.Lookup(args.Group)
	if !ok {
		return fmt.Errorf("%w: %q", ErrGroupNotFound, args.Group)
	}
	return g.Del(context.Background(), args.Key, true)
}

// Serve registers s under peer.ServiceName and accepts connections on ln
// until ln is closed, exactly the net/rpc server half of the channel
// package peer's RPCClient dials. It blocks until ln stops accepting.
func Serve(ln net.Listener, s *Service) error {
	server := rpc.NewServer()
	if err := server.RegisterName(peer.ServiceName, s); err != nil {
		return err
	}
	server.Accept(ln)
	return nil
}
