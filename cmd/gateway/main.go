// Command gateway runs the HTTP-to-RPC reverse proxy: no local cache
// state, just a peer directory fed by the registry and an HTTP listener
// translating /<group>/<key> requests into RPC calls against the owning
// cache node.
//
// Grounded on the teacher's cmd/server/main.go flag/signal shape, same
// as cmd/cachenode, but serving package gateway's handler instead of a
// groupcache.HTTPPool.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/meshcache/meshcache/discovery"
	"github.com/meshcache/meshcache/gateway"
	"github.com/meshcache/meshcache/peer"
	"github.com/meshcache/meshcache/registry/etcdregistry"
	"github.com/meshcache/meshcache/ring"
)

func main() {
	httpAddr := flag.String("http-addr", "127.0.0.1:8080", "address the HTTP gateway listens on")
	endpoints := flag.String("registry-endpoints", "127.0.0.1:2379", "comma-separated etcd endpoints")
	serviceName := flag.String("service", "cachenode", "registry service name cache nodes register under")
	flag.Parse()

	logger := slog.Default().With("component", "gateway")

	reg, err := etcdregistry.Dial(strings.Split(*endpoints, ","), 5*time.Second)
	if err != nil {
		logger.Error("dial registry", "err", err)
		os.Exit(1)
	}
	defer reg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := ring.New(ring.Options{})
	// selfAddr is intentionally a value no real cache node can register
	// under, so PickPeer never treats the gateway itself as a key's owner.
	dir := discovery.New(r, "", func(addr string) peer.Client { return peer.NewRPCClient(addr) }, logger)
	if err := dir.Attach(ctx, reg, *serviceName+"/"); err != nil {
		logger.Error("attach peer directory", "err", err)
		os.Exit(1)
	}

	gw := gateway.New(dir, logger)
	server := &http.Server{Addr: *httpAddr, Handler: gw}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("gateway server stopped", "err", err)
		}
	}()

	logger.Info("gateway running", "http-addr", *httpAddr)
	fmt.Fprintf(os.Stderr, "gateway listening on %s\n", *httpAddr)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}
