// Command cachenode runs one cache node: a local engine, an RPC server
// peers dial into, and a registry-fed peer directory so it can forward
// requests it doesn't own.
//
// Grounded on the teacher's cmd/server/main.go (flag-based config,
// SIGINT-driven shutdown) and cluster/daemon.go's Start/Shutdown split,
// generalized from a single fixed HTTP pool to this module's
// registry+ring+RPC stack.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meshcache/meshcache/discovery"
	"github.com/meshcache/meshcache/engine/lru"
	"github.com/meshcache/meshcache/group"
	"github.com/meshcache/meshcache/metrics"
	"github.com/meshcache/meshcache/peer"
	"github.com/meshcache/meshcache/registry"
	"github.com/meshcache/meshcache/registry/etcdregistry"
	"github.com/meshcache/meshcache/ring"
	"github.com/meshcache/meshcache/rpcserver"
)

// staticDataset is the reference miss-handler table: a tiny hardcoded
// source of truth standing in for a real database or upstream service.
var staticDataset = map[string]string{
	"hello":   "world",
	"answer":  "42",
	"service": "meshcache",
}

func missHandler(_ context.Context, key string) (peer.Value, bool, error) {
	v, ok := staticDataset[key]
	if !ok {
		return peer.Value{}, false, nil
	}
	return peer.StringValue(v), true, nil
}

func main() {
	addr := flag.String("addr", "127.0.0.1:9090", "address this node listens for RPC on, and registers under")
	nodeID := flag.String("node", "", "logical node identifier (defaults to -addr)")
	endpoints := flag.String("registry-endpoints", "127.0.0.1:2379", "comma-separated etcd endpoints")
	serviceName := flag.String("service", "cachenode", "registry service name; this node registers under <service>/<addr>")
	groupName := flag.String("group", "default", "cache group name")
	capacity := flag.Int("capacity", 10000, "local engine capacity, in entries")
	metricsAddr := flag.String("metrics-addr", "127.0.0.1:9091", "address the /metrics endpoint listens on")
	leaseTTL := flag.Duration("lease-ttl", 10*time.Second, "registry lease TTL")
	flag.Parse()

	if *nodeID == "" {
		*nodeID = *addr
	}
	logger := slog.Default().With("node", *nodeID)

	reg, err := etcdregistry.Dial(strings.Split(*endpoints, ","), 5*time.Second)
	if err != nil {
		logger.Error("dial registry", "err", err)
		os.Exit(1)
	}
	defer reg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prefix := *serviceName + "/"
	lease, err := reg.GrantLease(ctx, *leaseTTL)
	if err != nil {
		logger.Error("grant lease", "err", err)
		os.Exit(1)
	}
	if err := reg.Put(ctx, prefix+*addr, *nodeID, lease); err != nil {
		logger.Error("register self", "err", err)
		os.Exit(1)
	}
	defer func() { _ = reg.Revoke(context.Background(), lease) }()

	r := ring.New(ring.Options{})
	dir := discovery.New(r, *addr, func(peerAddr string) peer.Client { return peer.NewRPCClient(peerAddr) }, logger)
	if err := dir.Attach(ctx, reg, prefix); err != nil {
		logger.Error("attach peer directory", "err", err)
		os.Exit(1)
	}

	promReg := prometheus.NewRegistry()
	rec := metrics.NewEngineRecorder(promReg, *groupName)
	local := metrics.Instrument(lru.New[string, peer.Value](*capacity), rec)

	groups := group.NewRegistry(logger)
	g := groups.GetOrCreate(*groupName, local, dir, missHandler)
	metrics.RegisterGroupStats(promReg, *groupName, &g.Stats)

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		logger.Error("listen", "addr", *addr, "err", err)
		os.Exit(1)
	}

	svc := rpcserver.New(groups, logger)
	go func() {
		if err := rpcserver.Serve(ln, svc); err != nil {
			logger.Error("rpc server stopped", "err", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{Addr: *metricsAddr, Handler: mux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", "err", err)
		}
	}()

	logger.Info("cachenode running", "addr", *addr, "metrics-addr", *metricsAddr, "group", *groupName)
	fmt.Fprintf(os.Stderr, "cachenode %s listening on %s, metrics on %s\n", *nodeID, *addr, *metricsAddr)

	<-ctx.Done()
	logger.Info("shutting down")

	_ = ln.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}

var _ registry.Client = (*etcdregistry.Client)(nil)
