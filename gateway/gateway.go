// Package gateway is the HTTP-to-RPC reverse proxy spec.md §6 describes:
// it holds no cache groups of its own, only a peer directory, and turns
// `/<group>/<key>` HTTP requests into an outbound peer.Client RPC call
// against whichever cache node the ring says owns the key.
//
// Grounded on the teacher's transport/http_transport.go ServeHTTP (the
// path-parsing and method-dispatch shape) and instance.go's pickPeer use,
// but a separate process role entirely: the teacher never splits a
// gateway out from the cache nodes, so the split itself follows
// original_source's daemon/gateway separation rather than the teacher.
package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/meshcache/meshcache/discovery"
	"github.com/meshcache/meshcache/peer"
)

// Gateway is an http.Handler with no local cache state: every request is
// forwarded, over RPC, to the remote peer the directory's ring resolves
// the key to.
type Gateway struct {
	peers  *discovery.Directory
	logger *slog.Logger
}

// New returns a Gateway that looks up peers through dir. dir must have
// been constructed with a selfAddr that matches no real cache node — the
// gateway is never itself an owner, so discovery.Directory's "self"
// special case should never fire for it.
func New(dir *discovery.Directory, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{peers: dir, logger: logger}
}

type getResponse struct {
	Group string     `json:"group"`
	Key   string     `json:"key"`
	Value peer.Value `json:"value"`
}

type deleteResponse struct {
	Group string `json:"group"`
	Key   string `json:"key"`
}

type postRequest struct {
	Value peer.Value `json:"value"`
}

// ServeHTTP dispatches GET/POST/DELETE on /<group>/<key> to the owning
// peer, per spec.md §6's HTTP surface.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	groupName, key, ok := parsePath(r.URL.Path)
	if !ok {
		http.Error(w, "path must be /<group>/<key>", http.StatusBadRequest)
		return
	}

	client, ok := g.peers.PickPeer(key)
	if !ok {
		http.Error(w, "no available cache node for key", http.StatusInternalServerError)
		return
	}

	switch r.Method {
	case http.MethodGet:
		g.handleGet(w, r.Context(), client, groupName, key)
	case http.MethodPost:
		g.handlePost(w, r, client, groupName, key)
	case http.MethodDelete:
		g.handleDelete(w, r.Context(), client, groupName, key)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func parsePath(path string) (group, key string, ok bool) {
	trimmed := strings.TrimPrefix(path, "/")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func (g *Gateway) handleGet(w http.ResponseWriter, ctx context.Context, client peer.Client, group, key string) {
	v, found, err := client.Get(ctx, group, key)
	if err != nil {
		g.logger.Error("gateway: peer Get failed", "peer", client.Address(), "group", group, "key", key, "err", err)
		http.Error(w, "cache node unreachable", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, (&peer.ErrNotFound{Group: group, Key: key}).Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, getResponse{Group: group, Key: key, Value: v})
}

func (g *Gateway) handlePost(w http.ResponseWriter, r *http.Request, client peer.Client, group, key string) {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	var req postRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if err := client.Set(r.Context(), group, key, req.Value); err != nil {
		g.logger.Error("gateway: peer Set failed", "peer", client.Address(), "group", group, "key", key, "err", err)
		http.Error(w, "cache node unreachable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, getResponse{Group: group, Key: key, Value: req.Value})
}

func (g *Gateway) handleDelete(w http.ResponseWriter, ctx context.Context, client peer.Client, group, key string) {
	if err := client.Delete(ctx, group, key); err != nil {
		g.logger.Error("gateway: peer Delete failed", "peer", client.Address(), "group", group, "key", key, "err", err)
		http.Error(w, "cache node unreachable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Group: group, Key: key})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
