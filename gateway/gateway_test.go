package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/meshcache/meshcache/discovery"
	"github.com/meshcache/meshcache/peer"
	"github.com/meshcache/meshcache/registry/memregistry"
	"github.com/meshcache/meshcache/ring"
)

type fakePeerClient struct {
	addr string

	getValue peer.Value
	getFound bool
	getErr   error
	setErr   error
	delErr   error

	lastSetValue peer.Value
}

func (f *fakePeerClient) Get(context.Context, string, string) (peer.Value, bool, error) {
	return f.getValue, f.getFound, f.getErr
}

func (f *fakePeerClient) Set(_ context.Context, _, _ string, v peer.Value) error {
	f.lastSetValue = v
	return f.setErr
}

func (f *fakePeerClient) Delete(context.Context, string, string) error { return f.delErr }
func (f *fakePeerClient) Address() string                              { return f.addr }

// newTestGateway wires a Gateway to a Directory whose one node is client's
// address, and whose selfAddr ("gateway") never matches a real node, so
// PickPeer always resolves to client rather than "no peer".
func newTestGateway(t *testing.T, client *fakePeerClient) *Gateway {
	t.Helper()
	r := ring.New(ring.Options{DefaultReplicas: 10})
	dir := discovery.New(r, "gateway", func(addr string) peer.Client { return client }, nil)

	reg := memregistry.New()
	ctx := context.Background()
	if err := reg.Put(ctx, "/services/cache/"+client.addr, "", 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := dir.Attach(ctx, reg, "/services/cache/"); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	return New(dir, nil)
}

func TestGetHitReturnsEnvelope(t *testing.T) {
	client := &fakePeerClient{addr: "10.0.0.1:9090", getValue: peer.StringValue("hello"), getFound: true}
	g := newTestGateway(t, client)

	req := httptest.NewRequest(http.MethodGet, "/widgets/k1", nil)
	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	var got getResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Group != "widgets" || got.Key != "k1" || got.Value.Str != "hello" {
		t.Fatalf("got %+v", got)
	}
}

func TestGetMissReturns404(t *testing.T) {
	client := &fakePeerClient{addr: "10.0.0.1:9090", getFound: false}
	g := newTestGateway(t, client)

	req := httptest.NewRequest(http.MethodGet, "/widgets/missing", nil)
	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	want := (&peer.ErrNotFound{Group: "widgets", Key: "missing"}).Error()
	if got := strings.TrimSpace(rec.Body.String()); got != want {
		t.Fatalf("body = %q, want %q", got, want)
	}
}

func TestGetTransportErrorReturns500(t *testing.T) {
	client := &fakePeerClient{addr: "10.0.0.1:9090", getErr: errors.New("boom")}
	g := newTestGateway(t, client)

	req := httptest.NewRequest(http.MethodGet, "/widgets/k1", nil)
	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestGetOnEmptyDirectoryReturns500(t *testing.T) {
	r := ring.New(ring.Options{DefaultReplicas: 10})
	dir := discovery.New(r, "gateway", func(addr string) peer.Client { return &fakePeerClient{addr: addr} }, nil)
	g := New(dir, nil)

	req := httptest.NewRequest(http.MethodGet, "/widgets/k1", nil)
	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 for no available cache node", rec.Code)
	}
}

func TestPostWritesThroughToPeer(t *testing.T) {
	client := &fakePeerClient{addr: "10.0.0.1:9090"}
	g := newTestGateway(t, client)

	body := strings.NewReader(`{"value":"new-value"}`)
	req := httptest.NewRequest(http.MethodPost, "/widgets/k1", body)
	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	if client.lastSetValue.Str != "new-value" {
		t.Fatalf("peer received %+v, want StringValue(new-value)", client.lastSetValue)
	}
	var got getResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Group != "widgets" || got.Key != "k1" || got.Value.Str != "new-value" {
		t.Fatalf("got %+v", got)
	}
}

func TestPostMalformedBodyReturns400(t *testing.T) {
	client := &fakePeerClient{addr: "10.0.0.1:9090"}
	g := newTestGateway(t, client)

	req := httptest.NewRequest(http.MethodPost, "/widgets/k1", strings.NewReader(`not json`))
	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDeleteReturnsEnvelope(t *testing.T) {
	client := &fakePeerClient{addr: "10.0.0.1:9090"}
	g := newTestGateway(t, client)

	req := httptest.NewRequest(http.MethodDelete, "/widgets/k1", nil)
	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got deleteResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Group != "widgets" || got.Key != "k1" {
		t.Fatalf("got %+v", got)
	}
}

func TestMalformedPathReturns400(t *testing.T) {
	client := &fakePeerClient{addr: "10.0.0.1:9090"}
	g := newTestGateway(t, client)

	req := httptest.NewRequest(http.MethodGet, "/justgroup", nil)
	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
