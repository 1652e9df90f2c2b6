package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPProvider_Call(t *testing.T) {
	var lastID atomic.Uint64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode body: %v", err)
			return
		}
		if req.Method != "eth_blockNumber" {
			t.Errorf("unexpected method %v", req.Method)
		}
		if req.Params == nil || len(req.Params) != 0 {
			t.Errorf("expected empty params array, got %v", req.Params)
		}
		lastID.Store(req.ID)
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": "0x10"})
	}))
	defer server.Close()

	p := NewHTTPProvider("mock", server.URL, 5*time.Second)
	for i := 1; i <= 2; i++ {
		result, err := p.Execute(context.Background(), Operation{Name: "eth_blockNumber"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != "0x10" {
			t.Errorf("expected 0x10, got %v", result)
		}
		if got := lastID.Load(); got != uint64(i) {
			t.Errorf("expected request id %d, got %d", i, got)
		}
	}
	if !p.IsAvailable() {
		t.Error("expected provider to be available")
	}
	if h := p.GetHealth(); h.Requests != 2 || h.Status != StatusHealthy {
		t.Errorf("unexpected health %+v", h)
	}
}

func TestHTTPProvider_RPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid params"}}`))
	}))
	defer server.Close()

	p := NewHTTPProvider("mock", server.URL, 5*time.Second)
	_, err := p.Call(context.Background(), "eth_call", []any{})
	if err == nil {
		t.Fatal("expected error")
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *RPCError, got %T", err)
	}
	if rpcErr.Code != -32602 {
		t.Errorf("expected code -32602, got %d", rpcErr.Code)
	}
	if h := p.GetHealth(); h.ErrorRate != 0 {
		t.Errorf("a JSON-RPC error should not count against the provider, got rate %v", h.ErrorRate)
	}
}

func TestHTTPProvider_RateLimitedCoolsDown(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewHTTPProvider("mock", server.URL, 5*time.Second)
	if _, err := p.Call(context.Background(), "eth_blockNumber", nil); err == nil {
		t.Fatal("expected error")
	}
	if h := p.GetHealth(); h.Throttled != 1 || h.Status != StatusThrottled {
		t.Errorf("expected one throttle recorded, got %+v", h)
	}
	if p.IsAvailable() {
		t.Error("expected throttled provider to be unavailable")
	}

	_, err := p.Call(context.Background(), "eth_blockNumber", nil)
	var cooldown *CooldownError
	if !errors.As(err, &cooldown) {
		t.Fatalf("expected *CooldownError, got %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected no request during cooldown, got %d hits", hits.Load())
	}
}

func TestHTTPProvider_ThrottleInRPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32005,"message":"daily request count exceeded, request rate limited"}}`))
	}))
	defer server.Close()

	p := NewHTTPProvider("mock", server.URL, 5*time.Second)
	if _, err := p.Call(context.Background(), "eth_getLogs", nil); err == nil {
		t.Fatal("expected error")
	}
	if status := p.Monitor.Status(); status != StatusThrottled {
		t.Errorf("expected StatusThrottled, got %v", status)
	}
}

func TestHTTPProvider_Blocked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	p := NewHTTPProvider("mock", server.URL, 5*time.Second)
	if _, err := p.Call(context.Background(), "eth_blockNumber", nil); err == nil {
		t.Fatal("expected error")
	}
	if status := p.Monitor.Status(); status != StatusBlocked {
		t.Errorf("expected StatusBlocked, got %v", status)
	}
}
