package subscription

import (
	"context"
	"sync"
	"testing"
	"time"
)

type mockHead struct {
	mu          sync.Mutex
	latestBlock uint64
	callCount   int
}

func (m *mockHead) GetLatestBlock(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	return m.latestBlock, nil
}

func (m *mockHead) set(n uint64) {
	m.mu.Lock()
	m.latestBlock = n
	m.mu.Unlock()
}

func (m *mockHead) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func TestHeadCache_CachesResult(t *testing.T) {
	source := &mockHead{latestBlock: 1000}
	cache := NewHeadCache(source, 3*time.Second)

	ctx := context.Background()

	result1, err := cache.GetLatestBlock(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result1 != 1000 {
		t.Errorf("expected 1000, got %d", result1)
	}

	// Second call within TTL - should use cache
	result2, err := cache.GetLatestBlock(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result2 != 1000 {
		t.Errorf("expected 1000, got %d", result2)
	}
	if source.calls() != 1 {
		t.Errorf("expected still 1 source call (cached), got %d", source.calls())
	}
}

func TestHeadCache_ExpiresAfterTTL(t *testing.T) {
	source := &mockHead{latestBlock: 1000}
	cache := NewHeadCache(source, 100*time.Millisecond)

	ctx := context.Background()

	if _, err := cache.GetLatestBlock(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(150 * time.Millisecond)
	source.set(1001)

	result, err := cache.GetLatestBlock(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 1001 {
		t.Errorf("expected fresh value 1001, got %d", result)
	}
	if source.calls() != 2 {
		t.Errorf("expected 2 source calls, got %d", source.calls())
	}
}

func TestHeadCache_NeverMovesBackwards(t *testing.T) {
	source := &mockHead{latestBlock: 1000}
	cache := NewHeadCache(source, 3*time.Second)

	ctx := context.Background()
	if _, err := cache.GetLatestBlock(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cache.Invalidate()
	source.set(990)

	result, err := cache.GetLatestBlock(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 1000 {
		t.Errorf("expected head to stay at 1000, got %d", result)
	}
	if source.calls() != 2 {
		t.Errorf("expected 2 source calls, got %d", source.calls())
	}
}
