package subscription

import (
	"context"
	"sync"
	"time"
)

// HeadSource returns the chain head.
type HeadSource interface {
	GetLatestBlock(ctx context.Context) (uint64, error)
}

// HeadCache caches the result of GetLatestBlock to reduce redundant API calls.
// The poller and one-shot readers share it so a head read is not repeated
// within the TTL.
type HeadCache struct {
	source HeadSource
	ttl    time.Duration

	mu       sync.RWMutex
	cached   uint64
	cachedAt time.Time
}

// NewHeadCache creates a new head cache with the given TTL.
func NewHeadCache(source HeadSource, ttl time.Duration) *HeadCache {
	return &HeadCache{
		source: source,
		ttl:    ttl,
	}
}

// GetLatestBlock returns the cached chain head if within TTL, otherwise fetches fresh.
func (c *HeadCache) GetLatestBlock(ctx context.Context) (uint64, error) {
	c.mu.RLock()
	if time.Since(c.cachedAt) < c.ttl && c.cached > 0 {
		cached := c.cached
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	head, err := c.source.GetLatestBlock(ctx)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	// Never move the cached head backwards on a lagging provider.
	if head > c.cached {
		c.cached = head
	}
	c.cachedAt = time.Now()
	head = c.cached
	c.mu.Unlock()

	return head, nil
}

// Invalidate clears the cache, forcing the next call to fetch fresh data.
func (c *HeadCache) Invalidate() {
	c.mu.Lock()
	c.cachedAt = time.Time{}
	c.mu.Unlock()
}
