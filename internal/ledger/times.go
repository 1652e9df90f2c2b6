package ledger

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/vietddude/breadwatch/internal/core/domain"
	"github.com/vietddude/breadwatch/internal/infra/chain"
)

// BlockTimes resolves block numbers to block times through an LRU cache.
// Block times never change, so entries do not expire.
type BlockTimes struct {
	source chain.BlockSource
	cache  *lru.Cache
}

// NewBlockTimes creates a resolver caching up to size blocks.
func NewBlockTimes(source chain.BlockSource, size int) (*BlockTimes, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create block time cache: %w", err)
	}
	return &BlockTimes{source: source, cache: cache}, nil
}

// Lookup returns the time of block number.
func (b *BlockTimes) Lookup(ctx context.Context, number uint64) (time.Time, error) {
	if v, ok := b.cache.Get(number); ok {
		return v.(time.Time), nil
	}

	block, err := b.source.GetBlock(ctx, number)
	if err != nil {
		return time.Time{}, err
	}
	if block == nil {
		return time.Time{}, fmt.Errorf("block %d not found", number)
	}

	t := block.Time()
	b.cache.Add(number, t)
	return t, nil
}

// Stamp attaches the block time to ev, or the unknown placeholder on failure.
func (b *BlockTimes) Stamp(ctx context.Context, ev domain.MintEvent) (domain.TimestampedMintEvent, error) {
	t, err := b.Lookup(ctx, ev.BlockNumber)
	if err != nil {
		return ev.WithUnknownTime(), err
	}
	return ev.WithTime(t), nil
}
