// Package subscription delivers live token events by polling eth_getLogs.
//
// Each tick reads the chain head and fetches Mint and Transfer logs from the
// block after the last one delivered up to the head. After a failed poll the
// next range is rewound by ReplayBlocks, so consumers must tolerate events
// delivered more than once.
package subscription

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/breadwatch/internal/core/domain"
	"github.com/vietddude/breadwatch/internal/infra/chain"
	"github.com/vietddude/breadwatch/internal/metrics"
)

// Source is the chain surface the poller reads.
type Source interface {
	HeadSource
	chain.LogSource
}

// Config controls polling.
type Config struct {
	PollInterval time.Duration
	ReplayBlocks uint64
	HeadCacheTTL time.Duration
}

// Poller is the live event subscription.
type Poller struct {
	source Source
	head   *HeadCache
	cfg    Config
	log    *slog.Logger

	mints     chan []domain.MintEvent
	transfers chan []domain.TransferNotification

	mu         sync.RWMutex
	lastBlock  uint64
	started    bool
	rewind     bool
	lastPollAt time.Time
	lastErr    error
}

// NewPoller creates a poller. Batches are delivered on Mints and Transfers.
func NewPoller(source Source, cfg Config) *Poller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 4 * time.Second
	}
	return &Poller{
		source:    source,
		head:      NewHeadCache(source, cfg.HeadCacheTTL),
		cfg:       cfg,
		log:       slog.Default().With("component", "subscription"),
		mints:     make(chan []domain.MintEvent, 16),
		transfers: make(chan []domain.TransferNotification, 16),
	}
}

// Mints returns the channel of Mint batches. It is unfiltered by identity.
func (p *Poller) Mints() <-chan []domain.MintEvent {
	return p.mints
}

// Transfers returns the channel of Transfer batches.
func (p *Poller) Transfers() <-chan []domain.TransferNotification {
	return p.transfers
}

// Head returns the shared head cache.
func (p *Poller) Head() *HeadCache {
	return p.head
}

// Run polls until ctx is cancelled. The channels are closed on return.
func (p *Poller) Run(ctx context.Context) error {
	defer close(p.mints)
	defer close(p.transfers)

	p.log.Info("Live subscription started",
		"interval", p.cfg.PollInterval,
		"replay", p.cfg.ReplayBlocks,
	)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			p.log.Warn("Log poll failed", "error", err)
		}

		select {
		case <-ctx.Done():
			p.log.Info("Live subscription stopped", "lastBlock", p.LastBlock())
			return nil
		case <-ticker.C:
		}
	}
}

// Poll runs one poll cycle.
func (p *Poller) Poll(ctx context.Context) error {
	head, err := p.head.GetLatestBlock(ctx)
	if err != nil {
		p.fail(err)
		return err
	}
	metrics.ChainLatestBlock.Set(float64(head))

	from, ok := p.nextFrom(head)
	if !ok {
		p.touch()
		return nil
	}

	mints, err := p.source.QueryMints(ctx, from, head, nil)
	if err != nil {
		p.fail(err)
		return err
	}
	transfers, err := p.source.QueryTransfers(ctx, from, head)
	if err != nil {
		p.fail(err)
		return err
	}

	if len(mints) > 0 {
		select {
		case p.mints <- mints:
			metrics.LogsDelivered.WithLabelValues("mint").Add(float64(len(mints)))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if len(transfers) > 0 {
		select {
		case p.transfers <- transfers:
			metrics.LogsDelivered.WithLabelValues("transfer").Add(float64(len(transfers)))
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.mu.Lock()
	p.lastBlock = head
	p.started = true
	p.rewind = false
	p.lastPollAt = time.Now()
	p.lastErr = nil
	p.mu.Unlock()

	p.log.Debug("Polled logs", "from", from, "to", head, "mints", len(mints), "transfers", len(transfers))
	return nil
}

// nextFrom returns the first block of the next range.
func (p *Poller) nextFrom(head uint64) (uint64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.started || p.rewind {
		base := head
		if p.started {
			base = p.lastBlock
		}
		if base > p.cfg.ReplayBlocks {
			return base - p.cfg.ReplayBlocks, true
		}
		return 0, true
	}
	if head <= p.lastBlock {
		return 0, false
	}
	return p.lastBlock + 1, true
}

func (p *Poller) fail(err error) {
	p.mu.Lock()
	p.rewind = true
	p.lastErr = err
	p.mu.Unlock()
	p.head.Invalidate()
}

func (p *Poller) touch() {
	p.mu.Lock()
	p.lastPollAt = time.Now()
	p.lastErr = nil
	p.mu.Unlock()
}

// LastBlock returns the last block covered by a successful poll.
func (p *Poller) LastBlock() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastBlock
}

// Status reports the time of the last successful poll and the last error.
func (p *Poller) Status() (time.Time, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastPollAt, p.lastErr
}
