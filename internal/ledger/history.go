package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/breadwatch/internal/core/domain"
	"github.com/vietddude/breadwatch/internal/infra/chain"
	"github.com/vietddude/breadwatch/internal/metrics"
)

// HistorySource is the chain surface needed for a historical fetch.
type HistorySource interface {
	chain.BlockSource
	chain.LogSource
}

// History fetches and timestamps historical mints.
type History struct {
	source      HistorySource
	times       *BlockTimes
	fromBlock   uint64
	concurrency int
	log         *slog.Logger
}

// NewHistory creates a historical fetcher starting at fromBlock.
func NewHistory(source HistorySource, times *BlockTimes, fromBlock uint64, concurrency int) *History {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &History{
		source:      source,
		times:       times,
		fromBlock:   fromBlock,
		concurrency: concurrency,
		log:         slog.Default().With("component", "history"),
	}
}

// Fetch returns every mint to beneficiary from the start block to the chain
// head, newest first, with timestamps attached. Timestamp failures degrade the
// affected event to the unknown placeholder; only query failures are returned.
func (h *History) Fetch(ctx context.Context, beneficiary common.Address) ([]domain.TimestampedMintEvent, error) {
	head, err := h.source.GetLatestBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("read head: %w", err)
	}

	events, err := h.source.QueryMints(ctx, h.fromBlock, head, &beneficiary)
	if err != nil {
		return nil, fmt.Errorf("query mints: %w", err)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].BlockNumber > events[j].BlockNumber
	})

	out := make([]domain.TimestampedMintEvent, len(events))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)
	for i, ev := range events {
		i, ev := i, ev
		g.Go(func() error {
			stamped, err := h.times.Stamp(gctx, ev)
			if err != nil {
				metrics.TimestampFailures.WithLabelValues("historical").Inc()
				h.log.Warn("Block time lookup failed",
					"block", ev.BlockNumber,
					"tx", ev.TxHash.Hex(),
					"error", err,
				)
			}
			out[i] = stamped
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.log.Debug("Historical mints reconciled",
		"address", beneficiary.Hex(),
		"from", h.fromBlock,
		"to", head,
		"count", len(out),
	)
	return out, nil
}
