// Package pending polls the pool endpoint for the connected identity's
// pending (baking) bread amount.
package pending

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/breadwatch/internal/core/config"
	"github.com/vietddude/breadwatch/internal/core/domain"
	"github.com/vietddude/breadwatch/internal/metrics"
)

// Fetcher returns the raw bread value for an owner parameter.
type Fetcher interface {
	PendingBread(ctx context.Context, owner string) (json.RawMessage, error)
}

// Poller keeps the pending amount of the connected identity current.
// Each Connect starts one polling task; Disconnect cancels it.
type Poller struct {
	fetcher  Fetcher
	interval time.Duration
	policy   config.OwnerParam
	log      *slog.Logger

	mu       sync.RWMutex
	identity domain.Identity
	amount   decimal.NullDecimal
	epoch    uint64
	cancel   context.CancelFunc
	done     chan struct{}
	onChange func(decimal.NullDecimal)
}

// NewPoller creates a poller. interval defaults to 5s.
func NewPoller(fetcher Fetcher, interval time.Duration, policy config.OwnerParam) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if policy == "" {
		policy = config.OwnerParamAddress
	}
	return &Poller{
		fetcher:  fetcher,
		interval: interval,
		policy:   policy,
		log:      slog.Default().With("component", "pending"),
	}
}

// OnChange registers a callback invoked after the amount changes.
func (p *Poller) OnChange(fn func(decimal.NullDecimal)) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// Connect starts polling for id: one fetch immediately, then one per interval.
// Any previous task is stopped first.
func (p *Poller) Connect(ctx context.Context, id domain.Identity) {
	p.Disconnect()
	if !id.Connected() {
		return
	}

	taskCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.mu.Lock()
	p.epoch++
	epoch := p.epoch
	p.identity = id
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	p.log.Info("Pending poll started", "owner", id.Owner(), "interval", p.interval)

	go func() {
		defer close(done)
		p.run(taskCtx, epoch)
	}()
}

// Disconnect stops polling and resets the amount to absent before returning.
func (p *Poller) Disconnect() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.epoch++
	p.identity = domain.Identity{}
	changed := p.amount.Valid
	p.amount = decimal.NullDecimal{}
	onChange := p.onChange
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if changed && onChange != nil {
		onChange(decimal.NullDecimal{})
	}
}

// SetAlias updates the alias used under the alias owner policy.
func (p *Poller) SetAlias(id domain.Identity) {
	p.mu.Lock()
	if p.identity.Equal(id) {
		p.identity.Alias = id.Alias
	}
	p.mu.Unlock()
}

// Amount returns the latest pending amount, or absent.
func (p *Poller) Amount() decimal.NullDecimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.amount
}

func (p *Poller) run(ctx context.Context, epoch uint64) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.poll(ctx, epoch)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Poller) poll(ctx context.Context, epoch uint64) {
	p.mu.RLock()
	owner := OwnerParam(p.identity, p.policy)
	p.mu.RUnlock()

	raw, err := p.fetcher.PendingBread(ctx, owner)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.PendingPolls.WithLabelValues("error").Inc()
		p.log.Warn("Pending bread fetch failed", "owner", owner, "error", err)
		return
	}

	amount := Normalize(raw)
	if !amount.Valid {
		metrics.PendingPolls.WithLabelValues("unparsable").Inc()
		p.log.Debug("Pending bread value not numeric", "owner", owner, "value", string(raw))
	} else {
		metrics.PendingPolls.WithLabelValues("ok").Inc()
	}

	p.mu.Lock()
	if epoch != p.epoch {
		p.mu.Unlock()
		return
	}
	changed := amount.Valid != p.amount.Valid || !amount.Decimal.Equal(p.amount.Decimal)
	p.amount = amount
	onChange := p.onChange
	p.mu.Unlock()

	if changed && onChange != nil {
		onChange(amount)
	}
}

// OwnerParam returns the owner query value for id under policy.
func OwnerParam(id domain.Identity, policy config.OwnerParam) string {
	if policy == config.OwnerParamAlias && id.Alias != "" {
		return id.Alias
	}
	return id.Owner()
}
