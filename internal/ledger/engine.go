package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vietddude/breadwatch/internal/core/domain"
	"github.com/vietddude/breadwatch/internal/metrics"
)

// Snapshot is an immutable view of the ledger published to observers.
type Snapshot struct {
	Identity domain.Identity
	Epoch    uint64
	Loading  bool
	Entries  []domain.TimestampedMintEvent
}

type message interface{ isMessage() }

type identityMsg struct {
	identity domain.Identity
	done     chan struct{}
}

type historyMsg struct {
	epoch  uint64
	events []domain.TimestampedMintEvent
	err    error
}

type liveMsg struct {
	events []domain.MintEvent
}

type stampedMsg struct {
	epoch uint64
	event domain.TimestampedMintEvent
}

func (identityMsg) isMessage() {}
func (historyMsg) isMessage()  {}
func (liveMsg) isMessage()     {}
func (stampedMsg) isMessage()  {}

// Engine maintains the ledger of the connected identity. All ledger state is
// owned by the Run goroutine; other goroutines talk to it through the inbox.
type Engine struct {
	history *History
	times   *BlockTimes
	log     *slog.Logger

	inbox chan message

	// Owned by Run.
	identity    domain.Identity
	epoch       uint64
	ledger      Ledger
	loading     bool
	inflight    map[domain.EventKey]struct{}
	epochCtx    context.Context
	cancelEpoch context.CancelFunc

	mu       sync.RWMutex
	snapshot Snapshot
	subs     map[int]chan Snapshot
	nextSub  int
}

// NewEngine creates an engine. Call Run before sending it work.
func NewEngine(history *History, times *BlockTimes) *Engine {
	return &Engine{
		history:  history,
		times:    times,
		log:      slog.Default().With("component", "ledger"),
		inbox:    make(chan message, 64),
		inflight: make(map[domain.EventKey]struct{}),
		subs:     make(map[int]chan Snapshot),
	}
}

// Run processes messages until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer func() {
		if e.cancelEpoch != nil {
			e.cancelEpoch()
		}
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-e.inbox:
			switch m := msg.(type) {
			case identityMsg:
				e.handleIdentity(ctx, &wg, m)
			case historyMsg:
				e.handleHistory(m)
			case liveMsg:
				e.handleLive(&wg, m)
			case stampedMsg:
				e.handleStamped(m)
			}
		}
	}
}

// SetIdentity switches the ledger to id. The ledger is cleared before it
// returns; the historical fetch continues in the background.
func (e *Engine) SetIdentity(ctx context.Context, id domain.Identity) error {
	done := make(chan struct{})
	select {
	case e.inbox <- identityMsg{identity: id, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Feed delivers one batch of live mint notifications.
func (e *Engine) Feed(ctx context.Context, events []domain.MintEvent) error {
	if len(events) == 0 {
		return nil
	}
	select {
	case e.inbox <- liveMsg{events: events}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume feeds every batch from ch until it closes or ctx is cancelled.
func (e *Engine) Consume(ctx context.Context, ch <-chan []domain.MintEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-ch:
			if !ok {
				return nil
			}
			if err := e.Feed(ctx, batch); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("feed live mints: %w", err)
			}
		}
	}
}

func (e *Engine) handleIdentity(ctx context.Context, wg *sync.WaitGroup, m identityMsg) {
	if e.cancelEpoch != nil {
		e.cancelEpoch()
		e.cancelEpoch = nil
	}

	e.epoch++
	e.identity = m.identity
	e.ledger = Ledger{}
	e.inflight = make(map[domain.EventKey]struct{})
	e.loading = m.identity.Connected()
	e.publish()
	close(m.done)

	if !m.identity.Connected() {
		e.log.Info("Ledger cleared", "epoch", e.epoch)
		return
	}

	epochCtx, cancel := context.WithCancel(ctx)
	e.epochCtx = epochCtx
	e.cancelEpoch = cancel
	epoch := e.epoch
	addr := m.identity.Address

	e.log.Info("Fetching mint history", "address", addr.Hex(), "epoch", epoch)

	wg.Add(1)
	go func() {
		defer wg.Done()
		events, err := e.history.Fetch(epochCtx, addr)
		e.send(epochCtx, historyMsg{epoch: epoch, events: events, err: err})
	}()
}

func (e *Engine) handleHistory(m historyMsg) {
	if m.epoch != e.epoch {
		return
	}
	e.loading = false

	if m.err != nil {
		e.log.Warn("Mint history fetch failed", "address", e.identity.Address.Hex(), "error", m.err)
		e.publish()
		return
	}

	e.ledger = e.ledger.Merge(m.events)
	e.log.Info("Mint history loaded", "address", e.identity.Address.Hex(), "count", e.ledger.Len())
	e.publish()
}

func (e *Engine) handleLive(wg *sync.WaitGroup, m liveMsg) {
	for _, ev := range m.events {
		if !e.identity.Is(ev.Beneficiary) {
			metrics.LedgerForeign.Inc()
			continue
		}

		key := ev.Key()
		if e.ledger.Contains(key) {
			metrics.LedgerDuplicates.Inc()
			continue
		}
		if _, pending := e.inflight[key]; pending {
			metrics.LedgerDuplicates.Inc()
			continue
		}
		e.inflight[key] = struct{}{}

		ev := ev
		epoch := e.epoch
		ctx := e.epochCtx
		wg.Add(1)
		go func() {
			defer wg.Done()
			stamped, err := e.times.Stamp(ctx, ev)
			if err != nil {
				metrics.TimestampFailures.WithLabelValues("live").Inc()
				e.log.Warn("Block time lookup failed", "block", ev.BlockNumber, "tx", ev.TxHash.Hex(), "error", err)
			}
			e.send(ctx, stampedMsg{epoch: epoch, event: stamped})
		}()
	}
}

func (e *Engine) handleStamped(m stampedMsg) {
	if m.epoch != e.epoch {
		return
	}
	delete(e.inflight, m.event.Key())

	next, added := e.ledger.Prepend(m.event)
	if !added {
		metrics.LedgerDuplicates.Inc()
		return
	}
	e.ledger = next
	e.log.Info("Live mint recorded",
		"block", m.event.BlockNumber,
		"tx", m.event.TxHash.Hex(),
		"amount", m.event.Amount.String(),
	)
	e.publish()
}

func (e *Engine) send(ctx context.Context, msg message) {
	select {
	case e.inbox <- msg:
	case <-ctx.Done():
	}
}

func (e *Engine) publish() {
	snap := Snapshot{
		Identity: e.identity,
		Epoch:    e.epoch,
		Loading:  e.loading,
		Entries:  e.ledger.Entries(),
	}
	metrics.LedgerSize.Set(float64(len(snap.Entries)))

	e.mu.Lock()
	e.snapshot = snap
	for _, ch := range e.subs {
		// Latest snapshot wins for slow observers.
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
	e.mu.Unlock()
}

// Snapshot returns the latest published ledger view.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot
}

// Subscribe returns a channel receiving every published snapshot, starting
// with the current one, and a function that ends the subscription.
func (e *Engine) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	ch <- e.snapshot
	e.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, id)
			e.mu.Unlock()
		})
	}
}
