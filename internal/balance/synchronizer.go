// Package balance keeps the token balance of the connected identity in step
// with the chain.
package balance

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/breadwatch/internal/core/domain"
	"github.com/vietddude/breadwatch/internal/metrics"
)

// Reader reads a token balance.
type Reader interface {
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
}

// State is the balance of one identity. Value is nil when Known is false.
type State struct {
	Identity domain.Identity
	Value    *big.Int
	Known    bool
}

// Synchronizer reads the balance on identity change and again whenever a
// Transfer involving the identity is observed. There is no polling.
type Synchronizer struct {
	reader Reader
	log    *slog.Logger

	mu       sync.RWMutex
	identity domain.Identity
	value    *big.Int
	known    bool
	epoch    uint64
	cancel   context.CancelFunc
	onChange func(State)

	// notifyMu keeps callbacks in commit order. It is taken while mu is held.
	notifyMu sync.Mutex
}

// NewSynchronizer creates a synchronizer.
func NewSynchronizer(reader Reader) *Synchronizer {
	return &Synchronizer{
		reader: reader,
		log:    slog.Default().With("component", "balance"),
	}
}

// OnChange registers a callback invoked after the balance changes. Callbacks
// run in commit order and must not call back into the Synchronizer.
func (s *Synchronizer) OnChange(fn func(State)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// SetIdentity clears the balance, then starts a read for id in the background.
func (s *Synchronizer) SetIdentity(ctx context.Context, id domain.Identity) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.epoch++
	epoch := s.epoch
	s.identity = id
	s.value = nil
	s.known = false
	onChange := s.onChange
	var readCtx context.Context
	if id.Connected() {
		readCtx, s.cancel = context.WithCancel(ctx)
	}
	s.notifyMu.Lock()
	s.mu.Unlock()

	if onChange != nil {
		onChange(State{Identity: id})
	}
	s.notifyMu.Unlock()
	if readCtx == nil {
		return
	}

	go func() {
		if err := s.read(readCtx, epoch, id.Address, "identity"); err != nil && readCtx.Err() == nil {
			s.log.Warn("Balance read failed", "address", id.Address.Hex(), "error", err)
		}
	}()
}

// Refetch reads the balance of the current identity now.
func (s *Synchronizer) Refetch(ctx context.Context) error {
	s.mu.RLock()
	epoch, id := s.epoch, s.identity
	s.mu.RUnlock()

	if !id.Connected() {
		return domain.ErrNotConnected
	}
	return s.read(ctx, epoch, id.Address, "manual")
}

// HandleTransfers refetches once if any transfer in the batch involves the
// connected identity. It reports whether a refetch was issued.
func (s *Synchronizer) HandleTransfers(ctx context.Context, batch []domain.TransferNotification) bool {
	s.mu.RLock()
	epoch, id := s.epoch, s.identity
	s.mu.RUnlock()

	if !id.Connected() {
		return false
	}

	matched := false
	for _, tr := range batch {
		if tr.Involves(id.Address) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	if err := s.read(ctx, epoch, id.Address, "transfer"); err != nil {
		s.log.Warn("Balance refetch failed", "address", id.Address.Hex(), "error", err)
	}
	return true
}

// Consume handles every transfer batch from ch until it closes or ctx is done.
func (s *Synchronizer) Consume(ctx context.Context, ch <-chan []domain.TransferNotification) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-ch:
			if !ok {
				return nil
			}
			s.HandleTransfers(ctx, batch)
		}
	}
}

// Balance returns the current value and whether it is known.
func (s *Synchronizer) Balance() (*big.Int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.known {
		return nil, false
	}
	return new(big.Int).Set(s.value), true
}

// State returns the identity together with its balance.
func (s *Synchronizer) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := State{Identity: s.identity, Known: s.known}
	if s.known {
		st.Value = new(big.Int).Set(s.value)
	}
	return st
}

// read fetches the balance and commits it if epoch is still current. A failed
// read keeps the last committed value.
func (s *Synchronizer) read(ctx context.Context, epoch uint64, addr common.Address, trigger string) error {
	metrics.BalanceRefetches.WithLabelValues(trigger).Inc()
	value, err := s.reader.BalanceOf(ctx, addr)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return nil
	}
	s.value = value
	s.known = true
	st := State{Identity: s.identity, Value: new(big.Int).Set(value), Known: true}
	onChange := s.onChange
	s.notifyMu.Lock()
	s.mu.Unlock()

	if onChange != nil {
		onChange(st)
	}
	s.notifyMu.Unlock()

	s.log.Debug("Balance updated", "address", addr.Hex(), "trigger", trigger, "balance", value.String())
	return nil
}
