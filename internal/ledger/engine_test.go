package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/breadwatch/internal/core/domain"
)

type fakeChain struct {
	mu         sync.Mutex
	head       uint64
	mints      []domain.MintEvent
	failBlocks map[uint64]bool
	failQuery  bool
	gate       chan struct{} // when set, GetBlock waits on it
	blockCalls int
}

func (f *fakeChain) GetLatestBlock(ctx context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeChain) GetBlock(ctx context.Context, n uint64) (*domain.Block, error) {
	f.mu.Lock()
	f.blockCalls++
	gate := f.gate
	fail := f.failBlocks[n]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("header not found")
	}
	return &domain.Block{Number: n, Timestamp: n * 12}, nil
}

func (f *fakeChain) QueryMints(ctx context.Context, from, to uint64, who *common.Address) ([]domain.MintEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failQuery {
		return nil, errors.New("query timeout")
	}
	var out []domain.MintEvent
	for _, m := range f.mints {
		if who != nil && m.Beneficiary != *who {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeChain) QueryTransfers(ctx context.Context, from, to uint64) ([]domain.TransferNotification, error) {
	return nil, nil
}

func startEngine(t *testing.T, source *fakeChain) *Engine {
	t.Helper()
	times, err := NewBlockTimes(source, 16)
	require.NoError(t, err)
	e := NewEngine(NewHistory(source, times, 0, 4), times)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = e.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return e
}

func connect(t *testing.T, e *Engine, addr common.Address) {
	t.Helper()
	require.NoError(t, e.SetIdentity(context.Background(), domain.Identity{Address: addr}))
}

func waitLoaded(t *testing.T, e *Engine) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool { return !e.Snapshot().Loading }, time.Second, 5*time.Millisecond)
	return e.Snapshot()
}

func TestEngine_HistoricalOrdering(t *testing.T) {
	source := &fakeChain{head: 100, mints: []domain.MintEvent{
		mintAt(alice, 5, "0x05"),
		mintAt(alice, 3, "0x03"),
		mintAt(alice, 9, "0x09"),
	}}
	e := startEngine(t, source)
	connect(t, e, alice)

	snap := waitLoaded(t, e)
	assert.Equal(t, []uint64{9, 5, 3}, blocks(snap.Entries))
	assert.Equal(t, time.Unix(9*12, 0).UTC(), snap.Entries[0].Timestamp)
}

func TestEngine_LiveDuplicateDeliveredTwice(t *testing.T) {
	source := &fakeChain{head: 100}
	e := startEngine(t, source)
	connect(t, e, alice)
	waitLoaded(t, e)

	ev := mintAt(alice, 101, "0xaa")
	require.NoError(t, e.Feed(context.Background(), []domain.MintEvent{ev}))
	require.NoError(t, e.Feed(context.Background(), []domain.MintEvent{ev}))

	require.Eventually(t, func() bool { return len(e.Snapshot().Entries) == 1 }, time.Second, 5*time.Millisecond)
	// Give a second delivery time to land if it were going to.
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, e.Snapshot().Entries, 1)
}

func TestEngine_LiveDuplicateOfHistorical(t *testing.T) {
	ev := mintAt(alice, 7, "0x07")
	source := &fakeChain{head: 100, mints: []domain.MintEvent{ev}}
	e := startEngine(t, source)
	connect(t, e, alice)
	waitLoaded(t, e)

	require.NoError(t, e.Feed(context.Background(), []domain.MintEvent{ev}))
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, e.Snapshot().Entries, 1)
}

func TestEngine_BeneficiaryFilter(t *testing.T) {
	source := &fakeChain{head: 100}
	e := startEngine(t, source)
	connect(t, e, alice)
	waitLoaded(t, e)

	require.NoError(t, e.Feed(context.Background(), []domain.MintEvent{
		mintAt(bob, 101, "0xb1"),
		mintAt(alice, 102, "0xa1"),
	}))

	require.Eventually(t, func() bool { return len(e.Snapshot().Entries) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	entries := e.Snapshot().Entries
	require.Len(t, entries, 1)
	assert.Equal(t, alice, entries[0].Beneficiary)
}

func TestEngine_LivePrependsRegardlessOfBlock(t *testing.T) {
	source := &fakeChain{head: 100, mints: []domain.MintEvent{mintAt(alice, 50, "0x50")}}
	e := startEngine(t, source)
	connect(t, e, alice)
	waitLoaded(t, e)

	require.NoError(t, e.Feed(context.Background(), []domain.MintEvent{mintAt(alice, 10, "0x10")}))
	require.Eventually(t, func() bool { return len(e.Snapshot().Entries) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []uint64{10, 50}, blocks(e.Snapshot().Entries))
}

func TestEngine_TimestampFailureIsolated(t *testing.T) {
	source := &fakeChain{
		head: 100,
		mints: []domain.MintEvent{
			mintAt(alice, 5, "0x05"),
			mintAt(alice, 3, "0x03"),
			mintAt(alice, 9, "0x09"),
		},
		failBlocks: map[uint64]bool{5: true},
		gate:       make(chan struct{}),
	}
	e := startEngine(t, source)
	connect(t, e, alice)

	// Nothing becomes visible while lookups are outstanding.
	require.Eventually(t, func() bool {
		source.mu.Lock()
		defer source.mu.Unlock()
		return source.blockCalls == 3
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, e.Snapshot().Entries)
	assert.True(t, e.Snapshot().Loading)

	close(source.gate)
	snap := waitLoaded(t, e)

	require.Len(t, snap.Entries, 3)
	assert.Equal(t, []uint64{9, 5, 3}, blocks(snap.Entries))
	assert.True(t, snap.Entries[0].TimeKnown())
	assert.False(t, snap.Entries[1].TimeKnown())
	assert.Equal(t, domain.UnknownTime, snap.Entries[1].TimeLabel)
	assert.True(t, snap.Entries[2].TimeKnown())
}

func TestEngine_LiveTimestampFailureKeepsEvent(t *testing.T) {
	source := &fakeChain{head: 100, failBlocks: map[uint64]bool{101: true}}
	e := startEngine(t, source)
	connect(t, e, alice)
	waitLoaded(t, e)

	require.NoError(t, e.Feed(context.Background(), []domain.MintEvent{mintAt(alice, 101, "0x65")}))
	require.Eventually(t, func() bool { return len(e.Snapshot().Entries) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.UnknownTime, e.Snapshot().Entries[0].TimeLabel)
}

func TestEngine_HistoryFailureKeepsAcceptingLive(t *testing.T) {
	source := &fakeChain{head: 100, failQuery: true}
	e := startEngine(t, source)
	connect(t, e, alice)

	snap := waitLoaded(t, e)
	assert.Empty(t, snap.Entries)

	require.NoError(t, e.Feed(context.Background(), []domain.MintEvent{mintAt(alice, 101, "0x65")}))
	require.Eventually(t, func() bool { return len(e.Snapshot().Entries) == 1 }, time.Second, 5*time.Millisecond)
}

func TestEngine_IdentityIsolation(t *testing.T) {
	source := &fakeChain{
		head: 100,
		mints: []domain.MintEvent{
			mintAt(alice, 5, "0x05"),
			mintAt(bob, 6, "0x06"),
		},
		gate: make(chan struct{}),
	}
	e := startEngine(t, source)

	updates, unsubscribe := e.Subscribe()
	defer unsubscribe()

	var (
		mu   sync.Mutex
		seen []Snapshot
	)
	stop := make(chan struct{})
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for {
			select {
			case s := <-updates:
				mu.Lock()
				seen = append(seen, s)
				mu.Unlock()
			case <-stop:
				return
			}
		}
	}()

	// Alice's history is blocked on timestamps when the identity switches.
	connect(t, e, alice)
	require.NoError(t, e.SetIdentity(context.Background(), domain.Identity{}))
	assert.Empty(t, e.Snapshot().Entries)
	connect(t, e, bob)
	assert.Empty(t, e.Snapshot().Entries)

	close(source.gate)
	snap := waitLoaded(t, e)
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, bob, snap.Entries[0].Beneficiary)

	close(stop)
	<-collected

	mu.Lock()
	defer mu.Unlock()
	for _, s := range seen {
		for _, entry := range s.Entries {
			assert.Equal(t, s.Identity.Address, entry.Beneficiary)
			if s.Identity.Address == bob {
				assert.NotEqual(t, alice, entry.Beneficiary)
			}
		}
	}
}

func TestEngine_DisconnectClearsSynchronously(t *testing.T) {
	source := &fakeChain{head: 100, mints: []domain.MintEvent{mintAt(alice, 5, "0x05")}}
	e := startEngine(t, source)
	connect(t, e, alice)
	waitLoaded(t, e)
	require.Len(t, e.Snapshot().Entries, 1)

	require.NoError(t, e.SetIdentity(context.Background(), domain.Identity{}))
	assert.Empty(t, e.Snapshot().Entries)
	assert.False(t, e.Snapshot().Identity.Connected())

	// Live events with nobody connected are discarded.
	require.NoError(t, e.Feed(context.Background(), []domain.MintEvent{mintAt(alice, 101, "0x65")}))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, e.Snapshot().Entries)
}

func TestBlockTimes_Caches(t *testing.T) {
	source := &fakeChain{}
	times, err := NewBlockTimes(source, 4)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := times.Lookup(context.Background(), 42)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, source.blockCalls)
}

func TestEngine_ConsumeStopsWhenContextEnds(t *testing.T) {
	times, err := NewBlockTimes(&fakeChain{}, 16)
	require.NoError(t, err)
	e := NewEngine(NewHistory(&fakeChain{}, times, 0, 4), times)

	// Not running: the inbox fills up and the next Feed blocks.
	ch := make(chan []domain.MintEvent, cap(e.inbox)+1)
	for i := 0; i < cap(ch); i++ {
		ch <- []domain.MintEvent{mintAt(alice, uint64(i+1), fmt.Sprintf("0x%x", i+1))}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, e.Consume(ctx, ch))
	assert.Len(t, e.inbox, cap(e.inbox))
}

func TestEngine_ConsumeReturnsOnClose(t *testing.T) {
	e := startEngine(t, &fakeChain{})
	ch := make(chan []domain.MintEvent)
	close(ch)
	require.NoError(t, e.Consume(context.Background(), ch))
}
