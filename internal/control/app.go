// Package control wires the dashboard components into one application and
// fans identity changes out to them.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/breadwatch/internal/balance"
	"github.com/vietddude/breadwatch/internal/core/config"
	"github.com/vietddude/breadwatch/internal/core/domain"
	"github.com/vietddude/breadwatch/internal/health"
	"github.com/vietddude/breadwatch/internal/infra/chain/evm"
	"github.com/vietddude/breadwatch/internal/infra/pool"
	redisclient "github.com/vietddude/breadwatch/internal/infra/redis"
	"github.com/vietddude/breadwatch/internal/infra/rpc"
	"github.com/vietddude/breadwatch/internal/ledger"
	"github.com/vietddude/breadwatch/internal/names"
	"github.com/vietddude/breadwatch/internal/pending"
	"github.com/vietddude/breadwatch/internal/subscription"
	"github.com/vietddude/breadwatch/internal/transfer"
)

// ErrNotStarted is returned by session operations before Start.
var ErrNotStarted = errors.New("app not started")

// App is the application-lifetime object holding every component.
type App struct {
	cfg *config.AppConfig
	log *slog.Logger

	chainRPC *rpc.Client
	ensRPC   *rpc.Client
	adapter  *evm.EVMAdapter

	engine       *ledger.Engine
	subscription *subscription.Poller
	pool         *pool.Client
	pending      *pending.Poller
	balance      *balance.Synchronizer
	submitter    *transfer.Submitter
	resolver     *names.Resolver
	redisClient  *redisclient.Client
	healthMon    *health.Monitor

	events *broadcaster

	// switching holds one token; Connect and Disconnect take it for the
	// whole fan-out so components never follow two identities at once.
	switching chan struct{}

	mu            sync.RWMutex
	identity      domain.Identity
	session       string
	runCtx        context.Context
	stop          context.CancelFunc
	group         *errgroup.Group
	resolveCancel context.CancelFunc
}

// NewApp builds every component from cfg. Nothing runs until Start.
func NewApp(cfg *config.AppConfig) (*App, error) {
	log := slog.Default().With("component", "app")

	chainRPC, err := newRPCClient(cfg.Chain)
	if err != nil {
		return nil, fmt.Errorf("chain rpc: %w", err)
	}

	token, err := domain.ParseAddress(cfg.Token.Address)
	if err != nil {
		return nil, fmt.Errorf("token address: %w", err)
	}

	opts := []evm.Option{evm.WithMaxRange(cfg.Subscription.MaxRange)}
	if cfg.Wallet.PrivateKey != "" {
		signer, err := evm.NewSigner(cfg.Wallet.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("wallet key: %w", err)
		}
		opts = append(opts, evm.WithSigner(signer))
		log.Info("Signer loaded", "address", signer.Address().Hex())
	}
	adapter := evm.NewEVMAdapter(cfg.Chain.ChainID, chainRPC, token, opts...)

	times, err := ledger.NewBlockTimes(adapter, 4096)
	if err != nil {
		return nil, err
	}
	history := ledger.NewHistory(adapter, times, cfg.Token.DeployBlock, 8)
	engine := ledger.NewEngine(history, times)

	sub := subscription.NewPoller(adapter, subscription.Config{
		PollInterval: cfg.Subscription.PollInterval,
		ReplayBlocks: cfg.Subscription.ReplayBlocks,
		HeadCacheTTL: cfg.Subscription.HeadCacheTTL,
	})

	poolClient := pool.NewClient(pool.Config{BaseURL: cfg.Pool.URL, Timeout: cfg.Pool.Timeout})
	pendingPoller := pending.NewPoller(poolClient, cfg.Pool.Interval, cfg.Pool.OwnerParam)
	synchronizer := balance.NewSynchronizer(adapter)

	app := &App{
		cfg:          cfg,
		log:          log,
		chainRPC:     chainRPC,
		adapter:      adapter,
		engine:       engine,
		subscription: sub,
		pool:         poolClient,
		pending:      pendingPoller,
		balance:      synchronizer,
		events:       newBroadcaster(),
		switching:    make(chan struct{}, 1),
	}

	app.submitter = transfer.NewSubmitter(adapter, synchronizer, app, app, cfg.Token.Decimals)

	if cfg.Names.Enabled {
		if err := app.initNames(); err != nil {
			return nil, err
		}
	}

	rpcPools := map[string]health.ProviderPool{chainRPC.Chain(): chainRPC}
	if app.ensRPC != nil {
		rpcPools[app.ensRPC.Chain()] = app.ensRPC
	}
	app.healthMon = health.NewMonitor(rpcPools, sub, poolClient, 10*cfg.Subscription.PollInterval)

	pendingPoller.OnChange(func(v decimal.NullDecimal) {
		app.events.publish(Event{Type: EventPending, Data: pendingView(v)})
	})
	synchronizer.OnChange(func(st balance.State) {
		app.events.publish(Event{Type: EventBalance, Data: balanceView(st, cfg.Token.Decimals)})
	})

	return app, nil
}

func (a *App) initNames() error {
	cfg := a.cfg
	ensCfg := cfg.ENS
	if len(ensCfg.Providers) == 0 {
		return fmt.Errorf("names enabled but ens.providers is empty")
	}
	if ensCfg.Name == "" {
		ensCfg.Name = "ens"
	}
	ensRPC, err := newRPCClient(ensCfg)
	if err != nil {
		return fmt.Errorf("ens rpc: %w", err)
	}
	a.ensRPC = ensRPC

	registry, err := domain.ParseAddress(cfg.Names.Registry)
	if err != nil {
		return fmt.Errorf("names.registry: %w", err)
	}

	var store names.Store
	if cfg.Redis.Enabled() {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			a.log.Warn("Failed to connect to Redis, alias cache is in-memory only", "error", err)
		} else {
			a.redisClient = client
			store = client
		}
	}

	resolver, err := names.NewResolver(evm.NewEVMAdapter(ensCfg.ChainID, ensRPC, common.Address{}), store, names.Config{
		Registry:  registry,
		CacheSize: cfg.Names.CacheSize,
		TTL:       cfg.Names.TTL,
	})
	if err != nil {
		return err
	}
	a.resolver = resolver
	return nil
}

func newRPCClient(cfg config.ChainConfig) (*rpc.Client, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	name := cfg.Name
	if name == "" {
		name = fmt.Sprintf("chain-%d", cfg.ChainID)
	}

	router := rpc.NewRouter()
	for _, p := range cfg.Providers {
		router.AddProvider(rpc.NewHTTPProvider(p.Name, p.URL, cfg.Timeout))
	}
	return rpc.NewClient(name, router), nil
}

// Start runs the engine, the subscription and their consumers. Connects the
// default identity when one is configured.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.runCtx != nil {
		a.mu.Unlock()
		return fmt.Errorf("app already started")
	}
	runCtx, stop := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	a.runCtx, a.stop, a.group = gctx, stop, g
	a.mu.Unlock()

	g.Go(func() error { return a.engine.Run(gctx) })
	g.Go(func() error { return a.subscription.Run(gctx) })
	g.Go(func() error { return a.engine.Consume(gctx, a.subscription.Mints()) })
	g.Go(func() error { return a.balance.Consume(gctx, a.subscription.Transfers()) })
	g.Go(func() error {
		a.forwardLedger(gctx)
		return nil
	})

	a.log.Info("App started",
		"chain", a.chainRPC.Chain(),
		"token", a.adapter.Token().Hex(),
		"names", a.resolver != nil,
	)

	if addr := a.cfg.Wallet.DefaultAddress; addr != "" {
		if _, err := a.Connect(ctx, addr); err != nil {
			a.log.Warn("Failed to connect default identity", "address", addr, "error", err)
		}
	}
	return nil
}

// Stop cancels every task and releases connections.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping app...")

	a.pending.Disconnect()

	a.mu.Lock()
	stop, g := a.stop, a.group
	if a.resolveCancel != nil {
		a.resolveCancel()
		a.resolveCancel = nil
	}
	a.mu.Unlock()

	if stop != nil {
		stop()
		done := make(chan error, 1)
		go func() { done <- g.Wait() }()
		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("Task exited with error", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	_ = a.chainRPC.Close()
	if a.ensRPC != nil {
		_ = a.ensRPC.Close()
	}
	return nil
}

// Connect switches the session to address. Ledger, balance and pending are
// cleared in that order before any refetch starts. ctx bounds only the wait
// for a concurrent switch; the switch itself runs to completion under the
// App's run context.
func (a *App) Connect(ctx context.Context, address string) (domain.Identity, error) {
	id, err := domain.NewIdentity(address)
	if err != nil {
		return domain.Identity{}, err
	}

	if err := a.lockSwitch(ctx); err != nil {
		return domain.Identity{}, err
	}
	defer a.unlockSwitch()

	prev := a.Identity()
	runCtx, err := a.beginSession(id)
	if err != nil {
		return domain.Identity{}, err
	}

	if err := a.clear(runCtx); err != nil {
		a.rollback(prev)
		return domain.Identity{}, err
	}
	if err := a.engine.SetIdentity(runCtx, id); err != nil {
		a.rollback(domain.Identity{})
		return domain.Identity{}, fmt.Errorf("switch ledger: %w", err)
	}
	a.balance.SetIdentity(runCtx, id)
	a.pending.Connect(runCtx, id)

	if a.resolver != nil {
		resolveCtx, cancel := context.WithCancel(runCtx)
		a.mu.Lock()
		a.resolveCancel = cancel
		a.mu.Unlock()
		go a.resolveAlias(resolveCtx, id)
	}

	a.log.Info("Identity connected", "address", id.Address.Hex(), "session", a.Session())
	a.events.publish(Event{Type: EventIdentity, Data: identityView(id)})
	return id, nil
}

// Disconnect clears every component and stops the per-identity tasks.
func (a *App) Disconnect(ctx context.Context) error {
	if err := a.lockSwitch(ctx); err != nil {
		return err
	}
	defer a.unlockSwitch()

	runCtx, err := a.beginSession(domain.Identity{})
	if err != nil {
		return err
	}
	if err := a.clear(runCtx); err != nil {
		return err
	}
	a.log.Info("Identity disconnected")
	a.events.publish(Event{Type: EventIdentity, Data: identityView(domain.Identity{})})
	return nil
}

func (a *App) lockSwitch(ctx context.Context) error {
	select {
	case a.switching <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *App) unlockSwitch() {
	<-a.switching
}

func (a *App) beginSession(id domain.Identity) (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.runCtx == nil {
		return nil, ErrNotStarted
	}
	if a.resolveCancel != nil {
		a.resolveCancel()
		a.resolveCancel = nil
	}
	a.identity = id
	a.session = ""
	if id.Connected() {
		a.session = uuid.NewString()
	}
	return a.runCtx, nil
}

// rollback restores the identity after a switch failed part way. It only
// happens while the App is stopping.
func (a *App) rollback(id domain.Identity) {
	a.mu.Lock()
	a.identity = id
	if !id.Connected() {
		a.session = ""
	}
	a.mu.Unlock()
}

func (a *App) clear(runCtx context.Context) error {
	if err := a.engine.SetIdentity(runCtx, domain.Identity{}); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}
	a.balance.SetIdentity(runCtx, domain.Identity{})
	a.pending.Disconnect()
	return nil
}

func (a *App) resolveAlias(ctx context.Context, id domain.Identity) {
	alias, err := a.resolver.Resolve(ctx, id.Address)
	if err != nil {
		if ctx.Err() == nil {
			a.log.Debug("Alias resolution failed", "address", id.Address.Hex(), "error", err)
		}
		return
	}
	if alias == "" {
		return
	}

	a.mu.Lock()
	if !a.identity.Equal(id) {
		a.mu.Unlock()
		return
	}
	a.identity.Alias = alias
	updated := a.identity
	a.mu.Unlock()

	a.pending.SetAlias(updated)
	a.events.publish(Event{Type: EventIdentity, Data: identityView(updated)})
}

func (a *App) forwardLedger(ctx context.Context) {
	snapshots, cancel := a.engine.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			a.publishLedger(snap)
		}
	}
}

// publishLedger streams snap unless it belongs to an identity that is no
// longer connected. The check and the publish share a.mu so a snapshot can
// never follow the identity event of a later switch.
func (a *App) publishLedger(snap ledger.Snapshot) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if snap.Identity.Connected() && !snap.Identity.Equal(a.identity) {
		return
	}
	a.events.publish(Event{Type: EventLedger, Data: ledgerView(snap, a.cfg.Token.Decimals)})
}

// Notify implements transfer.Notifier by logging and streaming the notification.
func (a *App) Notify(n transfer.Notification) {
	transfer.LogNotifier{}.Notify(n)
	a.events.publish(Event{Type: EventNotification, Data: n})
}

// Identity returns the connected identity.
func (a *App) Identity() domain.Identity {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.identity
}

// Session returns the id of the current session, or "".
func (a *App) Session() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session
}

// Dashboard returns the combined view of every component.
func (a *App) Dashboard() Dashboard {
	id := a.Identity()
	snap := a.engine.Snapshot()
	d := Dashboard{
		Identity: identityView(id),
		Symbol:   a.cfg.Token.Symbol,
		Balance:  balanceView(a.balance.State(), a.cfg.Token.Decimals),
		Pending:  pendingView(a.pending.Amount()),
		Ledger:   ledgerView(snap, a.cfg.Token.Decimals),
	}
	if a.resolver != nil && id.Connected() {
		st := a.resolver.State(id.Address)
		d.Identity.AliasLoading = st.Loading
		d.Identity.AliasError = st.Err
	}
	return d
}

// Events returns the current ledger snapshot.
func (a *App) Events() LedgerView {
	return ledgerView(a.engine.Snapshot(), a.cfg.Token.Decimals)
}

// RefreshBalance reads the balance of the connected identity now.
func (a *App) RefreshBalance(ctx context.Context) (BalanceView, error) {
	if err := a.balance.Refetch(ctx); err != nil {
		return BalanceView{}, err
	}
	return balanceView(a.balance.State(), a.cfg.Token.Decimals), nil
}

// Balance returns the last known balance.
func (a *App) Balance() (*big.Int, bool) {
	return a.balance.Balance()
}

// Submitter returns the transfer form owner.
func (a *App) Submitter() *transfer.Submitter {
	return a.submitter
}

// Pool returns the pool endpoint client.
func (a *App) Pool() *pool.Client {
	return a.pool
}

// Health returns the health monitor.
func (a *App) Health() *health.Monitor {
	return a.healthMon
}

// Subscribe streams events until cancel is called.
func (a *App) Subscribe() (<-chan Event, func()) {
	return a.events.subscribe()
}

// Owner returns the pending-endpoint owner parameter for the current identity.
func (a *App) Owner() (string, error) {
	id := a.Identity()
	if !id.Connected() {
		return "", domain.ErrNotConnected
	}
	return pending.OwnerParam(id, a.cfg.Pool.OwnerParam), nil
}

// WaitIdle blocks until the ledger finished loading or ctx is done.
func (a *App) WaitIdle(ctx context.Context) error {
	snapshots, cancel := a.engine.Subscribe()
	defer cancel()

	if !a.engine.Snapshot().Loading {
		return nil
	}
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap := <-snapshots:
			if !snap.Loading {
				return nil
			}
		case <-ticker.C:
			if !a.engine.Snapshot().Loading {
				return nil
			}
		}
	}
}
