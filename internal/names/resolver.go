// Package names resolves wallet addresses to human-readable aliases through
// ENS reverse records, with an in-process and an optional shared cache.
package names

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"

	"github.com/vietddude/breadwatch/internal/metrics"
)

// Store is a shared alias cache. An empty alias with found true is a cached
// negative result.
type Store interface {
	GetAlias(ctx context.Context, address string) (alias string, found bool, err error)
	SetAlias(ctx context.Context, address, alias string, ttl time.Duration) error
}

// State is the resolution state of one address.
type State struct {
	Alias   string `json:"alias,omitempty"`
	Loading bool   `json:"loading"`
	Err     string `json:"error,omitempty"`
}

// Config controls the resolver.
type Config struct {
	Registry  common.Address
	CacheSize int
	TTL       time.Duration
}

type entry struct {
	alias   string
	expires time.Time
}

// Resolver resolves addresses to aliases.
type Resolver struct {
	ens   *ens
	store Store
	cache *lru.Cache
	ttl   time.Duration
	log   *slog.Logger

	mu     sync.Mutex
	states map[common.Address]State
}

// NewResolver creates a resolver. store may be nil.
func NewResolver(caller ContractCaller, store Store, cfg Config) (*Resolver, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	cache, err := lru.New(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create alias cache: %w", err)
	}
	return &Resolver{
		ens:    &ens{caller: caller, registry: cfg.Registry},
		store:  store,
		cache:  cache,
		ttl:    cfg.TTL,
		log:    slog.Default().With("component", "names"),
		states: make(map[common.Address]State),
	}, nil
}

// Resolve returns the alias of addr, or "" when it has none.
func (r *Resolver) Resolve(ctx context.Context, addr common.Address) (string, error) {
	key := strings.ToLower(addr.Hex())

	if v, ok := r.cache.Get(key); ok {
		e := v.(entry)
		if time.Now().Before(e.expires) {
			metrics.AliasLookups.WithLabelValues("memory").Inc()
			r.setState(addr, State{Alias: e.alias})
			return e.alias, nil
		}
		r.cache.Remove(key)
	}

	r.setState(addr, State{Loading: true})

	if r.store != nil {
		alias, found, err := r.store.GetAlias(ctx, key)
		if err != nil {
			r.log.Debug("Alias store read failed", "address", key, "error", err)
		} else if found {
			metrics.AliasLookups.WithLabelValues("store").Inc()
			r.remember(key, alias)
			r.setState(addr, State{Alias: alias})
			return alias, nil
		}
	}

	metrics.AliasLookups.WithLabelValues("chain").Inc()
	alias, err := r.ens.lookup(ctx, addr)
	if err != nil {
		r.setState(addr, State{Err: err.Error()})
		return "", fmt.Errorf("resolve %s: %w", addr.Hex(), err)
	}

	r.remember(key, alias)
	if r.store != nil {
		if err := r.store.SetAlias(ctx, key, alias, r.ttl); err != nil {
			r.log.Debug("Alias store write failed", "address", key, "error", err)
		}
	}
	r.setState(addr, State{Alias: alias})

	if alias != "" {
		r.log.Info("Alias resolved", "address", addr.Hex(), "alias", alias)
	}
	return alias, nil
}

// State returns the resolution state of addr.
func (r *Resolver) State(addr common.Address) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[addr]
}

func (r *Resolver) remember(key, alias string) {
	r.cache.Add(key, entry{alias: alias, expires: time.Now().Add(r.ttl)})
}

func (r *Resolver) setState(addr common.Address, st State) {
	r.mu.Lock()
	r.states[addr] = st
	r.mu.Unlock()
}
