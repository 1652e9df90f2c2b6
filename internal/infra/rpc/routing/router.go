// Package routing picks JSON-RPC providers and fails over between them.
//
// Providers are tried in configuration order. A provider that fails
// repeatedly has its circuit opened and is moved behind the others until the
// cooldown passes; CallWithRetryAndFailover in retry.go drives the attempts.
package routing

import (
	"errors"
	"sync"
	"time"

	"github.com/vietddude/breadwatch/internal/infra/rpc/provider"
)

// ErrNoProviders is returned when the router has nothing to call.
var ErrNoProviders = errors.New("no providers configured")

// Router selects providers and receives call outcomes.
type Router interface {
	AddProvider(p provider.Provider)
	GetProvider() (provider.Provider, error)

	// GetAllProviders returns providers in the order they should be tried.
	GetAllProviders() []provider.Provider

	RecordSuccess(providerName string, latency time.Duration)
	RecordFailure(providerName string, err error)
}

// circuit counts consecutive failures of one provider.
type circuit struct {
	fails    int
	openedAt time.Time // zero while closed
}

func (c *circuit) open() bool {
	return !c.openedAt.IsZero()
}

// DefaultRouter is an ordered failover router.
type DefaultRouter struct {
	mu        sync.Mutex
	providers []provider.Provider
	circuits  map[string]*circuit

	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

// RouterOption configures a DefaultRouter.
type RouterOption func(*DefaultRouter)

// WithCircuit sets how many consecutive failures open a circuit and how long
// it stays open.
func WithCircuit(threshold int, cooldown time.Duration) RouterOption {
	return func(r *DefaultRouter) {
		if threshold > 0 {
			r.threshold = threshold
		}
		if cooldown > 0 {
			r.cooldown = cooldown
		}
	}
}

// NewRouter creates a router with a 5 failure / 30s circuit.
func NewRouter(opts ...RouterOption) *DefaultRouter {
	r := &DefaultRouter{
		circuits:  make(map[string]*circuit),
		threshold: 5,
		cooldown:  30 * time.Second,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddProvider appends p to the failover order.
func (r *DefaultRouter) AddProvider(p provider.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers = append(r.providers, p)
	r.circuits[p.GetName()] = &circuit{}
}

// GetProvider returns the provider that would be tried first.
func (r *DefaultRouter) GetProvider() (provider.Provider, error) {
	providers := r.GetAllProviders()
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	return providers[0], nil
}

// GetAllProviders returns healthy providers first; open circuits and
// providers in cooldown follow as a last resort.
func (r *DefaultRouter) GetAllProviders() []provider.Provider {
	r.mu.Lock()
	defer r.mu.Unlock()

	healthy := make([]provider.Provider, 0, len(r.providers))
	var degraded []provider.Provider

	now := r.now()
	for _, p := range r.providers {
		c := r.circuits[p.GetName()]
		if c.open() && now.Sub(c.openedAt) >= r.cooldown {
			// half-open
			*c = circuit{}
		}
		if c.open() || !p.IsAvailable() {
			degraded = append(degraded, p)
			continue
		}
		healthy = append(healthy, p)
	}
	return append(healthy, degraded...)
}

// RecordSuccess closes the provider's circuit.
func (r *DefaultRouter) RecordSuccess(providerName string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.circuits[providerName]; ok {
		*c = circuit{}
	}
}

// RecordFailure counts a failure and opens the circuit at the threshold.
func (r *DefaultRouter) RecordFailure(providerName string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.circuits[providerName]
	if !ok {
		return
	}
	c.fails++
	if c.fails >= r.threshold && !c.open() {
		c.openedAt = r.now()
	}
}

// IsCircuitOpen reports whether a provider is currently pushed to the back.
func (r *DefaultRouter) IsCircuitOpen(providerName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.circuits[providerName]
	return ok && c.open()
}
