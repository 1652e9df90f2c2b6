package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vietddude/breadwatch/internal/infra/rpc"
)

// ProviderPool reports the availability of a set of RPC providers.
type ProviderPool interface {
	Available() bool
	GetProviderHealth() map[string]rpc.HealthStatus
}

// PollStatus reports the progress of the live subscription.
type PollStatus interface {
	Status() (lastPollAt time.Time, lastErr error)
	LastBlock() uint64
}

// Breaker reports the state of a circuit breaker.
type Breaker interface {
	State() gobreaker.State
}

// Monitor aggregates health status from the running components.
type Monitor struct {
	rpcPools     map[string]ProviderPool
	subscription PollStatus
	staleAfter   time.Duration
	pool         Breaker
	cacheFor     time.Duration

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport *HealthReport
}

// NewMonitor creates a new health monitor. A subscription that has not
// completed a poll within staleAfter is reported degraded.
func NewMonitor(rpcPools map[string]ProviderPool, subscription PollStatus, pool Breaker, staleAfter time.Duration) *Monitor {
	return &Monitor{
		rpcPools:     rpcPools,
		subscription: subscription,
		staleAfter:   staleAfter,
		pool:         pool,
		cacheFor:     5 * time.Second,
	}
}

// CheckHealth builds a health report. Reports are reused for a few seconds.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && time.Since(m.lastCheck) < m.cacheFor {
		return *m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth),
	}
	add := func(c ComponentHealth) {
		report.Components[c.Name] = c
		report.SystemStatus = worst(report.SystemStatus, c.Status)
	}

	for name, pool := range m.rpcPools {
		add(checkProviders("rpc:"+name, pool))
	}
	if m.subscription != nil {
		add(m.checkSubscription())
	}
	if m.pool != nil {
		add(checkBreaker("pool", m.pool))
	}

	m.lastCheck = time.Now()
	m.lastReport = &report
	return report
}

func checkProviders(name string, pool ProviderPool) ComponentHealth {
	health := ComponentHealth{Name: name, Status: StatusHealthy}
	providers := pool.GetProviderHealth()

	down := 0
	for _, h := range providers {
		if !h.Available {
			down++
		}
	}

	switch {
	case !pool.Available():
		health.Status = StatusCritical
		health.Detail = "no provider available"
	case down > 0:
		health.Status = StatusDegraded
		health.Detail = fmt.Sprintf("%d of %d providers unavailable", down, len(providers))
	}
	return health
}

func (m *Monitor) checkSubscription() ComponentHealth {
	health := ComponentHealth{Name: "subscription", Status: StatusHealthy}
	lastPoll, lastErr := m.subscription.Status()

	switch {
	case lastPoll.IsZero():
		health.Status = StatusDegraded
		health.Detail = "no successful poll yet"
	case m.staleAfter > 0 && time.Since(lastPoll) > m.staleAfter:
		health.Status = StatusDegraded
		health.Detail = fmt.Sprintf("last poll %s ago", time.Since(lastPoll).Truncate(time.Second))
	default:
		health.Detail = fmt.Sprintf("block %d", m.subscription.LastBlock())
	}
	if lastErr != nil {
		health.Detail += ": " + lastErr.Error()
	}
	return health
}

func checkBreaker(name string, b Breaker) ComponentHealth {
	health := ComponentHealth{Name: name, Status: StatusHealthy}
	switch b.State() {
	case gobreaker.StateOpen:
		health.Status = StatusDegraded
		health.Detail = "circuit open"
	case gobreaker.StateHalfOpen:
		health.Detail = "circuit half-open"
	}
	return health
}
