package provider

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// Status is the usability of a provider.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusSlow      Status = "slow"
	StatusThrottled Status = "throttled"
	StatusBlocked   Status = "blocked"
)

const (
	latencyWindow = 64
	outcomeWindow = 32

	slowThreshold    = 3 * time.Second
	maxErrorRate     = 0.5
	blockedCooldown  = 10 * time.Minute
	defaultCooldown  = time.Minute
	minOutcomeSample = 8
)

// throttleMessages are substrings providers use to signal rate limiting in
// a 200 response or a JSON-RPC error.
var throttleMessages = []string{
	"rate limit",
	"too many requests",
	"request count exceeded",
	"quota exceeded",
	"compute units",
	"capacity exceeded",
}

// IsThrottleMessage reports whether msg looks like a rate-limit response.
func IsThrottleMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, p := range throttleMessages {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// Monitor tracks latency, recent error rate and throttling of one provider.
type Monitor struct {
	mu sync.Mutex

	latencies [latencyWindow]time.Duration
	latNext   int
	latCount  int

	failed    [outcomeWindow]bool
	outNext   int
	outCount  int
	requests  int
	throttled int
	blocked   int

	cooldownStatus Status
	cooldownUntil  time.Time

	lastSuccess time.Time
	lastFailure time.Time
}

// NewMonitor creates a monitor for a fresh provider.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// Success records a completed call.
func (m *Monitor) Success(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.latencies[m.latNext] = latency
	m.latNext = (m.latNext + 1) % latencyWindow
	if m.latCount < latencyWindow {
		m.latCount++
	}
	m.outcome(false)
	m.lastSuccess = time.Now()
}

// Failure records a failed call.
func (m *Monitor) Failure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.outcome(true)
	m.lastFailure = time.Now()
}

// Throttle starts a cooldown after a 429 or 403. retryAfter is the raw
// Retry-After header, in seconds.
func (m *Monitor) Throttle(statusCode int, retryAfter string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.outcome(true)
	m.lastFailure = time.Now()

	if statusCode == 403 {
		m.blocked++
		m.cooldownStatus = StatusBlocked
		m.cooldownUntil = time.Now().Add(blockedCooldown)
		return
	}
	m.throttled++
	m.cooldownStatus = StatusThrottled
	m.cooldownUntil = time.Now().Add(parseRetryAfter(retryAfter))
}

// Status returns the current status.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status()
}

// RetryAfter returns the remaining cooldown, or zero.
func (m *Monitor) RetryAfter() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d := time.Until(m.cooldownUntil); d > 0 {
		return d
	}
	return 0
}

// Available reports whether the provider is usable: not cooling down and
// failing at most half of its recent calls.
func (m *Monitor) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.status() {
	case StatusThrottled, StatusBlocked:
		return false
	}
	return m.outCount < minOutcomeSample || m.errorRate() <= maxErrorRate
}

// Health returns a snapshot for reporting.
func (m *Monitor) Health() HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := HealthStatus{
		Status:        m.status(),
		Latency:       m.averageLatency(),
		ErrorRate:     m.errorRate(),
		Requests:      m.requests,
		Throttled:     m.throttled,
		Blocked:       m.blocked,
		LastSuccessAt: m.lastSuccess,
		LastFailureAt: m.lastFailure,
	}
	if d := time.Until(m.cooldownUntil); d > 0 {
		h.RetryAfter = d
	}
	h.Available = h.Status != StatusThrottled && h.Status != StatusBlocked &&
		(m.outCount < minOutcomeSample || h.ErrorRate <= maxErrorRate)
	return h
}

func (m *Monitor) outcome(failed bool) {
	m.requests++
	m.failed[m.outNext] = failed
	m.outNext = (m.outNext + 1) % outcomeWindow
	if m.outCount < outcomeWindow {
		m.outCount++
	}
}

func (m *Monitor) status() Status {
	if time.Now().Before(m.cooldownUntil) {
		return m.cooldownStatus
	}
	if m.latCount >= minOutcomeSample && m.averageLatency() > slowThreshold {
		return StatusSlow
	}
	return StatusHealthy
}

func (m *Monitor) averageLatency() time.Duration {
	if m.latCount == 0 {
		return 0
	}
	var total time.Duration
	for i := 0; i < m.latCount; i++ {
		total += m.latencies[i]
	}
	return total / time.Duration(m.latCount)
}

func (m *Monitor) errorRate() float64 {
	if m.outCount == 0 {
		return 0
	}
	n := 0
	for i := 0; i < m.outCount; i++ {
		if m.failed[i] {
			n++
		}
	}
	return float64(n) / float64(m.outCount)
}

// parseRetryAfter reads a Retry-After header in seconds, defaulting to one minute.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return defaultCooldown
	}
	return time.Duration(secs) * time.Second
}
