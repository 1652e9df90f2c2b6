package provider

import (
	"testing"
	"time"
)

func TestMonitor_ErrorRateWindow(t *testing.T) {
	m := NewMonitor()

	for i := 0; i < outcomeWindow; i++ {
		m.Failure()
	}
	if m.Available() {
		t.Error("expected provider failing every call to be unavailable")
	}

	// Successes push the failures out of the window.
	for i := 0; i < outcomeWindow; i++ {
		m.Success(10 * time.Millisecond)
	}
	if !m.Available() {
		t.Error("expected provider to recover once recent calls succeed")
	}
	if h := m.Health(); h.Requests != 2*outcomeWindow || h.ErrorRate != 0 {
		t.Errorf("unexpected health %+v", h)
	}
}

func TestMonitor_FewFailuresKeepAvailable(t *testing.T) {
	m := NewMonitor()
	m.Failure()
	m.Failure()

	if !m.Available() {
		t.Error("expected small samples not to mark the provider unavailable")
	}
}

func TestMonitor_Slow(t *testing.T) {
	m := NewMonitor()
	for i := 0; i < minOutcomeSample; i++ {
		m.Success(5 * time.Second)
	}

	if status := m.Status(); status != StatusSlow {
		t.Errorf("expected StatusSlow, got %v", status)
	}
	if !m.Available() {
		t.Error("a slow provider is still usable")
	}
}

func TestMonitor_RetryAfter(t *testing.T) {
	m := NewMonitor()
	m.Throttle(429, "30")

	if d := m.RetryAfter(); d <= 0 || d > 30*time.Second {
		t.Errorf("expected retry-after within 30s, got %v", d)
	}
	if parseRetryAfter("bogus") != time.Minute {
		t.Error("expected default of one minute for unparsable header")
	}
}

func TestMonitor_BlockedOn403(t *testing.T) {
	m := NewMonitor()
	m.Throttle(403, "")

	if status := m.Status(); status != StatusBlocked {
		t.Errorf("expected StatusBlocked, got %v", status)
	}
	if d := m.RetryAfter(); d < 9*time.Minute {
		t.Errorf("expected a long cooldown for a block, got %v", d)
	}
}

func TestIsThrottleMessage(t *testing.T) {
	if !IsThrottleMessage("Your app has exceeded its compute units per second capacity") {
		t.Error("expected compute units message to be a throttle")
	}
	if IsThrottleMessage("execution reverted") {
		t.Error("revert is not a throttle")
	}
}
