// Package provider implements JSON-RPC endpoints and tracks their health.
package provider

import (
	"context"
	"fmt"
	"time"
)

// Operation is one JSON-RPC call.
type Operation struct {
	// Name is the JSON-RPC method, e.g. "eth_call".
	Name string

	// Params are the positional JSON-RPC params.
	Params []any
}

// Provider is one RPC endpoint.
type Provider interface {
	// GetName returns the provider identifier from config.
	GetName() string

	// GetHealth returns current health metrics.
	GetHealth() HealthStatus

	// IsAvailable reports whether the provider should be tried first.
	IsAvailable() bool

	// Execute performs the operation.
	Execute(ctx context.Context, op Operation) (any, error)

	// Close releases idle connections.
	Close() error
}

// HealthStatus is a point-in-time view of a provider.
type HealthStatus struct {
	Available     bool          `json:"available"`
	Status        Status        `json:"status"`
	Latency       time.Duration `json:"latency"`
	ErrorRate     float64       `json:"error_rate"`
	Requests      int           `json:"requests"`
	Throttled     int           `json:"throttled"`
	Blocked       int           `json:"blocked"`
	RetryAfter    time.Duration `json:"retry_after,omitempty"`
	LastSuccessAt time.Time     `json:"last_success_at"`
	LastFailureAt time.Time     `json:"last_failure_at"`
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// CooldownError is returned without a network call while a provider is
// throttled or blocked.
type CooldownError struct {
	Provider   string
	Status     Status
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("provider %s %s, retry after %s", e.Provider, e.Status, e.RetryAfter.Round(time.Second))
}
