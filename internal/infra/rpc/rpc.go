// Package rpc provides a resilient JSON-RPC client for EVM networks.
//
// This package offers:
//   - Multiple provider support (Alchemy, Infura, public nodes)
//   - Ordered failover with a per-provider circuit breaker
//   - Retry with exponential backoff for transient errors
//   - Health monitoring and Prometheus metrics
//
// # Quick Start
//
//	router := rpc.NewRouter()
//	router.AddProvider(rpc.NewHTTPProvider("alchemy", alchemyURL, 10*time.Second))
//	router.AddProvider(rpc.NewHTTPProvider("public", publicURL, 10*time.Second))
//
//	client := rpc.NewClient("base", router)
//	result, err := client.Execute(ctx, rpc.NewHTTPOperation("eth_blockNumber", nil))
//
// # Package Structure
//
//   - provider/ - Provider implementations (HTTPProvider, monitoring)
//   - routing/  - Provider selection, retry and failover
//
// Most types are re-exported at the root level for convenience.
package rpc

import (
	"context"
	"time"

	"github.com/vietddude/breadwatch/internal/infra/rpc/provider"
	"github.com/vietddude/breadwatch/internal/infra/rpc/routing"
)

// Provider is the core interface for RPC endpoints.
type Provider = provider.Provider

// HTTPProvider implements Provider for JSON-RPC over HTTP.
type HTTPProvider = provider.HTTPProvider

// HealthStatus represents the health state of a provider.
type HealthStatus = provider.HealthStatus

// Operation represents an RPC operation to execute.
type Operation = provider.Operation

// RPCError is a JSON-RPC error object returned by a node.
type RPCError = provider.RPCError

// Router handles provider selection and health tracking.
type Router = routing.Router

// RetryConfig defines retry behavior.
type RetryConfig = routing.RetryConfig

// DefaultRetryConfig provides sensible retry defaults.
var DefaultRetryConfig = routing.DefaultRetryConfig

// RPCClient is what chain adapters depend on.
type RPCClient interface {
	Execute(ctx context.Context, op Operation) (any, error)
}

// NewHTTPProvider creates a new HTTP-based RPC provider.
func NewHTTPProvider(name, endpoint string, timeout time.Duration) *HTTPProvider {
	return provider.NewHTTPProvider(name, endpoint, timeout)
}

// NewRouter creates a new failover router.
func NewRouter() *routing.DefaultRouter {
	return routing.NewRouter()
}
