package rpc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vietddude/breadwatch/internal/infra/rpc/provider"
	"github.com/vietddude/breadwatch/internal/infra/rpc/routing"
	"github.com/vietddude/breadwatch/internal/metrics"
)

// Client is the high-level interface for making RPC calls.
// This is what application layers should use.
type Client struct {
	chain  string
	router routing.Router
	retry  routing.RetryConfig

	// noRetry lists methods that must run at most once per provider.
	noRetry map[string]struct{}
}

// NewClient creates a new RPC client.
func NewClient(chain string, router routing.Router) *Client {
	return &Client{
		chain:  chain,
		router: router,
		retry:  routing.DefaultRetryConfig,
		noRetry: map[string]struct{}{
			"eth_sendRawTransaction": {},
		},
	}
}

// SetRetryConfig overrides the retry behavior.
func (c *Client) SetRetryConfig(cfg routing.RetryConfig) {
	c.retry = cfg
}

// Execute runs an operation with retry and failover across providers.
func (c *Client) Execute(ctx context.Context, op Operation) (any, error) {
	cfg := c.retry
	if _, ok := c.noRetry[op.Name]; ok {
		cfg = routing.NoRetryConfig
	}

	start := time.Now()
	result, err := routing.CallWithRetryAndFailover(ctx, c.router, op, cfg)

	metrics.RPCCallsTotal.WithLabelValues(c.chain, op.Name).Inc()
	metrics.RPCLatency.WithLabelValues(c.chain, op.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RPCErrorsTotal.WithLabelValues(c.chain, op.Name, errorType(err)).Inc()
		return nil, fmt.Errorf("%s: %w", op.Name, err)
	}
	return result, nil
}

// Call is a convenience wrapper around Execute.
func (c *Client) Call(ctx context.Context, method string, params []any) (any, error) {
	return c.Execute(ctx, NewHTTPOperation(method, params))
}

// Chain returns the chain label used for metrics.
func (c *Client) Chain() string {
	return c.chain
}

// GetProviderHealth returns health for every provider.
func (c *Client) GetProviderHealth() map[string]provider.HealthStatus {
	providers := c.router.GetAllProviders()
	health := make(map[string]provider.HealthStatus, len(providers))
	for _, p := range providers {
		health[p.GetName()] = p.GetHealth()
	}
	return health
}

// Available reports whether at least one provider is usable.
func (c *Client) Available() bool {
	for _, p := range c.router.GetAllProviders() {
		if p.IsAvailable() {
			return true
		}
	}
	return false
}

// Close releases provider resources.
func (c *Client) Close() error {
	for _, p := range c.router.GetAllProviders() {
		_ = p.Close()
	}
	return nil
}

func errorType(err error) string {
	switch routing.ClassifyError(err) {
	case routing.ActionFatal:
		return "fatal"
	case routing.ActionFailover:
		if strings.Contains(strings.ToLower(err.Error()), "403") {
			return "blocked"
		}
		return "throttled"
	default:
		return "transient"
	}
}
