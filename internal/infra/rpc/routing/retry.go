package routing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/vietddude/breadwatch/internal/infra/rpc/provider"
)

// RetryConfig defines retry behavior.
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     3,
	InitialDelay:    500 * time.Millisecond,
	MaxDelay:        10 * time.Second,
	BackoffMultiple: 2.0,
}

// NoRetryConfig runs exactly one attempt per provider.
var NoRetryConfig = RetryConfig{MaxAttempts: 1}

// ErrorAction determines how to handle an error.
type ErrorAction int

const (
	ActionRetry ErrorAction = iota
	ActionFailover
	ActionFatal
)

func (a ErrorAction) String() string {
	switch a {
	case ActionFailover:
		return "failover"
	case ActionFatal:
		return "fatal"
	default:
		return "retry"
	}
}

// fatalCodes are JSON-RPC errors caused by the request itself:
// parse error, invalid request, method not found, invalid params and
// execution reverted.
var fatalCodes = map[int]struct{}{
	-32700: {}, -32600: {}, -32601: {}, -32602: {}, 3: {},
}

// rejected are node answers that no other provider would answer differently.
var rejected = []string{
	"execution reverted",
	"insufficient funds",
	"nonce too low",
	"already known",
	"replacement transaction underpriced",
}

// providerFaults are answers specific to the provider or our plan with it.
var providerFaults = []string{
	"429", "too many requests", "rate limit",
	"403", "forbidden", "unauthorized",
	"quota", "plan limit", "count exceeded",
	"block range", "range is too large",
}

// ClassifyError determines the action for a given error.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionRetry
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ActionFatal
	}

	var cooldown *provider.CooldownError
	if errors.As(err, &cooldown) {
		return ActionFailover
	}

	var rpcErr *provider.RPCError
	if errors.As(err, &rpcErr) {
		if _, ok := fatalCodes[rpcErr.Code]; ok {
			return ActionFatal
		}
	}

	msg := strings.ToLower(err.Error())
	if containsAny(msg, rejected) {
		return ActionFatal
	}
	if containsAny(msg, providerFaults) {
		return ActionFailover
	}

	// Network, 5xx and unknown node errors.
	return ActionRetry
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// CallWithRetry executes an operation with exponential backoff.
func CallWithRetry(
	ctx context.Context,
	p provider.Provider,
	op provider.Operation,
	config RetryConfig,
) (any, error) {
	var lastErr error

	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		result, err := p.Execute(ctx, op)
		if err == nil {
			return result, nil
		}

		lastErr = err

		// Classify error
		action := ClassifyError(err)
		if action == ActionFatal {
			return nil, err // Stop immediately, do not retry
		}
		if action == ActionFailover {
			return nil, err // Return error immediately to try next provider
		}

		// ActionRetry: continue loop
		if attempt == config.MaxAttempts-1 {
			break
		}

		timer := time.NewTimer(calculateBackoff(attempt, config))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", config.MaxAttempts, lastErr)
}

// CallWithRetryAndFailover tries multiple providers with retry.
func CallWithRetryAndFailover(
	ctx context.Context,
	router Router,
	op provider.Operation,
	config RetryConfig,
) (any, error) {
	providers := router.GetAllProviders()
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}

	var lastErr error
	for _, p := range providers {
		start := time.Now()
		result, err := CallWithRetry(ctx, p, op, config)
		latency := time.Since(start)
		if err == nil {
			router.RecordSuccess(p.GetName(), latency)
			return result, nil
		}

		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// A fatal error is the request's fault, not the provider's
		if ClassifyError(err) == ActionFatal {
			return nil, fmt.Errorf("fatal error from provider %s: %w", p.GetName(), err)
		}
		router.RecordFailure(p.GetName(), err)
	}

	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}

func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.BackoffMultiple, float64(attempt))
	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}
	return time.Duration(delay)
}
