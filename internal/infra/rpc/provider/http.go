package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// maxResponseBytes bounds a single JSON-RPC response body.
const maxResponseBytes = 32 << 20

// HTTPProvider is a JSON-RPC 2.0 endpoint reached over HTTP.
type HTTPProvider struct {
	name       string
	endpoint   string
	httpClient *http.Client
	nextID     atomic.Uint64

	Monitor *Monitor
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	ID     uint64    `json:"id"`
	Result any       `json:"result"`
	Error  *RPCError `json:"error"`
}

// NewHTTPProvider creates a provider. timeout bounds each HTTP round trip.
func NewHTTPProvider(name, endpoint string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProvider{
		name:     name,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		Monitor: NewMonitor(),
	}
}

// Call makes a single JSON-RPC call.
func (p *HTTPProvider) Call(ctx context.Context, method string, params []any) (any, error) {
	switch status := p.Monitor.Status(); status {
	case StatusThrottled, StatusBlocked:
		return nil, &CooldownError{Provider: p.name, Status: status, RetryAfter: p.Monitor.RetryAfter()}
	}

	if params == nil {
		params = []any{}
	}
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      p.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	start := time.Now()
	resp, body, err := p.post(ctx, payload)
	if err != nil {
		p.Monitor.Failure()
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		retryAfter := resp.Header.Get("Retry-After")
		p.Monitor.Throttle(http.StatusTooManyRequests, retryAfter)
		return nil, fmt.Errorf("rate limited (429), retry after: %q", retryAfter)
	case http.StatusForbidden:
		p.Monitor.Throttle(http.StatusForbidden, "")
		return nil, fmt.Errorf("ip blocked (403)")
	default:
		if IsThrottleMessage(string(body)) {
			p.Monitor.Throttle(http.StatusTooManyRequests, "")
			return nil, fmt.Errorf("rate limited (http %d): %s", resp.StatusCode, body)
		}
		p.Monitor.Failure()
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, body)
	}

	var out rpcResponse
	if err := json.Unmarshal(body, &out); err != nil {
		p.Monitor.Failure()
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if out.Error != nil {
		if IsThrottleMessage(out.Error.Message) {
			p.Monitor.Throttle(http.StatusTooManyRequests, "")
		} else {
			// The node answered; a JSON-RPC error is not a transport failure.
			p.Monitor.Success(time.Since(start))
		}
		return nil, out.Error
	}

	p.Monitor.Success(time.Since(start))
	return out.Result, nil
}

func (p *HTTPProvider) post(ctx context.Context, payload []byte) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}
	return resp, body, nil
}

// Execute runs a JSON-RPC operation through Call.
func (p *HTTPProvider) Execute(ctx context.Context, op Operation) (any, error) {
	return p.Call(ctx, op.Name, op.Params)
}

// GetName returns the provider's name.
func (p *HTTPProvider) GetName() string {
	return p.name
}

// GetHealth returns the provider's health status.
func (p *HTTPProvider) GetHealth() HealthStatus {
	return p.Monitor.Health()
}

// IsAvailable checks if the provider is available.
func (p *HTTPProvider) IsAvailable() bool {
	return p.Monitor.Available()
}

// Close cleans up resources.
func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
