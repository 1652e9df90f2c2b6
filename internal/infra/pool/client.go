// Package pool is a client for the off-chain pool endpoint that reports
// pending bread and node status per owner.
package pool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the endpoint is considered down.
var ErrCircuitOpen = errors.New("pool endpoint circuit open")

// StatusError is a non-200 answer from the endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// callerError wraps failures caused by the caller: a cancelled or expired
// request context, or a request the endpoint rejected as invalid.
type callerError struct{ err error }

func (e callerError) Error() string { return e.err.Error() }
func (e callerError) Unwrap() error { return e.err }

// endpointHealthy tells the breaker which outcomes say nothing bad about the
// endpoint itself.
func endpointHealthy(err error) bool {
	var ce callerError
	return err == nil || errors.As(err, &ce)
}

// Config holds client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client calls the pool endpoint behind a circuit breaker.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker
	log            *slog.Logger
}

// PendingResponse is the body of /yourpendingbread.
type PendingResponse struct {
	Bread json.RawMessage `json:"bread"`
}

// NodesResponse is the body of /yournodes.
type NodesResponse struct {
	NodesOnline int               `json:"nodesOnline"`
	Nodes       []json.RawMessage `json:"nodes"`
}

// ContinentsResponse is the body of /nodecontinents.
type ContinentsResponse struct {
	Continents map[string]int `json:"continents"`
}

// NewClient creates a pool endpoint client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	log := slog.Default().With("component", "pool")

	cbSettings := gobreaker.Settings{
		Name:        "pool",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: endpointHealthy,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Info("Pool circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		circuitBreaker: gobreaker.NewCircuitBreaker(cbSettings),
		log:            log,
	}
}

// PendingBread returns the raw bread value reported for owner.
func (c *Client) PendingBread(ctx context.Context, owner string) (json.RawMessage, error) {
	var resp PendingResponse
	if err := c.get(ctx, "/yourpendingbread", url.Values{"owner": {owner}}, &resp); err != nil {
		return nil, fmt.Errorf("get pending bread: %w", err)
	}
	return resp.Bread, nil
}

// Nodes returns node status for owner.
func (c *Client) Nodes(ctx context.Context, owner string) (*NodesResponse, error) {
	var resp NodesResponse
	if err := c.get(ctx, "/yournodes", url.Values{"owner": {owner}}, &resp); err != nil {
		return nil, fmt.Errorf("get nodes: %w", err)
	}
	return &resp, nil
}

// Continents returns the node count per region.
func (c *Client) Continents(ctx context.Context) (*ContinentsResponse, error) {
	var resp ContinentsResponse
	if err := c.get(ctx, "/nodecontinents", nil, &resp); err != nil {
		return nil, fmt.Errorf("get continents: %w", err)
	}
	return &resp, nil
}

// State returns the circuit breaker state.
func (c *Client) State() gobreaker.State {
	return c.circuitBreaker.State()
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		err := c.doRequest(ctx, path, query, out)
		if err != nil && isCallerFault(ctx, err) {
			return nil, callerError{err}
		}
		return nil, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	var ce callerError
	if errors.As(err, &ce) {
		return ce.err
	}
	return err
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values, out any) error {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// isCallerFault reports whether err came from ctx ending or from a 4xx other
// than 429. The client's own timeout still counts as an endpoint failure.
func isCallerFault(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests
	}
	return false
}
