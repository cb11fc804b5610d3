package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/commongraph/graphview/pkg/graph"
	"github.com/commongraph/graphview/pkg/platform"
	"github.com/commongraph/graphview/pkg/schema"
	"github.com/commongraph/graphview/pkg/search"
)

const defaultEndpoint = "http://127.0.0.1:8000"

// Client talks to the graph platform backend.
type Client struct {
	endpoint   string
	http       *http.Client
	tokens     TokenSource
	backoff    BackoffStrategy
	maxRetries int
}

// Option configures a Client.
type Option func(*Client)

// WithTokenSource authenticates requests with a bearer token.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRetry sets how many times transient failures are retried.
func WithRetry(maxRetries int, backoff BackoffStrategy) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		if backoff != nil {
			c.backoff = backoff
		}
	}
}

// NewClient creates a backend client.
// endpoint defaults to "http://127.0.0.1:8000" if empty.
func NewClient(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		backoff:    DefaultBackoff(),
		maxRetries: 2,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the backend base URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// GetConfig fetches the platform configuration (GET /config).
func (c *Client) GetConfig(ctx context.Context) (*platform.Config, error) {
	var cfg platform.Config
	if err := c.getJSON(ctx, "/config", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetSchema fetches the graph schema (GET /graph/schema).
func (c *Client) GetSchema(ctx context.Context) (*schema.Schema, error) {
	var sc schema.Schema
	if err := c.getJSON(ctx, "/graph/schema", &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// GetGraph fetches the whole network (GET /graph).
func (c *Client) GetGraph(ctx context.Context) (*graph.Export, error) {
	var export graph.Export
	if err := c.getJSON(ctx, "/graph", &export); err != nil {
		return nil, err
	}
	return &export, nil
}

// SearchNodes lists nodes matching a parsed search query (GET /nodes).
func (c *Client) SearchNodes(ctx context.Context, q search.Query) ([]graph.NodeRecord, error) {
	path := "/nodes"
	if values := q.Values(); len(values) > 0 {
		path += "?" + values.Encode()
	}
	var nodes []graph.NodeRecord
	if err := c.getJSON(ctx, path, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// Ping checks that the backend answers.
func (c *Client) Ping(ctx context.Context) (Status, error) {
	var status Status
	if err := c.getJSON(ctx, "/", &status); err != nil {
		return Status{}, err
	}
	return status, nil
}

// getJSON issues a GET and decodes the body into out. Network errors and
// transient statuses are retried with backoff; a 401 triggers one token
// refresh when the token source supports it.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	var lastErr error
	var hint time.Duration
	refreshed := false

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryWait(c.backoff, attempt-1, hint)):
			case <-ctx.Done():
				return ctx.Err()
			}
			hint = 0
		}

		body, err := c.do(ctx, http.MethodGet, path)
		if err == nil {
			defer body.Close()
			if err := json.NewDecoder(body).Decode(out); err != nil {
				return fmt.Errorf("failed to decode %s: %w", path, err)
			}
			return nil
		}
		lastErr = err

		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			if statusErr.Code == http.StatusUnauthorized && !refreshed {
				if r, ok := c.tokens.(Refresher); ok {
					refreshed = true
					if rerr := r.Refresh(ctx); rerr != nil {
						return fmt.Errorf("token refresh failed: %w", rerr)
					}
					attempt-- // the refresh retry does not count against the budget
					continue
				}
			}
			if !statusErr.Transient() {
				return err
			}
			hint = statusErr.RetryAfter
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}

// do sends one request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to obtain token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		statusErr := &StatusError{Method: method, Path: path, Code: resp.StatusCode}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			statusErr.RetryAfter, _ = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		}
		return nil, statusErr
	}
	return resp.Body, nil
}
