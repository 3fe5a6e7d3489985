// Package client provides a Go client for a remote volshift server.
//
// Usage:
//
//	c, err := client.New("https://volshift.internal:8080",
//	    client.WithAPIKey("..."),
//	)
//
//	// Forward an EventBridge delivery.
//	outcome, err := c.PostEvent(ctx, raw)
//
//	// Inspect and resolve failures.
//	entries, err := c.ListDLQ(ctx, client.ListDLQOpts{Unresolved: true})
//	entry, err := c.ResolveDLQ(ctx, entries[0].ID.String())
package client

import (
	"bytes"
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

	"github.com/xraph/volshift/backoff"
)

// ErrNotFound is returned when the server reports 404.
var ErrNotFound = errors.New("volshift/client: not found")

// Client talks to the volshift HTTP API.
type Client struct {
	base   *url.URL
	apiKey string
	http   *http.Client
	logger *slog.Logger

	maxRetries int
	baseDelay  time.Duration
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("volshift/client: parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("volshift/client: unsupported scheme %q", u.Scheme)
	}
	c := &Client{
		base:      u,
		http:      &http.Client{Timeout: 30 * time.Second},
		logger:    slog.Default(),
		baseDelay: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("volshift/client: %d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
}

// Unwrap lets errors.Is match ErrNotFound.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// do sends one request and decodes a JSON response into out when out is
// non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, out any) error {
	u := *c.base
	u.Path += path
	u.RawQuery = query.Encode()

	strategy := backoff.NewExponentialWithJitter(c.baseDelay, 10*time.Second)
	for attempt := 0; ; attempt++ {
		resp, err := c.send(ctx, method, u.String(), body)
		if err == nil && !retryable(resp.StatusCode) {
			return decodeResponse(resp, out)
		}
		if attempt >= c.maxRetries {
			if err != nil {
				return fmt.Errorf("volshift/client: %s %s: %w", method, path, err)
			}
			return decodeResponse(resp, out)
		}
		if resp != nil {
			_ = resp.Body.Close()
		}

		delay := strategy.Delay(attempt + 1)
		c.logger.Debug("volshift/client: retrying",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) send(ctx context.Context, method, target string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	return c.http.Do(req)
}

func retryable(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(data))
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("volshift/client: decode response: %w", err)
	}
	return nil
}
