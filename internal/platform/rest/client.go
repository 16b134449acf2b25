package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Errors returned by Client.Get
var (
	ErrTimeout       = errors.New("request timed out")
	ErrUnreachable   = errors.New("server unreachable")
	ErrStatus        = errors.New("unexpected HTTP status")
	ErrInvalidJSON   = errors.New("response is not valid JSON")
	ErrInvalidConfig = errors.New("invalid REST client configuration")
)

// maxBodyBytes bounds a single response body.
const maxBodyBytes = 64 << 20

// StatusError carries the status and a prefix of the body of a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// Unwrap makes StatusError match ErrStatus.
func (e *StatusError) Unwrap() error {
	return ErrStatus
}

// Client issues GET requests relative to a base URL.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient creates a client for baseURL with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout %s must be positive", ErrInvalidConfig, timeout)
	}

	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: base URL %q", ErrInvalidConfig, baseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	return &Client{base: base, http: &http.Client{Timeout: timeout}}, nil
}

// URL resolves endpoint against the base URL.
func (c *Client) URL(endpoint string) string {
	return c.base.ResolveReference(&url.URL{Path: strings.TrimPrefix(endpoint, "/")}).String()
}

// Get fetches endpoint and returns the body, which must be valid JSON.
func (c *Client) Get(ctx context.Context, endpoint string) (json.RawMessage, error) {
	target := c.URL(endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", target, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classify(target, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, fmt.Errorf("GET %s: %w", target, &StatusError{Code: resp.StatusCode, Body: snippet})
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("GET %s: %w", target, ErrInvalidJSON)
	}
	return json.RawMessage(body), nil
}

func classify(target string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("GET %s: %w: %v", target, ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("GET %s: %w", target, err)
	}
	return fmt.Errorf("GET %s: %w: %v", target, ErrUnreachable, err)
}
