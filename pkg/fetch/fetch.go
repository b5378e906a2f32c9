// Package fetch is the single place HTTP requests are made from. Every
// failure mode a caller cares about (timeout, refused connection, non-2xx
// status) surfaces as an error wrapping ErrNetwork, so pipeline steps can
// treat "the network let us down" uniformly.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNetwork marks any transport or HTTP status failure.
var ErrNetwork = errors.New("network error")

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status for %s: %s", e.URL, e.Status)
}

func (e *StatusError) Unwrap() error { return ErrNetwork }

const userAgent = "doomstrap"

// Client wraps an http.Client with the launcher's defaults. The zero value
// is not usable; construct with New.
type Client struct {
	http *http.Client
}

func New(timeout time.Duration) *Client {
	return &Client{
		http: &http.Client{Timeout: timeout},
	}
}

// FromHTTP wraps an existing http.Client (used by tests and by callers that
// share a client with other components).
func FromHTTP(h *http.Client) *Client {
	return &Client{http: h}
}

// HTTP exposes the underlying client for components that manage their own
// requests (fetchurl, asset uploads).
func (c *Client) HTTP() *http.Client { return c.http }

// Get fetches url and returns the whole body. No retries: a failed fetch
// aborts the calling pipeline step.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	body, _, err := c.Stream(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrNetwork, url, err)
	}
	return data, nil
}

// Stream opens url for streaming reads and returns the body along with the
// declared content length (0 when the server did not send one). The caller
// owns the returned body.
func (c *Client) Stream(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, 0, &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}
	return resp.Body, total, nil
}
