// Package transport is a thin HTTP layer shared by all upstream fetches.
// It provides JSON requests, streamed downloads and resumable file
// downloads, all behind one retry policy for rate-limited responses.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const (
	// maxAttempts is the total attempt ceiling for rate-limited calls.
	maxAttempts = 3
	backoffBase = time.Second
	backoffCap  = 30 * time.Second
	// maxErrorBody bounds how much of an error response body is kept.
	maxErrorBody = 64 << 10
)

// Spec describes one HTTP exchange.
type Spec struct {
	Method string
	URL    string
	Header http.Header
	Body   io.Reader
}

// Client wraps an http.Client with the shared rate-limit retry policy.
type Client struct {
	http *http.Client
	// sleep is overridable in tests to avoid real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Client. A nil httpClient falls back to a default with a
// conservative request timeout.
func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{http: httpClient, sleep: sleepContext}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// do performs the exchange, retrying rate-limited responses up to the
// attempt ceiling. Any other outcome is returned to the caller as-is.
// The caller owns the response body.
func (c *Client) do(ctx context.Context, spec Spec) (*http.Response, error) {
	method := spec.Method
	if method == "" {
		method = http.MethodGet
	}

	backoff := backoffBase
	for attempt := 1; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, spec.URL, spec.Body)
		if err != nil {
			return nil, &RequestError{Cause: err}
		}
		for key, values := range spec.Header {
			req.Header[key] = values
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, &RequestError{Cause: err}
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		delay := backoff
		if retryAfter := parseRetryAfter(resp.Header.Get("Retry-After")); retryAfter > 0 {
			delay = retryAfter
		}
		drainBody(resp)

		if attempt >= maxAttempts {
			return nil, &RateLimitError{Status: resp.StatusCode}
		}
		slog.Warn("Rate limited, retrying", "logger", "transport", "url", spec.URL, "attempt", attempt, "delay", delay)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, &RequestError{Cause: err}
		}
		backoff = min(backoff*2, backoffCap)
	}
}

// JSON performs the exchange and decodes a successful response body into T.
func JSON[T any](ctx context.Context, c *Client, spec Spec) (T, error) {
	var out T
	resp, err := c.do(ctx, spec)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	if !successStatus(resp.StatusCode) {
		return out, statusError(resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, &RequestError{Cause: err}
	}
	if err := json.Unmarshal(body, &out); err != nil {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return out, &RequestError{
			Cause: fmt.Errorf("decoding response from %s: %w", spec.URL, err),
			Body:  string(body),
		}
	}
	return out, nil
}

// Text performs the exchange and returns a successful response body as a
// string.
func (c *Client) Text(ctx context.Context, spec Spec) (string, error) {
	resp, err := c.do(ctx, spec)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if !successStatus(resp.StatusCode) {
		return "", statusError(resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &RequestError{Cause: err}
	}
	return string(body), nil
}

// StreamTo streams a successful response body into sink.
func (c *Client) StreamTo(ctx context.Context, sink io.Writer, spec Spec) error {
	resp, err := c.do(ctx, spec)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !successStatus(resp.StatusCode) {
		return statusError(resp)
	}
	if _, err := io.Copy(sink, resp.Body); err != nil {
		return &RequestError{Cause: err}
	}
	return nil
}

func successStatus(code int) bool {
	return code >= 200 && code < 300
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{Status: resp.StatusCode, Body: string(body)}
}

func drainBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// IsRateLimited reports whether err is a terminal rate-limit failure.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}
