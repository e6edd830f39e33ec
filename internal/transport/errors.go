package transport

import "fmt"

// APIError is a completed HTTP exchange with a non-success status.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d", e.Status)
}

// RequestError is an exchange that failed below the HTTP layer, with a
// best-effort capture of whatever body was received.
type RequestError struct {
	Cause error
	Body  string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed: %v", e.Cause)
}

func (e *RequestError) Unwrap() error {
	return e.Cause
}

// RateLimitError is returned after the retry budget for rate-limited
// responses is exhausted. It is terminal; callers decide whether to
// collapse it into a generic transport failure for display.
type RateLimitError struct {
	Status int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited after retries: status %d", e.Status)
}
