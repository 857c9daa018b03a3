package llm

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// retryableError marks a failure worth another attempt. When the server
// supplied a Retry-After header its value takes precedence over the
// exponential backoff schedule.
type retryableError struct {
	err        error
	retryAfter time.Duration
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// backoffDelay computes the exponential backoff for an attempt:
// base * 2^attempt, capped at maxBackoff.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	delay := base << uint(attempt)
	if delay > maxBackoff || delay <= 0 {
		return maxBackoff
	}
	return delay
}

// parseRetryAfter reads a Retry-After header given in whole seconds. Zero is
// returned when the header is absent or unparseable, which falls back to the
// backoff schedule.
func parseRetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}

	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func retryable(err error, retryAfter time.Duration) error {
	return &retryableError{err: err, retryAfter: retryAfter}
}

func statusError(code int) error {
	return fmt.Errorf("extraction api returned status %d", code)
}
