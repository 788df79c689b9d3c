package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// RateLimitError indicates a backend provider returned HTTP 429.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
	Provider   string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited (retry after %s): %v", e.Provider, e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// NewRateLimitError creates a RateLimitError. If retryAfterSecs is 0, defaults to 60s.
func NewRateLimitError(provider string, err error, retryAfterSecs int) *RateLimitError {
	if retryAfterSecs <= 0 {
		retryAfterSecs = 60
	}
	return &RateLimitError{
		Err:        err,
		RetryAfter: time.Duration(retryAfterSecs) * time.Second,
		Provider:   provider,
	}
}

// ParseRetryAfterHeader parses a Retry-After header value into seconds.
// Returns 0 if the value is empty or not a valid integer.
func ParseRetryAfterHeader(val string) int {
	if val == "" {
		return 0
	}
	secs, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return secs
}

// TransientError is a failure worth retrying: a timeout, a transport error or
// a 5xx from the provider.
type TransientError struct {
	Provider string
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s transient failure: %v", e.Provider, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError is a failure that will not go away on retry, such as an
// invalid API key or a rejected request.
type PermanentError struct {
	Provider string
	Err      error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s permanent failure: %v", e.Provider, e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// ClassifyStatus wraps err according to the HTTP status the provider
// returned. A zero status means the request never got a response.
func ClassifyStatus(provider string, status int, header http.Header, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case status == http.StatusTooManyRequests:
		var retryAfter int
		if header != nil {
			retryAfter = ParseRetryAfterHeader(header.Get("Retry-After"))
		}
		return NewRateLimitError(provider, err, retryAfter)
	case status == 0, status == http.StatusRequestTimeout, status >= 500:
		return &TransientError{Provider: provider, Err: err}
	default:
		return &PermanentError{Provider: provider, Err: err}
	}
}

// IsTransient reports whether err may succeed on a later attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var (
		rl   *RateLimitError
		tr   *TransientError
		perm *PermanentError
	)
	switch {
	case errors.As(err, &perm):
		return false
	case errors.As(err, &rl), errors.As(err, &tr):
		return true
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}

// RetryAfter returns the provider-requested wait carried by err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}
