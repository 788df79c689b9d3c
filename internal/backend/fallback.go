package backend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"examsolver/internal/port"
)

// circuitState tracks rate-limit backoff for a single backend.
type circuitState struct {
	mu      sync.RWMutex
	resetAt time.Time // zero value = closed (healthy)
}

func (c *circuitState) isOpenWithReset(now time.Time) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resetAt, !c.resetAt.IsZero() && now.Before(c.resetAt)
}

func (c *circuitState) open(resetAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetAt = resetAt
}

// FallbackBackend tries backends in order, skipping those with open circuits.
// It implements port.ReasoningBackend.
type FallbackBackend struct {
	backends []port.ReasoningBackend
	circuits []*circuitState
	names    []string
}

// NewFallbackBackend creates a FallbackBackend from an ordered list of backends and their names.
func NewFallbackBackend(backends []port.ReasoningBackend, names []string) *FallbackBackend {
	circuits := make([]*circuitState, len(backends))
	for i := range circuits {
		circuits[i] = &circuitState{}
	}
	return &FallbackBackend{
		backends: backends,
		circuits: circuits,
		names:    names,
	}
}

// Answer returns the first successful reply. When every backend is rate
// limited the result is a RateLimitError so the caller's retry loop can wait
// out the earliest reset.
func (f *FallbackBackend) Answer(ctx context.Context, req port.ReasoningRequest) (*port.ReasoningResponse, error) {
	now := time.Now()
	var lastErr error
	allRateLimited := true
	allPermanent := true
	var earliestReset time.Time

	for i, b := range f.backends {
		if resetAt, open := f.circuits[i].isOpenWithReset(now); open {
			log.Printf("backend.FallbackBackend: skipping %s (circuit open until %s)", f.names[i], resetAt.Format(time.RFC3339))
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
			allPermanent = false
			continue
		}

		out, err := b.Answer(ctx, req)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}

		log.Printf("backend.FallbackBackend: %s failed for problem %d: %v", f.names[i], req.ProblemID, err)
		lastErr = err

		var rlErr *RateLimitError
		var permErr *PermanentError
		if errors.As(err, &rlErr) {
			resetAt := now.Add(rlErr.RetryAfter)
			f.circuits[i].open(resetAt)
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
			allPermanent = false
		} else {
			allRateLimited = false
			if !errors.As(err, &permErr) {
				allPermanent = false
			}
		}
	}

	if lastErr == nil || allRateLimited {
		retryAfter := time.Until(earliestReset)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return nil, NewRateLimitError("all", fmt.Errorf("all backends rate limited"), int(retryAfter.Seconds()))
	}

	if allPermanent {
		return nil, &PermanentError{Provider: "all", Err: fmt.Errorf("all backends failed: %w", lastErr)}
	}
	return nil, &TransientError{Provider: "all", Err: fmt.Errorf("all backends failed: %w", lastErr)}
}
