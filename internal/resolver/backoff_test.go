package resolver

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"examsolver/internal/backend"
)

func noJitter(d time.Duration) time.Duration { return d }

func TestBackoff_ExponentialAndCapped(t *testing.T) {
	r := New(nil, Options{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 5 * time.Second})
	r.jitter = noJitter
	transient := &backend.TransientError{Provider: "x", Err: errors.New("503")}

	assert.Equal(t, time.Second, r.backoff(1, transient))
	assert.Equal(t, 2*time.Second, r.backoff(2, transient))
	assert.Equal(t, 4*time.Second, r.backoff(3, transient))
	assert.Equal(t, 5*time.Second, r.backoff(4, transient))
	assert.Equal(t, 5*time.Second, r.backoff(30, transient))
}

func TestBackoff_RetryAfterFloor(t *testing.T) {
	r := New(nil, Options{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second})
	r.jitter = func(time.Duration) time.Duration { return 0 }

	assert.Equal(t, 10*time.Second, r.backoff(1, backend.NewRateLimitError("x", errors.New("429"), 10)))
	// floor never exceeds MaxDelay
	assert.Equal(t, 30*time.Second, r.backoff(1, backend.NewRateLimitError("x", errors.New("429"), 120)))
}

func TestFullJitter_Bounds(t *testing.T) {
	assert.Equal(t, time.Duration(0), fullJitter(0))
	for i := 0; i < 100; i++ {
		d := fullJitter(10 * time.Millisecond)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 10*time.Millisecond)
	}
}
