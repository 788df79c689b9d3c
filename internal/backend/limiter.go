package backend

import (
	"context"

	"golang.org/x/time/rate"

	"examsolver/internal/port"
)

// NewLimiter returns a token bucket limiter, or nil when ratePerSec is not
// positive.
func NewLimiter(ratePerSec float64, burst int) *rate.Limiter {
	if ratePerSec <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(ratePerSec), burst)
}

type limitedBackend struct {
	limiter  *rate.Limiter
	provider port.ReasoningBackend
}

// NewLimitedBackend throttles calls to p through l. A nil limiter passes
// calls straight through.
func NewLimitedBackend(l *rate.Limiter, p port.ReasoningBackend) port.ReasoningBackend {
	if l == nil {
		return p
	}
	return &limitedBackend{limiter: l, provider: p}
}

func (b *limitedBackend) Answer(ctx context.Context, req port.ReasoningRequest) (*port.ReasoningResponse, error) {
	// Wait fails early when the next token lies past the deadline.
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, &TransientError{Provider: "limiter", Err: err}
	}
	return b.provider.Answer(ctx, req)
}
