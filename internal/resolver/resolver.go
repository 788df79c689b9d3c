package resolver

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"time"

	"examsolver/internal/backend"
	"examsolver/internal/config"
	"examsolver/internal/domain"
	"examsolver/internal/port"
)

// Options bounds how hard the resolver tries for one problem.
type Options struct {
	MaxAttempts    int
	PerCallTimeout time.Duration
	BaseDelay      time.Duration
	MaxDelay       time.Duration
}

// OptionsFromConfig maps resolver configuration onto Options.
func OptionsFromConfig(cfg *config.ResolverConfig) Options {
	return Options{
		MaxAttempts:    cfg.MaxAttempts,
		PerCallTimeout: cfg.PerCallTimeout,
		BaseDelay:      cfg.BaseDelay,
		MaxDelay:       cfg.MaxDelay,
	}
}

// Resolver turns a Problem into an AnswerResult by querying a reasoning
// backend. It never mutates the Problem.
type Resolver struct {
	backend port.ReasoningBackend
	opts    Options

	// jitter returns a duration in [0, d]; replaced in tests.
	jitter func(d time.Duration) time.Duration
}

// New creates a Resolver.
func New(b port.ReasoningBackend, opts Options) *Resolver {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Resolver{
		backend: b,
		opts:    opts,
		jitter:  fullJitter,
	}
}

// Resolve answers one problem. Malformed problems are skipped without a
// backend call. Transient failures are retried with exponential backoff up
// to MaxAttempts total calls. ctx gates new attempts and backoff waits; a
// call already in flight is bounded only by PerCallTimeout.
func (r *Resolver) Resolve(ctx context.Context, p *domain.Problem) domain.AnswerResult {
	result := domain.AnswerResult{
		ProblemID: p.ID,
		Validity:  p.Validity,
	}
	if !p.Validity.Resolvable() {
		result.Status = domain.StatusSkippedMalformed
		return result
	}

	req := port.ReasoningRequest{
		ProblemID: p.ID,
		Stem:      p.Stem,
		Choices:   p.Choices,
	}

	for attempt := 1; attempt <= r.opts.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			result.Status = domain.StatusCancelled
			return result
		}

		result.Attempts = attempt
		resp, err := r.call(ctx, req)
		if err == nil {
			result.RawResponse = resp.Text
			result.Error = ""
			if label, ok := ParseLabel(resp.Text, p.Choices); ok {
				result.Label = &label
				result.Status = domain.StatusResolved
			} else {
				result.Status = domain.StatusInvalidFormat
			}
			return result
		}

		result.Error = err.Error()
		if !backend.IsTransient(err) {
			log.Printf("resolver.Resolve: problem %d failed permanently: %v", p.ID, err)
			result.Status = domain.StatusBackendFailed
			return result
		}
		if attempt == r.opts.MaxAttempts {
			break
		}

		delay := r.backoff(attempt, err)
		log.Printf("resolver.Resolve: problem %d attempt %d/%d failed, retrying in %s: %v",
			p.ID, attempt, r.opts.MaxAttempts, delay, err)
		if !sleep(ctx, delay) {
			result.Status = domain.StatusCancelled
			return result
		}
	}

	log.Printf("resolver.Resolve: problem %d exhausted %d attempts", p.ID, r.opts.MaxAttempts)
	result.Status = domain.StatusBackendFailed
	return result
}

func (r *Resolver) call(ctx context.Context, req port.ReasoningRequest) (*port.ReasoningResponse, error) {
	ctx = context.WithoutCancel(ctx)
	if r.opts.PerCallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.PerCallTimeout)
		defer cancel()
	}
	resp, err := r.backend.Answer(ctx, req)
	if err == nil && resp == nil {
		return nil, &backend.TransientError{Provider: "unknown", Err: errors.New("empty reply")}
	}
	return resp, err
}

// backoff returns the wait before attempt n+1: base*2^(n-1) capped at
// MaxDelay, fully jittered, and never shorter than a provider's Retry-After
// (itself capped at MaxDelay).
func (r *Resolver) backoff(n int, err error) time.Duration {
	d := r.opts.BaseDelay
	for i := 1; i < n && d < r.opts.MaxDelay; i++ {
		d *= 2
	}
	if r.opts.MaxDelay > 0 && d > r.opts.MaxDelay {
		d = r.opts.MaxDelay
	}
	d = r.jitter(d)

	if floor, ok := backend.RetryAfter(err); ok {
		if r.opts.MaxDelay > 0 && floor > r.opts.MaxDelay {
			floor = r.opts.MaxDelay
		}
		if d < floor {
			d = floor
		}
	}
	return d
}

func fullJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return rand.N(d + 1)
}

// sleep waits for d or until ctx is done. It reports whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
