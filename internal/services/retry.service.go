package services

import (
	"context"
	"math/rand"
	"time"

	"sevadesk/config"
	"sevadesk/internal/logger"
	"sevadesk/internal/syncerr"
)

// RetryPolicy wraps transport calls with bounded exponential backoff and
// jitter. It is an explicit attempt loop (counter, next delay, ctx) rather
// than callback chains, so cancellation mid-backoff and unit testing stay
// straightforward.
type RetryPolicy struct {
	base        time.Duration
	maxDelay    time.Duration
	maxAttempts int
	log         logger.Logger
}

func NewRetryPolicy(cfg config.Config) *RetryPolicy {
	return &RetryPolicy{
		base:        cfg.RetryBaseDelay(),
		maxDelay:    cfg.RetryMaxDelay(),
		maxAttempts: cfg.RetryMaxAttempts,
		log:         logger.New("RetryPolicy"),
	}
}

// Run executes op until it succeeds, fails fatally, exhausts the attempt
// budget, or ctx is canceled. Transient failures are absorbed invisibly up
// to the budget; past it the caller gets a FinalError and decides whether
// to surface or queue. Cancellation abandons the in-flight wait without
// side effects.
func (p *RetryPolicy) Run(ctx context.Context, name string, op func(ctx context.Context) error) error {
	log := p.log.Function("Run").With("operation", name)

	for attempt := 0; ; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 0 {
				log.Info("Operation recovered after retries", "attempts", attempt+1)
			}
			return nil
		}

		if !syncerr.IsRetryable(err) {
			return err
		}

		if attempt+1 >= p.maxAttempts {
			return log.Err("retry budget exhausted", &syncerr.FinalError{
				Cause:    err,
				Attempts: attempt + 1,
			}, "attempts", attempt+1)
		}

		delay := p.NextDelay(attempt)
		log.Debug("Transient failure, backing off",
			"attempt", attempt+1, "delay", delay.String(), "cause", err.Error())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// RunFor is Run for operations that produce a value.
func RunFor[T any](ctx context.Context, p *RetryPolicy, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := p.Run(ctx, name, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}

// NextDelay is the wait before retrying after failed attempt n (zero
// based): min(maxDelay, base*2^n) plus uniform jitter in [0, base).
func (p *RetryPolicy) NextDelay(attempt int) time.Duration {
	delay := p.base << uint(attempt)
	if delay <= 0 || delay > p.maxDelay { // <= 0 guards shift overflow
		delay = p.maxDelay
	}
	return delay + time.Duration(rand.Int63n(int64(p.base)))
}
