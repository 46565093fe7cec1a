package scribepool

import (
	"context"
	"time"
)

// Executor retries transient failures with pure exponential backoff:
// baseDelay * 2^attempt, no jitter. Permanent failures short-circuit after a
// single invocation, quota errors are handed straight back to the caller for
// pool-level failover, and context cancellation always wins over retry.
type Executor struct {
	maxRetries int
	baseDelay  time.Duration
	logger     Logger
	metrics    Metrics

	// sleep is replaceable in tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor builds an executor from the retry fields of cfg.
func NewExecutor(cfg Config) *Executor {
	cfg = cfg.withDefaults()
	return &Executor{
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Execute invokes op until it succeeds, fails permanently, or the retry
// budget runs out. The last error is returned as-is so callers can still
// classify it; exhausted retries never yield a partial result.
func (e *Executor) Execute(ctx context.Context, name string, op func(ctx context.Context) (any, error)) (any, error) {
	var lastErr error

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		// Cancellation wins over retry, even when the failure itself
		// would have been retryable.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Quota exhaustion is terminal for this credential; the pool
		// decides whether another one can absorb the job.
		if IsQuotaError(err) {
			return nil, err
		}

		c := Classify(err)
		if !c.Retryable || attempt == e.maxRetries {
			return nil, err
		}

		delay := e.baseDelay * (1 << attempt)
		e.metrics.RecordRetry(name, attempt, delay)
		e.logger.Warn("retrying after transient failure",
			Field{"work", name},
			Field{"attempt", attempt + 1},
			Field{"delay", delay.String()},
			Field{"error", err.Error()},
		)
		if err := e.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, lastErr
}
