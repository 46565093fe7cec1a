package scribepool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Scheduler is the per-provider gateway: it picks a credential for each unit
// of work, runs the remote call through the retry executor, records usage on
// success and fails over to another credential when the provider reports the
// quota as exhausted.
//
// Construct one Scheduler per process service root and pass it by reference;
// it is safe for concurrent use.
type Scheduler struct {
	pool  *Pool
	exec  *Executor
	store Store // may be nil: state is then purely in-memory
	cfg   Config

	mu    sync.Mutex
	prefs Preferences

	logger  Logger
	metrics Metrics
}

// NewScheduler builds a scheduler over an existing pool. store may be nil;
// when present it receives tracker snapshots after every state change and
// supplies persisted preferences at construction.
func NewScheduler(ctx context.Context, pool *Pool, store Store, cfg Config) (*Scheduler, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	s := &Scheduler{
		pool:    pool,
		exec:    NewExecutor(cfg),
		store:   store,
		cfg:     cfg,
		prefs:   DefaultPreferences(),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}

	if store != nil {
		prefs, err := store.LoadPreferences(ctx)
		if err != nil {
			return nil, fmt.Errorf("load preferences: %w", err)
		}
		s.prefs = prefs

		snaps, err := store.LoadTrackerSnapshots(ctx)
		if err != nil {
			return nil, fmt.Errorf("load tracker snapshots: %w", err)
		}
		pool.Restore(snaps)
	}

	return s, nil
}

// NewSchedulerFromStore loads the credential list from the store and builds
// the pool and scheduler in one step.
func NewSchedulerFromStore(ctx context.Context, store Store, cfg Config) (*Scheduler, error) {
	if store == nil {
		return nil, ErrStoreUnavailable
	}
	keys, err := store.LoadCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	pool, err := NewPool(keys, cfg)
	if err != nil {
		return nil, err
	}
	return NewScheduler(ctx, pool, store, cfg)
}

// NewSingleKeyScheduler builds a scheduler around exactly one credential,
// for callers that have no pool to manage. The capability question is
// settled here, at construction; nothing probes for a pool per call.
func NewSingleKeyScheduler(ctx context.Context, key string, cfg Config) (*Scheduler, error) {
	pool, err := NewPool([]string{key}, cfg)
	if err != nil {
		return nil, err
	}
	return NewScheduler(ctx, pool, nil, cfg)
}

// Preferences returns the current pool preferences.
func (s *Scheduler) Preferences() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// SetPreferences updates the pool preferences, persisting them when a store
// is configured.
func (s *Scheduler) SetPreferences(ctx context.Context, prefs Preferences) error {
	s.mu.Lock()
	s.prefs = prefs
	s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	start := time.Now()
	err := s.store.SavePreferences(ctx, prefs)
	s.metrics.RecordStoreOperation("save_preferences", time.Since(start), err)
	return err
}

// Status reports the pool state with credentials masked.
func (s *Scheduler) Status() []KeyStatus {
	return s.pool.Status()
}

// MinWaitTime returns the shortest wait in seconds until a credential frees up.
func (s *Scheduler) MinWaitTime() int {
	return s.pool.MinWaitTime()
}

// Schedule runs one unit of work whose quota cost is estimated up front
// (audio seconds for transcription, line counts for translation).
//
// When no credential can absorb the cost, Schedule fails fast with a
// backpressure error carrying the minimum wait time, distinguishable from a
// hard failure via IsBackpressure. A quota rejection mid-flight resyncs the
// tracker from the provider's figures and, if rotation is enabled and a
// replacement exists, retries once on the replacement; a second consecutive
// quota rejection is surfaced.
func (s *Scheduler) Schedule(ctx context.Context, work Work, cost int) (any, error) {
	cred, ok := s.pickKey(cost)
	if !ok {
		wait := s.pool.MinWaitTime()
		s.metrics.RecordBackpressure(wait)
		s.logger.Warn("pool exhausted",
			Field{"work", work.Name},
			Field{"cost", cost},
			Field{"min_wait_seconds", wait},
		)
		return nil, &Error{
			Err:         ErrNoKeysAvailable,
			Retryable:   true,
			WaitSeconds: wait,
			Suggestion:  fmt.Sprintf("all credentials are exhausted or cooling down; retry in about %ds", wait),
		}
	}

	result, err := s.runWithKey(ctx, work, cred, cost)
	if err == nil {
		s.metrics.RecordSchedule(work.Name, cost, true)
		return result, nil
	}

	if IsQuotaError(err) {
		replacement, found := s.pool.HandleQuotaError(cred, errMessage(err))
		s.saveSnapshots(ctx)

		if found && s.Preferences().AutoRotate {
			s.metrics.RecordFailover(cred.Index, replacement.Index)
			s.logger.Info("failing over to replacement credential",
				Field{"work", work.Name},
				Field{"from", cred.String()},
				Field{"to", replacement.String()},
			)
			result, err = s.runWithKey(ctx, work, replacement, cost)
			if err == nil {
				s.metrics.RecordSchedule(work.Name, cost, true)
				return result, nil
			}
			if IsQuotaError(err) {
				// Second consecutive quota failure: record it and
				// surface rather than substituting again.
				s.pool.HandleQuotaError(replacement, errMessage(err))
				s.saveSnapshots(ctx)
			}
		}
	}

	s.metrics.RecordSchedule(work.Name, cost, false)
	return nil, s.typed(err)
}

func (s *Scheduler) pickKey(cost int) (Credential, bool) {
	if s.Preferences().SmartSelection {
		return s.pool.OptimalKey(cost)
	}
	return s.pool.FirstFit(cost)
}

func (s *Scheduler) runWithKey(ctx context.Context, work Work, cred Credential, cost int) (any, error) {
	result, err := s.exec.Execute(ctx, work.Name, func(ctx context.Context) (any, error) {
		attemptCtx := ctx
		if s.cfg.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, s.cfg.AttemptTimeout)
			defer cancel()
		}
		return work.Call(attemptCtx, cred.Key)
	})
	if err != nil {
		return nil, err
	}

	s.pool.TrackUsage(cred, cost)
	s.saveSnapshots(ctx)
	return result, nil
}

// typed converts any terminal failure into the caller-facing *Error. Nothing
// is swallowed: whatever survived the retry executor and the pool reaches
// the caller with a cause and a remedy.
func (s *Scheduler) typed(err error) error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return err
	}

	c := Classify(err)
	out := &Error{
		Err:        err,
		Status:     c.Status,
		Retryable:  c.Retryable,
		Suggestion: c.Suggestion,
	}
	if IsQuotaError(err) {
		out.WaitSeconds = s.pool.MinWaitTime()
		out.Suggestion = fmt.Sprintf("quota exhausted on every usable credential; retry in about %ds", out.WaitSeconds)
	}
	return out
}

// saveSnapshots persists pool state after a change. Persistence failures are
// logged, never allowed to fail the job that triggered them.
func (s *Scheduler) saveSnapshots(ctx context.Context) {
	if s.store == nil {
		return
	}
	start := time.Now()
	err := s.store.SaveTrackerSnapshots(ctx, s.pool.Snapshot())
	s.metrics.RecordStoreOperation("save_snapshots", time.Since(start), err)
	if err != nil {
		s.logger.Warn("failed to persist tracker snapshots", Field{"error", err.Error()})
	}
}

func errMessage(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}
