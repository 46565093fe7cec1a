package scribepool

import (
	"sync"
)

// Pool owns one Tracker per configured credential and picks the credential
// best able to absorb each job. Selection is best-fit by remaining capacity:
// the dominant cost driver is a single long job that must not land on an
// under-provisioned key, and best-fit also naturally drains load away from
// nearly exhausted keys.
//
// A single mutex serializes pool access. Selecting a key and recording its
// usage are still separate calls, so two concurrent jobs can pick the same
// "best" credential before either records usage; the provider enforces the
// real limit and rejects the loser, which self-corrects through
// HandleQuotaError.
type Pool struct {
	mu       sync.Mutex
	creds    []Credential
	trackers []*Tracker

	logger  Logger
	metrics Metrics
}

// NewPool builds a pool from a validated credential list. Keys are validated
// against the configured bound and format; trackers start with a full window.
func NewPool(keys []string, cfg Config) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ValidateKeys(keys); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	p := &Pool{
		creds:    make([]Credential, len(keys)),
		trackers: make([]*Tracker, len(keys)),
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
	for i, key := range keys {
		p.creds[i] = Credential{Index: i, Key: key}
		p.trackers[i] = newTracker(cfg.KeyLimit, cfg.ResetInterval, cfg.DefaultCooldown, cfg.Now)
	}
	return p, nil
}

// Size returns the number of credentials in the pool.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.creds)
}

// OptimalKey returns the credential with the most remaining quota that can
// still absorb the given cost. Ties go to the lower index. The second return
// is false when no credential fits; callers treat that as backpressure, not
// an error.
func (p *Pool) OptimalKey(cost int) (Credential, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	best := -1
	bestRemaining := -1
	for i, t := range p.trackers {
		if !t.CanHandle(cost) {
			continue
		}
		if r := t.Remaining(); r > bestRemaining {
			best = i
			bestRemaining = r
		}
	}
	if best < 0 {
		return Credential{}, false
	}
	p.metrics.RecordKeySelection(best, bestRemaining)
	return p.creds[best], true
}

// FirstFit returns the lowest-indexed credential that can absorb the cost.
// Used when smart selection is disabled.
func (p *Pool) FirstFit(cost int) (Credential, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, t := range p.trackers {
		if t.CanHandle(cost) {
			p.metrics.RecordKeySelection(i, t.Remaining())
			return p.creds[i], true
		}
	}
	return Credential{}, false
}

// NextAvailable returns any credential that is not rate-limited and has
// quota left, ignoring cost. Used for mid-flight failover where the exact
// residual cost of the interrupted job is unknown.
func (p *Pool) NextAvailable() (Credential, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextAvailableLocked()
}

func (p *Pool) nextAvailableLocked() (Credential, bool) {
	for i, t := range p.trackers {
		if t.Available() && t.Remaining() > 0 {
			return p.creds[i], true
		}
	}
	return Credential{}, false
}

// TrackUsage records a successful call's cost against the credential's tracker.
func (p *Pool) TrackUsage(cred Credential, cost int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cred.Index < 0 || cred.Index >= len(p.trackers) {
		return
	}
	t := p.trackers[cred.Index]
	t.TrackUsage(cost)
	p.logger.Debug("usage recorded",
		Field{"key", cred.String()},
		Field{"cost", cost},
		Field{"remaining", t.Remaining()},
	)
}

// HandleQuotaError reconciles the failed credential's tracker against the
// provider's message, then suggests a replacement credential if one is
// available.
func (p *Pool) HandleQuotaError(cred Credential, msg string) (Credential, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cred.Index < 0 || cred.Index >= len(p.trackers) {
		return Credential{}, false
	}
	t := p.trackers[cred.Index]
	t.UpdateFromQuotaError(msg)
	p.metrics.RecordQuotaResync(cred.Index)
	p.logger.Warn("quota error on credential",
		Field{"key", cred.String()},
		Field{"wait_seconds", t.TimeUntilReset()},
	)
	return p.nextAvailableLocked()
}

// MinWaitTime returns the shortest wait in seconds until some credential
// becomes usable again, or zero if one already is.
func (p *Pool) MinWaitTime() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.nextAvailableLocked(); ok {
		return 0
	}
	min := 0
	for _, t := range p.trackers {
		w := t.TimeUntilReset()
		if w <= 0 {
			continue
		}
		if min == 0 || w < min {
			min = w
		}
	}
	return min
}

// Snapshot captures the state of every tracker for persistence or display.
func (p *Pool) Snapshot() []Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snaps := make([]Snapshot, len(p.trackers))
	for i, t := range p.trackers {
		snaps[i] = t.snapshot(i)
	}
	return snaps
}

// Restore applies persisted tracker state. Snapshots whose index does not
// match a current pool slot are ignored; the credential list is the source
// of truth for pool shape.
func (p *Pool) Restore(snaps []Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, s := range snaps {
		if s.Index < 0 || s.Index >= len(p.trackers) {
			continue
		}
		p.trackers[s.Index].restore(s)
	}
}

// Status reports the externally visible state of every pool slot, with
// credentials masked.
func (p *Pool) Status() []KeyStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := make([]KeyStatus, len(p.trackers))
	for i, t := range p.trackers {
		s := t.snapshot(i)
		status[i] = KeyStatus{
			Index:       i,
			Key:         MaskKey(p.creds[i].Key),
			Limit:       s.Limit,
			Used:        s.LocalUsed,
			Remaining:   t.Remaining(),
			Available:   s.Available,
			WaitSeconds: t.TimeUntilReset(),
		}
	}
	return status
}
