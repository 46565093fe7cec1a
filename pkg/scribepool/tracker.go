package scribepool

import (
	"math"
	"time"
)

// Tracker follows one credential's share of the provider's hourly quota
// window. Usage is counted optimistically after every success and may drift
// from the provider's own count; whenever the provider rejects a call with
// authoritative figures, the local estimate is overwritten.
//
// Trackers are not safe for concurrent use on their own; the Pool serializes
// access to them.
type Tracker struct {
	limit        int
	used         int // authoritative, from provider quota errors
	localUsed    int // optimistic, from recorded successes
	remaining    int
	lastReset    time.Time
	limitedUntil *time.Time
	available    bool

	resetEvery      time.Duration
	defaultCooldown time.Duration
	now             func() time.Time
}

func newTracker(limit int, resetEvery, defaultCooldown time.Duration, now func() time.Time) *Tracker {
	return &Tracker{
		limit:           limit,
		remaining:       limit,
		lastReset:       now(),
		available:       true,
		resetEvery:      resetEvery,
		defaultCooldown: defaultCooldown,
		now:             now,
	}
}

// checkReset lazily applies time-based state changes. It runs before every
// read so stale rate limits and elapsed windows never influence a decision.
// Idempotent.
func (t *Tracker) checkReset() {
	now := t.now()

	// The provider refills the whole window on its own clock. Estimate
	// drift does not survive the boundary.
	if now.Sub(t.lastReset) >= t.resetEvery {
		t.used = 0
		t.localUsed = 0
		t.remaining = t.limit
		t.lastReset = now
		t.limitedUntil = nil
		t.available = true
		return
	}

	// A lapsed rate limit restores availability but never refills quota;
	// only the window boundary does that.
	if t.limitedUntil != nil && !now.Before(*t.limitedUntil) {
		t.limitedUntil = nil
		t.available = true
	}
}

// CanHandle reports whether this credential can absorb a job of the given
// cost right now. A cost exactly equal to the remaining quota is allowed.
func (t *Tracker) CanHandle(cost int) bool {
	t.checkReset()
	if t.limitedUntil != nil {
		return false
	}
	return cost <= t.remaining
}

// Remaining returns the usable quota: zero while rate-limited, the local
// estimate otherwise.
func (t *Tracker) Remaining() int {
	t.checkReset()
	if t.limitedUntil != nil {
		return 0
	}
	return t.remaining
}

// TimeUntilReset returns whole seconds until the rate limit lapses, zero if
// the credential is not limited.
func (t *Tracker) TimeUntilReset() int {
	t.checkReset()
	if t.limitedUntil == nil {
		return 0
	}
	secs := int(math.Ceil(t.limitedUntil.Sub(t.now()).Seconds()))
	if secs < 0 {
		return 0
	}
	return secs
}

// TrackUsage records a successful call optimistically. The local count may
// run ahead of or behind the provider's; a later quota error corrects it.
func (t *Tracker) TrackUsage(cost int) {
	t.checkReset()
	t.localUsed += cost
	t.remaining = t.limit - t.localUsed
	if t.remaining < 0 {
		t.remaining = 0
	}
}

// UpdateFromQuotaError reconciles tracker state against a provider quota
// message. Authoritative usage figures, when present, replace the local
// estimate entirely. The cooldown from the message is honored when parseable;
// otherwise the default cooldown applies. The credential always comes out of
// this call unavailable; an unreadable message must never leave a key
// looking usable.
func (t *Tracker) UpdateFromQuotaError(msg string) {
	d := parseQuotaMessage(msg)

	if d.hasUsage {
		t.limit = d.limit
		t.used = d.used
		t.localUsed = d.used
		t.remaining = d.limit - d.used
		if t.remaining < 0 {
			t.remaining = 0
		}
	}

	wait := t.defaultCooldown
	if d.hasWait {
		wait = d.wait
	}
	until := t.now().Add(wait)
	t.limitedUntil = &until
	t.available = false
}

// Available reports whether the credential is currently usable at all,
// ignoring cost.
func (t *Tracker) Available() bool {
	t.checkReset()
	return t.available
}

func (t *Tracker) snapshot(index int) Snapshot {
	t.checkReset()
	s := Snapshot{
		Index:     index,
		Limit:     t.limit,
		Used:      t.used,
		LocalUsed: t.localUsed,
		Remaining: t.remaining,
		LastReset: t.lastReset,
		Available: t.available,
	}
	if t.limitedUntil != nil {
		until := *t.limitedUntil
		s.LimitedUntil = &until
	}
	return s
}

func (t *Tracker) restore(s Snapshot) {
	t.limit = s.Limit
	t.used = s.Used
	t.localUsed = s.LocalUsed
	t.remaining = s.Remaining
	t.lastReset = s.LastReset
	t.available = s.Available
	t.limitedUntil = nil
	if s.LimitedUntil != nil {
		until := *s.LimitedUntil
		t.limitedUntil = &until
	}
	// Restored state may predate the current window; the next read fixes it.
	t.checkReset()
}
