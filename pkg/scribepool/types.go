// Package scribepool schedules outbound calls to metered speech providers
// across a small pool of API credentials. Each credential owns a tracker for
// its share of the provider's hourly quota window; the pool picks the
// credential with the most remaining capacity for every job, retries
// transient failures with exponential backoff, and fails over to another
// credential when the provider reports the quota as exhausted.
package scribepool

import (
	"context"
	"fmt"
	"time"
)

// Credential identifies one provider API key by its position in the pool.
// Credentials are created once from configuration and never change.
type Credential struct {
	Index int
	Key   string
}

// String masks the secret so a Credential can be logged safely.
func (c Credential) String() string {
	return fmt.Sprintf("key[%d] %s", c.Index, MaskKey(c.Key))
}

// MaskKey hides all but the prefix of an API key for log output.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:8] + "***"
}

// Work describes one unit of remote work. Call receives the selected
// credential's key and performs the provider request; provider failures
// should be returned as *ProviderError so the status and message survive
// classification.
type Work struct {
	// Name labels the work in logs and metrics ("transcribe", "translate").
	Name string

	// Call performs the remote request with the given API key.
	Call func(ctx context.Context, key string) (any, error)
}

// Preferences are the pool-related user settings persisted alongside the
// credential list.
type Preferences struct {
	// AutoRotate permits substituting a different credential after a
	// quota failure instead of surfacing the error immediately.
	AutoRotate bool `json:"auto_rotate" yaml:"auto_rotate"`

	// SmartSelection picks the credential with the most remaining quota.
	// When disabled the first credential that fits is used.
	SmartSelection bool `json:"smart_selection" yaml:"smart_selection"`
}

// DefaultPreferences enables rotation and best-fit selection.
func DefaultPreferences() Preferences {
	return Preferences{AutoRotate: true, SmartSelection: true}
}

// Snapshot is the serializable state of one tracker, used both for the
// status API and for persisting pool state across restarts.
type Snapshot struct {
	Index        int        `json:"index"`
	Limit        int        `json:"limit"`
	Used         int        `json:"used"`
	LocalUsed    int        `json:"local_used"`
	Remaining    int        `json:"remaining"`
	LastReset    time.Time  `json:"last_reset"`
	LimitedUntil *time.Time `json:"limited_until,omitempty"`
	Available    bool       `json:"available"`
}

// KeyStatus is the externally visible state of one pool slot. The key is
// masked.
type KeyStatus struct {
	Index       int    `json:"index"`
	Key         string `json:"key"`
	Limit       int    `json:"limit"`
	Used        int    `json:"used"`
	Remaining   int    `json:"remaining"`
	Available   bool   `json:"available"`
	WaitSeconds int    `json:"wait_seconds"`
}
