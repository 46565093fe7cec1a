package scribepool

import (
	"errors"
	"fmt"
)

var (
	// ErrNoKeysAvailable is returned when every credential is exhausted or
	// cooling down. It signals backpressure, not a hard failure: the caller
	// can wait and resubmit.
	ErrNoKeysAvailable = errors.New("no credentials available")

	// ErrNoCredentials is returned when the pool is constructed without keys
	ErrNoCredentials = errors.New("no credentials configured")

	// ErrTooManyCredentials is returned when the configured list exceeds the bound
	ErrTooManyCredentials = errors.New("too many credentials")

	// ErrInvalidCredential is returned when a key fails format validation
	ErrInvalidCredential = errors.New("invalid credential format")

	// ErrStoreUnavailable is returned when a persistence operation is
	// attempted without a configured store
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ProviderError is a failure reported by the remote provider, carrying the
// HTTP status and the provider's message text. The quota reconciliation
// parser reads authoritative usage figures out of Message.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error (%d): %s", e.Status, e.Message)
}

// Error is the typed failure surfaced by Schedule. It carries everything a
// caller needs to decide what to do next: whether resubmitting can help, a
// plain-language remedy, and a wait hint when the pool is the bottleneck.
type Error struct {
	Err         error
	Status      int
	Retryable   bool
	Suggestion  string
	WaitSeconds int
}

func (e *Error) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%v (%s)", e.Err, e.Suggestion)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// IsBackpressure reports whether err means the pool is temporarily out of
// capacity, as opposed to the work itself having failed.
func IsBackpressure(err error) bool {
	return errors.Is(err, ErrNoKeysAvailable)
}
