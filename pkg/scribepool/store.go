package scribepool

import (
	"context"
	"fmt"
)

// Store persists the credential list, the pool preferences and tracker
// snapshots. Implementations live under storage/; all of them return empty
// values, not errors, when nothing has been stored yet.
type Store interface {
	// LoadCredentials returns the stored credential list, oldest first.
	LoadCredentials(ctx context.Context) ([]string, error)

	// SaveCredentials replaces the stored credential list.
	SaveCredentials(ctx context.Context, keys []string) error

	// LoadPreferences returns the stored preferences, or defaults when
	// none were saved.
	LoadPreferences(ctx context.Context) (Preferences, error)

	// SavePreferences replaces the stored preferences.
	SavePreferences(ctx context.Context, prefs Preferences) error

	// LoadTrackerSnapshots returns the persisted pool state.
	LoadTrackerSnapshots(ctx context.Context) ([]Snapshot, error)

	// SaveTrackerSnapshots replaces the persisted pool state.
	SaveTrackerSnapshots(ctx context.Context, snaps []Snapshot) error
}

// SaveCredentials validates keys against cfg and writes them through the
// store. Validation happens here, at save time, so a key that reaches the
// pool is already known to be well-formed.
func SaveCredentials(ctx context.Context, store Store, cfg Config, keys []string) error {
	if store == nil {
		return ErrStoreUnavailable
	}
	if err := cfg.ValidateKeys(keys); err != nil {
		return err
	}
	if err := store.SaveCredentials(ctx, keys); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}
