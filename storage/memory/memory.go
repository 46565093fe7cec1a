// Package memory provides an in-memory implementation of the scribepool.Store interface.
// This implementation is primarily intended for testing and development.
package memory

import (
	"context"
	"sync"

	"github.com/mihaimyh/scribepool/pkg/scribepool"
)

// Store implements scribepool.Store using in-memory slices.
type Store struct {
	mu       sync.RWMutex
	keys     []string
	prefs    *scribepool.Preferences
	trackers []scribepool.Snapshot
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{}
}

// LoadCredentials implements scribepool.Store.
func (s *Store) LoadCredentials(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out, nil
}

// SaveCredentials implements scribepool.Store.
func (s *Store) SaveCredentials(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys = make([]string, len(keys))
	copy(s.keys, keys)
	return nil
}

// LoadPreferences implements scribepool.Store.
func (s *Store) LoadPreferences(ctx context.Context) (scribepool.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.prefs == nil {
		return scribepool.DefaultPreferences(), nil
	}
	return *s.prefs, nil
}

// SavePreferences implements scribepool.Store.
func (s *Store) SavePreferences(ctx context.Context, prefs scribepool.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prefs = &prefs
	return nil
}

// LoadTrackerSnapshots implements scribepool.Store.
func (s *Store) LoadTrackerSnapshots(ctx context.Context) ([]scribepool.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]scribepool.Snapshot, len(s.trackers))
	copy(out, s.trackers)
	return out, nil
}

// SaveTrackerSnapshots implements scribepool.Store.
func (s *Store) SaveTrackerSnapshots(ctx context.Context, snaps []scribepool.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trackers = make([]scribepool.Snapshot, len(snaps))
	copy(s.trackers, snaps)
	return nil
}
