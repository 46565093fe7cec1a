// Package redis provides a Redis implementation of the scribepool.Store interface.
// State is small and read rarely, so plain JSON values are used rather than
// hashes or scripts.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mihaimyh/scribepool/pkg/scribepool"
)

const (
	credentialsKey = "credentials"
	preferencesKey = "preferences"
	trackersKey    = "trackers"
)

// Config holds Redis store configuration.
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "scribepool:").
	KeyPrefix string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{KeyPrefix: "scribepool:"}
}

// Store implements scribepool.Store using Redis.
type Store struct {
	client redis.UniversalClient
	config Config
}

// New creates a new Redis store.
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring.
func New(client redis.UniversalClient, config Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "scribepool:"
	}
	return &Store{client: client, config: config}, nil
}

func (s *Store) key(name string) string {
	return s.config.KeyPrefix + name
}

func (s *Store) loadJSON(ctx context.Context, name string, v any) (found bool, err error) {
	data, err := s.client.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", scribepool.ErrStoreUnavailable, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", name, err)
	}
	return true, nil
}

func (s *Store) saveJSON(ctx context.Context, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := s.client.Set(ctx, s.key(name), data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", scribepool.ErrStoreUnavailable, err)
	}
	return nil
}

// LoadCredentials implements scribepool.Store.
func (s *Store) LoadCredentials(ctx context.Context) ([]string, error) {
	var keys []string
	if _, err := s.loadJSON(ctx, credentialsKey, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// SaveCredentials implements scribepool.Store.
func (s *Store) SaveCredentials(ctx context.Context, keys []string) error {
	return s.saveJSON(ctx, credentialsKey, keys)
}

// LoadPreferences implements scribepool.Store.
func (s *Store) LoadPreferences(ctx context.Context) (scribepool.Preferences, error) {
	prefs := scribepool.DefaultPreferences()
	if _, err := s.loadJSON(ctx, preferencesKey, &prefs); err != nil {
		return scribepool.Preferences{}, err
	}
	return prefs, nil
}

// SavePreferences implements scribepool.Store.
func (s *Store) SavePreferences(ctx context.Context, prefs scribepool.Preferences) error {
	return s.saveJSON(ctx, preferencesKey, prefs)
}

// LoadTrackerSnapshots implements scribepool.Store.
func (s *Store) LoadTrackerSnapshots(ctx context.Context) ([]scribepool.Snapshot, error) {
	var snaps []scribepool.Snapshot
	if _, err := s.loadJSON(ctx, trackersKey, &snaps); err != nil {
		return nil, err
	}
	return snaps, nil
}

// SaveTrackerSnapshots implements scribepool.Store.
func (s *Store) SaveTrackerSnapshots(ctx context.Context, snaps []scribepool.Snapshot) error {
	return s.saveJSON(ctx, trackersKey, snaps)
}
