// Package postgres provides a PostgreSQL implementation of the scribepool.Store interface.
// State is stored as jsonb documents keyed by name; the schema is created on
// startup with Migrate.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mihaimyh/scribepool/pkg/scribepool"
)

const (
	credentialsRow = "credentials"
	preferencesRow = "preferences"
	trackersRow    = "trackers"
)

// Config holds PostgreSQL store configuration.
type Config struct {
	// ConnectionString is the PostgreSQL connection string.
	ConnectionString string

	// Pool configuration.
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// Store implements scribepool.Store using PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	config Config
}

// New creates a new PostgreSQL store and prepares its schema.
func New(ctx context.Context, config Config) (*Store, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{pool: pool, config: config}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the state table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS scribepool_state (
			name       text PRIMARY KEY,
			data       jsonb NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) loadJSON(ctx context.Context, name string, v any) (found bool, err error) {
	var data []byte
	err = s.pool.QueryRow(ctx,
		`SELECT data FROM scribepool_state WHERE name = $1`, name).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
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
	_, err = s.pool.Exec(ctx, `
		INSERT INTO scribepool_state (name, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		name, data)
	if err != nil {
		return fmt.Errorf("%w: %v", scribepool.ErrStoreUnavailable, err)
	}
	return nil
}

// LoadCredentials implements scribepool.Store.
func (s *Store) LoadCredentials(ctx context.Context) ([]string, error) {
	var keys []string
	if _, err := s.loadJSON(ctx, credentialsRow, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// SaveCredentials implements scribepool.Store.
func (s *Store) SaveCredentials(ctx context.Context, keys []string) error {
	return s.saveJSON(ctx, credentialsRow, keys)
}

// LoadPreferences implements scribepool.Store.
func (s *Store) LoadPreferences(ctx context.Context) (scribepool.Preferences, error) {
	prefs := scribepool.DefaultPreferences()
	if _, err := s.loadJSON(ctx, preferencesRow, &prefs); err != nil {
		return scribepool.Preferences{}, err
	}
	return prefs, nil
}

// SavePreferences implements scribepool.Store.
func (s *Store) SavePreferences(ctx context.Context, prefs scribepool.Preferences) error {
	return s.saveJSON(ctx, preferencesRow, prefs)
}

// LoadTrackerSnapshots implements scribepool.Store.
func (s *Store) LoadTrackerSnapshots(ctx context.Context) ([]scribepool.Snapshot, error) {
	var snaps []scribepool.Snapshot
	if _, err := s.loadJSON(ctx, trackersRow, &snaps); err != nil {
		return nil, err
	}
	return snaps, nil
}

// SaveTrackerSnapshots implements scribepool.Store.
func (s *Store) SaveTrackerSnapshots(ctx context.Context, snaps []scribepool.Snapshot) error {
	return s.saveJSON(ctx, trackersRow, snaps)
}
