package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/mihaimyh/scribepool/pkg/scribepool"
)

// setupTestStore connects to the database named by SCRIBEPOOL_TEST_DSN.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("SCRIBEPOOL_TEST_DSN")
	if dsn == "" {
		t.Skip("SCRIBEPOOL_TEST_DSN not set")
	}

	cfg := DefaultConfig()
	cfg.ConnectionString = dsn
	store, err := New(context.Background(), cfg)
	if err != nil {
		t.Skipf("PostgreSQL not available: %v", err)
	}
	t.Cleanup(store.Close)

	if _, err := store.pool.Exec(context.Background(), `DELETE FROM scribepool_state`); err != nil {
		t.Fatalf("Failed to clear test table: %v", err)
	}
	return store
}

func TestNew_RequiresConnectionString(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Error("New without a connection string should fail")
	}
}

func TestStore_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	keys, err := store.LoadCredentials(ctx)
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Expected no keys in an empty table, got %v", keys)
	}

	want := []string{"gsk_aaaaaaaaaaaaaaaaaaaa0001"}
	if err := store.SaveCredentials(ctx, want); err != nil {
		t.Fatalf("SaveCredentials failed: %v", err)
	}
	// Overwrite to exercise the upsert path.
	want = append(want, "gsk_bbbbbbbbbbbbbbbbbbbb0002")
	if err := store.SaveCredentials(ctx, want); err != nil {
		t.Fatalf("SaveCredentials upsert failed: %v", err)
	}

	keys, err = store.LoadCredentials(ctx)
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("loaded %d keys, want 2", len(keys))
	}

	if err := store.SavePreferences(ctx, scribepool.Preferences{AutoRotate: true}); err != nil {
		t.Fatalf("SavePreferences failed: %v", err)
	}
	prefs, err := store.LoadPreferences(ctx)
	if err != nil {
		t.Fatalf("LoadPreferences failed: %v", err)
	}
	if !prefs.AutoRotate || prefs.SmartSelection {
		t.Errorf("preferences = %+v, want AutoRotate only", prefs)
	}

	snaps := []scribepool.Snapshot{{Index: 0, Limit: 7200, Remaining: 7200, Available: true}}
	if err := store.SaveTrackerSnapshots(ctx, snaps); err != nil {
		t.Fatalf("SaveTrackerSnapshots failed: %v", err)
	}
	got, err := store.LoadTrackerSnapshots(ctx)
	if err != nil {
		t.Fatalf("LoadTrackerSnapshots failed: %v", err)
	}
	if len(got) != 1 || got[0].Remaining != 7200 {
		t.Errorf("snapshots = %+v, want the stored state", got)
	}
}
