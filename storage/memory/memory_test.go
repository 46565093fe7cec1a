package memory

import (
	"context"
	"testing"
	"time"

	"github.com/mihaimyh/scribepool/pkg/scribepool"
)

func TestStore_Credentials(t *testing.T) {
	store := New()
	ctx := context.Background()

	// Nothing stored yet: empty list, not an error.
	keys, err := store.LoadCredentials(ctx)
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Expected no keys, got %v", keys)
	}

	want := []string{"gsk_aaaaaaaaaaaaaaaaaaaa0001", "gsk_bbbbbbbbbbbbbbbbbbbb0002"}
	if err := store.SaveCredentials(ctx, want); err != nil {
		t.Fatalf("SaveCredentials failed: %v", err)
	}

	keys, err = store.LoadCredentials(ctx)
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}
	if len(keys) != 2 || keys[0] != want[0] || keys[1] != want[1] {
		t.Errorf("loaded keys = %v, want %v", keys, want)
	}

	// Mutating the returned slice must not touch stored state.
	keys[0] = "mutated"
	again, _ := store.LoadCredentials(ctx)
	if again[0] != want[0] {
		t.Error("LoadCredentials leaked internal state")
	}
}

func TestStore_Preferences(t *testing.T) {
	store := New()
	ctx := context.Background()

	prefs, err := store.LoadPreferences(ctx)
	if err != nil {
		t.Fatalf("LoadPreferences failed: %v", err)
	}
	if !prefs.AutoRotate || !prefs.SmartSelection {
		t.Errorf("unset preferences = %+v, want defaults", prefs)
	}

	if err := store.SavePreferences(ctx, scribepool.Preferences{AutoRotate: false, SmartSelection: true}); err != nil {
		t.Fatalf("SavePreferences failed: %v", err)
	}

	prefs, err = store.LoadPreferences(ctx)
	if err != nil {
		t.Fatalf("LoadPreferences failed: %v", err)
	}
	if prefs.AutoRotate || !prefs.SmartSelection {
		t.Errorf("loaded preferences = %+v, want AutoRotate off", prefs)
	}
}

func TestStore_TrackerSnapshots(t *testing.T) {
	store := New()
	ctx := context.Background()

	snaps, err := store.LoadTrackerSnapshots(ctx)
	if err != nil {
		t.Fatalf("LoadTrackerSnapshots failed: %v", err)
	}
	if len(snaps) != 0 {
		t.Errorf("Expected no snapshots, got %v", snaps)
	}

	until := time.Now().UTC().Add(time.Minute)
	want := []scribepool.Snapshot{
		{Index: 0, Limit: 7200, Used: 5588, LocalUsed: 5588, Remaining: 1612, LastReset: time.Now().UTC(), LimitedUntil: &until},
		{Index: 1, Limit: 7200, Remaining: 7200, LastReset: time.Now().UTC(), Available: true},
	}
	if err := store.SaveTrackerSnapshots(ctx, want); err != nil {
		t.Fatalf("SaveTrackerSnapshots failed: %v", err)
	}

	snaps, err = store.LoadTrackerSnapshots(ctx)
	if err != nil {
		t.Fatalf("LoadTrackerSnapshots failed: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("loaded %d snapshots, want 2", len(snaps))
	}
	if snaps[0].Remaining != 1612 || snaps[0].LimitedUntil == nil {
		t.Errorf("snapshot 0 = %+v, want the stored values", snaps[0])
	}
	if !snaps[1].Available {
		t.Error("snapshot 1 should be available")
	}
}
