package media

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSweep(t *testing.T) {
	dir := t.TempDir()
	tools := NewTools(Config{TempDir: dir})

	stale := filepath.Join(dir, uuid.NewString()+".m4a")
	fresh := filepath.Join(dir, uuid.NewString()+".m4a")
	foreign := filepath.Join(dir, "notes.m4a")
	for _, p := range []string{stale, fresh, foreign} {
		if err := os.WriteFile(p, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(foreign, old, old); err != nil {
		t.Fatal(err)
	}

	tools.Sweep(time.Hour)

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale uuid-named file must be removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh file must survive the sweep")
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Error("non-uuid file must never be touched")
	}
}

func TestRemoveIgnoresMissing(t *testing.T) {
	tools := NewTools(Config{TempDir: t.TempDir()})
	tools.Remove("", filepath.Join(t.TempDir(), "never-existed.m4a"))
}
