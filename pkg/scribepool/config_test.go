package scribepool_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mihaimyh/scribepool/pkg/scribepool"
)

func TestConfigValidate(t *testing.T) {
	if err := (scribepool.Config{}).Validate(); err != nil {
		t.Errorf("zero config must validate, got %v", err)
	}
	if err := (scribepool.Config{MaxRetries: -1}).Validate(); err == nil {
		t.Error("negative maxRetries must be rejected")
	}
	if err := (scribepool.Config{BaseDelay: -time.Second}).Validate(); err == nil {
		t.Error("negative baseDelay must be rejected")
	}
	if err := (scribepool.Config{KeyPattern: "(["}).Validate(); err == nil {
		t.Error("broken keyPattern must be rejected")
	}
}

func TestConfigValidateKeys(t *testing.T) {
	cfg := scribepool.Config{}

	if err := cfg.ValidateKeys(testKeys); err != nil {
		t.Errorf("valid keys rejected: %v", err)
	}
	if err := cfg.ValidateKeys(nil); !errors.Is(err, scribepool.ErrNoCredentials) {
		t.Errorf("err = %v, want ErrNoCredentials", err)
	}
	if err := cfg.ValidateKeys([]string{"gsk_short"}); !errors.Is(err, scribepool.ErrInvalidCredential) {
		t.Errorf("err = %v, want ErrInvalidCredential for a short key", err)
	}

	custom := scribepool.Config{MaxKeys: 2, KeyPattern: `^tok_\d+$`}
	if err := custom.ValidateKeys([]string{"tok_1", "tok_2"}); err != nil {
		t.Errorf("keys matching a custom pattern rejected: %v", err)
	}
	if err := custom.ValidateKeys([]string{"tok_1", "tok_2", "tok_3"}); !errors.Is(err, scribepool.ErrTooManyCredentials) {
		t.Errorf("err = %v, want ErrTooManyCredentials with MaxKeys=2", err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribepool.yaml")
	body := `
key_limit: 3600
reset_interval_seconds: 1800
default_cooldown_seconds: 60
max_keys: 3
max_retries: 5
base_delay_ms: 250
attempt_timeout_seconds: 120
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := scribepool.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.KeyLimit != 3600 {
		t.Errorf("KeyLimit = %d, want 3600", cfg.KeyLimit)
	}
	if cfg.ResetInterval != 30*time.Minute {
		t.Errorf("ResetInterval = %v, want 30m", cfg.ResetInterval)
	}
	if cfg.DefaultCooldown != time.Minute {
		t.Errorf("DefaultCooldown = %v, want 1m", cfg.DefaultCooldown)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.MaxRetries)
	}
	if cfg.BaseDelay != 250*time.Millisecond {
		t.Errorf("BaseDelay = %v, want 250ms", cfg.BaseDelay)
	}
	if cfg.AttemptTimeout != 2*time.Minute {
		t.Errorf("AttemptTimeout = %v, want 2m", cfg.AttemptTimeout)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := scribepool.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file must error")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("key_limit: [not an int"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := scribepool.LoadConfig(path); err == nil {
		t.Error("malformed YAML must error")
	}
}

func TestMaskKey(t *testing.T) {
	cases := map[string]string{
		"gsk_aaaaaaaaaaaaaaaaaaaa0001": "gsk_aaaa***",
		"shortkey":                     "***",
		"":                             "***",
	}
	for in, want := range cases {
		if got := scribepool.MaskKey(in); got != want {
			t.Errorf("MaskKey(%q) = %q, want %q", in, got, want)
		}
	}
}
