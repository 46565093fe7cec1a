package scribepool

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config tunes the pool, the retry policy and the quota window model.
// The zero value is usable: NewPool and NewScheduler apply defaults.
type Config struct {
	// KeyLimit is the per-credential quota window size, in audio seconds.
	KeyLimit int

	// ResetInterval is how often the provider refills the window.
	ResetInterval time.Duration

	// DefaultCooldown applies when a quota error carries no parseable
	// cooldown. The 90s default is a heuristic, not a provider contract.
	DefaultCooldown time.Duration

	// MaxKeys bounds the credential list.
	MaxKeys int

	// KeyPattern validates credential format at save time.
	KeyPattern string

	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// BaseDelay seeds the exponential backoff: baseDelay * 2^attempt.
	BaseDelay time.Duration

	// AttemptTimeout bounds each individual remote attempt. Long audio
	// jobs need minutes, not seconds.
	AttemptTimeout time.Duration

	// Logger receives structured events. Defaults to NoopLogger.
	Logger Logger

	// Metrics receives operational counters. Defaults to NoopMetrics.
	Metrics Metrics

	// Now overrides the clock, for tests.
	Now func() time.Time
}

const (
	// defaultKeyLimit matches the provider's audio-seconds-per-hour window
	// for the turbo whisper models.
	defaultKeyLimit = 7200

	defaultMaxKeys = 5

	// defaultKeyPattern matches the provider's API key format.
	defaultKeyPattern = `^gsk_[A-Za-z0-9]{20,}$`
)

func (c Config) withDefaults() Config {
	if c.KeyLimit == 0 {
		c.KeyLimit = defaultKeyLimit
	}
	if c.ResetInterval == 0 {
		c.ResetInterval = time.Hour
	}
	if c.DefaultCooldown == 0 {
		c.DefaultCooldown = 90 * time.Second
	}
	if c.MaxKeys == 0 {
		c.MaxKeys = defaultMaxKeys
	}
	if c.KeyPattern == "" {
		c.KeyPattern = defaultKeyPattern
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay == 0 {
		c.BaseDelay = time.Second
	}
	if c.AttemptTimeout == 0 {
		c.AttemptTimeout = 5 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = &NoopLogger{}
	}
	if c.Metrics == nil {
		c.Metrics = &NoopMetrics{}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if c.KeyLimit < 0 {
		return fmt.Errorf("keyLimit must not be negative, got %d", c.KeyLimit)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("maxRetries must not be negative, got %d", c.MaxRetries)
	}
	if c.BaseDelay < 0 || c.ResetInterval < 0 || c.DefaultCooldown < 0 || c.AttemptTimeout < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if c.KeyPattern != "" {
		if _, err := regexp.Compile(c.KeyPattern); err != nil {
			return fmt.Errorf("keyPattern does not compile: %w", err)
		}
	}
	return nil
}

// ValidateKeys checks a credential list against the configured bound and
// format. Invalid entries are rejected here, at save time, never at use time.
func (c Config) ValidateKeys(keys []string) error {
	c = c.withDefaults()

	if len(keys) == 0 {
		return ErrNoCredentials
	}
	if len(keys) > c.MaxKeys {
		return fmt.Errorf("%w: %d keys configured, at most %d allowed",
			ErrTooManyCredentials, len(keys), c.MaxKeys)
	}

	re, err := regexp.Compile(c.KeyPattern)
	if err != nil {
		return fmt.Errorf("keyPattern does not compile: %w", err)
	}
	seen := make(map[string]int, len(keys))
	for i, key := range keys {
		if !re.MatchString(key) {
			return fmt.Errorf("%w: key %d (%s)", ErrInvalidCredential, i, MaskKey(key))
		}
		if prev, dup := seen[key]; dup {
			return fmt.Errorf("%w: key %d duplicates key %d", ErrInvalidCredential, i, prev)
		}
		seen[key] = i
	}
	return nil
}

// fileConfig is the YAML shape of Config. Durations are spelled out in
// whole units so the file stays hand-editable.
type fileConfig struct {
	KeyLimit               int    `yaml:"key_limit"`
	ResetIntervalSeconds   int    `yaml:"reset_interval_seconds"`
	DefaultCooldownSeconds int    `yaml:"default_cooldown_seconds"`
	MaxKeys                int    `yaml:"max_keys"`
	KeyPattern             string `yaml:"key_pattern"`
	MaxRetries             int    `yaml:"max_retries"`
	BaseDelayMillis        int    `yaml:"base_delay_ms"`
	AttemptTimeoutSeconds  int    `yaml:"attempt_timeout_seconds"`
}

// LoadConfig reads a Config from a YAML file. Absent fields fall back to
// defaults when the config is first used.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	c := Config{
		KeyLimit:        fc.KeyLimit,
		ResetInterval:   time.Duration(fc.ResetIntervalSeconds) * time.Second,
		DefaultCooldown: time.Duration(fc.DefaultCooldownSeconds) * time.Second,
		MaxKeys:         fc.MaxKeys,
		KeyPattern:      fc.KeyPattern,
		MaxRetries:      fc.MaxRetries,
		BaseDelay:       time.Duration(fc.BaseDelayMillis) * time.Millisecond,
		AttemptTimeout:  time.Duration(fc.AttemptTimeoutSeconds) * time.Second,
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
