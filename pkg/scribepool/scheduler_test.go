package scribepool_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mihaimyh/scribepool/pkg/scribepool"
)

func fastConfig() scribepool.Config {
	return scribepool.Config{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
	}
}

func newTestScheduler(t *testing.T, n int) *scribepool.Scheduler {
	t.Helper()
	pool, err := scribepool.NewPool(testKeys[:n], fastConfig())
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	sched, err := scribepool.NewScheduler(context.Background(), pool, nil, fastConfig())
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}
	return sched
}

func quotaMessage(wait string) string {
	return "Rate limit reached for model `whisper-large-v3-turbo`. Limit 7200, Used 7200, Requested 300. Please try again in " + wait + "."
}

func TestScheduleSuccessRecordsUsage(t *testing.T) {
	sched := newTestScheduler(t, 2)

	result, err := sched.Schedule(context.Background(), scribepool.Work{
		Name: "transcribe",
		Call: func(ctx context.Context, key string) (any, error) {
			return "transcript", nil
		},
	}, 600)

	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if result != "transcript" {
		t.Errorf("result = %v, want transcript", result)
	}

	status := sched.Status()
	if status[0].Used != 600 {
		t.Errorf("key 0 used = %d, want 600", status[0].Used)
	}
	if status[1].Used != 0 {
		t.Errorf("key 1 used = %d, want 0", status[1].Used)
	}
}

func TestScheduleSequentialBestFit(t *testing.T) {
	sched := newTestScheduler(t, 2)

	var usedKeys []string
	work := scribepool.Work{
		Name: "transcribe",
		Call: func(ctx context.Context, key string) (any, error) {
			usedKeys = append(usedKeys, key)
			return "ok", nil
		},
	}

	if _, err := sched.Schedule(context.Background(), work, 5000); err != nil {
		t.Fatalf("first job failed: %v", err)
	}
	if _, err := sched.Schedule(context.Background(), work, 3000); err != nil {
		t.Fatalf("second job failed: %v", err)
	}

	// Key 0 is down to 2200 after the first job; the 3000s job must land
	// on the untouched key 1.
	if usedKeys[0] != testKeys[0] {
		t.Errorf("first job used %s, want key 0", scribepool.MaskKey(usedKeys[0]))
	}
	if usedKeys[1] != testKeys[1] {
		t.Errorf("second job used %s, want key 1", scribepool.MaskKey(usedKeys[1]))
	}
}

func TestScheduleBackpressure(t *testing.T) {
	sched := newTestScheduler(t, 1)

	failing := scribepool.Work{
		Name: "transcribe",
		Call: func(ctx context.Context, key string) (any, error) {
			return nil, &scribepool.ProviderError{Status: 429, Message: quotaMessage("30s")}
		},
	}
	if _, err := sched.Schedule(context.Background(), failing, 100); err == nil {
		t.Fatal("expected a quota failure")
	}

	// The only key is cooling down: fail fast with a wait hint.
	_, err := sched.Schedule(context.Background(), scribepool.Work{
		Name: "transcribe",
		Call: func(ctx context.Context, key string) (any, error) {
			t.Fatal("no remote call should happen under backpressure")
			return nil, nil
		},
	}, 100)

	if !scribepool.IsBackpressure(err) {
		t.Fatalf("err = %v, want backpressure", err)
	}
	var te *scribepool.Error
	if !errors.As(err, &te) {
		t.Fatalf("err = %T, want *scribepool.Error", err)
	}
	if te.WaitSeconds != 30 {
		t.Errorf("WaitSeconds = %d, want 30", te.WaitSeconds)
	}
	if !te.Retryable {
		t.Error("backpressure must be marked retryable")
	}
}

func TestScheduleQuotaFailover(t *testing.T) {
	sched := newTestScheduler(t, 2)

	var calls []string
	result, err := sched.Schedule(context.Background(), scribepool.Work{
		Name: "transcribe",
		Call: func(ctx context.Context, key string) (any, error) {
			calls = append(calls, key)
			if key == testKeys[0] {
				return nil, &scribepool.ProviderError{Status: 429, Message: quotaMessage("1m0s")}
			}
			return "transcript", nil
		},
	}, 300)

	if err != nil {
		t.Fatalf("Schedule failed despite a usable replacement: %v", err)
	}
	if result != "transcript" {
		t.Errorf("result = %v, want transcript", result)
	}
	if len(calls) != 2 || calls[0] != testKeys[0] || calls[1] != testKeys[1] {
		t.Errorf("call sequence = %v, want key 0 then key 1", calls)
	}

	status := sched.Status()
	if status[0].Available {
		t.Error("key 0 should be cooling down after the quota error")
	}
	if status[1].Used != 300 {
		t.Errorf("key 1 used = %d, want 300", status[1].Used)
	}
}

func TestScheduleSecondQuotaFailureSurfaces(t *testing.T) {
	sched := newTestScheduler(t, 2)

	calls := 0
	_, err := sched.Schedule(context.Background(), scribepool.Work{
		Name: "transcribe",
		Call: func(ctx context.Context, key string) (any, error) {
			calls++
			return nil, &scribepool.ProviderError{Status: 429, Message: quotaMessage("45s")}
		},
	}, 300)

	if err == nil {
		t.Fatal("expected the second quota failure to surface")
	}
	if calls != 2 {
		t.Errorf("remote called %d times, want 2: substitute once, never twice", calls)
	}

	var te *scribepool.Error
	if !errors.As(err, &te) {
		t.Fatalf("err = %T, want *scribepool.Error", err)
	}
	if te.WaitSeconds == 0 {
		t.Error("quota failure should carry a wait hint")
	}
}

func TestScheduleNoRotationWhenDisabled(t *testing.T) {
	sched := newTestScheduler(t, 2)
	if err := sched.SetPreferences(context.Background(), scribepool.Preferences{
		AutoRotate:     false,
		SmartSelection: true,
	}); err != nil {
		t.Fatalf("SetPreferences failed: %v", err)
	}

	calls := 0
	_, err := sched.Schedule(context.Background(), scribepool.Work{
		Name: "transcribe",
		Call: func(ctx context.Context, key string) (any, error) {
			calls++
			return nil, &scribepool.ProviderError{Status: 429, Message: quotaMessage("20s")}
		},
	}, 300)

	if err == nil {
		t.Fatal("expected the quota failure to surface")
	}
	if calls != 1 {
		t.Errorf("remote called %d times with rotation disabled, want 1", calls)
	}
}

func TestSchedulePermanentFailure(t *testing.T) {
	sched := newTestScheduler(t, 1)

	calls := 0
	_, err := sched.Schedule(context.Background(), scribepool.Work{
		Name: "transcribe",
		Call: func(ctx context.Context, key string) (any, error) {
			calls++
			return nil, &scribepool.ProviderError{Status: 401, Message: "Invalid API Key"}
		},
	}, 60)

	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("remote called %d times for a permanent failure, want 1", calls)
	}

	var te *scribepool.Error
	if !errors.As(err, &te) {
		t.Fatalf("err = %T, want *scribepool.Error", err)
	}
	if te.Retryable {
		t.Error("authentication failures must not be retryable")
	}
	if !strings.Contains(te.Suggestion, "API key") {
		t.Errorf("suggestion %q should point at the API key", te.Suggestion)
	}

	// A failed call consumes nothing.
	if used := sched.Status()[0].Used; used != 0 {
		t.Errorf("used = %d after a failure, want 0", used)
	}
}

func TestScheduleCancellation(t *testing.T) {
	sched := newTestScheduler(t, 1)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := sched.Schedule(ctx, scribepool.Work{
		Name: "transcribe",
		Call: func(ctx context.Context, key string) (any, error) {
			cancel()
			return nil, &scribepool.ProviderError{Status: 503, Message: "unavailable"}
		},
	}, 60)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if used := sched.Status()[0].Used; used != 0 {
		t.Errorf("used = %d after cancellation, want 0", used)
	}
}

func TestSingleKeyScheduler(t *testing.T) {
	sched, err := scribepool.NewSingleKeyScheduler(context.Background(), testKeys[0], fastConfig())
	if err != nil {
		t.Fatalf("NewSingleKeyScheduler failed: %v", err)
	}

	result, err := sched.Schedule(context.Background(), scribepool.Work{
		Name: "translate",
		Call: func(ctx context.Context, key string) (any, error) {
			if key != testKeys[0] {
				t.Errorf("work saw %s, want the configured key", scribepool.MaskKey(key))
			}
			return "ok", nil
		},
	}, 10)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %v, want ok", result)
	}
}
