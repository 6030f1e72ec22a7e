package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func fastConfig(attempts int) *Config {
	return &Config{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, BackoffMultiplier: 2}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastConfig(3), nil, "probe", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errTransient
		}
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("expected ok, got %q (%v)", got, err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoSingleAttemptDoesNotWrap(t *testing.T) {
	_, err := Do(context.Background(), fastConfig(1), nil, "probe", func(ctx context.Context) (int, error) {
		return 0, errTransient
	})
	if err != errTransient {
		t.Fatalf("expected the raw error back, got %v", err)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	cfg := fastConfig(5)
	cfg.Retryable = func(err error) bool { return !errors.Is(err, errPermanent) }
	calls := 0
	_, err := Do(context.Background(), cfg, nil, "probe", func(ctx context.Context) (int, error) {
		calls++
		return 0, errPermanent
	})
	if !errors.Is(err, errPermanent) || calls != 1 {
		t.Fatalf("expected a single call with permanent error, got %d calls (%v)", calls, err)
	}
}

var errPermanent = errors.New("permanent")

func TestDoExhausted(t *testing.T) {
	_, err := Do(context.Background(), fastConfig(2), nil, "probe", func(ctx context.Context) (int, error) {
		return 0, errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected wrapped transient error, got %v", err)
	}
}

func TestCalculateBackoffCapped(t *testing.T) {
	cfg := &Config{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second, BackoffMultiplier: 2}
	if got := calculateBackoff(0, cfg); got != time.Second {
		t.Fatalf("expected 1s, got %v", got)
	}
	if got := calculateBackoff(4, cfg); got != 3*time.Second {
		t.Fatalf("expected cap of 3s, got %v", got)
	}
}
