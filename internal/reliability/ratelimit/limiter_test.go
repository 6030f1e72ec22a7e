package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinWindow(t *testing.T) {
	l := NewLimiter(1, 10*time.Second)
	defer l.Stop()

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	if !l.Allow("predict:S1") {
		t.Fatalf("expected first call to be allowed")
	}
	if l.Allow("predict:S1") {
		t.Fatalf("expected second call inside window to be rejected")
	}
	if !l.Allow("predict:S2") {
		t.Fatalf("expected other key to be independent")
	}

	clock = clock.Add(11 * time.Second)
	if !l.Allow("predict:S1") {
		t.Fatalf("expected call after window to be allowed")
	}
}

func TestForget(t *testing.T) {
	l := NewLimiter(1, time.Hour)
	defer l.Stop()
	l.Allow("k")
	l.Forget("k")
	if !l.Allow("k") {
		t.Fatalf("expected forgotten key to be allowed again")
	}
}

func TestZeroWindowDisablesLimiting(t *testing.T) {
	l := NewLimiter(1, 0)
	defer l.Stop()
	for i := 0; i < 3; i++ {
		if !l.Allow("k") {
			t.Fatalf("expected zero window to allow every call")
		}
	}
}

func TestStopIsIdempotent(t *testing.T) {
	l := NewLimiter(1, time.Second)
	l.Stop()
	l.Stop()
}
