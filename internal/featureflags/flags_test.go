package featureflags

import "testing"

func TestDefaults(t *testing.T) {
	t.Setenv("FLAG_PREDICTION_CACHE", "")
	t.Setenv("FLAG_KEEPALIVE", "")
	if !Enabled(PredictionCache) || !Enabled(Keepalive) {
		t.Fatalf("expected known flags on by default")
	}
	if Enabled("unknown_flag") {
		t.Fatalf("expected unknown flags to be off")
	}
}

func TestOverrides(t *testing.T) {
	t.Setenv("FLAG_PREDICTION_CACHE", "off")
	t.Setenv("FLAG_EXPERIMENT", "Yes")
	if Enabled(PredictionCache) {
		t.Fatalf("expected prediction cache disabled")
	}
	if !Enabled("experiment") {
		t.Fatalf("expected unknown flag to be enabled explicitly")
	}

	t.Setenv("FLAG_KEEPALIVE", "maybe")
	if !Enabled(Keepalive) {
		t.Fatalf("expected unparsable value to fall back to default")
	}
}
