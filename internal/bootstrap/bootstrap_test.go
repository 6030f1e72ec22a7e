package bootstrap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/yourorg/stockcast/internal/domain"
	"github.com/yourorg/stockcast/internal/gateway"
	"github.com/yourorg/stockcast/internal/gateway/gatewaytest"
	"github.com/yourorg/stockcast/internal/session"
	"github.com/yourorg/stockcast/pkg/config"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		Environment:      "test",
		APIBaseURL:       baseURL,
		RetryAttempts:    1,
		BreakerThreshold: 2,
		BreakerTimeout:   time.Minute,
		SessionStore:     "memory",
		PredictionTTL:    time.Minute,
		UploadExtensions: []string{".csv"},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewWiresSessionAndGateway(t *testing.T) {
	backend := gatewaytest.NewBackend()
	defer backend.Close()
	backend.AddUser("S1", "p")

	rt, err := New(context.Background(), testConfig(backend.URL()), quietLogger(), "stockcast-test")
	if err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	defer rt.Close(context.Background())

	if rt.Breaker == nil {
		t.Fatalf("expected breaker when threshold is set")
	}
	if _, err := rt.Session.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := rt.Session.Login(context.Background(), domain.Credentials{StoreID: "S1", Password: "p"}); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	rec, err := rt.Persist.Load(context.Background())
	if err != nil || rec.StoreID != "S1" {
		t.Fatalf("expected persisted session, got %+v, %v", rec, err)
	}

	body, err := Read(context.Background(), rt, "get_predictions", rt.Forecast.Predictions)
	if err != nil || len(body) == 0 {
		t.Fatalf("predictions failed: %q, %v", body, err)
	}
}

func TestFileSessionSurvivesRestart(t *testing.T) {
	backend := gatewaytest.NewBackend()
	defer backend.Close()
	backend.AddUser("S1", "p")

	cfg := testConfig(backend.URL())
	cfg.SessionStore = "file"
	cfg.SessionFile = filepath.Join(t.TempDir(), "session.json")

	first, err := New(context.Background(), cfg, quietLogger(), "stockcast-test")
	if err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	first.Session.Start(context.Background())
	if err := first.Session.Login(context.Background(), domain.Credentials{StoreID: "S1", Password: "p"}); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	first.Close(context.Background())

	second, err := New(context.Background(), cfg, quietLogger(), "stockcast-test")
	if err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	defer second.Close(context.Background())
	snap, _ := second.Session.Start(context.Background())
	if snap.State != session.StateAuthenticated || snap.StoreID != "S1" {
		t.Fatalf("expected restored session, got %+v", snap)
	}
}

func TestUnknownSessionStore(t *testing.T) {
	cfg := testConfig("http://localhost:1")
	cfg.SessionStore = "etcd"
	if _, err := New(context.Background(), cfg, quietLogger(), "stockcast-test"); err == nil {
		t.Fatalf("expected error for unknown session store")
	}
}

func TestReadRetriesNetworkErrors(t *testing.T) {
	cfg := testConfig("http://localhost:1")
	cfg.RetryAttempts = 3
	cfg.BreakerThreshold = 0
	rt, err := New(context.Background(), cfg, quietLogger(), "stockcast-test")
	if err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	defer rt.Close(context.Background())

	calls := 0
	_, err = Read(context.Background(), rt, "probe", func(ctx context.Context) (string, error) {
		calls++
		return "", &gateway.NetworkError{Op: "probe", Err: errors.New("refused")}
	})
	if err == nil || calls != 3 {
		t.Fatalf("expected 3 attempts and an error, got %d, %v", calls, err)
	}

	calls = 0
	_, _ = Read(context.Background(), rt, "probe", func(ctx context.Context) (string, error) {
		calls++
		return "", &gateway.HTTPError{Op: "probe", StatusCode: 401}
	})
	if calls != 1 {
		t.Fatalf("expected HTTP errors not to be retried, got %d calls", calls)
	}
}
