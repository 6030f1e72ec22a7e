package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/yourorg/stockcast/internal/domain"
	"github.com/yourorg/stockcast/internal/gateway/gatewaytest"
	"github.com/yourorg/stockcast/internal/reliability/circuitbreaker"
	"github.com/yourorg/stockcast/internal/requestid"
)

func newTestClient(t *testing.T, backend *gatewaytest.Backend) *Client {
	t.Helper()
	c, err := New(Options{BaseURL: backend.URL() + "/"})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c
}

func login(t *testing.T, c *Client, backend *gatewaytest.Backend) {
	t.Helper()
	backend.AddUser("S1", "p")
	if err := c.Login(context.Background(), domain.Credentials{StoreID: "S1", Password: "p"}); err != nil {
		t.Fatalf("login failed: %v", err)
	}
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	if _, err := New(Options{BaseURL: "ftp://example.com"}); err == nil {
		t.Fatalf("expected scheme error")
	}
	if _, err := New(Options{BaseURL: "://bad"}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoginSetsSessionCookie(t *testing.T) {
	backend := gatewaytest.NewBackend()
	defer backend.Close()
	c := newTestClient(t, backend)

	login(t, c, backend)

	req, ok := backend.LastRequest("/login")
	if !ok {
		t.Fatalf("expected login request")
	}
	if req.Form.Get("store_id") != "S1" || req.Form.Get("password") != "p" {
		t.Fatalf("expected multipart credentials, got %v", req.Form)
	}
	if len(c.Cookies()) != 1 || c.Cookies()[0].Name != gatewaytest.SessionCookie {
		t.Fatalf("expected session cookie in jar, got %v", c.Cookies())
	}

	if _, err := c.GetDashboardData(context.Background()); err != nil {
		t.Fatalf("expected authenticated probe, got %v", err)
	}
}

func TestLoginRejectedCarriesBackendMessage(t *testing.T) {
	backend := gatewaytest.NewBackend()
	defer backend.Close()
	c := newTestClient(t, backend)
	backend.AddUser("S1", "p")

	err := c.Login(context.Background(), domain.Credentials{StoreID: "S1", Password: "wrong"})
	var aerr *AuthenticationError
	if !errors.As(err, &aerr) {
		t.Fatalf("expected AuthenticationError, got %T %v", err, err)
	}
	if aerr.Error() != "Invalid credentials" {
		t.Fatalf("expected backend message, got %q", aerr.Error())
	}
	if StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", StatusCode(err))
	}
}

func TestLoginRejectedWithEmptyBody(t *testing.T) {
	backend := gatewaytest.NewBackend()
	defer backend.Close()
	backend.Override("POST /login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	c := newTestClient(t, backend)

	err := c.Login(context.Background(), domain.Credentials{StoreID: "S1", Password: "x"})
	if err == nil || err.Error() != "Invalid store ID or password" {
		t.Fatalf("expected generic auth message, got %v", err)
	}
}

func TestLoginSubmitsEmptyCredentials(t *testing.T) {
	backend := gatewaytest.NewBackend()
	defer backend.Close()
	c := newTestClient(t, backend)

	_ = c.Login(context.Background(), domain.Credentials{})
	if _, ok := backend.LastRequest("/login"); !ok {
		t.Fatalf("expected empty credentials to reach the backend")
	}
}

func TestRegister(t *testing.T) {
	backend := gatewaytest.NewBackend()
	defer backend.Close()
	c := newTestClient(t, backend)

	creds := domain.Credentials{StoreID: "S9", Password: "secret"}
	if err := c.Register(context.Background(), creds); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if !backend.HasUser("S9") {
		t.Fatalf("expected backend to know S9")
	}
	if len(c.Cookies()) != 0 {
		t.Fatalf("registration must not authenticate")
	}

	err := c.Register(context.Background(), creds)
	var rerr *RegistrationError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RegistrationError, got %v", err)
	}
	if rerr.Error() != "Store ID already exists" {
		t.Fatalf("unexpected message %q", rerr.Error())
	}
}

func TestGetDashboardDataUnauthenticated(t *testing.T) {
	backend := gatewaytest.NewBackend()
	defer backend.Close()
	c := newTestClient(t, backend)

	_, err := c.GetDashboardData(context.Background())
	var herr *HTTPError
	if !errors.As(err, &herr) || herr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 HTTPError, got %v", err)
	}
}

func TestProbeIsStable(t *testing.T) {
	backend := gatewaytest.NewBackend()
	defer backend.Close()
	c := newTestClient(t, backend)
	login(t, c, backend)

	for i := 0; i < 3; i++ {
		if _, err := c.GetDashboardData(context.Background()); err != nil {
			t.Fatalf("probe %d failed: %v", i, err)
		}
	}
}

func TestHTTPErrorFallbackMessage(t *testing.T) {
	err := &HTTPError{StatusCode: 502}
	if err.Error() != "HTTP error, status 502" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	err = &HTTPError{StatusCode: 500, Body: "  boom \n"}
	if err.Error() != "boom" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestNetworkError(t *testing.T) {
	backend := gatewaytest.NewBackend()
	c := newTestClient(t, backend)
	backend.Close()

	_, err := c.GetDashboardData(context.Background())
	if !IsNetworkError(err) {
		t.Fatalf("expected NetworkError, got %T %v", err, err)
	}
	if StatusCode(err) != 0 {
		t.Fatalf("network errors carry no status")
	}
}

func TestLogout(t *testing.T) {
	backend := gatewaytest.NewBackend()
	defer backend.Close()
	c := newTestClient(t, backend)
	login(t, c, backend)

	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := c.GetDashboardData(context.Background()); err == nil {
		t.Fatalf("expected probe to fail after logout")
	}
}

func TestRequestIDPropagated(t *testing.T) {
	backend := gatewaytest.NewBackend()
	defer backend.Close()
	c := newTestClient(t, backend)

	ctx := requestid.With(context.Background(), "trace-me")
	_, _ = c.GetDashboardData(ctx)
	req, _ := backend.LastRequest("/dashboard")
	if req.RequestID != "trace-me" {
		t.Fatalf("expected request id header, got %q", req.RequestID)
	}

	_, _ = c.GetDashboardData(context.Background())
	req, _ = backend.LastRequest("/dashboard")
	if req.RequestID == "" || req.RequestID == "trace-me" {
		t.Fatalf("expected a fresh request id, got %q", req.RequestID)
	}
}

func TestNoBearerHeader(t *testing.T) {
	backend := gatewaytest.NewBackend()
	defer backend.Close()
	var sawAuth bool
	backend.Override("GET /dashboard", func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization") != ""
		if r.Header.Get("Accept") != "application/json" {
			http.Error(w, "bad accept", http.StatusBadRequest)
		}
	})
	c := newTestClient(t, backend)

	if _, err := c.GetDashboardData(context.Background()); err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if sawAuth {
		t.Fatalf("no Authorization header may be sent")
	}
}

func TestCookiesRoundTrip(t *testing.T) {
	backend := gatewaytest.NewBackend()
	defer backend.Close()
	first := newTestClient(t, backend)
	login(t, first, backend)

	second := newTestClient(t, backend)
	second.SetCookies(first.Cookies())
	if _, err := second.GetDashboardData(context.Background()); err != nil {
		t.Fatalf("expected restored cookies to authenticate: %v", err)
	}

	second.ClearCookies()
	if len(second.Cookies()) != 0 {
		t.Fatalf("expected cookies cleared, got %v", second.Cookies())
	}
}

func TestBreakerFailsFast(t *testing.T) {
	backend := gatewaytest.NewBackend()
	defer backend.Close()
	backend.Override("GET /dashboard", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})

	cb := circuitbreaker.New(2, 1, time.Hour)
	c, err := New(Options{BaseURL: backend.URL(), Breaker: cb})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := c.GetDashboardData(context.Background()); StatusCode(err) != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %v", err)
		}
	}
	before := len(backend.Requests())
	_, err = c.GetDashboardData(context.Background())
	if !errors.Is(err, circuitbreaker.ErrOpen) || !IsNetworkError(err) {
		t.Fatalf("expected open breaker network error, got %v", err)
	}
	if len(backend.Requests()) != before {
		t.Fatalf("open breaker must not reach the backend")
	}
}

func TestContextCancellation(t *testing.T) {
	backend := gatewaytest.NewBackend()
	defer backend.Close()
	c := newTestClient(t, backend)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GetDashboardData(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !strings.Contains(err.Error(), "dashboard") {
		t.Fatalf("expected operation in message, got %q", err.Error())
	}
}
