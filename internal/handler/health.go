package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/stockcast/internal/session"
)

// SessionReader is the read side of the session store
type SessionReader interface {
	Snapshot() session.Snapshot
}

// Pinger checks a dependency
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the agent's liveness and readiness checks
type HealthHandler struct {
	session SessionReader
	redis   Pinger
	logger  *slog.Logger
}

// NewHealthHandler creates a health handler. redis may be nil when sessions are not kept there.
func NewHealthHandler(s SessionReader, redis Pinger, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &HealthHandler{
		session: s,
		redis:   redis,
		logger:  logger,
	}
}

// HealthResponse represents the health status response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// SessionResponse describes the current session
type SessionResponse struct {
	State         string `json:"state"`
	StoreID       string `json:"store_id,omitempty"`
	Authenticated bool   `json:"authenticated"`
	Loading       bool   `json:"loading"`
}

// Health handles GET /healthz. Returns 200 while the process is running.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready handles GET /readyz. Returns 200 only with an authenticated session
// and, when configured, a reachable redis.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	ready := true

	snap := h.session.Snapshot()
	checks["session"] = snap.State.String()
	if snap.State != session.StateAuthenticated {
		ready = false
	}

	if h.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.redis.Ping(ctx); err != nil {
			checks["redis"] = "error: " + err.Error()
			ready = false
		} else {
			checks["redis"] = "ok"
		}
	}

	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, ReadinessResponse{Status: status, Checks: checks})

	h.logger.Debug("readiness check",
		slog.String("status", status),
		slog.String("session", checks["session"]),
	)
}

// Session handles GET /session
func (h *HealthHandler) Session(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	writeJSON(w, http.StatusOK, SessionResponse{
		State:         snap.State.String(),
		StoreID:       snap.StoreID,
		Authenticated: snap.Authenticated(),
		Loading:       snap.Loading,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
