package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockcast_agent_http_requests_total",
		Help: "Total number of HTTP requests served by the agent",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stockcast_agent_http_request_duration_seconds",
		Help:    "Duration of HTTP requests served by the agent",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	backendRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockcast_backend_requests_total",
		Help: "Outgoing requests to the backend by method and status code",
	}, []string{"method", "status"})

	backendRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stockcast_backend_request_duration_seconds",
		Help:    "Round-trip time of outgoing backend requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	gatewayOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockcast_gateway_operations_total",
		Help: "Gateway operations by name and result (ok, http_error, network_error, invalid)",
	}, []string{"operation", "result"})

	sessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stockcast_session_state",
		Help: "1 for the current session state, 0 for the others",
	}, []string{"state"})

	sessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockcast_session_transitions_total",
		Help: "Session state transitions",
	}, []string{"from", "to"})

	keepAliveProbes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockcast_keepalive_probes_total",
		Help: "Keepalive probes by result",
	}, []string{"result"})

	breakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stockcast_gateway_breaker_state",
		Help: "Gateway circuit breaker state (0 closed, 1 open, 2 half-open)",
	})
)

var sessionStates = []string{"unknown", "authenticated", "unauthenticated"}

// ObserveHTTPRequest records an HTTP request served by the agent
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveBackendRequest records one outgoing round trip. status is "error" when no response arrived.
func ObserveBackendRequest(method, status string, duration time.Duration) {
	backendRequestsTotal.WithLabelValues(method, status).Inc()
	backendRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// ObserveOperation counts a gateway operation outcome
func ObserveOperation(operation, result string) {
	gatewayOperations.WithLabelValues(operation, result).Inc()
}

// SetSessionState marks state as the current session state
func SetSessionState(state string) {
	for _, s := range sessionStates {
		v := 0.0
		if s == state {
			v = 1
		}
		sessionState.WithLabelValues(s).Set(v)
	}
}

// ObserveSessionTransition counts a state change
func ObserveSessionTransition(from, to string) {
	sessionTransitions.WithLabelValues(from, to).Inc()
}

// ObserveKeepAlive counts a keepalive probe result
func ObserveKeepAlive(result string) {
	keepAliveProbes.WithLabelValues(result).Inc()
}

// SetBreakerState records the gateway breaker state
func SetBreakerState(state int) {
	breakerState.Set(float64(state))
}
