// Package bootstrap wires the gateway, session and services from configuration.
// The CLI and the agent share it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/stockcast/internal/gateway"
	"github.com/yourorg/stockcast/internal/infrastructure/redis"
	"github.com/yourorg/stockcast/internal/observability/metrics"
	"github.com/yourorg/stockcast/internal/observability/tracing"
	"github.com/yourorg/stockcast/internal/reliability/circuitbreaker"
	"github.com/yourorg/stockcast/internal/reliability/retry"
	"github.com/yourorg/stockcast/internal/security/audit"
	"github.com/yourorg/stockcast/internal/service"
	"github.com/yourorg/stockcast/internal/session"
	"github.com/yourorg/stockcast/internal/sessionstore"
	"github.com/yourorg/stockcast/pkg/config"
)

// Runtime holds the wired components for one process
type Runtime struct {
	Config   *config.Config
	Logger   *slog.Logger
	Gateway  *gateway.Client
	Breaker  *circuitbreaker.CircuitBreaker
	Persist  sessionstore.Store
	Session  *session.Store
	Forecast *service.ForecastService
	Audit    *audit.Logger
	// Redis is set only when sessions are kept in redis
	Redis *redis.Client

	closers []func(context.Context) error
}

// New builds a runtime. The session is not started; call Session.Start.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger, serviceName string) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Logger: log, Audit: audit.NewLogger(log)}

	shutdownTracing, err := tracing.Init(ctx, log, cfg.TracingEndpoint, serviceName, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}
	rt.closers = append(rt.closers, shutdownTracing)

	if cfg.BreakerThreshold > 0 {
		rt.Breaker = circuitbreaker.New(int32(cfg.BreakerThreshold), 1, cfg.BreakerTimeout)
		rt.Breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
			metrics.SetBreakerState(int(to))
			log.Warn("backend circuit breaker state changed",
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		})
	}

	rt.Gateway, err = gateway.New(gateway.Options{
		BaseURL:          cfg.APIBaseURL,
		Timeout:          cfg.RequestTimeout,
		Breaker:          rt.Breaker,
		UploadExtensions: cfg.UploadExtensions,
		Logger:           log,
	})
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}

	rt.Persist, err = rt.openPersistence(cfg)
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}

	rt.Session = session.NewStore(rt.Gateway,
		session.WithPersistence(rt.Gateway, rt.Persist),
		session.WithAuditor(rt.Audit),
		session.WithLogger(log),
	)
	// every persistence backend also keeps marks, so the debounce window spans CLI runs
	marks, _ := rt.Persist.(sessionstore.Marks)
	rt.Forecast = service.NewForecastService(rt.Gateway, rt.Session, service.ForecastOptions{
		CacheTTL: cfg.PredictionTTL,
		Debounce: cfg.PredictDebounce,
		Marks:    marks,
		Logger:   log,
	})
	rt.closers = append(rt.closers, func(context.Context) error {
		rt.Forecast.Close()
		rt.Session.Close()
		return nil
	})
	return rt, nil
}

func (rt *Runtime) openPersistence(cfg *config.Config) (sessionstore.Store, error) {
	switch cfg.SessionStore {
	case "", "file":
		return sessionstore.NewFileStore(cfg.SessionFile), nil
	case "memory":
		return sessionstore.NewMemoryStore(), nil
	case "redis":
		client, err := redis.NewClient(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis session store: %w", err)
		}
		rt.Redis = client
		rt.closers = append(rt.closers, func(context.Context) error { return client.Close() })
		return sessionstore.NewRedisStore(client, cfg.SessionKey, 24*time.Hour), nil
	default:
		return nil, fmt.Errorf("unknown SESSION_STORE %q (want file, redis or memory)", cfg.SessionStore)
	}
}

// Read runs a read-only gateway call, retrying network errors up to RETRY_ATTEMPTS times.
// Mutating calls must not go through here.
func Read[T any](ctx context.Context, rt *Runtime, op string, fn retry.Retryable[T]) (T, error) {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = rt.Config.RetryAttempts
	cfg.MaxBackoff = 5 * time.Second
	cfg.Retryable = gateway.IsNetworkError
	return retry.Do(ctx, cfg, rt.Logger, op, fn)
}

// Close releases everything in reverse order of creation
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
