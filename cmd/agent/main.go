package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yourorg/stockcast/internal/bootstrap"
	"github.com/yourorg/stockcast/internal/featureflags"
	"github.com/yourorg/stockcast/internal/handler"
	"github.com/yourorg/stockcast/internal/infrastructure/logger"
	"github.com/yourorg/stockcast/internal/observability/metrics"
	"github.com/yourorg/stockcast/internal/worker"
	"github.com/yourorg/stockcast/pkg/config"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting stockcast agent",
		slog.String("environment", cfg.Environment),
		slog.String("backend", cfg.APIBaseURL),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Wire gateway, session store and services
	rt, err := bootstrap.New(ctx, cfg, log, "stockcast-agent")
	if err != nil {
		log.Error("failed to initialize", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Resolve the session before serving readiness
	snap, err := rt.Session.Start(ctx)
	if err != nil {
		log.Error("session startup failed", slog.String("error", err.Error()))
	}
	log.Info("session resolved", slog.String("state", snap.State.String()), slog.String("store_id", snap.StoreID))

	// 5. Start keepalive worker in background
	if featureflags.Enabled(featureflags.Keepalive) && cfg.KeepAliveInterval > 0 {
		keepAlive := worker.NewKeepAlive(rt.Session, log, cfg.KeepAliveInterval, cfg.RequestTimeout)
		go keepAlive.Start(ctx)
	}

	// 6. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.AgentPort),
		Handler:      newRouter(rt, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("agent listening",
		slog.Int("port", cfg.AgentPort),
		slog.Duration("keepalive_interval", cfg.KeepAliveInterval),
		slog.String("session_store", cfg.SessionStore),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
			sigChan <- syscall.SIGTERM
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // Stop keepalive worker
	if err := rt.Close(shutdownCtx); err != nil {
		log.Error("cleanup error", slog.String("error", err.Error()))
	}
	log.Info("agent stopped")
}

func newRouter(rt *bootstrap.Runtime, log *slog.Logger) http.Handler {
	var redisPinger handler.Pinger
	if rt.Redis != nil {
		redisPinger = rt.Redis
	}
	health := handler.NewHealthHandler(rt.Session, redisPinger, log)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", health.Health)
	mux.HandleFunc("GET /readyz", health.Ready)
	mux.HandleFunc("GET /session", health.Session)
	mux.Handle("GET /metrics", promhttp.Handler())

	return handler.WithRequestID(
		otelhttp.NewHandler(metrics.HTTPMetricsMiddleware(mux), "stockcast-agent"),
		log,
	)
}
