package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/yourorg/stockcast/internal/observability/metrics"
	"github.com/yourorg/stockcast/internal/session"
)

// Refresher re-probes a session
type Refresher interface {
	Refresh(ctx context.Context) error
	IsAuthenticated() bool
}

// KeepAlive periodically re-probes the session so an expired cookie is noticed
// and a live one is kept in use
type KeepAlive struct {
	session  Refresher
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

// NewKeepAlive creates a worker. timeout bounds each probe; zero means the interval.
func NewKeepAlive(s Refresher, logger *slog.Logger, interval, timeout time.Duration) *KeepAlive {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = interval
	}
	return &KeepAlive{session: s, logger: logger, interval: interval, timeout: timeout}
}

// Start runs until ctx is cancelled
func (w *KeepAlive) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("keepalive worker started", slog.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("keepalive worker stopped")
			return
		case <-ticker.C:
			w.probe(ctx)
		}
	}
}

func (w *KeepAlive) probe(ctx context.Context) {
	if !w.session.IsAuthenticated() {
		metrics.ObserveKeepAlive("skipped")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	err := w.session.Refresh(ctx)
	switch {
	case errors.Is(err, session.ErrBusy):
		// a login or logout is running; try again next tick
		metrics.ObserveKeepAlive("skipped")
	case err != nil:
		w.logger.Warn("keepalive probe failed", slog.String("error", err.Error()))
		metrics.ObserveKeepAlive("error")
	case !w.session.IsAuthenticated():
		w.logger.Warn("session expired")
		metrics.ObserveKeepAlive("expired")
	default:
		w.logger.Debug("session alive")
		metrics.ObserveKeepAlive("ok")
	}
}
