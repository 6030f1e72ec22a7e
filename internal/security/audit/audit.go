package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/stockcast/internal/requestid"
)

// Logger writes session lifecycle events to a structured log
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

// LogAction records one audited action. Failures are logged at warn level.
func (al *Logger) LogAction(ctx context.Context, storeID, action, status, details string) {
	level := slog.LevelInfo
	if status != "success" {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit",
		slog.String("action", action),
		slog.String("store_id", storeID),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", requestid.From(ctx)),
		slog.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogLogin(ctx context.Context, storeID, status, details string) {
	al.LogAction(ctx, storeID, "login", status, details)
}

func (al *Logger) LogRegister(ctx context.Context, storeID, status, details string) {
	al.LogAction(ctx, storeID, "register", status, details)
}

func (al *Logger) LogLogout(ctx context.Context, storeID, status, details string) {
	al.LogAction(ctx, storeID, "logout", status, details)
}

func (al *Logger) LogProbe(ctx context.Context, storeID, status, details string) {
	al.LogAction(ctx, storeID, "probe", status, details)
}
