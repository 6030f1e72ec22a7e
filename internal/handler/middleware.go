package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/stockcast/internal/requestid"
)

// WithRequestID tags each request with an id (the caller's, if sent) and logs its completion
func WithRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestid.Header)
		if reqID == "" {
			reqID = requestid.New()
		}
		w.Header().Set(requestid.Header, reqID)

		ctx := requestid.With(r.Context(), reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}
