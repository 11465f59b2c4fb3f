package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/logger"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// UserHeader carries the id of the acting user. Identity is resolved
// upstream; this service trusts the header.
const UserHeader = "X-User-ID"

// RequestContext copies the chi request id and the user header into the
// logging context.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := chimw.GetReqID(ctx); id != "" {
			ctx = logger.WithRequestID(ctx, id)
			w.Header().Set("X-Request-ID", id)
		}
		if user := strings.TrimSpace(r.Header.Get(UserHeader)); user != "" {
			ctx = logger.WithUser(ctx, user)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLogger logs one line per request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		level := slog.LevelInfo
		if sw.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.FromContext(r.Context()).Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
