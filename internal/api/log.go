package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// logRequest emits one structured log line per handled request
func logRequest(r *http.Request, status int, elapsed time.Duration) {
	slog.Debug("HTTP request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"duration", elapsed,
		"request_id", middleware.GetReqID(r.Context()),
	)
}
