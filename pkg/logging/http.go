package logging

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// HTTPHandler returns middleware that attaches logger to every request
// (retrievable with hlog.FromRequest) and writes one access line per
// response. Responses answered from the cache are logged like any other.
func HTTPHandler(logger zerolog.Logger) func(http.Handler) http.Handler {
	withLogger := hlog.NewHandler(logger)
	access := hlog.AccessHandler(logAccess)
	return func(next http.Handler) http.Handler {
		return withLogger(access(next))
	}
}

// logAccess logs server errors at Warn, everything else at Info.
func logAccess(r *http.Request, status, size int, duration time.Duration) {
	logger := hlog.FromRequest(r)
	event := logger.Info()
	if status >= http.StatusInternalServerError {
		event = logger.Warn()
	}
	if id := chimw.GetReqID(r.Context()); id != "" {
		event = event.Str("request_id", id)
	}
	event.
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status_code", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("Request served")
}
