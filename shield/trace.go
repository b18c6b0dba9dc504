package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/keyhint/idgen"
	"github.com/hazyhaar/keyhint/kit"
)

var newTraceID = idgen.NanoID(8)

// TraceID tags each request with a short trace ID, stored with
// kit.WithTraceID, echoed in X-Trace-ID, and attached to a per-request
// logger under LoggerKey.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := newTraceID()

		ctx := kit.WithTraceID(r.Context(), traceID)
		ctx = kit.WithTransport(ctx, "http")
		w.Header().Set("X-Trace-ID", traceID)

		logger := slog.Default().With(
			"trace_id", traceID,
			"method", r.Method,
			"path", r.URL.Path,
		)
		ctx = context.WithValue(ctx, LoggerKey, logger)
		logger.Debug("shield: request")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
