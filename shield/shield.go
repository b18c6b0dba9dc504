// Package shield holds the HTTP middleware in front of the keyhint control
// API: security headers for a JSON-only surface, a request body cap,
// per-request trace IDs and HEAD handling.
//
//	r := chi.NewRouter()
//	for _, mw := range shield.Stack() {
//	    r.Use(mw)
//	}
package shield

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// MaxBodyBytes caps request bodies. Control requests are a few bytes.
const MaxBodyBytes = 16 * 1024

// Stack is the middleware every keyhint route gets, outermost first.
func Stack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(MaxBodyBytes),
		TraceID,
	}
}

// GetLogger returns the per-request logger, or slog.Default outside a
// request.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
