package logger

import (
	"context"

	"go.uber.org/zap"
)

type contextKey struct{}

var requestIDKey contextKey

// WithRequestID stamps a request id onto the context for downstream logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id stamped by the HTTP middleware.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// FromContext returns the global logger annotated with request correlation
// fields when present.
func FromContext(ctx context.Context) *zap.Logger {
	log := zap.L()
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		log = log.With(zap.String("request_id", requestID))
	}
	return log
}
