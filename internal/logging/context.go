package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	refreshIDKey contextKey = "refresh_id"
)

// GenerateRequestID returns a new UUID for an API request
func GenerateRequestID() string {
	return uuid.New().String()
}

// GenerateRefreshID returns a short id correlating the log lines of one refresh
func GenerateRefreshID() string {
	return uuid.New().String()[:8]
}

// ContextWithRequestID attaches a request id
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id, or ""
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithRefreshID attaches a refresh id
func ContextWithRefreshID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, refreshIDKey, id)
}

// RefreshIDFromContext returns the refresh id, or ""
func RefreshIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(refreshIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx returns the global logger enriched with the ids carried by ctx
func Ctx(ctx context.Context) *zerolog.Logger {
	logCtx := Logger().With()
	if id := RequestIDFromContext(ctx); id != "" {
		logCtx = logCtx.Str("request_id", id)
	}
	if id := RefreshIDFromContext(ctx); id != "" {
		logCtx = logCtx.Str("refresh_id", id)
	}
	l := logCtx.Logger()
	return &l
}
