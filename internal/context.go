package internal

import (
	"context"
	"time"
)

type ctxKey string

const contextRequestPathKey ctxKey = "requestPath"

// RequestPathFromContext returns the path the current request originally targeted.
func RequestPathFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if path, ok := ctx.Value(contextRequestPathKey).(string); ok {
		return path
	}
	return ""
}

func ContextWithRequestPath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, contextRequestPathKey, path)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
