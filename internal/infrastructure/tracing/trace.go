package tracing

import (
	"context"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/RunnerOS/backend/internal/shared/id"
)

// RequestIDHeader carries the request ID in both directions
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLength bounds IDs accepted from clients
const maxRequestIDLength = 128

type contextKey int

const requestIDKey contextKey = iota

// WithRequestID returns a context carrying rid
func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, requestIDKey, rid)
}

// RequestID returns the request ID carried by ctx, or ""
func RequestID(ctx context.Context) string {
	rid, _ := ctx.Value(requestIDKey).(string)
	return rid
}

// Fields returns the log fields identifying ctx's request
func Fields(ctx context.Context) []zap.Field {
	if rid := RequestID(ctx); rid != "" {
		return []zap.Field{zap.String("request_id", rid)}
	}
	return nil
}

// resolveRequestID keeps a sane client-supplied ID, or generates one
func resolveRequestID(incoming string) string {
	if incoming == "" || len(incoming) > maxRequestIDLength {
		return id.NewRequestID()
	}
	for _, r := range incoming {
		if r < 0x21 || r > 0x7e {
			return id.NewRequestID()
		}
	}
	return incoming
}
