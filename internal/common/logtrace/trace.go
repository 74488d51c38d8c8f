package logtrace

import (
	"context"
	"os"
)

var traceEnabled = os.Getenv("FLOWBRIDGE_TRACE") == "1"

type requestIDKey struct{}

// WithRequestID returns a context carrying the sandbox request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIdFromContext extracts the request ID, or "" if none is set.
func RequestIdFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	r, ok := ctx.Value(requestIDKey{}).(string)
	if !ok {
		return ""
	}
	return r
}

// IsTraceEnabled reports whether route tracing is on. Set FLOWBRIDGE_TRACE=1 to print
// sandbox routes at startup.
func IsTraceEnabled() bool {
	return traceEnabled
}
