// Package middleware provides HTTP middleware components for request logging, timeout handling,
// and panic recovery. It integrates with zerolog for structured logging and supports request
// tracing through unique request IDs.
package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tansive/flowbridge/internal/common/httpx"
	"github.com/tansive/flowbridge/internal/common/logtrace"
	"github.com/tansive/flowbridge/internal/common/uuid"
)

const RequestIDHeader = "X-FlowBridge-Request-ID"

// RequestLogger creates middleware that logs incoming requests and adds a unique request ID
// to both the request context and response headers. The completion record carries the status
// code and duration.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := newRequestId()
		ctx := logtrace.WithRequestID(r.Context(), requestID)
		ctx = log.With().Str("request_id", requestID).Logger().WithContext(ctx)

		w.Header().Set(RequestIDHeader, requestID)
		rw := httpx.NewResponseWriter(w)

		log.Ctx(ctx).Info().
			Str("requestMethod", r.Method).
			Str("requestPath", r.URL.Path).
			Str("remoteIP", r.RemoteAddr).
			Str("proto", r.Proto).
			Msg("incoming request")

		defer func() {
			log.Ctx(ctx).Info().
				Int("status", rw.Status()).
				Str("duration", fmt.Sprintf("%dms", time.Since(start).Milliseconds())).
				Msg("request completed")
		}()

		next.ServeHTTP(rw, r.WithContext(ctx))
	})
}

// newRequestId generates a unique request identifier. It attempts to create a UUID first,
// falling back to a timestamp-based ID if UUID generation fails.
func newRequestId() string {
	u, err := uuid.NewRandom()
	if err == nil {
		return u.String()
	}
	return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
}
