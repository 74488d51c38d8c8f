package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/tansive/flowbridge/internal/common/httpx"
	"github.com/tansive/flowbridge/internal/common/logtrace"
)

// PanicHandler recovers from panics in HTTP handlers, logs the stack and answers with a
// generic error unless the response was already started.
func PanicHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := httpx.NewResponseWriter(w)
		defer func() {
			if err := recover(); err != nil {
				stack := debug.Stack()

				log.Ctx(r.Context()).Error().
					Str("panic", fmt.Sprintf("%v", err)).
					Str("stack_trace", string(stack)).
					Msg("panic occurred")

				if !rw.Written() {
					httpx.ErrApplicationError("Id: " + logtrace.RequestIdFromContext(r.Context())).Send(rw)
				}
			}
		}()
		next.ServeHTTP(rw, r)
	})
}
