package middleware

import (
	"context"
	"net/http"
	"time"
)

// Deadline attaches a per-request deadline to the request context. It does
// not race a response-writing goroutine against the handler: the Dispatch
// Orchestrator itself decides how to react to ctx.Err() during adapter
// invocation (an AdapterTimeout outcome, not a generic 504 from
// middleware), so this layer only ever sets up the context.
func Deadline(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
