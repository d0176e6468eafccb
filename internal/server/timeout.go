package server

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware caps each request's context at the configured
// duration. Cancellation is cooperative: a streaming exchange notices
// it on the next read, writes its failure outcome on a detached
// context, and unwinds. Nothing is forcibly terminated here.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
