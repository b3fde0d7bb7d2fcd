package server

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware caps the request context at the given duration. It is
// applied to the management routes only; chat invocations manage their own
// deadlines so long-lived streams are not cut off.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
