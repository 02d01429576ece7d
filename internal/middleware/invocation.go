package middleware

import (
	"net/http"

	"github.com/benvon/jotjot/internal/logger"
	"github.com/benvon/jotjot/internal/request"
)

const maxInvocationIDLength = 64

// InvocationID attaches an invocation id to the request context and echoes it
// in the response. A caller supplied X-Invocation-ID is kept.
func InvocationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if supplied := logger.SanitizeString(r.Header.Get(request.InvocationIDHeader), maxInvocationIDLength); supplied != "" {
			ctx = request.WithInvocationID(ctx, supplied)
		}
		ctx, id := request.EnsureInvocationID(ctx)
		w.Header().Set(request.InvocationIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
