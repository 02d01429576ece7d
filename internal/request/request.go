// Package request carries per-invocation values through a context.
package request

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const invocationIDKey contextKey = "invocation_id"

// InvocationIDHeader lets callers supply their own id over HTTP
const InvocationIDHeader = "X-Invocation-ID"

// InvocationIDKey returns the context key used for the invocation id. Exposed for tests that inject non-string values.
func InvocationIDKey() contextKey { return invocationIDKey }

// ClientIP extracts the client IP from the request, respecting X-Forwarded-For and X-Real-IP.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return r.RemoteAddr
}

// WithInvocationID returns a context carrying id
func WithInvocationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, invocationIDKey, id)
}

// InvocationID returns the id on ctx, or "" if missing or wrong type.
func InvocationID(ctx context.Context) string {
	id, _ := ctx.Value(invocationIDKey).(string)
	return id
}

// EnsureInvocationID returns ctx with an invocation id, generating one when absent
func EnsureInvocationID(ctx context.Context) (context.Context, string) {
	if id := InvocationID(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return WithInvocationID(ctx, id), id
}
