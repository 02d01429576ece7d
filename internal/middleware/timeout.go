package middleware

import (
	"net/http"
	"time"
)

// DefaultRequestTimeout covers a skill turn including the profile API call
const DefaultRequestTimeout = 10 * time.Second

// Timeout bounds handler run time. The handler's context is cancelled and the
// client receives 503 once timeout elapses.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, `{"error":"Request Timeout"}`)
	}
}
