package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/benvon/jotjot/internal/request"
	"go.uber.org/zap"
)

// ErrorResponse is the body written when a handler panics
type ErrorResponse struct {
	Error        string `json:"error"`
	Message      string `json:"message"`
	InvocationID string `json:"invocation_id,omitempty"`
	Timestamp    string `json:"timestamp"`
	Path         string `json:"path"`
}

// Recover turns a handler panic into a 500 JSON response
func Recover(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					// Details stay in the log
					logger.Error("panic_recovered",
						zap.String("panic", fmt.Sprint(rec)),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
						zap.String("invocation_id", request.InvocationID(r.Context())),
					)
					WriteError(w, r, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred", logger)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// WriteError sends an ErrorResponse with the given status
func WriteError(w http.ResponseWriter, r *http.Request, status int, errorType, message string, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := ErrorResponse{
		Error:        errorType,
		Message:      message,
		InvocationID: request.InvocationID(r.Context()),
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Path:         r.URL.Path,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("failed_to_encode_error_response",
			zap.Error(err),
			zap.Int("status_code", status),
			zap.String("path", r.URL.Path),
		)
	}
}
