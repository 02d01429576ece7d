package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/benvon/jotjot/internal/invocation"
	"github.com/benvon/jotjot/internal/logger"
	"github.com/benvon/jotjot/internal/request"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// PayloadRouter routes a raw invocation payload
type PayloadRouter interface {
	Route(ctx context.Context, raw json.RawMessage) (any, error)
}

// InvocationHandler serves skill requests and direct events over HTTP
type InvocationHandler struct {
	router PayloadRouter
	logger *zap.Logger
}

// NewInvocationHandler creates a handler backed by router
func NewInvocationHandler(router PayloadRouter, log *zap.Logger) *InvocationHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &InvocationHandler{router: router, logger: log}
}

// RegisterRoutes registers the skill and direct event endpoints
func (h *InvocationHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/alexa", h.Invoke).Methods(http.MethodPost)
	r.HandleFunc("/invoke", h.Invoke).Methods(http.MethodPost)
}

// Invoke routes the request body exactly as the Lambda entry point does.
// Skill requests answer 200 with the response envelope; direct events answer
// with their own status code and the {statusCode, body} object.
func (h *InvocationHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", "payload exceeds the size limit")
			return
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "failed to read request body")
		return
	}

	out, err := h.router.Route(r.Context(), raw)
	if err != nil {
		h.logger.Warn("invocation_rejected",
			zap.String("invocation_id", request.InvocationID(r.Context())),
			zap.String("error", logger.SanitizeError(err)),
		)
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "payload must be a JSON object")
		return
	}

	if resp, ok := out.(invocation.Response); ok {
		respondJSON(w, resp.StatusCode, resp)
		return
	}
	respondJSON(w, http.StatusOK, out)
}
