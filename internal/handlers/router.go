package handlers

import (
	"net/http"
	"time"

	"github.com/benvon/jotjot/internal/middleware"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RouterConfig controls the HTTP middleware chain
type RouterConfig struct {
	// ServiceName names the server span; tracing is off when empty
	ServiceName string
	// TracerProvider and Propagators default to the otel globals
	TracerProvider trace.TracerProvider
	Propagators    propagation.TextMapPropagator

	// RateLimit wraps the invocation routes only; nil disables limiting
	RateLimit func(http.Handler) http.Handler

	EnableHSTS     bool
	MaxRequestSize int64
	RequestTimeout time.Duration
}

// NewRouter builds the server's route table and middleware chain
func NewRouter(inv *InvocationHandler, health *HealthChecker, log *zap.Logger, cfg RouterConfig) *mux.Router {
	if log == nil {
		log = zap.NewNop()
	}
	r := mux.NewRouter()

	// gorilla/mux runs middleware in registration order, first is outermost
	if cfg.ServiceName != "" {
		var opts []otelmux.Option
		if cfg.TracerProvider != nil {
			opts = append(opts, otelmux.WithTracerProvider(cfg.TracerProvider))
		}
		if cfg.Propagators != nil {
			opts = append(opts, otelmux.WithPropagators(cfg.Propagators))
		}
		r.Use(otelmux.Middleware(cfg.ServiceName, opts...))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.InvocationID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recover(log))

	r.HandleFunc("/healthz", health.HealthCheck).Methods(http.MethodGet)

	api := r.PathPrefix("/").Subrouter()
	if cfg.RateLimit != nil {
		api.Use(cfg.RateLimit)
	}
	api.Use(middleware.MaxRequestSize(cfg.MaxRequestSize))
	api.Use(middleware.RequireJSON)
	api.Use(middleware.Timeout(cfg.RequestTimeout))
	inv.RegisterRoutes(api)

	return r
}
