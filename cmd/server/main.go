package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/jotjot/internal/app"
	"github.com/benvon/jotjot/internal/config"
	"github.com/benvon/jotjot/internal/handlers"
	"github.com/benvon/jotjot/internal/logger"
	"github.com/benvon/jotjot/internal/middleware"
	"github.com/benvon/jotjot/internal/queue"
	"github.com/benvon/jotjot/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	shutdownTimeout = 30 * time.Second
	connectTimeout  = 5 * time.Second
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	level := cfg.LogLevel
	if cfg.DebugMode || *debugFlag {
		level = "debug"
	}
	zapLogger, err := logger.New(level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_server",
		zap.String("server_port", cfg.ServerPort),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	ctx := context.Background()
	shutdownTracing := telemetry.Setup(ctx, cfg.OTELEnabled, cfg.OTELEndpoint, zapLogger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
		}
	}()

	a, err := app.New(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_initialize_app", zap.Error(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			zapLogger.Warn("failed_to_close_app", zap.Error(err))
		}
	}()

	health := handlers.NewHealthChecker().WithCheck("store", a.HealthCheck)

	// Redis is optional; without it rate limit counters are per process
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		health.WithCheck("redis", func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
		zapLogger.Info("connected_to_redis")
	} else {
		health.WithCheck("redis", nil)
	}

	rateLimit, err := middleware.RateLimit(redisClient, cfg.RateLimit)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}

	// The queue is only probed here; the worker binary consumes it
	if cfg.RabbitMQURL != "" {
		jobQueue, queueErr := queue.NewRabbitMQQueue(cfg.RabbitMQURL, zapLogger.Named("queue"))
		if queueErr != nil {
			zapLogger.Warn("rabbitmq_unavailable", zap.Error(queueErr))
			health.WithCheck("rabbitmq", func(context.Context) error { return queueErr })
		} else {
			defer func() {
				if err := jobQueue.Close(); err != nil {
					zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
				}
			}()
			health.WithCheck("rabbitmq", jobQueue.HealthCheck)
		}
	} else {
		health.WithCheck("rabbitmq", nil)
	}

	routerCfg := handlers.RouterConfig{
		RateLimit:      rateLimit,
		EnableHSTS:     cfg.EnableHSTS,
		MaxRequestSize: middleware.DefaultMaxRequestSize,
		RequestTimeout: middleware.DefaultRequestTimeout,
	}
	if cfg.OTELEnabled {
		routerCfg.ServiceName = telemetry.ServiceName
	}
	r := handlers.NewRouter(handlers.NewInvocationHandler(a.Router, zapLogger.Named("http")), health, zapLogger.Named("http"), routerCfg)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
