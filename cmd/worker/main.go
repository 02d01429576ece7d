package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/jotjot/internal/app"
	"github.com/benvon/jotjot/internal/config"
	"github.com/benvon/jotjot/internal/logger"
	"github.com/benvon/jotjot/internal/queue"
	"github.com/benvon/jotjot/internal/telemetry"
	"github.com/benvon/jotjot/internal/workers"
	"go.uber.org/zap"
)

const (
	maxConnectAttempts = 10
	initialDelay       = 2 * time.Second
	maxDelay           = 30 * time.Second
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup(ctx, cfg.OTELEnabled, cfg.OTELEndpoint, zapLogger)
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
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

	jobQueue, err := connectQueue(ctx, cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries",
			zap.Int("max_retries", maxConnectAttempts),
			zap.Error(err),
		)
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()

	msgs, errs, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("failed_to_start_consuming", zap.Error(err))
	}

	processor := workers.NewProcessor(a.Router, jobQueue, zapLogger.Named("worker"))
	zapLogger.Info("worker_started", zap.Int("prefetch", cfg.RabbitMQPrefetch))

	processor.Run(ctx, msgs, errs)

	zapLogger.Info("worker_stopped")
}

// connectQueue retries with exponential backoff while RabbitMQ starts up
func connectQueue(ctx context.Context, url string, zapLogger *zap.Logger) (*queue.RabbitMQQueue, error) {
	var lastErr error
	for attempt := 0; attempt < maxConnectAttempts; attempt++ {
		q, err := queue.NewRabbitMQQueue(url, zapLogger.Named("queue"))
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return q, nil
		}
		lastErr = err

		delay := min(initialDelay<<attempt, maxDelay)
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxConnectAttempts),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}
