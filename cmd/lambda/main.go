package main

import (
	"context"
	"encoding/json"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/benvon/jotjot/internal/app"
	"github.com/benvon/jotjot/internal/config"
	"github.com/benvon/jotjot/internal/logger"
	"github.com/benvon/jotjot/internal/request"
	"github.com/benvon/jotjot/internal/telemetry"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	ctx := context.Background()
	shutdownTracing := telemetry.Setup(ctx, cfg.OTELEnabled, cfg.OTELEndpoint, zapLogger)

	a, err := app.New(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_initialize_app", zap.Error(err))
	}

	zapLogger.Info("lambda_starting",
		zap.String("skill_name", cfg.SkillName),
		zap.String("store_backend", cfg.StoreBackend),
	)

	// The runtime never returns; the hook flushes spans and closes the store
	// when the execution environment is shut down.
	lambda.StartWithOptions(handler(a),
		lambda.WithEnableSIGTERM(func() {
			if err := shutdownTracing(context.Background()); err != nil {
				zapLogger.Warn("failed_to_shutdown_tracing", zap.Error(err))
			}
			if err := a.Close(); err != nil {
				zapLogger.Warn("failed_to_close_app", zap.Error(err))
			}
			_ = logger.Sync(zapLogger)
		}),
	)
}

// handler adapts the invocation router to the Lambda runtime. The Lambda
// request id doubles as the invocation id.
func handler(a *app.App) func(ctx context.Context, raw json.RawMessage) (any, error) {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		if lc, ok := lambdacontext.FromContext(ctx); ok {
			ctx = request.WithInvocationID(ctx, lc.AwsRequestID)
		}
		return a.Router.Route(ctx, raw)
	}
}
