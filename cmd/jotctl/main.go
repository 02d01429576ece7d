package main

import (
	"context"
	"fmt"
	"os"

	"github.com/benvon/jotjot/cmd/jotctl/commands"
	"github.com/benvon/jotjot/internal/app"
	"github.com/benvon/jotjot/internal/config"
	"github.com/benvon/jotjot/internal/logger"
	"github.com/benvon/jotjot/internal/queue"
	"go.uber.org/zap"
)

func main() {
	rootCmd := commands.NewRootCmd(commands.Deps{
		NewApp:   newApp,
		NewQueue: newQueue,
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(ctx context.Context, opts commands.AppOptions) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	zapLogger, err := logger.NewDevelopmentLogger(opts.Debug || cfg.DebugMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	var appOpts []app.Option
	if opts.LogOnlyMail {
		appOpts = append(appOpts, app.WithLogOnlyMail())
	}
	a, err := app.New(ctx, cfg, zapLogger, appOpts...)
	if err != nil {
		_ = zapLogger.Sync()
		return nil, err
	}
	zapLogger.Debug("jotctl_app_ready", zap.String("store_backend", cfg.StoreBackend))
	return a, nil
}

func newQueue(_ context.Context) (queue.JobQueue, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is not set")
	}
	q, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL, zap.NewNop())
	if err != nil {
		return nil, err
	}
	return q, nil
}
