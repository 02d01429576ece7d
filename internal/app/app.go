// Package app wires configuration, backends and components into the objects
// each binary serves.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/benvon/jotjot/internal/awsclient"
	"github.com/benvon/jotjot/internal/config"
	"github.com/benvon/jotjot/internal/database"
	"github.com/benvon/jotjot/internal/dynamo"
	"github.com/benvon/jotjot/internal/invocation"
	"github.com/benvon/jotjot/internal/mailer"
	"github.com/benvon/jotjot/internal/maintenance"
	"github.com/benvon/jotjot/internal/profile"
	"github.com/benvon/jotjot/internal/report"
	"github.com/benvon/jotjot/internal/skill"
	"github.com/benvon/jotjot/internal/store"
	"go.uber.org/zap"
)

const profileTimeout = 5 * time.Second

// App holds the constructed components
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Store        *store.Adapter
	Counter      store.TableCounter
	Sender       mailer.Sender
	Skill        *skill.Skill
	Composer     *report.Composer
	Orchestrator *report.Orchestrator
	Maintenance  *maintenance.Job
	Router       *invocation.Router

	db      *database.DB
	closers []func() error
}

type options struct {
	backend store.Backend
	aws     *awsclient.Clients
	sender  mailer.Sender
	fetcher profile.EmailFetcher
	dryRun  bool
}

// Option overrides a dependency New would otherwise build from configuration
type Option func(*options)

// WithBackend uses b for logs, preferences and table counts
func WithBackend(b store.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithAWSClients reuses already loaded AWS clients
func WithAWSClients(c *awsclient.Clients) Option {
	return func(o *options) { o.aws = c }
}

// WithSender replaces the configured mail transport
func WithSender(s mailer.Sender) Option {
	return func(o *options) { o.sender = s }
}

// WithProfileFetcher replaces the customer profile client
func WithProfileFetcher(f profile.EmailFetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithLogOnlyMail logs outgoing mail instead of sending it
func WithLogOnlyMail() Option {
	return func(o *options) { o.dryRun = true }
}

// New builds every component from cfg
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{Config: cfg, Logger: log}

	if o.aws == nil && needsAWS(cfg, o) {
		clients, err := awsclient.Load(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		o.aws = clients
	}

	logs, prefs, counter, err := a.backends(ctx, o)
	if err != nil {
		return nil, err
	}
	a.Counter = counter
	a.Store = store.NewAdapter(logs, prefs, log.Named("store"))

	a.Sender = a.sender(o)

	fetcher := o.fetcher
	if fetcher == nil {
		fetcher = profile.NewClient(&http.Client{Timeout: profileTimeout})
	}
	var skillOpts []skill.Option
	if cfg.Location() != nil {
		skillOpts = append(skillOpts, skill.WithUTCTimestamps())
	}
	a.Skill = skill.New(cfg.SkillName, a.Store, fetcher, log.Named("skill"), skillOpts...)

	a.Composer = report.NewComposer(cfg.SkillName, cfg.FeedbackURL, cfg.Location())
	var reportOpts []report.Option
	if loc := cfg.Location(); loc != nil {
		reportOpts = append(reportOpts, report.WithLocation(loc))
	}
	a.Orchestrator = report.NewOrchestrator(a.Store, a.Composer, a.Sender, cfg.SenderEmail, log.Named("report"), reportOpts...)

	var metrics maintenance.MetricsSource
	if o.aws != nil && usesCloudWatch(cfg, o) {
		metrics = maintenance.NewCloudWatchSource(o.aws.CloudWatch)
	}
	a.Maintenance = maintenance.NewJob(a.Counter, metrics, a.Sender, cfg.SenderEmail, cfg.OperatorEmail, log.Named("maintenance"))

	a.Router = invocation.NewRouter(a.Orchestrator, a.Maintenance, a.Store, a.Skill,
		invocation.Defaults{Tables: cfg.MaintenanceTables, Functions: cfg.MaintenanceFunctions},
		log.Named("invocation"))

	log.Info("app_initialized",
		zap.String("store_backend", cfg.StoreBackend),
		zap.Bool("email_enabled", cfg.EmailEnabled()),
		zap.Bool("metrics_enabled", metrics != nil),
	)
	return a, nil
}

// needsAWS reports whether any configured component talks to AWS
func needsAWS(cfg *config.Config, o *options) bool {
	if o.sender == nil && !o.dryRun && cfg.EmailEnabled() {
		return true
	}
	return usesCloudWatch(cfg, o)
}

// usesCloudWatch reports whether maintenance has metrics to read, which also
// covers the DynamoDB backend itself. Table metrics only exist for DynamoDB
// tables; function metrics need named functions.
func usesCloudWatch(cfg *config.Config, o *options) bool {
	if o.backend == nil && cfg.StoreBackend == config.StoreBackendDynamoDB {
		return true
	}
	return len(cfg.MaintenanceFunctions) > 0
}

func (a *App) backends(ctx context.Context, o *options) (store.LogBackend, store.PreferenceBackend, store.TableCounter, error) {
	cfg := a.Config
	if o.backend != nil {
		return o.backend, o.backend, o.backend, nil
	}

	switch cfg.StoreBackend {
	case config.StoreBackendDynamoDB:
		ds := dynamo.New(o.aws.DynamoDB, dynamo.Tables{
			Logs:        cfg.LogsTable,
			Preferences: cfg.PreferencesTable,
			DateIndex:   cfg.LogsDateIndex,
		})
		return ds, ds, ds, nil

	case config.StoreBackendMemory:
		a.Logger.Warn("memory_store_in_use")
		mem := store.NewMemory()
		return mem, mem, mem, nil

	case config.StoreBackendPostgres:
		db, err := database.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := db.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		a.db = db
		a.closers = append(a.closers, db.Close)
		counter := database.NewTableCounter(db, map[string]string{
			cfg.LogsTable:        "log_entries",
			cfg.PreferencesTable: "user_email_preferences",
		})
		return database.NewLogRepository(db), database.NewPreferenceRepository(db), counter, nil

	default:
		return nil, nil, nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
}

func (a *App) sender(o *options) mailer.Sender {
	switch {
	case o.sender != nil:
		return o.sender
	case o.dryRun || !a.Config.EmailEnabled() || o.aws == nil:
		return mailer.NewLogMailer(a.Logger.Named("mailer"))
	default:
		return mailer.NewSESMailer(o.aws.SES, a.Logger.Named("mailer"))
	}
}

// HealthCheck verifies the relational store when one is in use
func (a *App) HealthCheck(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	return a.db.HealthCheck(ctx)
}

// Close releases connections opened by New
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
