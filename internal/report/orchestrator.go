package report

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/jotjot/internal/logger"
	"github.com/benvon/jotjot/internal/mailer"
	"github.com/benvon/jotjot/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/benvon/jotjot/internal/report"

// ReportStore is the slice of the store adapter the orchestrator reads from
type ReportStore interface {
	PreferencesEnabled(ctx context.Context) ([]*models.UserEmailPreference, error)
	GetPreference(ctx context.Context, userID string) *models.UserEmailPreference
	EntriesForDate(ctx context.Context, date, userID string) ([]*models.LogEntry, error)
}

// RunOptions selects what a run covers
type RunOptions struct {
	// DryRun renders reports and logs them instead of sending
	DryRun bool
	// UserID limits the run to one user, who must have reports enabled
	UserID string
	// Date overrides the report date (YYYY-MM-DD); empty means yesterday
	Date string
}

// RunSummary counts per-user outcomes of one run
type RunSummary struct {
	Date     string `json:"date"`
	DryRun   bool   `json:"dry_run"`
	Eligible int    `json:"eligible"`
	Sent     int    `json:"sent"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
}

func (s RunSummary) String() string {
	return fmt.Sprintf("date=%s eligible=%d sent=%d skipped=%d failed=%d dry_run=%t",
		s.Date, s.Eligible, s.Sent, s.Skipped, s.Failed, s.DryRun)
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeSkipped
	outcomeFailed
)

// Orchestrator sends the daily report to every eligible user
type Orchestrator struct {
	store    ReportStore
	composer *Composer
	sender   mailer.Sender
	from     string
	logger   *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
	loc      *time.Location
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithLocation computes "yesterday" in loc instead of process local time. The
// report day then runs from midnight to midnight in loc, so entries are read
// from every stored (UTC) date that overlaps it.
func WithLocation(loc *time.Location) Option {
	return func(o *Orchestrator) { o.loc = loc }
}

// WithTracer replaces the global tracer
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// NewOrchestrator creates an orchestrator sending from the given address
func NewOrchestrator(store ReportStore, composer *Composer, sender mailer.Sender, from string, log *zap.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	o := &Orchestrator{
		store:    store,
		composer: composer,
		sender:   sender,
		from:     from,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ReportDate returns the calendar day before now
func (o *Orchestrator) ReportDate() string {
	now := o.now()
	if o.loc != nil {
		now = now.In(o.loc)
	}
	return now.AddDate(0, 0, -1).Format(models.DateLayout)
}

// Run processes every eligible user sequentially. A failing user is logged and
// counted; it never stops the batch. The error is only for failing to list users.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (RunSummary, error) {
	date := opts.Date
	if date == "" {
		date = o.ReportDate()
	}
	summary := RunSummary{Date: date, DryRun: opts.DryRun}

	ctx, span := o.tracer.Start(ctx, "report.run",
		trace.WithAttributes(
			attribute.String("report.date", date),
			attribute.Bool("report.dry_run", opts.DryRun),
		),
	)
	defer span.End()

	users, err := o.eligibleUsers(ctx, opts.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list users failed")
		o.logger.Error("daily_report_list_users_failed", zap.String("error", logger.SanitizeError(err)))
		return summary, err
	}
	summary.Eligible = len(users)
	o.logger.Info("daily_report_started",
		zap.String("date", date),
		zap.Int("eligible_users", len(users)),
		zap.Bool("dry_run", opts.DryRun),
	)

	for _, pref := range users {
		if ctx.Err() != nil {
			o.logger.Warn("daily_report_cancelled", zap.String("error", ctx.Err().Error()))
			break
		}
		result, err := o.processUser(ctx, pref, date, opts.DryRun)
		switch result {
		case outcomeSent:
			summary.Sent++
		case outcomeSkipped:
			summary.Skipped++
		case outcomeFailed:
			summary.Failed++
			o.logger.Error("daily_report_user_failed",
				zap.String("user_id", logger.SanitizeUserID(pref.UserID)),
				zap.String("error", logger.SanitizeError(err)),
			)
		}
	}

	span.SetAttributes(
		attribute.Int("report.sent", summary.Sent),
		attribute.Int("report.failed", summary.Failed),
	)
	o.logger.Info("daily_report_finished",
		zap.String("date", summary.Date),
		zap.Int("eligible", summary.Eligible),
		zap.Int("sent", summary.Sent),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Bool("dry_run", summary.DryRun),
	)
	return summary, nil
}

func (o *Orchestrator) eligibleUsers(ctx context.Context, userID string) ([]*models.UserEmailPreference, error) {
	if userID == "" {
		return o.store.PreferencesEnabled(ctx)
	}
	pref := o.store.GetPreference(ctx, userID)
	if pref == nil || !pref.EmailSummaryEnabled {
		o.logger.Info("daily_report_user_not_enabled", zap.String("user_id", logger.SanitizeUserID(userID)))
		return nil, nil
	}
	return []*models.UserEmailPreference{pref}, nil
}

// processUser handles one user. Panics are converted to a failed outcome.
func (o *Orchestrator) processUser(ctx context.Context, pref *models.UserEmailPreference, date string, dryRun bool) (result outcome, err error) {
	ctx, span := o.tracer.Start(ctx, "report.user")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			result = outcomeFailed
			err = fmt.Errorf("panic while building report: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "user report failed")
		}
	}()

	userField := zap.String("user_id", logger.SanitizeUserID(pref.UserID))

	if pref.Email == "" {
		o.logger.Error("daily_report_missing_email", userField)
		return outcomeSkipped, nil
	}

	entries, err := o.entriesForDay(ctx, date, pref.UserID)
	if err != nil {
		return outcomeFailed, err
	}
	span.SetAttributes(attribute.Int("report.entries", len(entries)))
	if len(entries) == 0 {
		o.logger.Debug("daily_report_no_entries", userField, zap.String("date", date))
		return outcomeSkipped, nil
	}

	r, err := o.composer.Build(date, entries)
	if err != nil {
		return outcomeFailed, err
	}
	htmlBody, err := o.composer.Render(r)
	if err != nil {
		return outcomeFailed, err
	}
	textBody := o.composer.RenderText(r)

	if dryRun {
		o.logger.Info("daily_report_dry_run",
			userField,
			zap.String("to", logger.MaskEmail(pref.Email)),
			zap.Int("entries", len(entries)),
			zap.String("body", logger.SanitizeDebugContent(textBody)),
		)
		return outcomeSent, nil
	}

	messageID, err := o.sender.Send(ctx, mailer.Message{
		From:     o.from,
		To:       pref.Email,
		Subject:  o.composer.Subject(),
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
	if err != nil {
		return outcomeFailed, fmt.Errorf("send failed: %w", err)
	}

	o.logger.Info("daily_report_sent",
		userField,
		zap.String("to", logger.MaskEmail(pref.Email)),
		zap.Int("entries", len(entries)),
		zap.String("message_id", messageID),
	)
	return outcomeSent, nil
}

// entriesForDay returns a user's entries for the report day. Without a
// location that is the stored date bucket. With one, the UTC buckets covering
// the local day are read and filtered by instant; unparseable timestamps stay
// in their own bucket so the composer can reject them.
func (o *Orchestrator) entriesForDay(ctx context.Context, date, userID string) ([]*models.LogEntry, error) {
	if o.loc == nil {
		return o.store.EntriesForDate(ctx, date, userID)
	}

	day, err := time.ParseInLocation(models.DateLayout, date, o.loc)
	if err != nil {
		return nil, fmt.Errorf("invalid report date %q: %w", date, err)
	}
	start, end := day, day.AddDate(0, 0, 1)

	var out []*models.LogEntry
	last := end.Add(-time.Nanosecond).UTC().Format(models.DateLayout)
	for bucket := start.UTC(); ; bucket = bucket.AddDate(0, 0, 1) {
		key := bucket.Format(models.DateLayout)
		entries, err := o.store.EntriesForDate(ctx, key, userID)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e == nil {
				continue
			}
			t, err := ParseTimestamp(e.Timestamp)
			if err != nil {
				if e.Date == date {
					out = append(out, e)
				}
				continue
			}
			if !t.Before(start) && t.Before(end) {
				out = append(out, e)
			}
		}
		if key >= last {
			break
		}
	}
	return out, nil
}
