package invocation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/benvon/jotjot/internal/alexa"
	"github.com/benvon/jotjot/internal/logger"
	"github.com/benvon/jotjot/internal/maintenance"
	"github.com/benvon/jotjot/internal/models"
	"github.com/benvon/jotjot/internal/report"
	"github.com/benvon/jotjot/internal/request"
	"github.com/benvon/jotjot/internal/validation"
	"go.uber.org/zap"
)

// ErrInvalidPayload is returned when the payload is not a JSON object
var ErrInvalidPayload = errors.New("invalid invocation payload")

// Response is returned for direct invocations
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// ReportRunner runs the daily report
type ReportRunner interface {
	Run(ctx context.Context, opts report.RunOptions) (report.RunSummary, error)
}

// MaintenanceRunner runs the metrics job
type MaintenanceRunner interface {
	CollectAndReport(ctx context.Context, tables, functions []string, target string) (*maintenance.Report, error)
}

// UserStore answers per-user operator queries
type UserStore interface {
	EmailSummaryEnabled(ctx context.Context, userID string) bool
	GetPreference(ctx context.Context, userID string) *models.UserEmailPreference
	AllEntries(ctx context.Context, userID string) []*models.LogEntry
}

// SkillHandler answers voice requests
type SkillHandler interface {
	Handle(ctx context.Context, env *alexa.RequestEnvelope) *alexa.ResponseEnvelope
}

// Defaults fill in maintenance targets an event leaves out
type Defaults struct {
	Tables    []string
	Functions []string
}

// Router dispatches invocation payloads
type Router struct {
	reports     ReportRunner
	maintenance MaintenanceRunner
	users       UserStore
	skill       SkillHandler
	defaults    Defaults
	logger      *zap.Logger
}

// NewRouter creates a router
func NewRouter(reports ReportRunner, maint MaintenanceRunner, users UserStore, skill SkillHandler, defaults Defaults, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		reports:     reports,
		maintenance: maint,
		users:       users,
		skill:       skill,
		defaults:    defaults,
		logger:      log,
	}
}

// Route decodes raw and dispatches it. Direct events yield a Response, skill
// requests an *alexa.ResponseEnvelope. An error means raw was not a JSON object.
func (r *Router) Route(ctx context.Context, raw json.RawMessage) (any, error) {
	ctx, id := request.EnsureInvocationID(ctx)

	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		r.logger.Warn("invocation_decode_failed",
			zap.String("invocation_id", id),
			zap.String("error", logger.SanitizeError(err)),
		)
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	if event.Kind() != KindSkill {
		return r.Dispatch(ctx, event), nil
	}

	if !alexa.IsSkillRequest(raw) {
		r.logger.Warn("invocation_unrecognized", zap.String("invocation_id", id))
		return Response{StatusCode: http.StatusBadRequest, Body: "Unrecognized event"}, nil
	}

	var env alexa.RequestEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	r.logger.Info("normal_skill_invocation", zap.String("invocation_id", id))
	return r.skill.Handle(ctx, &env), nil
}

// Dispatch runs a direct event
func (r *Router) Dispatch(ctx context.Context, event Event) Response {
	ctx, id := request.EnsureInvocationID(ctx)
	event.normalize()
	kind := event.Kind()

	fields := []zap.Field{
		zap.String("invocation_id", id),
		zap.String("event", kind.String()),
	}

	var reason string
	if err := validation.Validate.Struct(event); err != nil {
		reason = validation.DescribeErrors(err)
	} else if kind.NeedsUser() && event.UserID == "" {
		// Only the winning kind's requirements apply
		reason = "user_id is required"
	}
	if reason != "" {
		r.logger.Warn("invocation_invalid", append(fields, zap.String("reason", reason))...)
		return Response{StatusCode: http.StatusBadRequest, Body: "Invalid event: " + reason}
	}

	var resp Response
	switch kind {
	case KindDailyReport:
		resp = r.dailyReport(ctx, event, fields)
	case KindEmailSummaryFlag:
		enabled := r.users.EmailSummaryEnabled(ctx, event.UserID)
		r.logger.Info("email_summary_flag", append(fields,
			zap.String("user_id", logger.SanitizeUserID(event.UserID)),
			zap.Bool("enabled", enabled),
		)...)
		resp = Response{StatusCode: http.StatusOK, Body: fmt.Sprintf("Email summary enabled: %t", enabled)}
	case KindDailyMaintenance:
		resp = r.dailyMaintenance(ctx, event, fields)
	case KindTestUserEmailReport:
		resp = r.testUserReport(ctx, event, fields)
	default:
		resp = Response{StatusCode: http.StatusBadRequest, Body: "Not a direct event"}
	}

	r.logger.Info("invocation_handled", append(fields, zap.Int("status_code", resp.StatusCode))...)
	return resp
}

func (r *Router) dailyReport(ctx context.Context, event Event, fields []zap.Field) Response {
	if event.DryRun {
		r.logger.Info("daily_report_dry_run", fields...)
	}
	summary, err := r.reports.Run(ctx, report.RunOptions{DryRun: event.DryRun, Date: event.Date})
	if err != nil {
		r.logger.Error("daily_report_failed", append(fields, zap.String("error", logger.SanitizeError(err)))...)
		return Response{StatusCode: http.StatusInternalServerError, Body: "Daily report process failed"}
	}
	return Response{StatusCode: http.StatusOK, Body: "Daily report process completed: " + summary.String()}
}

// testUserReport sends one user's report regardless of the dry run flag
func (r *Router) testUserReport(ctx context.Context, event Event, fields []zap.Field) Response {
	summary, err := r.reports.Run(ctx, report.RunOptions{UserID: event.UserID, Date: event.Date})
	if err != nil {
		r.logger.Error("test_user_report_failed", append(fields, zap.String("error", logger.SanitizeError(err)))...)
		return Response{StatusCode: http.StatusInternalServerError, Body: "Test user email report failed"}
	}
	return Response{StatusCode: http.StatusOK, Body: "Test user email report completed: " + summary.String()}
}

func (r *Router) dailyMaintenance(ctx context.Context, event Event, fields []zap.Field) Response {
	tables := event.DynamoDBTableNames
	if len(tables) == 0 {
		tables = r.defaults.Tables
	}
	functions := event.LambdaFunctionNames
	if len(functions) == 0 {
		functions = r.defaults.Functions
	}

	rep, err := r.maintenance.CollectAndReport(ctx, tables, functions, event.TargetEmail)
	if err != nil {
		// The metrics were collected; only delivery failed
		r.logger.Error("maintenance_delivery_failed", append(fields, zap.String("error", logger.SanitizeError(err)))...)
	} else if rep != nil {
		r.logger.Info("maintenance_collected", append(fields,
			zap.String("run_id", rep.RunID),
			zap.Int("lines", len(rep.Lines)),
			zap.Int("failures", rep.Failures),
			zap.Bool("delivered", rep.Delivered),
		)...)
	}

	if event.UserID != "" && event.TargetEmail == "" {
		r.dumpUser(ctx, event.UserID, fields)
	}

	return Response{StatusCode: http.StatusOK, Body: "Daily maintenance task process completed."}
}

// dumpUser logs what the store holds for one user
func (r *Router) dumpUser(ctx context.Context, userID string, fields []zap.Field) {
	userField := zap.String("user_id", logger.SanitizeUserID(userID))
	pref := r.users.GetPreference(ctx, userID)
	email := ""
	if pref != nil {
		email = pref.Email
	}
	entries := r.users.AllEntries(ctx, userID)

	r.logger.Info("maintenance_user_dump", append(fields,
		userField,
		zap.String("email", logger.MaskEmail(email)),
		zap.Bool("email_summary_enabled", pref != nil && pref.EmailSummaryEnabled),
		zap.Int("log_entries", len(entries)),
	)...)
	for _, e := range entries {
		r.logger.Debug("maintenance_user_entry", userField,
			zap.String("timestamp", e.Timestamp),
			zap.String("utterance", logger.SanitizeDebugContent(e.Utterance)),
		)
	}
}
