// Package skill handles voice requests: logging activities and managing the
// daily report email preference.
package skill

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/jotjot/internal/alexa"
	"github.com/benvon/jotjot/internal/logger"
	"github.com/benvon/jotjot/internal/models"
	"github.com/benvon/jotjot/internal/parser"
	"github.com/benvon/jotjot/internal/profile"
	"github.com/benvon/jotjot/internal/validation"
	"go.uber.org/zap"
)

// Store is the slice of the store adapter used by the handlers
type Store interface {
	PreferenceWriter
	AppendLog(ctx context.Context, userID, timestamp, utterance string, parsed models.ParsedFields) error
	GetPreference(ctx context.Context, userID string) *models.UserEmailPreference
	CreatePreference(ctx context.Context, pref *models.UserEmailPreference) (bool, error)
	EmailSummaryEnabled(ctx context.Context, userID string) bool
}

// Skill dispatches requests to handlers
type Skill struct {
	name        string
	store       Store
	parser      *parser.Parser
	profile     profile.EmailFetcher
	permissions *PermissionRefresher
	logger      *zap.Logger
	now         func() time.Time
	utcStamps   bool
}

// Option configures a Skill
type Option func(*Skill)

// WithClock replaces time.Now for log timestamps and bookkeeping
func WithClock(now func() time.Time) Option {
	return func(s *Skill) {
		s.now = now
		s.permissions.now = now
	}
}

// WithUTCTimestamps stores log timestamps in UTC instead of process local time.
// Reports rendered in a configured timezone read zone-less timestamps as UTC.
func WithUTCTimestamps() Option {
	return func(s *Skill) { s.utcStamps = true }
}

// New creates a skill
func New(skillName string, store Store, fetcher profile.EmailFetcher, log *zap.Logger, opts ...Option) *Skill {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Skill{
		name:        skillName,
		store:       store,
		parser:      parser.New(log),
		profile:     fetcher,
		permissions: NewPermissionRefresher(store, fetcher, log),
		logger:      log,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle answers one request. Handler errors and panics produce the catch-all response.
func (s *Skill) Handle(ctx context.Context, env *alexa.RequestEnvelope) (resp *alexa.ResponseEnvelope) {
	kind := Classify(env)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("skill_handler_panic",
				zap.String("kind", kind.String()),
				zap.Any("panic", r),
			)
			resp = s.catchAll()
		}
	}()

	if env != nil {
		s.logger.Info("skill_request",
			zap.String("kind", kind.String()),
			zap.String("request_type", env.Request.Type),
			zap.String("intent", env.IntentName()),
			zap.String("user_id", logger.SanitizeUserID(env.UserID())),
		)
	}

	var err error
	switch kind {
	case KindLaunch:
		resp, err = s.handleLaunch(ctx, env)
	case KindLogActivity:
		resp, err = s.handleLogActivity(ctx, env)
	case KindGrantEmailPermission:
		resp, err = s.handleGrantEmailPermission(ctx, env)
	case KindStopReports:
		resp, err = s.handleStopReports(ctx, env)
	case KindHelp:
		resp = s.handleHelp()
	case KindCancelOrStop:
		resp = s.handleCancelOrStop()
	case KindSessionEnded:
		resp = s.handleSessionEnded(env)
	case KindUnknown:
		resp = s.catchAll()
	default:
		err = fmt.Errorf("unhandled request kind %d", kind)
	}

	if err != nil {
		s.logger.Error("skill_handler_failed",
			zap.String("kind", kind.String()),
			zap.String("error", logger.SanitizeError(err)),
		)
		return s.catchAll()
	}
	return resp
}

func (s *Skill) handleLaunch(ctx context.Context, env *alexa.RequestEnvelope) (*alexa.ResponseEnvelope, error) {
	userID := env.UserID()
	if userID == "" {
		return nil, fmt.Errorf("launch request without user id")
	}

	speech := textWelcomeBack
	if s.store.GetPreference(ctx, userID) == nil {
		created, err := s.store.CreatePreference(ctx, &models.UserEmailPreference{
			UserID:              userID,
			EmailSummaryEnabled: false,
			FirstSeen:           s.now().UTC().Format(models.UTCTimestampLayout),
		})
		if err != nil {
			s.logger.Warn("first_seen_not_recorded",
				zap.String("user_id", logger.SanitizeUserID(userID)),
				zap.String("error", logger.SanitizeError(err)),
			)
		}
		if created || err != nil {
			speech = textWelcome(s.name)
		}
	}

	return alexa.NewResponseBuilder().
		Speak(speech).
		Ask(textLaunchReprompt).
		Build(), nil
}

func (s *Skill) handleLogActivity(ctx context.Context, env *alexa.RequestEnvelope) (*alexa.ResponseEnvelope, error) {
	userID := env.UserID()
	if userID == "" {
		return nil, fmt.Errorf("log request without user id")
	}

	utterance := validation.SanitizeText(env.SlotValue(SlotUtterance))
	if utterance == "" {
		return alexa.NewResponseBuilder().
			Speak(textMissingUtterance).
			Ask(textMissingUtterance).
			Build(), nil
	}

	stamped := s.now()
	if s.utcStamps {
		stamped = stamped.UTC()
	}
	timestamp := models.FormatTimestamp(stamped)
	parsed := s.parser.Parse(utterance)

	if err := s.store.AppendLog(ctx, userID, timestamp, utterance, parsed); err != nil {
		return alexa.NewResponseBuilder().Speak(textLogFailed).Build(), nil
	}

	// Refresh the email permission opportunistically; the user already has their answer
	if _, err := s.permissions.Refresh(ctx, userID, env.APIEndpoint(), env.APIAccessToken()); err != nil {
		s.logger.Warn("email_permission_refresh_failed",
			zap.String("user_id", logger.SanitizeUserID(userID)),
			zap.String("error", logger.SanitizeError(err)),
		)
	}

	return alexa.NewResponseBuilder().Speak(textLogged(utterance)).Build(), nil
}

func (s *Skill) handleGrantEmailPermission(ctx context.Context, env *alexa.RequestEnvelope) (*alexa.ResponseEnvelope, error) {
	userID := env.UserID()
	if userID == "" {
		return nil, fmt.Errorf("grant request without user id")
	}
	userField := zap.String("user_id", logger.SanitizeUserID(userID))

	if s.store.EmailSummaryEnabled(ctx, userID) {
		s.logger.Info("email_already_enabled", userField)
		return alexa.NewResponseBuilder().
			Speak(textAlreadyEnabled).
			EndSession(false).
			Build(), nil
	}

	email, err := s.profile.Email(ctx, env.APIEndpoint(), env.APIAccessToken())
	if err != nil || validation.ValidateEmail(email) != nil {
		if err != nil {
			s.logger.Info("email_permission_required", userField, zap.String("reason", logger.SanitizeError(err)))
		}
		return s.permissionRequired(), nil
	}

	enabled := true
	stamp := s.now().UTC().Format(models.UTCTimestampLayout)
	err = s.store.SetPreference(ctx, userID, models.PreferenceUpdate{
		Email:                       &email,
		EmailSummaryEnabled:         &enabled,
		LastUpdatedEmailPermissions: &stamp,
	})
	if err != nil {
		return alexa.NewResponseBuilder().Speak(textEmailSetupFailed).Build(), nil
	}

	s.logger.Info("email_reports_enabled", userField, zap.String("email", logger.MaskEmail(email)))
	return alexa.NewResponseBuilder().Speak(textEmailEnabled).Build(), nil
}

func (s *Skill) permissionRequired() *alexa.ResponseEnvelope {
	return alexa.NewResponseBuilder().
		Speak(textPermissionNeeded).
		WithPermissionsCard(profile.EmailPermission).
		Build()
}

func (s *Skill) handleStopReports(ctx context.Context, env *alexa.RequestEnvelope) (*alexa.ResponseEnvelope, error) {
	userID := env.UserID()
	if userID == "" {
		return nil, fmt.Errorf("stop request without user id")
	}

	if !s.store.EmailSummaryEnabled(ctx, userID) {
		return alexa.NewResponseBuilder().Speak(textReportsNotActive).Build(), nil
	}

	disabled := false
	if err := s.store.SetPreference(ctx, userID, models.PreferenceUpdate{EmailSummaryEnabled: &disabled}); err != nil {
		return alexa.NewResponseBuilder().Speak(textStopReportsFailed).Build(), nil
	}

	s.logger.Info("email_reports_stopped", zap.String("user_id", logger.SanitizeUserID(userID)))
	return alexa.NewResponseBuilder().Speak(textReportsStopped).Build(), nil
}

func (s *Skill) handleHelp() *alexa.ResponseEnvelope {
	text := textHelp(s.name)
	return alexa.NewResponseBuilder().Speak(text).Ask(text).Build()
}

func (s *Skill) handleCancelOrStop() *alexa.ResponseEnvelope {
	return alexa.NewResponseBuilder().Speak(textGoodbye(s.name)).Build()
}

func (s *Skill) handleSessionEnded(env *alexa.RequestEnvelope) *alexa.ResponseEnvelope {
	s.logger.Debug("session_ended", zap.String("reason", env.Request.Reason))
	return alexa.NewResponseBuilder().Build()
}

func (s *Skill) catchAll() *alexa.ResponseEnvelope {
	text := textCatchAll(s.name)
	return alexa.NewResponseBuilder().Speak(text).Ask(text).Build()
}
