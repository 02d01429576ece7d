package skill

import (
	"context"
	"errors"
	"time"

	"github.com/benvon/jotjot/internal/logger"
	"github.com/benvon/jotjot/internal/models"
	"github.com/benvon/jotjot/internal/profile"
	"github.com/benvon/jotjot/internal/validation"
	"go.uber.org/zap"
)

// PreferenceWriter persists preference updates
type PreferenceWriter interface {
	SetPreference(ctx context.Context, userID string, update models.PreferenceUpdate) error
}

// PermissionRefresher records whether the user's email can be read. A denial
// is stored as a definite "off" with an empty email.
type PermissionRefresher struct {
	store   PreferenceWriter
	profile profile.EmailFetcher
	logger  *zap.Logger
	now     func() time.Time
}

// NewPermissionRefresher creates a refresher
func NewPermissionRefresher(store PreferenceWriter, fetcher profile.EmailFetcher, log *zap.Logger) *PermissionRefresher {
	if log == nil {
		log = zap.NewNop()
	}
	return &PermissionRefresher{store: store, profile: fetcher, logger: log, now: time.Now}
}

// Refresh reads the email and writes the resulting preference. Transport
// failures write nothing and are returned.
func (r *PermissionRefresher) Refresh(ctx context.Context, userID, apiEndpoint, apiAccessToken string) (bool, error) {
	userField := zap.String("user_id", logger.SanitizeUserID(userID))

	email, err := r.profile.Email(ctx, apiEndpoint, apiAccessToken)
	if err == nil {
		if verr := validation.ValidateEmail(email); verr != nil {
			err = profile.ErrNoEmail
		}
	}

	enabled := err == nil
	switch {
	case err == nil:
	case errors.Is(err, profile.ErrPermissionDenied), errors.Is(err, profile.ErrNoEmail):
		r.logger.Info("email_permission_not_granted", userField, zap.String("reason", err.Error()))
		email = ""
	default:
		r.logger.Warn("email_permission_check_failed", userField, zap.String("error", logger.SanitizeError(err)))
		return false, err
	}

	stamp := r.now().UTC().Format(models.UTCTimestampLayout)
	update := models.PreferenceUpdate{
		Email:                       &email,
		EmailSummaryEnabled:         &enabled,
		LastUpdatedEmailPermissions: &stamp,
	}
	if err := r.store.SetPreference(ctx, userID, update); err != nil {
		return false, err
	}

	r.logger.Info("email_permission_refreshed",
		userField,
		zap.Bool("email_summary_enabled", enabled),
		zap.String("email", logger.MaskEmail(email)),
	)
	return enabled, nil
}
