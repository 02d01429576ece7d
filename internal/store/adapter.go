// Package store is the log store adapter. It wraps a storage backend and
// converts every backend failure into a logged, safe default so the skill
// keeps answering even when the store misbehaves.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/benvon/jotjot/internal/logger"
	"github.com/benvon/jotjot/internal/models"
	"github.com/benvon/jotjot/internal/validation"
	"go.uber.org/zap"
)

// AdapterInterface is the surface the skill, orchestrator and invocation router depend on
type AdapterInterface interface {
	AppendLog(ctx context.Context, userID, timestamp, utterance string, parsed models.ParsedFields) error
	EntriesForDate(ctx context.Context, date, userID string) ([]*models.LogEntry, error)
	GetEntriesForDate(ctx context.Context, date, userID string) []*models.LogEntry
	GetPreference(ctx context.Context, userID string) *models.UserEmailPreference
	CreatePreference(ctx context.Context, pref *models.UserEmailPreference) (bool, error)
	SetPreference(ctx context.Context, userID string, update models.PreferenceUpdate) error
	ScanEnabledPreferences(ctx context.Context) []*models.UserEmailPreference
	PreferencesEnabled(ctx context.Context) ([]*models.UserEmailPreference, error)
	EmailSummaryEnabled(ctx context.Context, userID string) bool
	AllEntries(ctx context.Context, userID string) []*models.LogEntry
}

var _ AdapterInterface = (*Adapter)(nil)

// Adapter wraps log and preference backends
type Adapter struct {
	logs   LogBackend
	prefs  PreferenceBackend
	logger *zap.Logger
}

// NewAdapter creates a new store adapter
func NewAdapter(logs LogBackend, prefs PreferenceBackend, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{logs: logs, prefs: prefs, logger: log}
}

// AppendLog writes a new log entry. The error is logged here and returned so
// the caller can tell the user the entry was not saved.
func (a *Adapter) AppendLog(ctx context.Context, userID, timestamp, utterance string, parsed models.ParsedFields) error {
	entry := models.NewLogEntry(userID, timestamp, utterance, parsed)
	if err := a.logs.PutLog(ctx, entry); err != nil {
		if errors.Is(err, ErrDuplicateEntry) {
			a.logger.Warn("log_entry_collision",
				zap.String("user_id", logger.SanitizeUserID(userID)),
				zap.String("timestamp", timestamp),
			)
		} else {
			a.logger.Error("store_append_failed",
				zap.String("user_id", logger.SanitizeUserID(userID)),
				zap.String("error", logger.SanitizeError(err)),
			)
		}
		return &StoreError{Op: "append_log", Err: err}
	}

	a.logger.Debug("log_entry_appended",
		zap.String("user_id", logger.SanitizeUserID(userID)),
		zap.String("date", entry.Date),
		zap.Int("parsed_fields", len(entry.ParsedData)),
	)
	return nil
}

// EntriesForDate returns the entries for date (optionally one user) sorted by
// timestamp ascending, or a *StoreError when the backend query fails.
func (a *Adapter) EntriesForDate(ctx context.Context, date, userID string) ([]*models.LogEntry, error) {
	entries, err := a.logs.QueryLogsByDate(ctx, date, userID)
	if err != nil {
		return nil, &StoreError{Op: "query_by_date", Err: err}
	}
	return a.sortEntries(entries), nil
}

// GetEntriesForDate is EntriesForDate with the safe default: an empty slice on failure
func (a *Adapter) GetEntriesForDate(ctx context.Context, date, userID string) []*models.LogEntry {
	entries, err := a.EntriesForDate(ctx, date, userID)
	if err != nil {
		a.logger.Error("store_query_failed",
			zap.String("date", date),
			zap.String("user_id", logger.SanitizeUserID(userID)),
			zap.String("error", logger.SanitizeError(err)),
		)
		return []*models.LogEntry{}
	}
	return entries
}

// sortEntries orders a copy of entries by timestamp. If sorting panics the
// store order is returned unchanged.
func (a *Adapter) sortEntries(entries []*models.LogEntry) (result []*models.LogEntry) {
	if len(entries) < 2 {
		return entries
	}

	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("log_entry_sort_failed",
				zap.Any("panic", r),
				zap.Int("entries", len(entries)),
			)
			result = entries
		}
	}()

	sorted := make([]*models.LogEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})
	return sorted
}

// GetPreference returns the user's preference, or nil when absent or unreadable
func (a *Adapter) GetPreference(ctx context.Context, userID string) *models.UserEmailPreference {
	pref, err := a.prefs.GetPreference(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			a.logger.Error("store_get_preference_failed",
				zap.String("user_id", logger.SanitizeUserID(userID)),
				zap.String("error", logger.SanitizeError(err)),
			)
		}
		return nil
	}
	return pref
}

// CreatePreference inserts a first-seen preference row. It reports false with
// a nil error when the user already has one.
func (a *Adapter) CreatePreference(ctx context.Context, pref *models.UserEmailPreference) (bool, error) {
	if err := validation.ValidatePreference(pref); err != nil {
		return false, &StoreError{Op: "create_preference", Err: err}
	}
	if err := a.prefs.CreatePreference(ctx, pref); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return false, nil
		}
		a.logger.Error("store_create_preference_failed",
			zap.String("user_id", logger.SanitizeUserID(pref.UserID)),
			zap.String("error", logger.SanitizeError(err)),
		)
		return false, &StoreError{Op: "create_preference", Err: err}
	}
	return true, nil
}

// SetPreference applies a partial update. Enabling reports requires a
// non-empty email in the same update.
func (a *Adapter) SetPreference(ctx context.Context, userID string, update models.PreferenceUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	if err := checkPreferenceUpdate(userID, update); err != nil {
		a.logger.Warn("preference_update_rejected",
			zap.String("user_id", logger.SanitizeUserID(userID)),
			zap.String("error", logger.SanitizeError(err)),
		)
		return &StoreError{Op: "set_preference", Err: err}
	}

	if err := a.prefs.UpdatePreference(ctx, userID, update); err != nil {
		a.logger.Error("store_set_preference_failed",
			zap.String("user_id", logger.SanitizeUserID(userID)),
			zap.String("error", logger.SanitizeError(err)),
		)
		return &StoreError{Op: "set_preference", Err: err}
	}

	fields := []zap.Field{zap.String("user_id", logger.SanitizeUserID(userID))}
	if update.EmailSummaryEnabled != nil {
		fields = append(fields, zap.Bool("email_summary_enabled", *update.EmailSummaryEnabled))
	}
	a.logger.Info("preference_updated", fields...)
	return nil
}

func checkPreferenceUpdate(userID string, update models.PreferenceUpdate) error {
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}
	if err := validation.Validate.Struct(update); err != nil {
		return fmt.Errorf("invalid preference update: %w", err)
	}
	if update.EmailSummaryEnabled != nil && *update.EmailSummaryEnabled {
		if update.Email == nil || *update.Email == "" {
			return fmt.Errorf("enabling email summaries requires an email")
		}
	}
	return nil
}

// PreferencesEnabled returns every preference with email_summary_enabled set, or the backend error
func (a *Adapter) PreferencesEnabled(ctx context.Context) ([]*models.UserEmailPreference, error) {
	prefs, err := a.prefs.ScanPreferences(ctx, true)
	if err != nil {
		return nil, &StoreError{Op: "scan_enabled_preferences", Err: err}
	}
	return prefs, nil
}

// ScanEnabledPreferences is PreferencesEnabled with the safe default: an empty slice on failure
func (a *Adapter) ScanEnabledPreferences(ctx context.Context) []*models.UserEmailPreference {
	prefs, err := a.PreferencesEnabled(ctx)
	if err != nil {
		a.logger.Error("store_scan_preferences_failed",
			zap.String("error", logger.SanitizeError(err)),
		)
		return []*models.UserEmailPreference{}
	}
	return prefs
}

// EmailSummaryEnabled reports the user's flag, false when absent or unreadable
func (a *Adapter) EmailSummaryEnabled(ctx context.Context, userID string) bool {
	pref := a.GetPreference(ctx, userID)
	return pref != nil && pref.EmailSummaryEnabled
}

// AllEntries returns every entry for userID (all users when empty) sorted by timestamp
func (a *Adapter) AllEntries(ctx context.Context, userID string) []*models.LogEntry {
	entries, err := a.logs.ScanLogs(ctx, userID)
	if err != nil {
		a.logger.Error("store_scan_logs_failed",
			zap.String("user_id", logger.SanitizeUserID(userID)),
			zap.String("error", logger.SanitizeError(err)),
		)
		return []*models.LogEntry{}
	}
	return a.sortEntries(entries)
}
