package store

import (
	"context"
	"errors"

	"github.com/benvon/jotjot/internal/models"
)

var (
	// ErrNotFound is returned by backends when a keyed item does not exist
	ErrNotFound = errors.New("item not found")
	// ErrDuplicateEntry is returned when a log entry with the same (user_id, timestamp) already exists
	ErrDuplicateEntry = errors.New("log entry already exists")
	// ErrAlreadyExists is returned by CreatePreference when the user already has a preference row
	ErrAlreadyExists = errors.New("preference already exists")
)

// StoreError wraps a backend failure with the adapter operation that hit it
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return "store " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// LogBackend persists raw log entries
type LogBackend interface {
	// PutLog writes entry and must never overwrite an existing (user_id, timestamp); collisions return ErrDuplicateEntry
	PutLog(ctx context.Context, entry *models.LogEntry) error
	// QueryLogsByDate returns entries for date in store order; an empty userID means every user
	QueryLogsByDate(ctx context.Context, date, userID string) ([]*models.LogEntry, error)
	// ScanLogs returns every entry for userID (or every entry when userID is empty)
	ScanLogs(ctx context.Context, userID string) ([]*models.LogEntry, error)
}

// PreferenceBackend persists per-user email preferences
type PreferenceBackend interface {
	// GetPreference returns ErrNotFound when the user has no row
	GetPreference(ctx context.Context, userID string) (*models.UserEmailPreference, error)
	// CreatePreference inserts pref only when no row exists, else ErrAlreadyExists
	CreatePreference(ctx context.Context, pref *models.UserEmailPreference) error
	// UpdatePreference upserts the non-nil fields of update
	UpdatePreference(ctx context.Context, userID string, update models.PreferenceUpdate) error
	// ScanPreferences returns every row, or only rows with email_summary_enabled when enabledOnly
	ScanPreferences(ctx context.Context, enabledOnly bool) ([]*models.UserEmailPreference, error)
}

// TableCounter reports the approximate number of items in a named table
type TableCounter interface {
	ItemCount(ctx context.Context, table string) (int64, error)
}

// Backend is a complete storage implementation
type Backend interface {
	LogBackend
	PreferenceBackend
	TableCounter
}
