package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/benvon/jotjot/internal/models"
	"github.com/benvon/jotjot/internal/store"
	"github.com/lib/pq"
)

// checkViolation is the SQLSTATE for a failed CHECK constraint
const checkViolation = "23514"

// PreferenceRepository handles user email preference database operations
type PreferenceRepository struct {
	db *DB
}

var _ store.PreferenceBackend = (*PreferenceRepository)(nil)

// NewPreferenceRepository creates a new preference repository
func NewPreferenceRepository(db *DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// GetPreference retrieves a preference by user ID
func (r *PreferenceRepository) GetPreference(ctx context.Context, userID string) (*models.UserEmailPreference, error) {
	pref := &models.UserEmailPreference{}
	query := `
		SELECT user_id, email, email_summary_enabled, first_seen, last_updated_email_permissions
		FROM user_email_preferences
		WHERE user_id = $1
	`

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&pref.UserID,
		&pref.Email,
		&pref.EmailSummaryEnabled,
		&pref.FirstSeen,
		&pref.LastUpdatedEmailPermissions,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preference: %w", err)
	}
	return pref, nil
}

// CreatePreference inserts a row only when the user has none
func (r *PreferenceRepository) CreatePreference(ctx context.Context, pref *models.UserEmailPreference) error {
	query := `
		INSERT INTO user_email_preferences (user_id, email, email_summary_enabled, first_seen, last_updated_email_permissions)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		pref.UserID,
		pref.Email,
		pref.EmailSummaryEnabled,
		pref.FirstSeen,
		pref.LastUpdatedEmailPermissions,
	)
	if err != nil {
		return wrapPreferenceError("failed to create preference", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read insert result: %w", err)
	}
	if rows == 0 {
		return store.ErrAlreadyExists
	}
	return nil
}

// UpdatePreference upserts the provided fields
func (r *PreferenceRepository) UpdatePreference(ctx context.Context, userID string, update models.PreferenceUpdate) error {
	query, args := buildPreferenceUpsert(userID, update)
	if query == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return wrapPreferenceError("failed to update preference", err)
	}
	return nil
}

// ScanPreferences lists preferences ordered by user ID
func (r *PreferenceRepository) ScanPreferences(ctx context.Context, enabledOnly bool) ([]*models.UserEmailPreference, error) {
	query := `
		SELECT user_id, email, email_summary_enabled, first_seen, last_updated_email_permissions
		FROM user_email_preferences
		WHERE ($1 = FALSE OR email_summary_enabled)
		ORDER BY user_id
	`

	rows, err := r.db.QueryContext(ctx, query, enabledOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to scan preferences: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var prefs []*models.UserEmailPreference
	for rows.Next() {
		pref := &models.UserEmailPreference{}
		if err := rows.Scan(
			&pref.UserID,
			&pref.Email,
			&pref.EmailSummaryEnabled,
			&pref.FirstSeen,
			&pref.LastUpdatedEmailPermissions,
		); err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		prefs = append(prefs, pref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating preferences: %w", err)
	}
	return prefs, nil
}

// buildPreferenceUpsert returns an INSERT ... ON CONFLICT statement touching only the non-nil fields.
// An empty query means there is nothing to write.
func buildPreferenceUpsert(userID string, update models.PreferenceUpdate) (string, []any) {
	columns := []string{"user_id"}
	args := []any{userID}

	add := func(column string, value any) {
		columns = append(columns, column)
		args = append(args, value)
	}
	if update.Email != nil {
		add("email", *update.Email)
	}
	if update.EmailSummaryEnabled != nil {
		add("email_summary_enabled", *update.EmailSummaryEnabled)
	}
	if update.FirstSeen != nil {
		add("first_seen", *update.FirstSeen)
	}
	if update.LastUpdatedEmailPermissions != nil {
		add("last_updated_email_permissions", *update.LastUpdatedEmailPermissions)
	}
	if len(columns) == 1 {
		return "", nil
	}

	placeholders := make([]string, len(columns))
	sets := make([]string, 0, len(columns)-1)
	for i, col := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if i > 0 {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}

	query := fmt.Sprintf(
		"INSERT INTO user_email_preferences (%s) VALUES (%s) ON CONFLICT (user_id) DO UPDATE SET %s",
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(sets, ", "),
	)
	return query, args
}

func wrapPreferenceError(msg string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == checkViolation {
		return fmt.Errorf("%s: enabled preference requires an email: %w", msg, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
