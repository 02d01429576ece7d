package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/benvon/jotjot/internal/models"
	"github.com/benvon/jotjot/internal/store"
)

// LogRepository handles log entry database operations
type LogRepository struct {
	db *DB
}

var _ store.LogBackend = (*LogRepository)(nil)

// NewLogRepository creates a new log repository
func NewLogRepository(db *DB) *LogRepository {
	return &LogRepository{db: db}
}

// PutLog inserts a log entry; an existing (user_id, ts) is left untouched and reported as a duplicate
func (r *LogRepository) PutLog(ctx context.Context, entry *models.LogEntry) error {
	parsedJSON, err := encodeParsedData(entry.ParsedData)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO log_entries (user_id, ts, entry_date, utterance, parsed_data)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, ts) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		entry.UserID,
		entry.Timestamp,
		entry.Date,
		entry.Utterance,
		parsedJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read insert result: %w", err)
	}
	if rows == 0 {
		return store.ErrDuplicateEntry
	}
	return nil
}

// QueryLogsByDate returns entries for date, optionally for one user
func (r *LogRepository) QueryLogsByDate(ctx context.Context, date, userID string) ([]*models.LogEntry, error) {
	query := `
		SELECT user_id, ts, entry_date, utterance, parsed_data
		FROM log_entries
		WHERE entry_date = $1 AND ($2 = '' OR user_id = $2)
	`
	return r.query(ctx, query, date, userID)
}

// ScanLogs returns every entry for userID, or all entries when userID is empty
func (r *LogRepository) ScanLogs(ctx context.Context, userID string) ([]*models.LogEntry, error) {
	query := `
		SELECT user_id, ts, entry_date, utterance, parsed_data
		FROM log_entries
		WHERE ($1 = '' OR user_id = $1)
	`
	return r.query(ctx, query, userID)
}

func (r *LogRepository) query(ctx context.Context, query string, args ...any) ([]*models.LogEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query log entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*models.LogEntry
	for rows.Next() {
		entry := &models.LogEntry{}
		var parsedJSON []byte
		if err := rows.Scan(
			&entry.UserID,
			&entry.Timestamp,
			&entry.Date,
			&entry.Utterance,
			&parsedJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		entry.ParsedData = decodeParsedData(parsedJSON)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log entries: %w", err)
	}
	return entries, nil
}

func encodeParsedData(parsed map[string]string) ([]byte, error) {
	if parsed == nil {
		parsed = map[string]string{}
	}
	raw, err := json.Marshal(parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal parsed_data: %w", err)
	}
	return raw, nil
}

// decodeParsedData tolerates NULL or malformed JSON by returning an empty map
func decodeParsedData(raw []byte) map[string]string {
	parsed := map[string]string{}
	if len(raw) == 0 {
		return parsed
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return map[string]string{}
	}
	return parsed
}
