package store

import (
	"context"
	"sort"
	"sync"

	"github.com/benvon/jotjot/internal/models"
)

// Memory is an in-process Backend used by tests and local dry runs
type Memory struct {
	mu    sync.Mutex
	logs  map[string]*models.LogEntry
	prefs map[string]*models.UserEmailPreference
	order []string
}

var _ Backend = (*Memory)(nil)

// NewMemory creates an empty in-memory backend
func NewMemory() *Memory {
	return &Memory{
		logs:  make(map[string]*models.LogEntry),
		prefs: make(map[string]*models.UserEmailPreference),
	}
}

func logKey(userID, timestamp string) string {
	return userID + "\x00" + timestamp
}

// PutLog stores a copy of entry unless the key is taken
func (m *Memory) PutLog(_ context.Context, entry *models.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := logKey(entry.UserID, entry.Timestamp)
	if _, ok := m.logs[key]; ok {
		return ErrDuplicateEntry
	}
	cp := *entry
	m.logs[key] = &cp
	m.order = append(m.order, key)
	return nil
}

// QueryLogsByDate returns matching entries in insertion order
func (m *Memory) QueryLogsByDate(_ context.Context, date, userID string) ([]*models.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.LogEntry
	for _, key := range m.order {
		e := m.logs[key]
		if e.Date != date || (userID != "" && e.UserID != userID) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

// ScanLogs returns every entry for userID in insertion order
func (m *Memory) ScanLogs(_ context.Context, userID string) ([]*models.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.LogEntry
	for _, key := range m.order {
		e := m.logs[key]
		if userID != "" && e.UserID != userID {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

// GetPreference returns a copy of the stored preference
func (m *Memory) GetPreference(_ context.Context, userID string) (*models.UserEmailPreference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.prefs[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// CreatePreference inserts pref when the user has no row
func (m *Memory) CreatePreference(_ context.Context, pref *models.UserEmailPreference) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.prefs[pref.UserID]; ok {
		return ErrAlreadyExists
	}
	cp := *pref
	m.prefs[pref.UserID] = &cp
	return nil
}

// UpdatePreference upserts the non-nil fields of update
func (m *Memory) UpdatePreference(_ context.Context, userID string, update models.PreferenceUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.prefs[userID]
	if !ok {
		p = &models.UserEmailPreference{UserID: userID}
		m.prefs[userID] = p
	}
	update.Apply(p)
	return nil
}

// ScanPreferences returns preferences ordered by user id
func (m *Memory) ScanPreferences(_ context.Context, enabledOnly bool) ([]*models.UserEmailPreference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.prefs))
	for id := range m.prefs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []*models.UserEmailPreference
	for _, id := range ids {
		p := m.prefs[id]
		if enabledOnly && !p.EmailSummaryEnabled {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

// ItemCount returns the number of log entries or preferences; other names count zero
func (m *Memory) ItemCount(_ context.Context, table string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch table {
	case "logs":
		return int64(len(m.logs)), nil
	case "preferences":
		return int64(len(m.prefs)), nil
	default:
		return 0, nil
	}
}
