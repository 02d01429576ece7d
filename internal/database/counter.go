package database

import (
	"context"
	"fmt"

	"github.com/benvon/jotjot/internal/store"
	"github.com/lib/pq"
)

// TableCounter counts rows in the skill's tables. Names are resolved through
// an alias map so maintenance can keep using the configured table names.
type TableCounter struct {
	db      *DB
	aliases map[string]string
}

var _ store.TableCounter = (*TableCounter)(nil)

// NewTableCounter creates a counter; aliases maps configured names to SQL tables
func NewTableCounter(db *DB, aliases map[string]string) *TableCounter {
	resolved := map[string]string{
		"log_entries":            "log_entries",
		"user_email_preferences": "user_email_preferences",
	}
	for name, table := range aliases {
		resolved[name] = table
	}
	return &TableCounter{db: db, aliases: resolved}
}

func (c *TableCounter) resolve(name string) (string, error) {
	table, ok := c.aliases[name]
	if !ok {
		return "", fmt.Errorf("unknown table %q", name)
	}
	return table, nil
}

// ItemCount returns the exact row count of the named table
func (c *TableCounter) ItemCount(ctx context.Context, name string) (int64, error) {
	table, err := c.resolve(name)
	if err != nil {
		return 0, err
	}

	var n int64
	query := fmt.Sprintf("SELECT count(*) FROM %s", pq.QuoteIdentifier(table))
	if err := c.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}
