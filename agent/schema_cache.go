package agent

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/AdamZagri/aibi-server/dbpool"
	"github.com/AdamZagri/aibi-server/logger"
)

// SchemaCache serves the schema text handed to SQL-generation prompts.
// The text is rebuilt only when the backing database file's modification
// time changes; reads are otherwise lock-free via a copy under RLock.
// A request racing a refresh may see the previous version, which is
// harmless: the stale schema is at most one file swap behind.
type SchemaCache struct {
	db      *sql.DB
	dialect *dbpool.Dialect
	path    string
	log     *logger.Logger

	mu          sync.RWMutex
	text        string
	tables      int
	lastMtime   time.Time
	refreshedAt time.Time
}

// NewSchemaCache creates a cache over db. path is the database file
// watched for modification-time changes; empty path disables the mtime
// short-circuit and every Refresh rebuilds.
func NewSchemaCache(db *sql.DB, dialect *dbpool.Dialect, path string, log *logger.Logger) *SchemaCache {
	return &SchemaCache{db: db, dialect: dialect, path: path, log: log}
}

// Text returns the current schema text.
func (c *SchemaCache) Text() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.text
}

// Stats reports cache freshness for the health endpoint.
func (c *SchemaCache) Stats() (tables int, refreshedAt time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tables, c.refreshedAt
}

// Refresh rebuilds the schema text if the database file changed since the
// last build. Always rebuilds when no file path is configured. The mtime
// is recorded only after a successful rebuild so a failed introspection
// is retried on the next call instead of being cached as current.
func (c *SchemaCache) Refresh(ctx context.Context) error {
	var mtime time.Time
	if c.path != "" {
		st, err := os.Stat(c.path)
		if err != nil {
			return fmt.Errorf("stat database file: %w", err)
		}
		c.mu.RLock()
		unchanged := st.ModTime().Equal(c.lastMtime)
		c.mu.RUnlock()
		if unchanged {
			return nil
		}
		mtime = st.ModTime()
	}

	start := time.Now()
	rows, err := c.db.QueryContext(ctx, c.dialect.SchemaColumnsQuery())
	if err != nil {
		return fmt.Errorf("schema introspection: %w", err)
	}
	defer rows.Close()

	// table -> "col type" list, insertion ordered
	var order []string
	cols := make(map[string][]string)
	for rows.Next() {
		var table, column, dataType string
		if err := rows.Scan(&table, &column, &dataType); err != nil {
			return fmt.Errorf("scan schema row: %w", err)
		}
		if _, ok := cols[table]; !ok {
			order = append(order, table)
		}
		cols[table] = append(cols[table], column+" "+dataType)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("schema introspection: %w", err)
	}

	var b strings.Builder
	for i, table := range order {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s(%s)", table, strings.Join(cols[table], ", "))
	}

	c.mu.Lock()
	c.text = b.String()
	c.tables = len(order)
	c.lastMtime = mtime
	c.refreshedAt = time.Now()
	c.mu.Unlock()

	c.log.Info("schema refreshed", "tables", len(order), "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}
