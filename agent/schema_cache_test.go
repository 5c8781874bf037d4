package agent

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AdamZagri/aibi-server/dbpool"
	"github.com/AdamZagri/aibi-server/logger"
)

func TestSchemaCache_RefreshBuildsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "erp.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := db.Exec("CREATE TABLE items (item_code TEXT, quantity INTEGER)"); err != nil {
		t.Fatal(err)
	}

	sc := NewSchemaCache(db, dbpool.NewDialect(dbpool.EngineSQLite), path, logger.Nop())
	if err := sc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	text := sc.Text()
	if !strings.HasPrefix(text, "items(") || !strings.Contains(text, "item_code") {
		t.Errorf("schema text = %q", text)
	}
	tables, refreshedAt := sc.Stats()
	if tables != 1 || refreshedAt.IsZero() {
		t.Errorf("stats = %d tables at %v", tables, refreshedAt)
	}

	// Unchanged file short-circuits.
	if err := sc.Refresh(context.Background()); err != nil {
		t.Errorf("second Refresh over unchanged file: %v", err)
	}
}

func TestSchemaCache_FailedRefreshIsRetried(t *testing.T) {
	// A failed introspection must not mark the current mtime as built:
	// the next Refresh over the same file has to try again, not report
	// a stale snapshot as current.
	path := filepath.Join(t.TempDir(), "erp.db")
	if err := os.WriteFile(path, []byte("stub"), 0o644); err != nil {
		t.Fatal(err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	db.Close()

	sc := NewSchemaCache(db, dbpool.NewDialect(dbpool.EngineSQLite), path, logger.Nop())
	if err := sc.Refresh(context.Background()); err == nil {
		t.Fatal("first Refresh over a closed handle should fail")
	}
	if err := sc.Refresh(context.Background()); err == nil {
		t.Fatal("second Refresh reported success while the snapshot was never built")
	}
	if sc.Text() != "" {
		t.Errorf("schema text = %q, want empty after failed builds", sc.Text())
	}
}
