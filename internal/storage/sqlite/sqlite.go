// Package sqlite implements the SQLite backend on modernc.org/sqlite. SQLite
// has no bulk-load API, so chunks are written with multi-row INSERTs sized to
// the variable limit inside the caller's transaction.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"retailetl/internal/storage"
)

func init() {
	storage.Register("sqlite", Open)
}

// Open opens dsn (a file path or file: URI) and pings it.
func Open(ctx context.Context, dsn string) (storage.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}
	return storage.NewSQLDB(db, storage.SQLite, storage.MultiRowInsert), nil
}
