// Package storage defines the storage-agnostic database seam used by the
// staging loader and the SQL script runner, plus a small factory registry.
//
// Backends (mssql, postgres, sqlite) register an Opener in init; importing
// retailetl/internal/storage/all makes every built-in backend available.
// Work happens inside explicit transactions: nothing the loader writes is
// committed until it calls Tx.Commit.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// DB is a single logical connection to the destination database.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) error
	BeginTx(ctx context.Context) (Tx, error)
	// QueryInt runs a query returning one integer (e.g. SELECT COUNT(1) ...).
	QueryInt(ctx context.Context, sql string) (int64, error)
	Dialect() Dialect
	Close(ctx context.Context) error
}

// Tx is an open transaction.
type Tx interface {
	Exec(ctx context.Context, sql string, args ...any) error
	// InsertRows bulk-inserts rows (aligned to columns) using the backend's
	// fastest path and returns the number of rows written.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Opener connects to a backend using a DSN.
type Opener func(ctx context.Context, dsn string) (DB, error)

var (
	mu      sync.RWMutex
	openers = map[string]Opener{}
)

// Register installs (or replaces) the opener for kind.
func Register(kind string, fn Opener) {
	mu.Lock()
	defer mu.Unlock()
	openers[kind] = fn
}

// Open connects using the opener registered for kind.
func Open(ctx context.Context, kind, dsn string) (DB, error) {
	mu.RLock()
	fn, ok := openers[kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", kind)
	}
	return fn(ctx, dsn)
}

// Kinds lists registered backend kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(openers))
	for k := range openers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
