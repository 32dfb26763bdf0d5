package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

// TestOpen_EmptyDSN verifies that an empty DSN is rejected.
func TestOpen_EmptyDSN(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), "  "); err == nil {
		t.Fatal("Open(\"  \") error = nil, want non-nil")
	}
}

// TestInsertRows_CommitAndRollback verifies multi-row inserts land on commit
// and disappear on rollback.
func TestInsertRows_CommitAndRollback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "etl.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close(ctx)

	if err := db.Exec(ctx, `CREATE TABLE sales (name TEXT, qty NUMERIC CHECK (qty IS NULL OR qty >= 0))`); err != nil {
		t.Fatalf("create: %v", err)
	}

	// 1000 rows spans two statements at 2 columns per row.
	rows := make([][]any, 0, 1000)
	for i := 0; i < 1000; i++ {
		rows = append(rows, []any{"n", decimal.NewFromInt(int64(i))})
	}

	tx, err := db.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	n, err := tx.InsertRows(ctx, "sales", []string{"name", "qty"}, rows)
	if err != nil || n != 1000 {
		t.Fatalf("InsertRows = %d, %v", n, err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	tx, err = db.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if _, err := tx.InsertRows(ctx, "sales", []string{"name", "qty"}, rows[:5]); err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	got, err := db.QueryInt(ctx, `SELECT COUNT(1) FROM sales`)
	if err != nil || got != 1000 {
		t.Fatalf("count = %d, %v; want 1000", got, err)
	}
}

// TestInsertRows_CheckViolation verifies a constraint failure surfaces as an
// error from InsertRows.
func TestInsertRows_CheckViolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "etl.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close(ctx)

	if err := db.Exec(ctx, `CREATE TABLE sales (qty NUMERIC CHECK (qty IS NULL OR qty >= 0))`); err != nil {
		t.Fatalf("create: %v", err)
	}
	tx, err := db.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.InsertRows(ctx, "sales", []string{"qty"}, [][]any{{decimal.NewFromInt(1)}, {decimal.NewFromInt(-1)}})
	if err == nil {
		t.Fatal("InsertRows error = nil, want CHECK violation")
	}
}

// TestOpen_EnforcesForeignKeys verifies Open turns on foreign key checks.
func TestOpen_EnforcesForeignKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "fk.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close(ctx)

	on, err := db.QueryInt(ctx, "PRAGMA foreign_keys")
	if err != nil || on != 1 {
		t.Fatalf("foreign_keys = %d, %v; want 1", on, err)
	}
	if err := db.Exec(ctx, "CREATE TABLE store (id INTEGER PRIMARY KEY)"); err != nil {
		t.Fatal(err)
	}
	if err := db.Exec(ctx, "CREATE TABLE sale (store_id INTEGER REFERENCES store(id))"); err != nil {
		t.Fatal(err)
	}
	if err := db.Exec(ctx, "INSERT INTO sale (store_id) VALUES (42)"); err == nil {
		t.Fatal("insert with missing parent: error = nil")
	}
}
