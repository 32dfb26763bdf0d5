package scripts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"retailetl/internal/storage"
	"retailetl/internal/storage/sqlite"
)

func TestSplit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"no separator", "SELECT 1;", []string{"SELECT 1;"}},
		{"basic", "CREATE SCHEMA stg\nGO\nCREATE SCHEMA dw\nGO\n", []string{"CREATE SCHEMA stg", "CREATE SCHEMA dw"}},
		{"case and spaces", "a\n  go  \nb\nGo\nc", []string{"a", "b", "c"}},
		{"crlf", "a\r\nGO\r\nb\r\n", []string{"a", "b"}},
		{"empty batches dropped", "GO\n\nGO\n  \nx\nGO", []string{"x"}},
		{"GO inside a line is kept", "SELECT 'GO' AS g\nGOTO label", []string{"SELECT 'GO' AS g\nGOTO label"}},
		{"empty", "", nil},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Split(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Split(%q) = %#v, want %#v", tc.in, got, tc.want)
			}
		})
	}
}

func TestDefaultPlan(t *testing.T) {
	t.Parallel()

	p := DefaultPlan()
	if len(p.Pre) != 2 || len(p.Post) != 5 {
		t.Fatalf("plan = %+v", p)
	}
	if p.Pre[0] != "01_create_schemas.sql" || p.Post[4] != "07_validation.sql" {
		t.Fatalf("plan order = %+v", p)
	}
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func openDB(t *testing.T) storage.DB {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "scripts.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(ctx) })
	return db
}

// TestRun_CommitsAllBatches runs a multi-batch script against SQLite.
func TestRun_CommitsAllBatches(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openDB(t)
	dir := t.TempDir()
	p := writeFile(t, dir, "01.sql", "CREATE TABLE a (x INT)\nGO\nINSERT INTO a VALUES (1)\nGO\nINSERT INTO a VALUES (2)\n")

	if err := Run(ctx, db, p); err != nil {
		t.Fatalf("Run: %v", err)
	}
	n, err := db.QueryInt(ctx, "SELECT COUNT(1) FROM a")
	if err != nil || n != 2 {
		t.Fatalf("count = %d, %v", n, err)
	}
}

// TestRun_RollsBackOnError verifies a failing batch undoes earlier batches.
func TestRun_RollsBackOnError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openDB(t)
	if err := db.Exec(ctx, "CREATE TABLE a (x INT)"); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	p := writeFile(t, dir, "bad.sql", "INSERT INTO a VALUES (1)\nGO\nINSERT INTO missing VALUES (1)\n")

	err := Run(ctx, db, p)
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if se.File != "bad.sql" || se.Batch != 2 {
		t.Fatalf("error = %+v", se)
	}
	n, err := db.QueryInt(ctx, "SELECT COUNT(1) FROM a")
	if err != nil || n != 0 {
		t.Fatalf("count after rollback = %d, %v; want 0", n, err)
	}
}

func TestRun_MissingFile(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), openDB(t), filepath.Join(t.TempDir(), "nope.sql"))
	var se *Error
	if !errors.As(err, &se) || se.Batch != 0 || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v", err)
	}
}

func TestRunAll_StopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openDB(t)
	dir := t.TempDir()
	writeFile(t, dir, "01.sql", "CREATE TABLE a (x INT)")
	writeFile(t, dir, "02.sql", "THIS IS NOT SQL")
	writeFile(t, dir, "03.sql", "CREATE TABLE c (x INT)")

	err := RunAll(ctx, db, dir, []string{"01.sql", "02.sql", "03.sql"})
	if err == nil || !strings.Contains(err.Error(), "02.sql") {
		t.Fatalf("err = %v", err)
	}
	if _, err := db.QueryInt(ctx, "SELECT COUNT(1) FROM c"); err == nil {
		t.Fatal("03.sql ran after a failure")
	}
}

func TestPlan_Missing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.sql", "")
	p := Plan{Pre: []string{"a.sql"}, Post: []string{"b.sql"}}
	if got := p.Missing(dir); !reflect.DeepEqual(got, []string{"b.sql"}) {
		t.Fatalf("Missing = %v", got)
	}
}
