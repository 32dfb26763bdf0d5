// Package scripts runs the external .sql files that create the warehouse
// schema and transform staging into dimensions and facts. Scripts are opaque:
// a file is split into batches on GO separator lines and every batch runs in
// one transaction per file.
package scripts

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"retailetl/internal/storage"
)

// Plan lists the scripts run before and after the staging load, by file name
// relative to the SQL folder.
type Plan struct {
	Pre  []string
	Post []string
}

// DefaultPlan is the standard warehouse build.
func DefaultPlan() Plan {
	return Plan{
		Pre: []string{
			"01_create_schemas.sql",
			"02_create_staging_and_dw_tables.sql",
		},
		Post: []string{
			"03_load_dim_date.sql",
			"04_load_dimensions.sql",
			"05_load_fact_sales.sql",
			"06_create_indexes.sql",
			"07_validation.sql",
		},
	}
}

// Error is a failed script batch.
type Error struct {
	File  string
	Batch int // 1-based; 0 when the file itself could not be read
	Err   error
}

func (e *Error) Error() string {
	if e.Batch == 0 {
		return fmt.Sprintf("scripts: %s: %v", e.File, e.Err)
	}
	return fmt.Sprintf("scripts: SQL error in %s batch %d: %v", e.File, e.Batch, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Split cuts text into batches on lines that contain only GO (any case,
// surrounding whitespace ignored). Batches are trimmed; empty ones dropped.
func Split(text string) []string {
	var (
		batches []string
		cur     []string
	)
	flush := func() {
		if b := strings.TrimSpace(strings.Join(cur, "\n")); b != "" {
			batches = append(batches, b)
		}
		cur = cur[:0]
	}

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if strings.EqualFold(strings.TrimSpace(line), "GO") {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return batches
}

// Run executes the file at path in a single transaction. On failure the
// transaction is rolled back and a *Error is returned.
func Run(ctx context.Context, db storage.DB, path string) error {
	name := filepath.Base(path)
	log.Printf("scripts: executing file=%s", name)

	data, err := os.ReadFile(path)
	if err != nil {
		return &Error{File: name, Err: err}
	}
	batches := Split(string(data))

	tx, err := db.BeginTx(ctx)
	if err != nil {
		return &Error{File: name, Err: fmt.Errorf("begin: %w", err)}
	}
	for i, b := range batches {
		if err := tx.Exec(ctx, b); err != nil {
			_ = tx.Rollback(ctx)
			log.Printf("scripts: SQL error file=%s batch=%d err=%v", name, i+1, err)
			return &Error{File: name, Batch: i + 1, Err: err}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return &Error{File: name, Err: fmt.Errorf("commit: %w", err)}
	}
	log.Printf("scripts: completed file=%s batches=%d", name, len(batches))
	return nil
}

// RunAll runs names from dir in order, stopping at the first failure.
func RunAll(ctx context.Context, db storage.DB, dir string, names []string) error {
	for _, n := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := Run(ctx, db, filepath.Join(dir, n)); err != nil {
			return err
		}
	}
	return nil
}

// Missing returns the names in p not present as regular files in dir.
func (p Plan) Missing(dir string) []string {
	var out []string
	for _, n := range append(append([]string{}, p.Pre...), p.Post...) {
		fi, err := os.Stat(filepath.Join(dir, n))
		if err != nil || !fi.Mode().IsRegular() {
			out = append(out, n)
		}
	}
	return out
}
