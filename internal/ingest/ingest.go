// Package ingest discovers the raw sales exports, reads them as untyped text
// and reconciles every file against the staging contract.
//
// Reconciliation is per file: required columns must be present (in any
// order), the derived SourceFile column is injected, absent optional columns
// become NULL and the result is reordered to the contract. Files are then
// concatenated in sorted name order, preserving row order within each file.
package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"retailetl/internal/schema"
)

// Record is a reconciled row aligned with the contract. Empty strings are
// valid values; only absent optional columns are NULL.
type Record struct {
	Values []sql.NullString
	File   string
	Line   int
}

// FileSummary describes one loaded input file.
type FileSummary struct {
	Name   string
	Rows   int
	Digest uint64
}

// Dataset is the concatenation of every reconciled input file.
type Dataset struct {
	Records []Record
	Files   []FileSummary
}

// Reconcile validates rf against c and returns its records in contract order.
func Reconcile(c schema.Contract, rf *RawFile) ([]Record, error) {
	pos := make(map[string]int, len(rf.Header))
	for i, h := range rf.Header {
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}

	var missing []string
	for _, col := range c.Required() {
		if _, ok := pos[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaMismatchError{File: rf.Name, Missing: missing, Found: rf.Header}
	}

	// src[i] is the file column feeding contract column i; -1 means NULL,
	// -2 means the derived source-file column.
	src := make([]int, c.Len())
	for i, col := range c.Columns {
		if col == c.Derived {
			src[i] = -2
		} else if j, ok := pos[col]; ok {
			src[i] = j
		} else {
			src[i] = -1
		}
	}

	out := make([]Record, len(rf.Rows))
	for r, row := range rf.Rows {
		vals := make([]sql.NullString, len(src))
		for i, j := range src {
			switch {
			case j == -2:
				vals[i] = sql.NullString{String: rf.Name, Valid: true}
			case j >= 0 && j < len(row.Fields):
				vals[i] = sql.NullString{String: row.Fields[j], Valid: true}
			}
		}
		out[r] = Record{Values: vals, File: rf.Name, Line: row.Line}
	}
	return out, nil
}

// Load discovers files in dir, reads and reconciles them one at a time, and
// concatenates the results. Patterns default to the primary export name
// followed by the legacy sales_*.csv name.
func Load(ctx context.Context, dir string, c schema.Contract, patterns ...string) (*Dataset, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	files, err := Discover(dir, patterns...)
	if err != nil {
		return nil, err
	}
	log.Printf("ingest: found files=%d dir=%s", len(files), dir)

	ds := &Dataset{}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rf, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		recs, err := Reconcile(c, rf)
		if err != nil {
			return nil, err
		}
		log.Printf("ingest: read file=%s rows=%d xxh3=%016x", rf.Name, len(recs), rf.Digest)
		ds.Records = append(ds.Records, recs...)
		ds.Files = append(ds.Files, FileSummary{Name: rf.Name, Rows: len(recs), Digest: rf.Digest})
	}
	log.Printf("ingest: combined rows=%d files=%d", len(ds.Records), len(ds.Files))
	return ds, nil
}

// String renders a short summary for logs.
func (s FileSummary) String() string {
	return fmt.Sprintf("%s(rows=%d xxh3=%016x)", s.Name, s.Rows, s.Digest)
}
