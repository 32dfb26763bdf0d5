package ingest

import (
	"fmt"
	"strings"
)

// NoInputError is returned when no file matches any of the patterns.
type NoInputError struct {
	Dir      string
	Patterns []string
}

func (e *NoInputError) Error() string {
	return fmt.Sprintf("ingest: no CSV files found in %s matching %s", e.Dir, quoteAll(e.Patterns))
}

// SchemaMismatchError is returned when a file lacks required contract columns.
type SchemaMismatchError struct {
	File    string
	Missing []string
	Found   []string
}

func (e *SchemaMismatchError) Error() string {
	found := e.Found
	if len(found) > 50 {
		found = found[:50]
	}
	return fmt.Sprintf("ingest: CSV missing expected columns [%s] in file %s; found columns: [%s]",
		strings.Join(e.Missing, ", "), e.File, strings.Join(found, ", "))
}

// ParseError reports a structurally broken CSV line.
type ParseError struct {
	File string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ingest: %s line %d: %v", e.File, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func quoteAll(ss []string) string {
	q := make([]string, len(ss))
	for i, s := range ss {
		q[i] = "'" + s + "'"
	}
	return strings.Join(q, " or ")
}
