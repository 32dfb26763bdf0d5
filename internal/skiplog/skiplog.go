// Package skiplog writes rows rejected by the staging fallback to a CSV file
// so they can be triaged without querying the database.
package skiplog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"retailetl/internal/stage"
)

// Header is the first row of every skip log.
var Header = []string{"reason", "row_index", "source_file", "line_number", "error", "numeric_values"}

// Log is an open skip log.
type Log struct {
	path    string
	f       *os.File
	w       *csv.Writer
	reasons map[string]int
}

// Create makes any missing parent directories, truncates path and writes the
// header.
func Create(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("skiplog: create dir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("skiplog: open %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("skiplog: header: %w", err)
	}
	return &Log{path: path, f: f, w: w, reasons: map[string]int{}}, nil
}

// Path is the file being written.
func (l *Log) Path() string { return l.path }

// Add appends one bad row under reason.
func (l *Log) Add(reason string, b stage.BadRow) error {
	l.reasons[reason]++
	msg := ""
	if b.Err != nil {
		msg = b.Err.Error()
	}
	return l.w.Write([]string{
		reason,
		strconv.Itoa(b.Index),
		b.SourceFile,
		strconv.Itoa(b.Line),
		msg,
		numericValues(b.Numeric),
	})
}

// Counts returns the number of rows written per reason.
func (l *Log) Counts() map[string]int {
	out := make(map[string]int, len(l.reasons))
	for k, v := range l.reasons {
		out[k] = v
	}
	return out
}

// Close flushes and closes the file.
func (l *Log) Close() error {
	l.w.Flush()
	werr := l.w.Error()
	cerr := l.f.Close()
	if werr != nil {
		return fmt.Errorf("skiplog: flush %s: %w", l.path, werr)
	}
	return cerr
}

// ReasonRowIsolation tags rows rejected by the row-by-row fallback.
const ReasonRowIsolation = "row_isolation"

// FileName is the skip log name for a run started at ts.
func FileName(ts time.Time) string {
	return "bad_rows_" + ts.UTC().Format("20060102T150405Z") + ".csv"
}

// WriteReport writes every entry of rep to a new log at path.
func WriteReport(path string, rep stage.BadRowReport) error {
	l, err := Create(path)
	if err != nil {
		return err
	}
	for _, b := range rep.Rows {
		if err := l.Add(ReasonRowIsolation, b); err != nil {
			_ = l.Close()
			return fmt.Errorf("skiplog: write row %d: %w", b.Index, err)
		}
	}
	return l.Close()
}

// numericValues renders m as sorted k=v pairs separated by ';'.
func numericValues(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k]
	}
	return strings.Join(parts, ";")
}
