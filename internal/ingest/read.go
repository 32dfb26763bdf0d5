package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/zeebo/xxh3"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Default input naming patterns, tried in order.
const (
	PrimaryPattern  = "raw_offline_retail_sales_*.csv"
	FallbackPattern = "sales_*.csv"
)

// RawRow is one CSV data row as read, before any contract is applied.
// Fields are verbatim strings; a short row simply has fewer fields.
type RawRow struct {
	Fields []string
	Line   int
}

// RawFile is the untyped content of one input file.
type RawFile struct {
	Name   string // base name, used as SourceFile
	Path   string
	Header []string
	Rows   []RawRow
	Digest uint64 // xxh3 of the raw bytes
}

// Discover returns the files matching the first pattern that matches
// anything, sorted by name.
func Discover(dir string, patterns ...string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = []string{PrimaryPattern, FallbackPattern}
	}
	for _, p := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, p))
		if err != nil {
			return nil, fmt.Errorf("ingest: pattern %q: %w", p, err)
		}
		files := matches[:0]
		for _, m := range matches {
			if fi, err := os.Stat(m); err == nil && fi.Mode().IsRegular() {
				files = append(files, m)
			}
		}
		if len(files) > 0 {
			sort.Strings(files)
			return files, nil
		}
	}
	return nil, &NoInputError{Dir: dir, Patterns: patterns}
}

// ReadFile reads path as text. UTF-8 and UTF-16 byte-order marks are honoured
// and removed; header names are trimmed and normalized to NFC. Values are not
// trimmed, and empty values stay empty strings.
func ReadFile(path string) (*RawFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open %s: %w", path, err)
	}
	defer f.Close()

	h := xxh3.New()
	dec := transform.NewReader(io.TeeReader(f, h), unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	name := filepath.Base(path)
	cr := csv.NewReader(dec)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &RawFile{Name: name, Path: path, Digest: h.Sum64()}, nil
	}
	if err != nil {
		return nil, &ParseError{File: name, Line: 1, Err: fmt.Errorf("read header: %w", err)}
	}
	if j := invalidField(header); j >= 0 {
		return nil, &ParseError{File: name, Line: 1, Err: fmt.Errorf("header column %d is not valid UTF-8", j+1)}
	}
	header = NormalizeHeader(header)

	out := &RawFile{Name: name, Path: path, Header: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.Line
			}
			return nil, &ParseError{File: name, Line: line, Err: err}
		}
		line, _ := cr.FieldPos(0)
		if len(rec) > len(header) {
			return nil, &ParseError{File: name, Line: line,
				Err: fmt.Errorf("expected %d fields, saw %d", len(header), len(rec))}
		}
		if j := invalidField(rec); j >= 0 {
			return nil, &ParseError{File: name, Line: line,
				Err: fmt.Errorf("column %s is not valid UTF-8", header[j])}
		}
		out.Rows = append(out.Rows, RawRow{Fields: rec, Line: line})
	}
	// Drain so the digest always covers the whole file.
	if _, err := io.Copy(io.Discard, dec); err != nil {
		return nil, fmt.Errorf("ingest: read %s: %w", name, err)
	}
	out.Digest = h.Sum64()
	return out, nil
}

// NormalizeHeader trims whitespace, drops stray U+FEFF marks and applies NFC.
func NormalizeHeader(h []string) []string {
	out := make([]string, len(h))
	for i, c := range h {
		c = strings.ReplaceAll(c, "\ufeff", "")
		out[i] = norm.NFC.String(strings.TrimSpace(c))
	}
	return out
}

// invalidField returns the index of the first field holding U+FFFD, which the
// decoder substitutes for bytes that are not valid in the file's encoding.
func invalidField(fields []string) int {
	for i, f := range fields {
		if strings.ContainsRune(f, utf8.RuneError) {
			return i
		}
	}
	return -1
}
