package stage

import (
	"fmt"
	"sort"
	"strings"
)

// BatchError is a failed chunk insert. It is recovered by the fallback and
// surfaces only when the fallback finds no bad row.
type BatchError struct {
	Chunk  int // 1-based chunk number
	Offset int // index of the chunk's first row
	Rows   int
	Err    error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("stage: chunk %d (rows %d-%d) failed: %v", e.Chunk, e.Offset, e.Offset+e.Rows-1, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// RowIsolationError reports the first row the fallback could not insert.
// Report holds every bad row collected before the fallback stopped.
type RowIsolationError struct {
	First  BadRow
	Report BadRowReport
}

func (e *RowIsolationError) Error() string {
	return fmt.Sprintf("stage: insert failed; first bad row index %d from file %s: %v; numeric values: %s",
		e.First.Index, e.First.SourceFile, e.First.Err, formatValues(e.First.Numeric))
}

func (e *RowIsolationError) Unwrap() error { return e.First.Err }

func formatValues(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k]
	}
	return "{" + strings.Join(parts, " ") + "}"
}
