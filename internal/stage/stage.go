// Package stage bulk-loads cleaned rows into the staging table.
//
// Rows are inserted in fixed-size chunks, one transaction per chunk. When a
// chunk fails the whole dataset is replayed row by row from the first row
// (already committed chunks are not skipped), with periodic commits, until
// the bad-row report fills up or the input is exhausted. The run then fails
// with either the first bad row or, if none was found, the original chunk
// error.
package stage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"retailetl/internal/clean"
	"retailetl/internal/metrics"
	"retailetl/internal/schema"
	"retailetl/internal/storage"
)

// Defaults applied to zero-valued Loader fields.
const (
	DefaultChunkSize   = 50000
	DefaultCommitEvery = 1000
	DefaultMaxBadRows  = 10
)

// Loader inserts cleaned rows into Table. Column list and insert arity come
// from Contract.
type Loader struct {
	DB       storage.DB
	Table    string
	Contract schema.Contract

	ChunkSize   int
	CommitEvery int
	MaxBadRows  int

	// DiagnosticColumns are captured for every bad row; defaults to the
	// numeric sales columns.
	DiagnosticColumns []string

	Metrics *metrics.Recorder
}

func (l Loader) withDefaults() Loader {
	if l.ChunkSize <= 0 {
		l.ChunkSize = DefaultChunkSize
	}
	if l.CommitEvery <= 0 {
		l.CommitEvery = DefaultCommitEvery
	}
	if l.MaxBadRows <= 0 {
		l.MaxBadRows = DefaultMaxBadRows
	}
	if l.DiagnosticColumns == nil {
		l.DiagnosticColumns = schema.NumericColumns
	}
	return l
}

func (l Loader) check() error {
	if l.DB == nil {
		return errors.New("stage: DB must not be nil")
	}
	if l.Table == "" {
		return errors.New("stage: table must not be empty")
	}
	return l.Contract.Validate()
}

// Load inserts rows chunk by chunk and returns the number of rows committed
// by the chunked path. On a chunk failure it runs Fallback and returns its
// error; the count then covers only the chunks committed before the failure.
func (l Loader) Load(ctx context.Context, rows []clean.Row) (int64, error) {
	l = l.withDefaults()
	if err := l.check(); err != nil {
		return 0, err
	}

	cols := l.Contract.Columns
	tuples := make([][]any, len(rows))
	for i := range rows {
		tuples[i] = rows[i].Tuple()
	}
	log.Printf("stage: inserting rows=%d table=%s chunk_size=%d", len(tuples), l.Table, l.ChunkSize)

	var (
		total    int64
		start    = time.Now()
		lastTS   = start
		chunkNum int
	)
	for off := 0; off < len(tuples); off += l.ChunkSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		end := off + l.ChunkSize
		if end > len(tuples) {
			end = len(tuples)
		}
		chunkNum++

		n, err := l.insertChunk(ctx, cols, tuples[off:end])
		if err != nil {
			berr := &BatchError{Chunk: chunkNum, Offset: off, Rows: end - off, Err: err}
			log.Printf("stage: batch insert failed chunk=%d offset=%d total_inserted=%d err=%v; falling back to per-row insert",
				chunkNum, off, total, err)
			return total, l.Fallback(ctx, rows, berr)
		}
		total += n
		l.Metrics.RecordBatches(1)
		l.Metrics.RecordRow(metrics.KindInserted, n)

		now := time.Now()
		since := now.Sub(lastTS)
		rps := float64(0)
		if since > 0 {
			rps = float64(n) / since.Seconds()
		}
		log.Printf("batch #%d: rps=%.0f inserted=%d total_inserted=%d elapsed=%s since_last=%s",
			chunkNum, rps, n, total, now.Sub(start).Truncate(time.Millisecond), since.Truncate(time.Millisecond))
		lastTS = now
	}
	log.Printf("stage: all rows inserted rows=%d table=%s chunks=%d", total, l.Table, chunkNum)
	return total, nil
}

func (l Loader) insertChunk(ctx context.Context, cols []string, chunk [][]any) (int64, error) {
	tx, err := l.DB.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	n, err := tx.InsertRows(ctx, l.Table, cols, chunk)
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}
