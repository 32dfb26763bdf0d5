package stage

import (
	"context"
	"errors"
	"fmt"
	"log"

	"retailetl/internal/clean"
	"retailetl/internal/metrics"
	"retailetl/internal/storage"
)

// RowResult is the outcome of inserting one row during the fallback.
type RowResult struct {
	Index int
	Err   error
}

// OK reports whether the row was inserted.
func (r RowResult) OK() bool { return r.Err == nil }

// BadRow is one row the fallback could not insert.
type BadRow struct {
	Index      int
	SourceFile string
	Line       int
	Err        error
	Numeric    map[string]string
}

// BadRowReport accumulates bad rows up to Limit.
type BadRowReport struct {
	Rows      []BadRow
	Limit     int
	Attempted int // rows tried before the fallback stopped
}

// Add appends b and reports whether the report is now full.
func (r *BadRowReport) Add(b BadRow) bool {
	r.Rows = append(r.Rows, b)
	return r.Full()
}

// Full reports whether Limit entries have been collected.
func (r *BadRowReport) Full() bool { return r.Limit > 0 && len(r.Rows) >= r.Limit }

// Fallback replays every row with a single-row INSERT in a rolling
// transaction committed every CommitEvery successful rows. A failing row
// rolls back the open transaction, is recorded, and a new transaction starts.
// Scanning stops when MaxBadRows rows have been recorded.
//
// Fallback always returns an error: *RowIsolationError when any bad row was
// found, otherwise batchErr (as a *BatchError).
func (l Loader) Fallback(ctx context.Context, rows []clean.Row, batchErr error) error {
	l = l.withDefaults()
	if err := l.check(); err != nil {
		return err
	}

	stmt := l.DB.Dialect().InsertStatement(l.Table, l.Contract.Columns, 1)
	diag := l.Contract.Indexes(l.DiagnosticColumns)
	report := BadRowReport{Limit: l.MaxBadRows}
	log.Printf("stage: fallback start rows=%d commit_every=%d max_bad_rows=%d", len(rows), l.CommitEvery, l.MaxBadRows)

	tx, err := l.DB.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("stage: fallback begin: %w", err)
	}
	pending := 0
	var committed int64

	for i := range rows {
		if err := ctx.Err(); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}

		res := insertOne(ctx, tx, stmt, i, rows[i])
		report.Attempted++

		if res.OK() {
			pending++
			if pending >= l.CommitEvery {
				if err := tx.Commit(ctx); err != nil {
					_ = tx.Rollback(ctx)
					return fmt.Errorf("stage: fallback commit at row %d: %w", i, err)
				}
				committed += int64(pending)
				pending = 0
				if tx, err = l.DB.BeginTx(ctx); err != nil {
					return fmt.Errorf("stage: fallback begin: %w", err)
				}
			}
			continue
		}

		_ = tx.Rollback(ctx)
		pending = 0
		bad := BadRow{
			Index:      res.Index,
			SourceFile: rows[i].File,
			Line:       rows[i].Line,
			Err:        res.Err,
			Numeric:    rows[i].Describe(l.Contract, diag),
		}
		if bad.SourceFile == "" {
			bad.SourceFile = "unknown"
		}
		log.Printf("stage: row insert failed index=%d source=%s line=%d err=%v numeric=%s",
			bad.Index, bad.SourceFile, bad.Line, bad.Err, formatValues(bad.Numeric))

		if report.Add(bad) {
			log.Printf("stage: collected bad_rows=%d, stopping further attempts", len(report.Rows))
			tx = nil
			break
		}
		if tx, err = l.DB.BeginTx(ctx); err != nil {
			return fmt.Errorf("stage: fallback begin: %w", err)
		}
	}

	// The run fails either way, so the trailing group is not committed.
	if tx != nil {
		_ = tx.Rollback(ctx)
	}
	l.Metrics.RecordRow(metrics.KindInserted, committed)
	l.Metrics.RecordRow(metrics.KindBad, int64(len(report.Rows)))
	log.Printf("stage: fallback done attempted=%d committed=%d bad_rows=%d", report.Attempted, committed, len(report.Rows))

	if len(report.Rows) > 0 {
		return &RowIsolationError{First: report.Rows[0], Report: report}
	}
	log.Printf("stage: batch insert failed but no bad rows found in fallback; re-raising: %v", batchErr)
	var be *BatchError
	if errors.As(batchErr, &be) {
		return be
	}
	return &BatchError{Rows: len(rows), Err: batchErr}
}

func insertOne(ctx context.Context, tx storage.Tx, stmt string, i int, row clean.Row) RowResult {
	return RowResult{Index: i, Err: tx.Exec(ctx, stmt, row.Tuple()...)}
}
