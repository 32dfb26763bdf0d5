package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// BulkFn inserts rows inside tx using a backend-specific fast path.
type BulkFn func(ctx context.Context, tx *sql.Tx, d Dialect, table string, columns []string, rows [][]any) (int64, error)

// sqlDB adapts *sql.DB to DB. The pool is pinned to one connection so the
// whole run shares a single session.
type sqlDB struct {
	db      *sql.DB
	dialect Dialect
	bulk    BulkFn
}

// NewSQLDB wraps an open *sql.DB. A nil bulk uses MultiRowInsert.
func NewSQLDB(db *sql.DB, d Dialect, bulk BulkFn) DB {
	if bulk == nil {
		bulk = MultiRowInsert
	}
	db.SetMaxOpenConns(1)
	return &sqlDB{db: db, dialect: d, bulk: bulk}
}

func (s *sqlDB) Exec(ctx context.Context, q string, args ...any) error {
	_, err := s.db.ExecContext(ctx, q, args...)
	return err
}

func (s *sqlDB) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx, dialect: s.dialect, bulk: s.bulk}, nil
}

func (s *sqlDB) QueryInt(ctx context.Context, q string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *sqlDB) Dialect() Dialect { return s.dialect }

func (s *sqlDB) Close(context.Context) error { return s.db.Close() }

type sqlTx struct {
	tx      *sql.Tx
	dialect Dialect
	bulk    BulkFn
}

func (t *sqlTx) Exec(ctx context.Context, q string, args ...any) error {
	_, err := t.tx.ExecContext(ctx, q, args...)
	return err
}

func (t *sqlTx) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	return t.bulk(ctx, t.tx, t.dialect, table, columns, rows)
}

func (t *sqlTx) Commit(context.Context) error   { return t.tx.Commit() }
func (t *sqlTx) Rollback(context.Context) error { return t.tx.Rollback() }

// MultiRowInsert writes rows with multi-row INSERT statements, as many tuples
// per statement as the dialect's parameter limit allows.
func MultiRowInsert(ctx context.Context, tx *sql.Tx, d Dialect, table string, columns []string, rows [][]any) (int64, error) {
	per := d.RowsPerStatement(len(columns))
	full := d.InsertStatement(table, columns, per)

	var inserted int64
	for start := 0; start < len(rows); start += per {
		end := start + per
		if end > len(rows) {
			end = len(rows)
		}
		stmt := full
		if end-start != per {
			stmt = d.InsertStatement(table, columns, end-start)
		}
		args := make([]any, 0, (end-start)*len(columns))
		for i := start; i < end; i++ {
			if len(rows[i]) != len(columns) {
				return inserted, fmt.Errorf("row %d: %d values for %d columns", i, len(rows[i]), len(columns))
			}
			args = append(args, rows[i]...)
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return inserted, fmt.Errorf("insert rows %d-%d: %w", start, end-1, err)
		}
		inserted += int64(end - start)
	}
	return inserted, nil
}
