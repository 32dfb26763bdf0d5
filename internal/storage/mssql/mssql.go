// Package mssql implements the SQL Server backend using go-mssqldb. Chunk
// inserts go through the TDS bulk copy API inside the caller's transaction.
package mssql

import (
	"context"
	"database/sql"
	"fmt"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"retailetl/internal/storage"
)

func init() {
	storage.Register("mssql", Open)
	storage.Register("sqlserver", Open)
}

// bulkOptions keeps bulk copy semantics aligned with ordinary INSERTs: CHECK
// constraints are enforced and NULLs are not replaced by column defaults.
var bulkOptions = mssql.BulkOptions{CheckConstraints: true, KeepNulls: true}

// Open validates dsn, connects and pings.
func Open(ctx context.Context, dsn string) (storage.DB, error) {
	if _, err := msdsn.Parse(dsn); err != nil {
		return nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return storage.NewSQLDB(db, storage.MSSQL, bulkCopy), nil
}

// bulkCopy streams rows through mssql.CopyIn on tx. The caller owns the
// transaction; nothing is committed here.
func bulkCopy(ctx context.Context, tx *sql.Tx, _ storage.Dialect, table string, columns []string, rows [][]any) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(table, bulkOptions, columns...))
	if err != nil {
		return 0, fmt.Errorf("prepare bulk: %w", err)
	}
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
