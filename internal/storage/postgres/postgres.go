// Package postgres implements the PostgreSQL backend on a single pgx.Conn.
// Chunk inserts use COPY FROM; single-row inserts use ordinary statements.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"retailetl/internal/storage"
)

func init() {
	storage.Register("postgres", Open)
	storage.Register("pgx", Open)
}

// connLike is the subset of *pgx.Conn used here.
type connLike interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close(ctx context.Context) error
}

type pgDB struct{ conn connLike }

// Open connects with pgx.Connect.
func Open(ctx context.Context, dsn string) (storage.DB, error) {
	c, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	return &pgDB{conn: c}, nil
}

func (p *pgDB) Exec(ctx context.Context, q string, args ...any) error {
	a, err := encodeArgs(args)
	if err != nil {
		return err
	}
	_, err = p.conn.Exec(ctx, q, a...)
	return err
}

func (p *pgDB) BeginTx(ctx context.Context) (storage.Tx, error) {
	tx, err := p.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgTx{tx: tx}, nil
}

func (p *pgDB) QueryInt(ctx context.Context, q string) (int64, error) {
	var n int64
	if err := p.conn.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (p *pgDB) Dialect() storage.Dialect { return storage.Postgres }

func (p *pgDB) Close(ctx context.Context) error { return p.conn.Close(ctx) }

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) Exec(ctx context.Context, q string, args ...any) error {
	a, err := encodeArgs(args)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, q, a...)
	return err
}

// InsertRows runs COPY FROM into table, which may be schema-qualified.
func (t *pgTx) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	enc := make([][]any, len(rows))
	for i, r := range rows {
		a, err := encodeArgs(r)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		enc[i] = a
	}
	n, err := t.tx.CopyFrom(ctx, Identifier(table), columns, pgx.CopyFromRows(enc))
	if err != nil {
		return n, fmt.Errorf("postgres CopyFrom %s: %w", table, err)
	}
	return n, nil
}

func (t *pgTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// Identifier splits a dotted name into a pgx.Identifier.
func Identifier(name string) pgx.Identifier { return pgx.Identifier(strings.Split(name, ".")) }

// encodeArgs converts decimals to pgtype.Numeric, which COPY can encode into
// numeric columns in binary format. Other values pass through.
func encodeArgs(args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, v := range args {
		d, ok := v.(decimal.Decimal)
		if !ok {
			out[i] = v
			continue
		}
		var n pgtype.Numeric
		if err := n.Scan(d.String()); err != nil {
			return nil, fmt.Errorf("numeric %s: %w", d, err)
		}
		out[i] = n
	}
	return out, nil
}
