package storage

import (
	"fmt"
	"strings"
)

// Dialect captures the SQL differences the loader cares about.
type Dialect struct {
	Name string

	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string

	// QuoteIdent quotes a single identifier.
	QuoteIdent func(id string) string

	// MaxParams is the bind-parameter limit of one statement.
	MaxParams int

	// MaxRows caps the VALUES tuples of one INSERT; 0 means no cap.
	MaxRows int
}

// MSSQL is SQL Server: @pN parameters, [bracket] identifiers, 2100 params
// and 1000 VALUES rows per statement.
var MSSQL = Dialect{
	Name:        "mssql",
	Placeholder: func(n int) string { return fmt.Sprintf("@p%d", n) },
	QuoteIdent:  func(id string) string { return "[" + strings.ReplaceAll(id, "]", "]]") + "]" },
	MaxParams:   2100,
	MaxRows:     1000,
}

// Postgres uses $N parameters and "double-quoted" identifiers.
var Postgres = Dialect{
	Name:        "postgres",
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	QuoteIdent:  doubleQuote,
	MaxParams:   65535,
}

// SQLite uses ? parameters; modern builds allow 32766 variables.
var SQLite = Dialect{
	Name:        "sqlite",
	Placeholder: func(int) string { return "?" },
	QuoteIdent:  doubleQuote,
	MaxParams:   32766,
}

func doubleQuote(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// QuoteName quotes a possibly schema-qualified name: stg.SalesRaw becomes
// [stg].[SalesRaw] on SQL Server.
func (d Dialect) QuoteName(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.QuoteIdent(p)
	}
	return strings.Join(parts, ".")
}

// InsertStatement builds INSERT INTO table (cols) VALUES (...), ... for rows
// tuples, numbering parameters left to right.
func (d Dialect) InsertStatement(table string, columns []string, rows int) string {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = d.QuoteIdent(c)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", d.QuoteName(table), strings.Join(cols, ", "))
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for c := range columns {
			if c > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(d.Placeholder(n))
			n++
		}
		sb.WriteByte(')')
	}
	return sb.String()
}

// RowsPerStatement is how many tuples of width cols fit one INSERT.
func (d Dialect) RowsPerStatement(cols int) int {
	if cols <= 0 {
		return 0
	}
	n := d.MaxParams / cols
	if d.MaxRows > 0 && n > d.MaxRows {
		n = d.MaxRows
	}
	if n < 1 {
		n = 1
	}
	return n
}
