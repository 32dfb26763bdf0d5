package clean

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"retailetl/internal/ingest"
	"retailetl/internal/schema"
)

// Row is a cleaned staging record. Values are aligned with the contract;
// numeric positions hold decimal.NullDecimal, date positions hold Date and
// every other position holds sql.NullString.
type Row struct {
	Values []any
	File   string
	Line   int
}

// Tuple converts the row into driver-ready insert arguments in contract order:
// nil for NULL, otherwise string, decimal.Decimal or time.Time.
func (r Row) Tuple() []any {
	out := make([]any, len(r.Values))
	for i, v := range r.Values {
		switch x := v.(type) {
		case sql.NullString:
			if x.Valid {
				out[i] = x.String
			}
		case decimal.NullDecimal:
			if x.Valid {
				out[i] = x.Decimal
			}
		case Date:
			if x.Valid {
				out[i] = x.In(time.UTC)
			}
		default:
			out[i] = v
		}
	}
	return out
}

// Spec tells Records which contract positions hold numbers and dates.
type Spec struct {
	Numeric []int
	Dates   []int
}

// SalesSpec resolves the sales numeric and date columns against c.
func SalesSpec(c schema.Contract) Spec {
	return Spec{
		Numeric: c.Indexes(schema.NumericColumns),
		Dates:   c.Indexes(schema.DateColumns),
	}
}

// Records cleans every reconciled record. It never drops rows.
func Records(spec Spec, in []ingest.Record) []Row {
	kind := map[int]byte{}
	for _, i := range spec.Numeric {
		kind[i] = 'n'
	}
	for _, i := range spec.Dates {
		kind[i] = 'd'
	}

	out := make([]Row, len(in))
	for r, rec := range in {
		vals := make([]any, len(rec.Values))
		for i, raw := range rec.Values {
			switch kind[i] {
			case 'n':
				if raw.Valid {
					vals[i] = Numeric(raw.String)
				} else {
					vals[i] = decimal.NullDecimal{}
				}
			case 'd':
				if raw.Valid {
					vals[i] = DayFirst(raw.String)
				} else {
					vals[i] = Date{}
				}
			default:
				vals[i] = raw
			}
		}
		out[r] = Row{Values: vals, File: rec.File, Line: rec.Line}
	}
	return out
}

// Describe renders the values at idx as name=value pairs for diagnostics.
func (r Row) Describe(c schema.Contract, idx []int) map[string]string {
	out := make(map[string]string, len(idx))
	for _, i := range idx {
		if i < 0 || i >= len(r.Values) {
			continue
		}
		out[c.Columns[i]] = display(r.Values[i])
	}
	return out
}

func display(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case sql.NullString:
		if !x.Valid {
			return "NULL"
		}
		return x.String
	case decimal.NullDecimal:
		if !x.Valid {
			return "NULL"
		}
		return x.Decimal.String()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}
