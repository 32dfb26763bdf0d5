// Package clean converts raw CSV strings into typed staging values. Cleaners
// never fail: a value that cannot be interpreted becomes NULL so that the row
// still loads and the row count is preserved.
package clean

import (
	"strings"

	"github.com/shopspring/decimal"
)

// numericNoise strips thousands separators, currency signs and percent signs.
var numericNoise = strings.NewReplacer(",", "", "$", "", "%", "")

// Numeric parses messy numeric text such as "$1,234.50", "12%" or "(50)".
// Empty or unparseable input yields an invalid (NULL) NullDecimal.
func Numeric(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}
	}
	s = strings.TrimSpace(numericNoise.Replace(s))
	if n := len(s); n >= 2 && s[0] == '(' && s[n-1] == ')' {
		s = "-" + strings.TrimSpace(s[1:n-1])
	}
	if s == "" || s == "-" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
