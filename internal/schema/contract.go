// Package schema holds the staging-table column contract. The contract is the
// single source of truth for which columns an input file must carry, the order
// of every inserted tuple, and the column list of the INSERT statement.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// SourceFileColumn is the derived column filled with the originating file name.
const SourceFileColumn = "SourceFile"

// Contract is an ordered, duplicate-free list of staging columns.
type Contract struct {
	// Columns enumerates destination columns in insert order.
	Columns []string

	// Derived names the column that is never read from input files.
	Derived string

	// Optional lists input columns that may be absent from a file; absent
	// optional columns are loaded as NULL.
	Optional map[string]bool
}

// ConfigError reports an invalid contract.
type ConfigError struct {
	Duplicates []string
	Reason     string
}

func (e *ConfigError) Error() string {
	if len(e.Duplicates) > 0 {
		return fmt.Sprintf("schema: contract contains duplicate columns: %s", strings.Join(e.Duplicates, ", "))
	}
	return "schema: " + e.Reason
}

// salesRawColumns mirrors stg.SalesRaw (and the CSV exports) column for column.
var salesRawColumns = []string{
	"OrderDate", "OrderID", "StoreID", "CustomerID", "ProductID", "Quantity",
	"OrderAmount", "DiscountAmount", "ShippingCost", "TotalAmount",
	"StoreName", "StoreType", "StoreOpeningDate", "StoreAddress", "StoreCity",
	"StoreState", "StoreZipCode", "StoreCountry", "StoreRegion", "StoreManagerName",
	"FirstName", "LastName", "Gender", "DOB", "Email", "CustomerAddress", "CustomerCity",
	"CustomerState", "CustomerZipCode", "CustomerCountry", "LoyalityProgramID",
	"ProductName", "Category", "Brand", "UnitPrice",
	"ProgramName", "TierLevel", "PointsMultiplier", "AnnualFee",
	SourceFileColumn,
}

// NumericColumns are cleaned into decimals before loading.
var NumericColumns = []string{
	"Quantity", "OrderAmount", "DiscountAmount", "ShippingCost",
	"TotalAmount", "UnitPrice", "PointsMultiplier", "AnnualFee",
}

// DateColumns are parsed day-first into calendar dates before loading.
var DateColumns = []string{"OrderDate", "StoreOpeningDate", "DOB"}

// SalesRaw returns a fresh copy of the stg.SalesRaw contract.
func SalesRaw() Contract {
	cols := make([]string, len(salesRawColumns))
	copy(cols, salesRawColumns)
	return Contract{Columns: cols, Derived: SourceFileColumn}
}

// Validate fails when a column name repeats or the derived column is not
// part of the column list.
func (c Contract) Validate() error {
	if len(c.Columns) == 0 {
		return &ConfigError{Reason: "contract has no columns"}
	}
	seen := make(map[string]int, len(c.Columns))
	for _, col := range c.Columns {
		seen[col]++
	}
	var dupes []string
	for col, n := range seen {
		if n > 1 {
			dupes = append(dupes, col)
		}
	}
	if len(dupes) > 0 {
		sort.Strings(dupes)
		return &ConfigError{Duplicates: dupes}
	}
	if c.Derived != "" && seen[c.Derived] == 0 {
		return &ConfigError{Reason: fmt.Sprintf("derived column %q is not in the contract", c.Derived)}
	}
	return nil
}

// Len is the number of columns in every output tuple.
func (c Contract) Len() int { return len(c.Columns) }

// Index returns the position of name, or -1.
func (c Contract) Index(name string) int {
	for i, col := range c.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

// Required lists the input columns a file must provide: every column except
// the derived one and those marked optional.
func (c Contract) Required() []string {
	out := make([]string, 0, len(c.Columns))
	for _, col := range c.Columns {
		if col == c.Derived || c.Optional[col] {
			continue
		}
		out = append(out, col)
	}
	return out
}

// IsOptional reports whether col may be missing from an input file.
func (c Contract) IsOptional(col string) bool { return c.Optional[col] }

// Indexes maps names to contract positions, skipping names not in the contract.
func (c Contract) Indexes(names []string) []int {
	out := make([]int, 0, len(names))
	for _, n := range names {
		if i := c.Index(n); i >= 0 {
			out = append(out, i)
		}
	}
	return out
}
