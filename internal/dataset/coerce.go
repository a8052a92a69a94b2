package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"pmpm/internal/core"
)

// CoercionRules decides which extract columns hold numbers.
type CoercionRules struct {
	// NumericTokens marks a column numeric when its "_"-separated name contains
	// any of them as whole tokens. A token may itself span several parts, such
	// as "member_month".
	NumericTokens []string
	// TextFields are never coerced, even when they match a token.
	TextFields []string
}

// DefaultRules treats amount-like, member-month and count columns as numeric.
var DefaultRules = CoercionRules{
	NumericTokens: []string{
		"amount", "paid", "spend", "pmpm", "pct_change",
		"member_month", "member_months", "count", "cases", "duration",
	},
	TextFields: []string{core.FieldYear, core.FieldYearMonth, "quarter"},
}

// IsNumeric reports whether column is coerced to float64.
func (r CoercionRules) IsNumeric(column string) bool {
	for _, f := range r.TextFields {
		if column == f {
			return false
		}
	}
	parts := strings.Split(column, "_")
	for _, tok := range r.NumericTokens {
		if containsRun(parts, strings.Split(tok, "_")) {
			return true
		}
	}
	return false
}

// containsRun reports whether run occurs in parts as consecutive elements.
func containsRun(parts, run []string) bool {
	for i := 0; i+len(run) <= len(parts); i++ {
		match := true
		for j := range run {
			if parts[i+j] != run[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// NormalizeColumn lowercases and trims a header cell.
func NormalizeColumn(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Coerce builds a dataset from a header and string records. Column names are
// normalized and numeric columns are parsed to float64, with empty or null
// cells left nil. Text cells are kept as trimmed strings.
func Coerce(name string, header []string, records [][]string, rules CoercionRules) (core.Dataset, error) {
	columns := make([]string, len(header))
	numeric := make([]bool, len(header))
	seen := make(map[string]struct{}, len(header))
	for i, h := range header {
		col := NormalizeColumn(h)
		if col == "" {
			return core.Dataset{}, &core.MalformedInputError{Row: -1, Field: fmt.Sprintf("column %d", i), Reason: "empty column name"}
		}
		if _, dup := seen[col]; dup {
			return core.Dataset{}, &core.MalformedInputError{Row: -1, Field: col, Reason: "duplicate column"}
		}
		seen[col] = struct{}{}
		columns[i] = col
		numeric[i] = rules.IsNumeric(col)
	}

	rows := make([]core.Row, 0, len(records))
	for r, rec := range records {
		if len(rec) > len(columns) {
			return core.Dataset{}, &core.MalformedInputError{Row: r, Reason: fmt.Sprintf("%d cells for %d columns", len(rec), len(columns))}
		}
		if blank(rec) {
			continue
		}
		row := make(core.Row, len(columns))
		for i, col := range columns {
			cell := ""
			if i < len(rec) {
				cell = strings.TrimSpace(rec[i])
			}
			if !numeric[i] {
				row[col] = cell
				continue
			}
			if isNullCell(cell) {
				row[col] = nil
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return core.Dataset{}, &core.MalformedInputError{Row: r, Field: col, Reason: fmt.Sprintf("not a number: %q", cell)}
			}
			row[col] = v
		}
		rows = append(rows, row)
	}

	return core.Dataset{Name: name, Columns: columns, Rows: rows}, nil
}

func isNullCell(cell string) bool {
	switch cell {
	case "", "NULL", "null", "NaN", "nan", "NA", "None":
		return true
	}
	return false
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
