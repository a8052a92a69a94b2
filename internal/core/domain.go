package core

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Default field names of the claims warehouse extracts.
const (
	FieldYearMonth        = "year_month"
	FieldYear             = "year"
	FieldPaidAmountSum    = "paid_amount_sum"
	FieldMemberMonthCount = "member_month_count"
)

// AllValues is the dimension filter sentinel that lets every row through.
const AllValues = "All Time"

type (
	// Row is a single record of a tabular extract. Dimension values are strings,
	// measure values are float64 once coerced by the data layer.
	Row map[string]any

	// Dataset is an immutable snapshot of a tabular extract.
	Dataset struct {
		Name    string   `json:"name"`
		Columns []string `json:"columns"`
		Rows    []Row    `json:"rows"`
	}

	// Measure names the numerator and denominator fields of a ratio metric.
	Measure struct {
		Numerator   string `json:"numerator" yaml:"numerator"`
		Denominator string `json:"denominator" yaml:"denominator"`
	}
)

// PMPM is paid amount per member month.
var PMPM = Measure{Numerator: FieldPaidAmountSum, Denominator: FieldMemberMonthCount}

var (
	ErrEndpointNotInDomain = errors.New("endpoint not in domain")
	ErrMalformedInput      = errors.New("malformed input")
)

// DomainError reports a time range endpoint that is not part of the period domain.
type DomainError struct {
	Endpoint string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %q", ErrEndpointNotInDomain, e.Endpoint)
}

func (e *DomainError) Unwrap() error { return ErrEndpointNotInDomain }

// MalformedInputError reports a row that cannot take part in an aggregation.
type MalformedInputError struct {
	Row    int
	Field  string
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("%s: row %d field %q: %s", ErrMalformedInput, e.Row, e.Field, e.Reason)
}

func (e *MalformedInputError) Unwrap() error { return ErrMalformedInput }

func malformed(row int, field, reason string) error {
	return &MalformedInputError{Row: row, Field: field, Reason: reason}
}

// Dimension returns the categorical value of field. A missing or nil value is malformed.
func (r Row) Dimension(field string) (string, error) {
	v, ok := r[field]
	if !ok || v == nil {
		return "", malformed(-1, field, "missing dimension")
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case fmt.Stringer:
		return t.String(), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	default:
		return "", malformed(-1, field, fmt.Sprintf("unsupported dimension type %T", v))
	}
}

// Measure returns the numeric value of field. A missing or nil value counts as
// zero. NaN and infinite values are malformed.
func (r Row) Measure(field string) (float64, error) {
	v, ok := r[field]
	if !ok || v == nil {
		return 0, nil
	}
	switch t := v.(type) {
	case float64:
		return finite(field, t)
	case float32:
		return finite(field, float64(t))
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case int32:
		return float64(t), nil
	default:
		return 0, malformed(-1, field, fmt.Sprintf("non-numeric measure of type %T", v))
	}
}

func finite(field string, v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, malformed(-1, field, fmt.Sprintf("non-finite measure %v", v))
	}
	return v, nil
}

// withRow stamps the row index on errors produced by Row accessors.
func withRow(err error, i int) error {
	var me *MalformedInputError
	if errors.As(err, &me) {
		return &MalformedInputError{Row: i, Field: me.Field, Reason: me.Reason}
	}
	return err
}

// Periods returns the distinct values of field in ascending order.
func (d Dataset) Periods(field string) ([]string, error) {
	return distinctSorted(d.Rows, field)
}

func distinctSorted(rows []Row, field string) ([]string, error) {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for i, row := range rows {
		v, err := row.Dimension(field)
		if err != nil {
			return nil, withRow(err, i)
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}
