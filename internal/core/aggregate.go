package core

import (
	"sort"
	"strings"
)

// AggregateRecord is one group of a ratio aggregation. Ratio is always
// NumeratorSum / DenominatorSum and is undefined when the denominator is zero.
type AggregateRecord struct {
	Dimensions     map[string]string `json:"dimensions"`
	NumeratorSum   float64           `json:"numerator_sum"`
	DenominatorSum float64           `json:"denominator_sum"`
	Ratio          NullFloat         `json:"ratio"`
}

// Dimension returns the group value of field, empty when not grouped by it.
func (a AggregateRecord) Dimension(field string) string {
	return a.Dimensions[field]
}

// keySeparator cannot occur in extract text values.
const keySeparator = "\x1f"

// Aggregate groups rows by the exact tuple of groupBy values and re-derives
// the ratio from summed numerator and denominator. Ratios are never averaged.
// An empty groupBy yields a single grand total. Groups are emitted in the order
// they are first seen.
func Aggregate(rows []Row, groupBy []string, m Measure) ([]AggregateRecord, error) {
	index := make(map[string]int)
	out := make([]AggregateRecord, 0)
	values := make([]string, len(groupBy))

	for i, row := range rows {
		for j, field := range groupBy {
			v, err := row.Dimension(field)
			if err != nil {
				return nil, withRow(err, i)
			}
			values[j] = v
		}
		num, err := row.Measure(m.Numerator)
		if err != nil {
			return nil, withRow(err, i)
		}
		den, err := row.Measure(m.Denominator)
		if err != nil {
			return nil, withRow(err, i)
		}

		key := strings.Join(values, keySeparator)
		pos, ok := index[key]
		if !ok {
			dims := make(map[string]string, len(groupBy))
			for j, field := range groupBy {
				dims[field] = values[j]
			}
			out = append(out, AggregateRecord{Dimensions: dims})
			pos = len(out) - 1
			index[key] = pos
		}
		out[pos].NumeratorSum += num
		out[pos].DenominatorSum += den
	}

	if len(groupBy) == 0 && len(out) == 0 {
		out = append(out, AggregateRecord{Dimensions: map[string]string{}})
	}
	for i := range out {
		out[i].Ratio = SafeDivide(out[i].NumeratorSum, out[i].DenominatorSum)
	}
	return out, nil
}

// SortByRatio orders records by ratio. Undefined ratios always sort last.
// Ties keep their relative order.
func SortByRatio(records []AggregateRecord, desc bool) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].Ratio, records[j].Ratio
		if a.Valid != b.Valid {
			return a.Valid
		}
		if !a.Valid {
			return false
		}
		if desc {
			return a.Float64 > b.Float64
		}
		return a.Float64 < b.Float64
	})
}

// SortByNumerator orders records by numerator sum. Ties keep their relative order.
func SortByNumerator(records []AggregateRecord, desc bool) {
	sort.SliceStable(records, func(i, j int) bool {
		if desc {
			return records[i].NumeratorSum > records[j].NumeratorSum
		}
		return records[i].NumeratorSum < records[j].NumeratorSum
	})
}

// SortByDimension orders records ascending by the values of the given fields.
func SortByDimension(records []AggregateRecord, fields ...string) {
	sort.SliceStable(records, func(i, j int) bool {
		for _, f := range fields {
			a, b := records[i].Dimensions[f], records[j].Dimensions[f]
			if a != b {
				return a < b
			}
		}
		return false
	})
}

// Top returns the first n records, or all of them when n <= 0.
func Top(records []AggregateRecord, n int) []AggregateRecord {
	if n <= 0 || n >= len(records) {
		return records
	}
	return records[:n]
}
