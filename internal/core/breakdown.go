package core

// Component is one additive part of a total, summed from its own column.
type Component struct {
	Label string `json:"label" yaml:"label"`
	Field string `json:"field" yaml:"field"`
}

// Breakdown splits rows into components that share one denominator. Each
// component's ratio is its own numerator sum over the summed denominator, so
// the ratios add up to the ratio of the components' total. Records come back
// in component order with the label under dimension, one per component even
// when rows is empty.
func Breakdown(rows []Row, dimension string, components []Component, denominator string) ([]AggregateRecord, error) {
	out := make([]AggregateRecord, len(components))
	for i, c := range components {
		out[i] = AggregateRecord{Dimensions: map[string]string{dimension: c.Label}}
	}

	var den float64
	for i, row := range rows {
		d, err := row.Measure(denominator)
		if err != nil {
			return nil, withRow(err, i)
		}
		den += d
		for j, c := range components {
			n, err := row.Measure(c.Field)
			if err != nil {
				return nil, withRow(err, i)
			}
			out[j].NumeratorSum += n
		}
	}

	for i := range out {
		out[i].DenominatorSum = den
		out[i].Ratio = SafeDivide(out[i].NumeratorSum, den)
	}
	return out, nil
}

// Shares returns each record's numerator as a fraction of the records'
// numerator total, undefined when that total is zero.
func Shares(records []AggregateRecord) []NullFloat {
	var total float64
	for _, r := range records {
		total += r.NumeratorSum
	}
	out := make([]NullFloat, len(records))
	for i, r := range records {
		out[i] = SafeDivide(r.NumeratorSum, total)
	}
	return out
}
