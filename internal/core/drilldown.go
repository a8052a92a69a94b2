package core

// DrilldownQuery describes one drill-down view: a time window, equality filters
// on dimensions, and the dimensions to regroup the surviving rows by.
type DrilldownQuery struct {
	// PeriodField holds the row period label. Defaults to year_month.
	PeriodField string
	Range       TimeRange
	// Domain is the ascending period domain the range is cut from. When nil it
	// is derived from the rows at the granularity of Range.
	Domain []string
	// Filters maps a dimension to the value rows must equal. AllValues and the
	// empty string let every row through.
	Filters   map[string]string
	RegroupBy []string
	Measure   Measure
}

func (q DrilldownQuery) periodField() string {
	if q.PeriodField == "" {
		return FieldYearMonth
	}
	return q.PeriodField
}

func (q DrilldownQuery) measure() Measure {
	if q.Measure.Numerator == "" && q.Measure.Denominator == "" {
		return PMPM
	}
	return q.Measure
}

// Drilldown applies the time window, then the dimension filters, then
// aggregates by RegroupBy. Ratios are recomputed from the filtered sums.
func Drilldown(rows []Row, q DrilldownQuery) ([]AggregateRecord, error) {
	filtered, err := FilterRows(rows, q)
	if err != nil {
		return nil, err
	}
	return Aggregate(filtered, q.RegroupBy, q.measure())
}

// FilterRows returns the rows of a drill-down that survive the time window
// and dimension filters, in input order.
func FilterRows(rows []Row, q DrilldownQuery) ([]Row, error) {
	field := q.periodField()
	yearly := q.Range.YearGranular()

	var selected map[string]struct{}
	if !q.Range.IsZero() {
		domain := q.Domain
		if domain == nil {
			var err error
			if domain, err = periodDomain(rows, field, yearly); err != nil {
				return nil, err
			}
		}
		periods, err := SelectRange(domain, q.Range.Start, q.Range.End)
		if err != nil {
			return nil, err
		}
		selected = make(map[string]struct{}, len(periods))
		for _, p := range periods {
			selected[p] = struct{}{}
		}
	}

	out := make([]Row, 0, len(rows))
	for i, row := range rows {
		if selected != nil {
			p, err := row.Dimension(field)
			if err != nil {
				return nil, withRow(err, i)
			}
			if yearly {
				p = TruncateToYear(p)
			}
			if _, ok := selected[p]; !ok {
				continue
			}
		}
		keep, err := matchFilters(row, q.Filters)
		if err != nil {
			return nil, withRow(err, i)
		}
		if keep {
			out = append(out, row)
		}
	}
	return out, nil
}

func matchFilters(row Row, filters map[string]string) (bool, error) {
	for field, want := range filters {
		if want == "" || want == AllValues {
			continue
		}
		got, err := row.Dimension(field)
		if err != nil {
			return false, err
		}
		if got != want {
			return false, nil
		}
	}
	return true, nil
}

func periodDomain(rows []Row, field string, yearly bool) ([]string, error) {
	periods, err := distinctSorted(rows, field)
	if err != nil {
		return nil, err
	}
	if yearly {
		return Years(periods), nil
	}
	return periods, nil
}
