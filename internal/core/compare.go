package core

// PeriodMeasure is the aggregated numerator and denominator of one period.
type PeriodMeasure struct {
	Period      string  `json:"period"`
	Numerator   float64 `json:"numerator"`
	Denominator float64 `json:"denominator"`
}

// Ratio returns Numerator / Denominator.
func (p PeriodMeasure) Ratio() NullFloat {
	return SafeDivide(p.Numerator, p.Denominator)
}

// ComparisonRecord pairs a period with the one before it.
type ComparisonRecord struct {
	Period           string    `json:"period"`
	Numerator        float64   `json:"numerator"`
	Denominator      float64   `json:"denominator"`
	Ratio            NullFloat `json:"ratio"`
	PriorNumerator   NullFloat `json:"prior_numerator"`
	PriorDenominator NullFloat `json:"prior_denominator"`
	PriorRatio       NullFloat `json:"prior_ratio"`
	PctChange        NullFloat `json:"pct_change"`
}

// PeriodValue is a plain additive value of one period.
type PeriodValue struct {
	Period string  `json:"period"`
	Value  float64 `json:"value"`
}

// ValueComparison pairs a plain value with the one of the period before it.
type ValueComparison struct {
	Period    string    `json:"period"`
	Value     float64   `json:"value"`
	Prior     NullFloat `json:"prior"`
	PctChange NullFloat `json:"pct_change"`
}

// PctChange returns (current - prior) / prior. It is undefined when either
// side is undefined or prior is zero.
func PctChange(current, prior NullFloat) NullFloat {
	if !current.Valid || !prior.Valid {
		return Null
	}
	return SafeDivide(current.Float64-prior.Float64, prior.Float64)
}

// Compare computes period-over-period change of the ratio. The series is
// expected in ascending period order and is not re-sorted.
func Compare(series []PeriodMeasure) []ComparisonRecord {
	out := make([]ComparisonRecord, len(series))
	for i, p := range series {
		rec := ComparisonRecord{
			Period:      p.Period,
			Numerator:   p.Numerator,
			Denominator: p.Denominator,
			Ratio:       p.Ratio(),
		}
		if i > 0 {
			prev := series[i-1]
			rec.PriorNumerator = Some(prev.Numerator)
			rec.PriorDenominator = Some(prev.Denominator)
			rec.PriorRatio = prev.Ratio()
		}
		rec.PctChange = PctChange(rec.Ratio, rec.PriorRatio)
		out[i] = rec
	}
	return out
}

// CompareValues computes period-over-period change of a plain value series.
func CompareValues(series []PeriodValue) []ValueComparison {
	out := make([]ValueComparison, len(series))
	for i, p := range series {
		rec := ValueComparison{Period: p.Period, Value: p.Value}
		if i > 0 {
			rec.Prior = Some(series[i-1].Value)
		}
		rec.PctChange = PctChange(Some(p.Value), rec.Prior)
		out[i] = rec
	}
	return out
}

// SeriesFromAggregates turns records grouped by periodField into an ascending
// PeriodMeasure series.
func SeriesFromAggregates(records []AggregateRecord, periodField string) []PeriodMeasure {
	sorted := make([]AggregateRecord, len(records))
	copy(sorted, records)
	SortByDimension(sorted, periodField)

	out := make([]PeriodMeasure, len(sorted))
	for i, r := range sorted {
		out[i] = PeriodMeasure{
			Period:      r.Dimensions[periodField],
			Numerator:   r.NumeratorSum,
			Denominator: r.DenominatorSum,
		}
	}
	return out
}
