package core

// Measure families of the financial summary.
const (
	FamilyMedical  = "medical"
	FamilyPharmacy = "pharmacy"
	FamilyTotal    = "total"
)

// SummaryFields names the columns of the summary extract.
type SummaryFields struct {
	Period       string `yaml:"period"`
	MedicalPaid  string `yaml:"medical_paid"`
	PharmacyPaid string `yaml:"pharmacy_paid"`
	MemberMonths string `yaml:"member_months"`
}

// DefaultSummaryFields matches the summary_stats extract.
var DefaultSummaryFields = SummaryFields{
	Period:       FieldYear,
	MedicalPaid:  "current_period_medical_paid",
	PharmacyPaid: "current_period_pharmacy_paid",
	MemberMonths: "current_period_member_months",
}

// FinancialSummary holds the headline numbers of a time window.
type FinancialSummary struct {
	MedicalPaid  float64   `json:"medical_paid"`
	PharmacyPaid float64   `json:"pharmacy_paid"`
	MemberMonths float64   `json:"member_months"`
	AveragePMPM  NullFloat `json:"average_pmpm"`
}

// FamilyComparison is the period-over-period PMPM series of one measure family.
type FamilyComparison struct {
	Family  string             `json:"family"`
	Records []ComparisonRecord `json:"records"`
}

// SummaryChange is the period-over-period change of the raw spend and enrollment totals.
type SummaryChange struct {
	MedicalPaid  []ValueComparison `json:"medical_paid"`
	MemberMonths []ValueComparison `json:"member_months"`
}

// Summarize re-sums spend and member months over rows. Average PMPM is
// medical spend over member months.
func Summarize(rows []Row, f SummaryFields) (FinancialSummary, error) {
	var s FinancialSummary
	for i, row := range rows {
		med, err := row.Measure(f.MedicalPaid)
		if err != nil {
			return FinancialSummary{}, withRow(err, i)
		}
		rx, err := row.Measure(f.PharmacyPaid)
		if err != nil {
			return FinancialSummary{}, withRow(err, i)
		}
		mm, err := row.Measure(f.MemberMonths)
		if err != nil {
			return FinancialSummary{}, withRow(err, i)
		}
		s.MedicalPaid += med
		s.PharmacyPaid += rx
		s.MemberMonths += mm
	}
	s.AveragePMPM = SafeDivide(s.MedicalPaid, s.MemberMonths)
	return s, nil
}

// SpendChange compares PMPM per period for the medical, pharmacy and total
// families. Each family derives its ratio from its own summed numerator over
// the shared member-month denominator.
func SpendChange(rows []Row, f SummaryFields) ([]FamilyComparison, error) {
	groupBy := []string{f.Period}
	medical, err := Aggregate(rows, groupBy, Measure{Numerator: f.MedicalPaid, Denominator: f.MemberMonths})
	if err != nil {
		return nil, err
	}
	pharmacy, err := Aggregate(rows, groupBy, Measure{Numerator: f.PharmacyPaid, Denominator: f.MemberMonths})
	if err != nil {
		return nil, err
	}

	medSeries := SeriesFromAggregates(medical, f.Period)
	rxSeries := SeriesFromAggregates(pharmacy, f.Period)
	total := make([]PeriodMeasure, len(medSeries))
	for i := range medSeries {
		total[i] = PeriodMeasure{
			Period:      medSeries[i].Period,
			Numerator:   medSeries[i].Numerator + rxSeries[i].Numerator,
			Denominator: medSeries[i].Denominator,
		}
	}

	return []FamilyComparison{
		{Family: FamilyMedical, Records: Compare(medSeries)},
		{Family: FamilyPharmacy, Records: Compare(rxSeries)},
		{Family: FamilyTotal, Records: Compare(total)},
	}, nil
}

// Change compares medical spend and member months per period.
func Change(rows []Row, f SummaryFields) (SummaryChange, error) {
	// member months ride along as the denominator of the medical aggregate
	medical, err := Aggregate(rows, []string{f.Period}, Measure{Numerator: f.MedicalPaid, Denominator: f.MemberMonths})
	if err != nil {
		return SummaryChange{}, err
	}
	series := SeriesFromAggregates(medical, f.Period)

	paid := make([]PeriodValue, len(series))
	months := make([]PeriodValue, len(series))
	for i, p := range series {
		paid[i] = PeriodValue{Period: p.Period, Value: p.Numerator}
		months[i] = PeriodValue{Period: p.Period, Value: p.Denominator}
	}
	return SummaryChange{
		MedicalPaid:  CompareValues(paid),
		MemberMonths: CompareValues(months),
	}, nil
}
