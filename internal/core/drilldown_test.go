package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claimRows() []Row {
	return []Row{
		{"year_month": "2018-12", "service_category_1": "inpatient", "service_category_2": "A", "paid_amount_sum": 999.0, "member_month_count": 1.0},
		{"year_month": "2019-01", "service_category_1": "inpatient", "service_category_2": "A", "paid_amount_sum": 100.0, "member_month_count": 10.0},
		{"year_month": "2019-02", "service_category_1": "inpatient", "service_category_2": "A", "paid_amount_sum": 200.0, "member_month_count": 20.0},
		{"year_month": "2019-01", "service_category_1": "inpatient", "service_category_2": "B", "paid_amount_sum": 50.0, "member_month_count": 10.0},
		{"year_month": "2019-01", "service_category_1": "outpatient", "service_category_2": "C", "paid_amount_sum": 70.0, "member_month_count": 7.0},
	}
}

func TestDrilldown_EndToEnd(t *testing.T) {
	got, err := Drilldown(claimRows(), DrilldownQuery{
		Range:     TimeRange{Start: "2019", End: "2019"},
		Domain:    []string{"2018", "2019"},
		Filters:   map[string]string{"service_category_1": "inpatient"},
		RegroupBy: []string{"service_category_2"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	byCat := map[string]AggregateRecord{}
	for _, r := range got {
		byCat[r.Dimension("service_category_2")] = r
	}
	assert.Equal(t, 300.0, byCat["A"].NumeratorSum)
	assert.Equal(t, 30.0, byCat["A"].DenominatorSum)
	assert.Equal(t, Some(10), byCat["A"].Ratio)
	assert.Equal(t, 50.0, byCat["B"].NumeratorSum)
	assert.Equal(t, 10.0, byCat["B"].DenominatorSum)
	assert.Equal(t, Some(5), byCat["B"].Ratio)
}

func TestDrilldown_Idempotent(t *testing.T) {
	rows := claimRows()
	q := DrilldownQuery{
		Range:     TimeRange{Start: "2018", End: "2019"},
		Filters:   map[string]string{"service_category_1": "inpatient"},
		RegroupBy: []string{"service_category_2"},
	}
	first, err := Drilldown(rows, q)
	require.NoError(t, err)
	second, err := Drilldown(rows, q)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, claimRows(), rows, "input rows untouched")
}

func TestDrilldown_AllValuesSentinel(t *testing.T) {
	all, err := Drilldown(claimRows(), DrilldownQuery{
		Filters:   map[string]string{"year_month": AllValues, "service_category_1": ""},
		RegroupBy: nil,
	})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 1419.0, all[0].NumeratorSum)

	month, err := Drilldown(claimRows(), DrilldownQuery{
		Filters:   map[string]string{"year_month": "2019-01"},
		RegroupBy: []string{"service_category_1"},
	})
	require.NoError(t, err)
	SortByDimension(month, "service_category_1")
	require.Len(t, month, 2)
	assert.Equal(t, Some(7.5), month[0].Ratio)
	assert.Equal(t, Some(10), month[1].Ratio)
}

func TestDrilldown_YearMonthRange(t *testing.T) {
	got, err := Drilldown(claimRows(), DrilldownQuery{
		Range:     TimeRange{Start: "2018-12", End: "2019-01"},
		RegroupBy: []string{"year_month"},
	})
	require.NoError(t, err)
	SortByDimension(got, "year_month")
	require.Len(t, got, 2)
	assert.Equal(t, "2018-12", got[0].Dimension("year_month"))
	assert.Equal(t, "2019-01", got[1].Dimension("year_month"))
}

func TestDrilldown_Errors(t *testing.T) {
	_, err := Drilldown(claimRows(), DrilldownQuery{
		Range:     TimeRange{Start: "2017", End: "2019"},
		RegroupBy: []string{"service_category_2"},
	})
	assert.ErrorIs(t, err, ErrEndpointNotInDomain)

	_, err = Drilldown(claimRows(), DrilldownQuery{
		Filters:   map[string]string{"provider_name": "x"},
		RegroupBy: []string{"service_category_2"},
	})
	assert.ErrorIs(t, err, ErrMalformedInput)

	_, err = Drilldown([]Row{{"paid_amount_sum": 1.0}}, DrilldownQuery{
		Range: TimeRange{Start: "2019", End: "2019"},
	})
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestDrilldown_CustomMeasure(t *testing.T) {
	rows := []Row{
		{"year_month": "2019-01", "condition": "diabetes", "medical_paid_amount_sum": 40.0, "member_month_count": 4.0},
		{"year_month": "2019-02", "condition": "diabetes", "medical_paid_amount_sum": 60.0, "member_month_count": 6.0},
	}
	got, err := Drilldown(rows, DrilldownQuery{
		RegroupBy: []string{"condition"},
		Measure:   Measure{Numerator: "medical_paid_amount_sum", Denominator: FieldMemberMonthCount},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Some(10), got[0].Ratio)
}
