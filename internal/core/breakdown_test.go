package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var claimComponents = []Component{
	{Label: "Inpatient", Field: "inpatient_paid"},
	{Label: "Outpatient", Field: "outpatient_paid"},
	{Label: "Other", Field: "other_paid"},
}

func TestBreakdown(t *testing.T) {
	rows := []Row{
		{"year_month": "2020-01", "inpatient_paid": 100.0, "outpatient_paid": 50.0, "other_paid": nil, "member_months": 10.0},
		{"year_month": "2020-02", "inpatient_paid": 300.0, "outpatient_paid": 0.0, "other_paid": 10.0, "member_months": 30.0},
	}

	got, err := Breakdown(rows, "category", claimComponents, "member_months")
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "Inpatient", got[0].Dimension("category"))
	assert.Equal(t, 400.0, got[0].NumeratorSum)
	assert.Equal(t, 40.0, got[0].DenominatorSum)
	assert.Equal(t, Some(10), got[0].Ratio, "summed over summed, not the mean of 10 and 10")

	assert.Equal(t, Some(1.25), got[1].Ratio, "50/40, not the mean of 5 and 0")
	assert.Equal(t, Some(0.25), got[2].Ratio)

	var sum float64
	for _, r := range got {
		sum += r.Ratio.Float64
	}
	assert.InDelta(t, 460.0/40.0, sum, 1e-9)
}

func TestBreakdown_EmptyAndZero(t *testing.T) {
	got, err := Breakdown(nil, "category", claimComponents, "member_months")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, r := range got {
		assert.False(t, r.Ratio.Valid)
		assert.Zero(t, r.NumeratorSum)
	}

	got, err = Breakdown([]Row{{"inpatient_paid": 5.0}}, "category", claimComponents, "member_months")
	require.NoError(t, err)
	assert.Equal(t, 5.0, got[0].NumeratorSum)
	assert.False(t, got[0].Ratio.Valid)
}

func TestBreakdown_Malformed(t *testing.T) {
	rows := []Row{
		{"inpatient_paid": 1.0, "member_months": 1.0},
		{"inpatient_paid": math.Inf(1), "member_months": 1.0},
	}
	_, err := Breakdown(rows, "category", claimComponents, "member_months")
	var me *MalformedInputError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, 1, me.Row)
	assert.Equal(t, "inpatient_paid", me.Field)
}

func TestShares(t *testing.T) {
	recs := []AggregateRecord{{NumeratorSum: 30}, {NumeratorSum: 10}, {NumeratorSum: 0}}
	assert.Equal(t, []NullFloat{Some(0.75), Some(0.25), Some(0)}, Shares(recs))

	zero := Shares([]AggregateRecord{{}, {}})
	assert.False(t, zero[0].Valid)
	assert.False(t, zero[1].Valid)
}

func TestSortByNumerator(t *testing.T) {
	recs := []AggregateRecord{
		{Dimensions: map[string]string{"k": "a"}, NumeratorSum: 5},
		{Dimensions: map[string]string{"k": "b"}, NumeratorSum: 9},
		{Dimensions: map[string]string{"k": "c"}, NumeratorSum: 5},
	}
	SortByNumerator(recs, true)
	assert.Equal(t, "b", recs[0].Dimension("k"))
	assert.Equal(t, "a", recs[1].Dimension("k"))
	assert.Equal(t, "c", recs[2].Dimension("k"))
}
