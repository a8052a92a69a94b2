package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare_Chaining(t *testing.T) {
	series := []PeriodMeasure{
		{Period: "2017", Numerator: 100, Denominator: 10},
		{Period: "2018", Numerator: 150, Denominator: 10},
		{Period: "2019", Numerator: 120, Denominator: 10},
	}

	got := Compare(series)
	require.Len(t, got, 3)

	assert.Equal(t, Some(10), got[0].Ratio)
	assert.False(t, got[0].PriorRatio.Valid)
	assert.False(t, got[0].PctChange.Valid)

	assert.Equal(t, Some(10), got[1].PriorRatio)
	require.True(t, got[1].PctChange.Valid)
	assert.InDelta(t, 0.5, got[1].PctChange.Float64, 1e-9)

	assert.Equal(t, Some(150), got[2].PriorNumerator)
	assert.Equal(t, Some(10), got[2].PriorDenominator)
	require.True(t, got[2].PctChange.Valid)
	assert.InDelta(t, -0.2, got[2].PctChange.Float64, 1e-9)
}

func TestCompare_UndefinedChanges(t *testing.T) {
	tests := []struct {
		name   string
		series []PeriodMeasure
	}{
		{
			name: "prior ratio is zero",
			series: []PeriodMeasure{
				{Period: "2018", Numerator: 0, Denominator: 10},
				{Period: "2019", Numerator: 100, Denominator: 10},
			},
		},
		{
			name: "prior denominator is zero",
			series: []PeriodMeasure{
				{Period: "2018", Numerator: 100, Denominator: 0},
				{Period: "2019", Numerator: 100, Denominator: 10},
			},
		},
		{
			name: "current denominator is zero",
			series: []PeriodMeasure{
				{Period: "2018", Numerator: 100, Denominator: 10},
				{Period: "2019", Numerator: 100, Denominator: 0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compare(tt.series)
			require.Len(t, got, 2)
			assert.False(t, got[1].PctChange.Valid)
		})
	}
}

func TestCompare_Empty(t *testing.T) {
	assert.Empty(t, Compare(nil))
	assert.Empty(t, CompareValues(nil))
}

func TestCompareValues(t *testing.T) {
	got := CompareValues([]PeriodValue{
		{Period: "2017", Value: 0},
		{Period: "2018", Value: 200},
		{Period: "2019", Value: 250},
	})
	require.Len(t, got, 3)
	assert.False(t, got[0].Prior.Valid)
	assert.False(t, got[0].PctChange.Valid)
	assert.False(t, got[1].PctChange.Valid, "change from zero is undefined")
	require.True(t, got[2].PctChange.Valid)
	assert.InDelta(t, 0.25, got[2].PctChange.Float64, 1e-9)
}

func TestPctChange(t *testing.T) {
	assert.False(t, PctChange(Null, Some(1)).Valid)
	assert.False(t, PctChange(Some(1), Null).Valid)
	assert.False(t, PctChange(Some(1), Some(0)).Valid)
	assert.Equal(t, Some(1), PctChange(Some(2), Some(1)))
}

func TestSeriesFromAggregates(t *testing.T) {
	records := []AggregateRecord{
		{Dimensions: map[string]string{"year": "2019"}, NumeratorSum: 3, DenominatorSum: 1},
		{Dimensions: map[string]string{"year": "2018"}, NumeratorSum: 2, DenominatorSum: 1},
	}
	got := SeriesFromAggregates(records, "year")
	assert.Equal(t, []PeriodMeasure{
		{Period: "2018", Numerator: 2, Denominator: 1},
		{Period: "2019", Numerator: 3, Denominator: 1},
	}, got)
	assert.Equal(t, "2019", records[0].Dimension("year"), "input order untouched")
}
