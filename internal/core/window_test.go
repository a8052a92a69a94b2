package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectRange(t *testing.T) {
	years := []string{"2016", "2017", "2018", "2019"}

	tests := []struct {
		name       string
		domain     []string
		start, end string
		want       []string
	}{
		{"inner range", years, "2017", "2019", []string{"2017", "2018", "2019"}},
		{"full range", years, "2016", "2019", years},
		{"single endpoint", years, "2018", "2018", []string{"2018"}},
		{"inverted", years, "2019", "2017", []string{}},
		{"single period domain ignores endpoints", []string{"2020"}, "1999", "2030", []string{"2020"}},
		{"empty domain", nil, "2017", "2018", []string{}},
		{"year months", []string{"2018-11", "2018-12", "2019-01"}, "2018-12", "2019-01", []string{"2018-12", "2019-01"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectRange(tt.domain, tt.start, tt.end)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectRange_EndpointNotInDomain(t *testing.T) {
	years := []string{"2016", "2017", "2018", "2019"}

	_, err := SelectRange(years, "2015", "2018")
	require.ErrorIs(t, err, ErrEndpointNotInDomain)
	var de *DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "2015", de.Endpoint)

	_, err = SelectRange(years, "2016", "2020")
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "2020", de.Endpoint)
}

func TestSelectRange_DoesNotAliasInput(t *testing.T) {
	years := []string{"2016", "2017", "2018"}
	got, err := SelectRange(years, "2016", "2017")
	require.NoError(t, err)
	got[0] = "changed"
	assert.Equal(t, "2016", years[0])
}

func TestPeriodLabels(t *testing.T) {
	assert.True(t, IsYear("2019"))
	assert.False(t, IsYear("19"))
	assert.False(t, IsYear("20x9"))
	assert.True(t, IsYearMonth("2019-04"))
	assert.False(t, IsYearMonth("2019-4"))
	assert.False(t, IsYearMonth("2019"))

	assert.Equal(t, "2019", TruncateToYear("2019-04"))
	assert.Equal(t, "201", TruncateToYear("201"))

	assert.Equal(t, []string{"2018", "2019"}, Years([]string{"2019-02", "2018-12", "2019-01"}))

	assert.True(t, TimeRange{}.IsZero())
	assert.True(t, TimeRange{Start: "2018", End: "2019"}.YearGranular())
	assert.False(t, TimeRange{Start: "2018-01", End: "2019-01"}.YearGranular())
}
