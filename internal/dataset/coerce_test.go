package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmpm/internal/core"
)

func TestCoerce(t *testing.T) {
	header := []string{"YEAR_MONTH", " Service_Category_1 ", "PAID_AMOUNT_SUM", "member_month_count", "paid_amount_pmpm"}
	records := [][]string{
		{"2019-01", "inpatient", "1200.50", "100", "12.005"},
		{"2019-02", "outpatient", "", "NULL"},
		{"", "", "", "", ""},
	}

	ds, err := Coerce("pmpm_by_service_category_1", header, records, DefaultRules)
	require.NoError(t, err)

	assert.Equal(t, "pmpm_by_service_category_1", ds.Name)
	assert.Equal(t, []string{"year_month", "service_category_1", "paid_amount_sum", "member_month_count", "paid_amount_pmpm"}, ds.Columns)
	require.Len(t, ds.Rows, 2, "blank records are skipped")

	first := ds.Rows[0]
	assert.Equal(t, "2019-01", first["year_month"])
	assert.Equal(t, "inpatient", first["service_category_1"])
	assert.Equal(t, 1200.5, first["paid_amount_sum"])
	assert.Equal(t, 100.0, first["member_month_count"])

	second := ds.Rows[1]
	assert.Nil(t, second["paid_amount_sum"])
	assert.Nil(t, second["member_month_count"])
	assert.Nil(t, second["paid_amount_pmpm"], "short records pad numeric cells with nil")
}

func TestCoerce_FeedsAggregate(t *testing.T) {
	ds, err := Coerce("x", []string{"svc", "paid_amount_sum", "member_month_count"}, [][]string{
		{"A", "100", "10"},
		{"A", "", "10"},
	}, DefaultRules)
	require.NoError(t, err)

	got, err := core.Aggregate(ds.Rows, []string{"svc"}, core.PMPM)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, core.Some(5), got[0].Ratio)
}

func TestCoerce_Errors(t *testing.T) {
	tests := []struct {
		name    string
		header  []string
		records [][]string
		field   string
	}{
		{"unparsable amount", []string{"svc", "paid_amount_sum"}, [][]string{{"A", "1,200"}}, "paid_amount_sum"},
		{"infinite amount", []string{"svc", "paid_amount_sum"}, [][]string{{"A", "Inf"}}, "paid_amount_sum"},
		{"negative infinity", []string{"svc", "paid_amount_sum"}, [][]string{{"A", "-infinity"}}, "paid_amount_sum"},
		{"uppercase nan", []string{"svc", "member_month_count"}, [][]string{{"A", "NAN"}}, "member_month_count"},
		{"overflowing amount", []string{"svc", "paid_amount_sum"}, [][]string{{"A", "1e400"}}, "paid_amount_sum"},
		{"duplicate column", []string{"svc", "SVC"}, nil, "svc"},
		{"empty column name", []string{"svc", " "}, nil, "column 1"},
		{"too many cells", []string{"svc"}, [][]string{{"A", "B"}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Coerce("x", tt.header, tt.records, DefaultRules)
			var me *core.MalformedInputError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, tt.field, me.Field)
		})
	}
}

func TestCoercionRules(t *testing.T) {
	tests := map[string]bool{
		"paid_amount_sum":              true,
		"medical_paid_amount_sum":      true,
		"member_month_count":           true,
		"current_period_medical_paid":  true,
		"current_period_member_months": true,
		"pct_change_member_months":     true,
		"pharmacy_spend":               true,
		"year":                         false,
		"year_month":                   false,
		"claim_type":                   false,
		"provider_name":                false,
		"member_months":                true,
		"member_count":                 true,
		"condition_cases":              true,
		"inpatient_paid":               true,
		"country":                      false,
		"county":                       false,
		"account_name":                 false,
		"discounted_flag":              false,
		"diagnosis_year_month":         false,
		"spending_tier":                false,
		"condition":                    false,
	}
	for col, want := range tests {
		assert.Equal(t, want, DefaultRules.IsNumeric(col), col)
	}
}

func TestCoerce_KeepsTextColumnsThatResembleMeasures(t *testing.T) {
	ds, err := Coerce("x", []string{"country", "account_name", "paid_amount_sum", "member_month_count"}, [][]string{
		{"US", "acme", "100", "10"},
	}, DefaultRules)
	require.NoError(t, err)
	require.Len(t, ds.Rows, 1)
	assert.Equal(t, "US", ds.Rows[0]["country"])
	assert.Equal(t, "acme", ds.Rows[0]["account_name"])
	assert.Equal(t, 100.0, ds.Rows[0]["paid_amount_sum"])
}
