package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmpm/internal/services"
)

var extracts = map[string]string{
	"year_months.csv": "year_month\n2023-01\n2023-02\n2024-01\n",
	"summary_stats.csv": "year,current_period_medical_paid,current_period_pharmacy_paid,current_period_member_months\n" +
		"2023,1000,200,10\n" +
		"2024,1500,300,12\n",
	"pmpm_by_claim_type.csv": "year_month,claim_type,paid_amount_sum,member_month_count\n" +
		"2023-01,professional,500,5\n" +
		"2023-02,professional,700,5\n" +
		"2024-01,institutional,900,6\n",
	"pmpm_data.csv": "year_month,inpatient_paid,outpatient_paid,office_visit_paid,ancillary_paid,other_paid,pharmacy_spend,member_months\n" +
		"2023-01,100,50,0,0,0,40,10\n" +
		"2023-02,300,0,0,0,50,60,30\n",
	"condition_data.csv": "diagnosis_year_month,condition,condition_cases,diagnosis_duration\n" +
		"2023-01,asthma,4,10.5\n" +
		"2023-02,diabetes,12,3\n" +
		"2023-01,copd,1,2\n",
}

func setupExtracts(t *testing.T) (dataDir, dbPath string) {
	t.Helper()
	dataDir = t.TempDir()
	for name, body := range extracts {
		require.NoError(t, os.WriteFile(filepath.Join(dataDir, name), []byte(body), 0o644))
	}
	for _, k := range []string{"DATA_BACKEND", "DATA_DIR", "SQLITE_DB_PATH", "AMQP_URL", "PANELS_FILE", "GOOGLE_SPREADSHEET_ID"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("LOG_FORMAT", "text")
	return dataDir, filepath.Join(t.TempDir(), "pmpm.db")
}

func run(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func TestPeriods(t *testing.T) {
	dir, db := setupExtracts(t)

	out, errOut, code := run(t, "--data-dir", dir, "--db", db, "periods")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Years:       2023 2024")
	assert.Contains(t, out, "2023-01 2023-02 2024-01")
}

func TestSummary(t *testing.T) {
	dir, db := setupExtracts(t)

	out, errOut, code := run(t, "--data-dir", dir, "--db", db, "summary", "--from", "2023", "--to", "2024")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Summary, 2023 to 2024")
	assert.Contains(t, out, "$2.5K")
	assert.Contains(t, out, "$114")
}

func TestPanel_JSON(t *testing.T) {
	dir, db := setupExtracts(t)

	out, errOut, code := run(t, "--data-dir", dir, "--db", db, "-o", "json",
		"panel", "claim_type_trend", "--from", "2023-01", "--to", "2023-02")
	require.Equal(t, 0, code, errOut)

	var view services.PanelView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	require.Len(t, view.Rows, 1)
	assert.Equal(t, "professional", view.Rows[0].Dimensions["claim_type"])
	assert.Equal(t, 1200.0, view.Rows[0].Numerator)
	assert.Equal(t, "$120", view.Rows[0].Display)
}

func TestPanel_Text(t *testing.T) {
	dir, db := setupExtracts(t)

	out, errOut, code := run(t, "--data-dir", dir, "--db", db, "panel", "claim_type_trend")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "CLAIM_TYPE")
	assert.Contains(t, out, "institutional")
	assert.Contains(t, out, "$150")
}

func TestTrend(t *testing.T) {
	dir, db := setupExtracts(t)

	out, errOut, code := run(t, "--data-dir", dir, "--db", db, "trend", "claim_type_trend")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "PMPM by claim type by year_month")
	assert.Contains(t, out, "2023-02")
	assert.Contains(t, out, "40.0%")
}

func TestBreakdown(t *testing.T) {
	dir, db := setupExtracts(t)

	out, errOut, code := run(t, "--data-dir", dir, "--db", db, "breakdown", "--from", "2023-01", "--to", "2023-02")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "PMPM breakdown, 2023-01 to 2023-02")
	assert.Contains(t, out, "Inpatient")
	assert.Contains(t, out, "80.0%")
	assert.Contains(t, out, "$12.5")
}

func TestPanel_CountFormat(t *testing.T) {
	dir, db := setupExtracts(t)

	out, errOut, code := run(t, "--data-dir", dir, "--db", db, "panel", "condition_diagnoses")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "CONDITION")
	assert.Contains(t, out, "TOTAL")
	assert.NotContains(t, out, "MEMBER MONTHS")
	assert.Regexp(t, `diabetes\s+12\n`, out)
}

func TestTrend_CurrencyFormat(t *testing.T) {
	dir, db := setupExtracts(t)

	out, errOut, code := run(t, "--data-dir", dir, "--db", db, "trend", "pharmacy_spend")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "$60")
	assert.Contains(t, out, "50.0%")
}

func TestErrors(t *testing.T) {
	dir, db := setupExtracts(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown panel", []string{"panel", "nope"}, "panel not found"},
		{"range outside domain", []string{"panel", "claim_type_trend", "--from", "2019-01", "--to", "2023-01"}, "endpoint not in domain"},
		{"half range", []string{"summary", "--from", "2023"}, "--from and --to must be given together"},
		{"bad filter", []string{"panel", "claim_type", "-f", "service_category_1"}, "want dimension=value"},
		{"filter not allowed", []string{"panel", "claim_type_trend", "-f", "claim_type=x"}, "cannot be filtered by claim_type"},
		{"bad output", []string{"-o", "xml", "periods"}, "invalid output format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--data-dir", dir, "--db", db}, tt.args...)
			_, errOut, code := run(t, args...)
			assert.Equal(t, 1, code)
			assert.Contains(t, errOut, tt.want)
		})
	}
}

func TestLoadThenQuerySQLite(t *testing.T) {
	dir, db := setupExtracts(t)

	out, errOut, code := run(t, "--data-dir", dir, "--db", db, "load")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "pmpm_by_claim_type")
	assert.Contains(t, out, "summary_stats")

	out, errOut, code = run(t, "--backend", "sqlite", "--db", db, "periods")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Years:       2023 2024")
}

func TestLoad_PublishNeedsAMQP(t *testing.T) {
	dir, db := setupExtracts(t)

	_, errOut, code := run(t, "--data-dir", dir, "--db", db, "load", "--publish")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "--publish needs AMQP_URL")
}
