package google

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"pmpm/internal/core"
	"pmpm/internal/dataset"
)

func TestParseValues(t *testing.T) {
	values := [][]interface{}{
		{"Year_Month", "Service_Category_1", "Service_Category_2", "Paid_Amount_Sum", "Member_Month_Count"},
		{"2019-01", "inpatient", "acute", 100.0, 10.0},
		{"2019-02", "inpatient", "acute", 200.0, 20.0},
		{"2019-01", "inpatient", "snf", 50.0},
	}

	ds, err := parseValues(dataset.PMPMByServiceCategory1And2, values, dataset.DefaultRules)
	require.NoError(t, err)
	assert.Equal(t, dataset.PMPMByServiceCategory1And2, ds.Name)
	require.Len(t, ds.Rows, 3)
	assert.Nil(t, ds.Rows[2]["member_month_count"])

	got, err := core.Aggregate(ds.Rows, []string{"service_category_2"}, core.PMPM)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, core.Some(10), got[0].Ratio)
	assert.False(t, got[1].Ratio.Valid)
}

func TestParseValues_Empty(t *testing.T) {
	ds, err := parseValues("x", nil, dataset.DefaultRules)
	require.NoError(t, err)
	assert.Empty(t, ds.Rows)
}

func TestToStrings(t *testing.T) {
	assert.Equal(t, []string{"a", "1.5", "", "2"}, toStrings([]interface{}{" a ", 1.5, nil, 2}))
}

func TestIsMissingSheet(t *testing.T) {
	assert.True(t, isMissingSheet(&googleapi.Error{Code: http.StatusNotFound}))
	assert.True(t, isMissingSheet(fmt.Errorf("wrap: %w", &googleapi.Error{Code: http.StatusBadRequest, Message: "Unable to parse range: nope"})))
	assert.False(t, isMissingSheet(&googleapi.Error{Code: http.StatusForbidden}))
	assert.False(t, isMissingSheet(fmt.Errorf("boom")))
}

func TestNew_Validation(t *testing.T) {
	ctx := context.Background()
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(ctx, Config{}, dataset.DefaultRules)
	assert.ErrorContains(t, err, "missing spreadsheet id")

	_, err = New(ctx, Config{SpreadsheetID: "id"}, dataset.DefaultRules)
	assert.ErrorContains(t, err, "missing service account credentials")

	_, err = New(ctx, Config{SpreadsheetID: "id", ServiceAccountFile: filepath.Join(t.TempDir(), "nope.json")}, dataset.DefaultRules)
	assert.ErrorContains(t, err, "read service account file")
}

func TestCredentials_Precedence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sa.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"from":"file"}`), 0o600))

	b, err := credentials(ctx, Config{ServiceAccountJSON: `{"from":"inline"}`, ServiceAccountFile: path})
	require.NoError(t, err)
	assert.JSONEq(t, `{"from":"inline"}`, string(b))

	b, err = credentials(ctx, Config{ServiceAccountFile: path})
	require.NoError(t, err)
	assert.JSONEq(t, `{"from":"file"}`, string(b))

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", path)
	b, err = credentials(ctx, Config{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"from":"file"}`, string(b))
}
