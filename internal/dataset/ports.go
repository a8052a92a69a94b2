// Package dataset defines how extract snapshots are retrieved and prepared
// for the aggregation engine.
package dataset

import (
	"context"
	"errors"

	"pmpm/internal/core"
)

// Extract names published by the claims warehouse.
const (
	YearMonths                     = "year_months"
	SummaryStats                   = "summary_stats"
	PMPMByClaimType                = "pmpm_by_claim_type"
	PMPMByServiceCategory1         = "pmpm_by_service_category_1"
	PMPMByServiceCategory1And2     = "pmpm_by_service_category_1_2"
	PMPMByServiceCategoryProvider  = "pmpm_by_service_category_1_provider"
	PMPMByServiceCategoryCondition = "pmpm_by_service_category_1_condition"
	PMPMByServiceCategoryClaimType = "pmpm_by_service_category_1_claim_type"
	PMPMByChronicCondition         = "pmpm_by_chronic_condition"
	PMPMData                       = "pmpm_data"
	ConditionData                  = "condition_data"
)

var ErrDatasetNotFound = errors.New("dataset not found")

// Reader returns immutable snapshots of named extracts.
type Reader interface {
	Snapshot(ctx context.Context, name string) (core.Dataset, error)
	Datasets(ctx context.Context) ([]string, error)
}

// Writer replaces the stored snapshot of an extract and returns its new version.
type Writer interface {
	ReplaceDataset(ctx context.Context, ds core.Dataset) (int64, error)
}
