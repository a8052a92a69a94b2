// Package panel describes the drill-down views of the dashboard.
package panel

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"pmpm/internal/core"
	"pmpm/internal/dataset"
)

// Sort orders for panel rows.
const (
	SortRatioDesc     = "ratio_desc"
	SortRatioAsc      = "ratio_asc"
	SortNumeratorDesc = "numerator_desc"
	SortDimension     = "dimension"
)

// Display formats. A pmpm panel shows its ratio, count and currency panels
// show their numerator.
const (
	FormatPMPM     = "pmpm"
	FormatCount    = "count"
	FormatCurrency = "currency"
)

var ErrPanelNotFound = errors.New("panel not found")

// Definition is one drill-down: which extract it reads, how rows are
// regrouped, and which dimensions callers may filter on.
type Definition struct {
	Name        string   `yaml:"name" json:"name" validate:"required,identifier"`
	Title       string   `yaml:"title" json:"title" validate:"required"`
	Dataset     string   `yaml:"dataset" json:"dataset" validate:"required,identifier"`
	PeriodField string   `yaml:"period_field" json:"period_field" validate:"omitempty,identifier"`
	RegroupBy   []string `yaml:"regroup_by" json:"regroup_by" validate:"dive,identifier"`
	Numerator   string   `yaml:"numerator" json:"numerator" validate:"omitempty,identifier"`
	Denominator string   `yaml:"denominator" json:"denominator" validate:"omitempty,identifier"`
	Filters     []string `yaml:"filters" json:"filters" validate:"dive,identifier"`
	TopN        int      `yaml:"top_n" json:"top_n" validate:"gte=0"`
	Sort        string   `yaml:"sort" json:"sort" validate:"omitempty,oneof=ratio_desc ratio_asc numerator_desc dimension"`
	Format      string   `yaml:"format" json:"format" validate:"omitempty,oneof=pmpm count currency"`
}

// Period returns the period column, year_month unless set.
func (d Definition) Period() string {
	if d.PeriodField == "" {
		return core.FieldYearMonth
	}
	return d.PeriodField
}

// Measure returns the ratio the panel aggregates, PMPM unless overridden.
func (d Definition) Measure() core.Measure {
	m := core.PMPM
	if d.Numerator != "" {
		m.Numerator = d.Numerator
	}
	if d.Denominator != "" {
		m.Denominator = d.Denominator
	}
	return m
}

// RatioDisplayed reports whether the panel is read by its ratio rather than
// its numerator.
func (d Definition) RatioDisplayed() bool {
	return d.Format == "" || d.Format == FormatPMPM
}

// Display renders the headline value of a record in the panel's format.
func (d Definition) Display(rec core.AggregateRecord) string {
	switch d.Format {
	case FormatCount:
		return core.HumanFormat(rec.NumeratorSum)
	case FormatCurrency:
		return "$" + core.HumanFormat(rec.NumeratorSum)
	default:
		return core.FormatCurrencyPMPM(rec.Ratio)
	}
}

// AllowsFilter reports whether callers may filter on field.
func (d Definition) AllowsFilter(field string) bool {
	for _, f := range d.Filters {
		if f == field {
			return true
		}
	}
	return false
}

// Order sorts records in place and applies TopN.
func (d Definition) Order(records []core.AggregateRecord) []core.AggregateRecord {
	switch d.Sort {
	case SortRatioAsc:
		core.SortByRatio(records, false)
	case SortNumeratorDesc:
		core.SortByNumerator(records, true)
	case SortDimension:
		core.SortByDimension(records, d.RegroupBy...)
	case SortRatioDesc, "":
		core.SortByRatio(records, true)
	}
	return core.Top(records, d.TopN)
}

// Defaults returns the drill-downs of the claims dashboard.
func Defaults() []Definition {
	return []Definition{
		{
			Name:      "service_category_1",
			Title:     "Spend by service category",
			Dataset:   dataset.PMPMByServiceCategory1,
			RegroupBy: []string{"service_category_1"},
		},
		{
			Name:      "service_category_2",
			Title:     "Spend by service subcategory",
			Dataset:   dataset.PMPMByServiceCategory1And2,
			RegroupBy: []string{"service_category_2"},
			Filters:   []string{"service_category_1"},
		},
		{
			Name:      "condition_family",
			Title:     "Top condition families",
			Dataset:   dataset.PMPMByServiceCategoryCondition,
			RegroupBy: []string{"condition_family"},
			Filters:   []string{"service_category_1", core.FieldYearMonth},
			TopN:      5,
		},
		{
			Name:      "provider",
			Title:     "Top providers",
			Dataset:   dataset.PMPMByServiceCategoryProvider,
			RegroupBy: []string{"provider_name"},
			Filters:   []string{"service_category_1", core.FieldYearMonth},
			TopN:      10,
		},
		{
			Name:      "claim_type",
			Title:     "Spend by claim type",
			Dataset:   dataset.PMPMByServiceCategoryClaimType,
			RegroupBy: []string{"claim_type"},
			Filters:   []string{"service_category_1"},
		},
		{
			Name:      "chronic_condition",
			Title:     "Spend by chronic condition",
			Dataset:   dataset.PMPMByChronicCondition,
			RegroupBy: []string{"condition_family"},
			Numerator: "medical_paid_amount_sum",
		},
		{
			Name:      "claim_type_trend",
			Title:     "PMPM by claim type",
			Dataset:   dataset.PMPMByClaimType,
			RegroupBy: []string{"claim_type"},
			Sort:      SortDimension,
		},
		{
			Name:        "pharmacy_spend",
			Title:       "Pharmacy spend",
			Dataset:     dataset.PMPMData,
			Numerator:   "pharmacy_spend",
			Denominator: "member_months",
			Format:      FormatCurrency,
		},
		{
			Name:        "condition_diagnoses",
			Title:       "Top condition diagnoses",
			Dataset:     dataset.ConditionData,
			PeriodField: "diagnosis_year_month",
			RegroupBy:   []string{"condition"},
			Numerator:   "condition_cases",
			TopN:        5,
			Sort:        SortNumeratorDesc,
			Format:      FormatCount,
		},
	}
}

var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return identifierPattern.MatchString(fl.Field().String())
	})
	return v
}

// Registry holds panel definitions by name.
type Registry struct {
	panels map[string]Definition
	order  []string
}

// NewRegistry validates defs and indexes them by name. Names must be unique.
func NewRegistry(defs ...Definition) (*Registry, error) {
	v := newValidator()
	r := &Registry{panels: make(map[string]Definition, len(defs))}
	for i, d := range defs {
		if err := v.Struct(d); err != nil {
			return nil, fmt.Errorf("panel %d (%q): %w", i, d.Name, err)
		}
		if _, dup := r.panels[d.Name]; dup {
			return nil, fmt.Errorf("duplicate panel %q", d.Name)
		}
		r.panels[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	return r, nil
}

// DefaultRegistry returns a registry over Defaults.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Defaults()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns the definition called name.
func (r *Registry) Get(name string) (Definition, error) {
	d, ok := r.panels[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrPanelNotFound, name)
	}
	return d, nil
}

// List returns definitions in registration order.
func (r *Registry) List() []Definition {
	out := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.panels[name])
	}
	return out
}

// Datasets returns the distinct extracts the panels read, sorted.
func (r *Registry) Datasets() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, d := range r.panels {
		if _, ok := seen[d.Dataset]; ok {
			continue
		}
		seen[d.Dataset] = struct{}{}
		out = append(out, d.Dataset)
	}
	sort.Strings(out)
	return out
}

type file struct {
	Panels []Definition `yaml:"panels"`
}

// Parse decodes a YAML panel file. Unknown keys are rejected.
func Parse(data []byte) (*Registry, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode panels: %w", err)
	}
	if len(f.Panels) == 0 {
		return nil, errors.New("panel file defines no panels")
	}
	return NewRegistry(f.Panels...)
}

// LoadFile reads and validates a YAML panel file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read panels file: %w", err)
	}
	return Parse(data)
}
