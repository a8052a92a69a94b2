package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pmpm/internal/amqp"
	"pmpm/internal/core"
	"pmpm/internal/dataset"
	applog "pmpm/internal/log"
	"pmpm/internal/panel"
)

// SnapshotSource is a dataset reader whose cached snapshots can be dropped.
type SnapshotSource interface {
	dataset.Reader
	Invalidate(name string)
	Purge()
}

// FilterError reports a filter the panel does not accept.
type FilterError struct {
	Panel string
	Field string
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("panel %s cannot be filtered by %s", e.Panel, e.Field)
}

// PeriodDomain lists the selectable periods.
type PeriodDomain struct {
	YearMonths []string `json:"year_months"`
	Years      []string `json:"years"`
}

// Headline holds the display strings of the summary totals.
type Headline struct {
	MedicalPaid  string `json:"medical_paid"`
	PharmacyPaid string `json:"pharmacy_paid"`
	MemberMonths string `json:"member_months"`
	AveragePMPM  string `json:"average_pmpm"`
}

// SummaryView is the financial summary of a time window.
type SummaryView struct {
	Range       core.TimeRange          `json:"range"`
	Totals      core.FinancialSummary   `json:"totals"`
	Headline    Headline                `json:"headline"`
	SpendChange []core.FamilyComparison `json:"spend_change"`
	Change      core.SummaryChange      `json:"change"`
}

// PanelRow is one regrouped record of a panel.
type PanelRow struct {
	Dimensions  map[string]string `json:"dimensions"`
	Numerator   float64           `json:"numerator"`
	Denominator float64           `json:"denominator"`
	Ratio       core.NullFloat    `json:"ratio"`
	Display     string            `json:"display"`
}

// PanelView is a rendered drill-down.
type PanelView struct {
	Panel   string            `json:"panel"`
	Title   string            `json:"title"`
	Dataset string            `json:"dataset"`
	Format  string            `json:"format"`
	Range   core.TimeRange    `json:"range"`
	Filters map[string]string `json:"filters,omitempty"`
	Rows    []PanelRow        `json:"rows"`
}

// TrendSeries is the period-over-period series of one category.
type TrendSeries struct {
	Dimensions map[string]string       `json:"dimensions"`
	Points     []core.ComparisonRecord `json:"points"`
}

// TrendView is a panel broken down by period. Points compare ratios for pmpm
// panels and numerators otherwise.
type TrendView struct {
	Panel       string         `json:"panel"`
	Title       string         `json:"title"`
	Format      string         `json:"format"`
	PeriodField string         `json:"period_field"`
	Range       core.TimeRange `json:"range"`
	Series      []TrendSeries  `json:"series"`
}

// BreakdownConfig names the extract split into spend components that share
// one member-month denominator.
type BreakdownConfig struct {
	Dataset     string
	PeriodField string
	Denominator string
	Components  []core.Component
}

// DefaultBreakdown splits the monthly PMPM trend extract by service setting.
var DefaultBreakdown = BreakdownConfig{
	Dataset:     dataset.PMPMData,
	PeriodField: core.FieldYearMonth,
	Denominator: "member_months",
	Components: []core.Component{
		{Label: "Inpatient", Field: "inpatient_paid"},
		{Label: "Outpatient", Field: "outpatient_paid"},
		{Label: "Office visit", Field: "office_visit_paid"},
		{Label: "Ancillary", Field: "ancillary_paid"},
		{Label: "Other", Field: "other_paid"},
	},
}

// BreakdownRow is one spend component of a window.
type BreakdownRow struct {
	Category     string         `json:"category"`
	Paid         float64        `json:"paid"`
	MemberMonths float64        `json:"member_months"`
	PMPM         core.NullFloat `json:"pmpm"`
	Share        core.NullFloat `json:"share"`
	Display      string         `json:"display"`
}

// BreakdownView is the PMPM of a window split by component.
type BreakdownView struct {
	Dataset   string         `json:"dataset"`
	Range     core.TimeRange `json:"range"`
	TotalPMPM core.NullFloat `json:"total_pmpm"`
	Display   string         `json:"display"`
	Rows      []BreakdownRow `json:"rows"`
}

// DashboardService answers dashboard queries from extract snapshots.
type DashboardService struct {
	source    SnapshotSource
	panels    *panel.Registry
	summary   core.SummaryFields
	breakdown BreakdownConfig
	logger    *applog.Logger
	events    *applog.StructuredLogger
}

// NewDashboardService wires a snapshot source to a panel registry.
func NewDashboardService(source SnapshotSource, panels *panel.Registry, logger *applog.Logger) *DashboardService {
	if panels == nil {
		panels = panel.DefaultRegistry()
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentDashboard)
	return &DashboardService{
		source:    source,
		panels:    panels,
		summary:   core.DefaultSummaryFields,
		breakdown: DefaultBreakdown,
		logger:    logger,
		events:    applog.NewStructuredLogger(logger),
	}
}

// Panels returns the registered panel definitions.
func (s *DashboardService) Panels() []panel.Definition {
	return s.panels.List()
}

// Periods returns the year-month domain and its years.
func (s *DashboardService) Periods(ctx context.Context) (PeriodDomain, error) {
	ds, err := s.source.Snapshot(ctx, dataset.YearMonths)
	if err != nil {
		return PeriodDomain{}, fmt.Errorf("read %s: %w", dataset.YearMonths, err)
	}
	months, err := ds.Periods(core.FieldYearMonth)
	if err != nil {
		return PeriodDomain{}, err
	}
	return PeriodDomain{YearMonths: months, Years: core.Years(months)}, nil
}

// domain returns the period domain a range is cut from, or nil to let the
// rows define it when no year_months extract exists.
func (s *DashboardService) domain(ctx context.Context, r core.TimeRange) ([]string, error) {
	if r.IsZero() {
		return nil, nil
	}
	p, err := s.Periods(ctx)
	if errors.Is(err, dataset.ErrDatasetNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if r.YearGranular() {
		return p.Years, nil
	}
	return p.YearMonths, nil
}

// Summary computes totals and period-over-period change of the summary
// extract. The summary is yearly, so month endpoints are widened to their year.
func (s *DashboardService) Summary(ctx context.Context, r core.TimeRange) (*SummaryView, error) {
	if !r.IsZero() {
		r = core.TimeRange{Start: core.TruncateToYear(r.Start), End: core.TruncateToYear(r.End)}
	}

	ds, err := s.source.Snapshot(ctx, dataset.SummaryStats)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dataset.SummaryStats, err)
	}
	domain, err := s.domain(ctx, r)
	if err != nil {
		return nil, err
	}

	rows, err := core.FilterRows(ds.Rows, core.DrilldownQuery{
		PeriodField: s.summary.Period,
		Range:       r,
		Domain:      domain,
	})
	if err != nil {
		return nil, err
	}

	totals, err := core.Summarize(rows, s.summary)
	if err != nil {
		return nil, err
	}
	spend, err := core.SpendChange(rows, s.summary)
	if err != nil {
		return nil, err
	}
	change, err := core.Change(rows, s.summary)
	if err != nil {
		return nil, err
	}

	return &SummaryView{
		Range:  r,
		Totals: totals,
		Headline: Headline{
			MedicalPaid:  "$" + core.HumanFormat(totals.MedicalPaid),
			PharmacyPaid: "$" + core.HumanFormat(totals.PharmacyPaid),
			MemberMonths: core.HumanFormat(totals.MemberMonths),
			AveragePMPM:  core.FormatCurrencyPMPM(totals.AveragePMPM),
		},
		SpendChange: spend,
		Change:      change,
	}, nil
}

func (s *DashboardService) query(ctx context.Context, def panel.Definition, r core.TimeRange, filters map[string]string) (core.DrilldownQuery, error) {
	for field := range filters {
		if !def.AllowsFilter(field) {
			return core.DrilldownQuery{}, &FilterError{Panel: def.Name, Field: field}
		}
	}
	domain, err := s.domain(ctx, r)
	if err != nil {
		return core.DrilldownQuery{}, err
	}
	return core.DrilldownQuery{
		PeriodField: def.Period(),
		Range:       r,
		Domain:      domain,
		Filters:     filters,
		RegroupBy:   def.RegroupBy,
		Measure:     def.Measure(),
	}, nil
}

// Panel renders the drill-down called name over r, narrowed by filters.
func (s *DashboardService) Panel(ctx context.Context, name string, r core.TimeRange, filters map[string]string) (*PanelView, error) {
	start := time.Now()

	def, err := s.panels.Get(name)
	if err != nil {
		return nil, err
	}
	q, err := s.query(ctx, def, r, filters)
	if err != nil {
		return nil, err
	}
	ds, err := s.source.Snapshot(ctx, def.Dataset)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", def.Dataset, err)
	}

	records, err := core.Drilldown(ds.Rows, q)
	if err != nil {
		return nil, err
	}
	records = def.Order(records)

	rows := make([]PanelRow, len(records))
	for i, rec := range records {
		rows[i] = PanelRow{
			Dimensions:  rec.Dimensions,
			Numerator:   rec.NumeratorSum,
			Denominator: rec.DenominatorSum,
			Ratio:       rec.Ratio,
			Display:     def.Display(rec),
		}
	}

	s.events.LogRender(ctx, def.Name, def.Dataset, r.Start, r.End, len(rows), time.Since(start))

	return &PanelView{
		Panel:   def.Name,
		Title:   def.Title,
		Dataset: def.Dataset,
		Format:  format(def),
		Range:   r,
		Filters: filters,
		Rows:    rows,
	}, nil
}

// Trend breaks the drill-down called name down by period and compares each
// category's periods in ascending order.
func (s *DashboardService) Trend(ctx context.Context, name string, r core.TimeRange, filters map[string]string) (*TrendView, error) {
	def, err := s.panels.Get(name)
	if err != nil {
		return nil, err
	}
	q, err := s.query(ctx, def, r, filters)
	if err != nil {
		return nil, err
	}
	ds, err := s.source.Snapshot(ctx, def.Dataset)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", def.Dataset, err)
	}

	// Top-N panels keep only the series of their leading categories, ranked
	// over the whole window.
	var ranked []string
	if def.TopN > 0 && len(def.RegroupBy) > 0 {
		top, err := core.Drilldown(ds.Rows, q)
		if err != nil {
			return nil, err
		}
		for _, rec := range def.Order(top) {
			ranked = append(ranked, seriesKey(rec.Dimensions, def.RegroupBy))
		}
	}

	period := def.Period()
	q.RegroupBy = append([]string{period}, def.RegroupBy...)
	records, err := core.Drilldown(ds.Rows, q)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		dims    map[string]string
		records []core.AggregateRecord
	}
	var order []string
	buckets := make(map[string]*bucket)
	for _, rec := range records {
		key := seriesKey(rec.Dimensions, def.RegroupBy)
		dims := make(map[string]string, len(def.RegroupBy))
		for _, f := range def.RegroupBy {
			dims[f] = rec.Dimensions[f]
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{dims: dims}
			buckets[key] = b
			order = append(order, key)
		}
		b.records = append(b.records, rec)
	}

	if ranked != nil {
		order = order[:0]
		for _, key := range ranked {
			if _, ok := buckets[key]; ok {
				order = append(order, key)
			}
		}
	}

	series := make([]TrendSeries, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		points := core.Compare(core.SeriesFromAggregates(b.records, period))
		if !def.RatioDisplayed() {
			for i := range points {
				points[i].PctChange = core.PctChange(core.Some(points[i].Numerator), points[i].PriorNumerator)
			}
		}
		series = append(series, TrendSeries{Dimensions: b.dims, Points: points})
	}

	return &TrendView{
		Panel:       def.Name,
		Title:       def.Title,
		Format:      format(def),
		PeriodField: period,
		Range:       r,
		Series:      series,
	}, nil
}

func seriesKey(dims map[string]string, fields []string) string {
	key := ""
	for _, f := range fields {
		key += dims[f] + "\x1f"
	}
	return key
}

func format(def panel.Definition) string {
	if def.Format == "" {
		return panel.FormatPMPM
	}
	return def.Format
}

// Breakdown splits the PMPM of r into its spend components. Each component's
// PMPM is re-derived from its summed spend over the window's member months.
func (s *DashboardService) Breakdown(ctx context.Context, r core.TimeRange) (*BreakdownView, error) {
	cfg := s.breakdown
	ds, err := s.source.Snapshot(ctx, cfg.Dataset)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", cfg.Dataset, err)
	}
	domain, err := s.domain(ctx, r)
	if err != nil {
		return nil, err
	}
	rows, err := core.FilterRows(ds.Rows, core.DrilldownQuery{
		PeriodField: cfg.PeriodField,
		Range:       r,
		Domain:      domain,
	})
	if err != nil {
		return nil, err
	}

	records, err := core.Breakdown(rows, "category", cfg.Components, cfg.Denominator)
	if err != nil {
		return nil, err
	}
	shares := core.Shares(records)

	view := &BreakdownView{Dataset: cfg.Dataset, Range: r, Rows: make([]BreakdownRow, len(records))}
	var paid, members float64
	for i, rec := range records {
		paid += rec.NumeratorSum
		members = rec.DenominatorSum
		view.Rows[i] = BreakdownRow{
			Category:     rec.Dimension("category"),
			Paid:         rec.NumeratorSum,
			MemberMonths: rec.DenominatorSum,
			PMPM:         rec.Ratio,
			Share:        shares[i],
			Display:      core.FormatCurrencyPMPM(rec.Ratio),
		}
	}
	view.TotalPMPM = core.SafeDivide(paid, members)
	view.Display = core.FormatCurrencyPMPM(view.TotalPMPM)
	return view, nil
}

// Invalidate drops the cached snapshot of name.
func (s *DashboardService) Invalidate(name string) {
	s.source.Invalidate(name)
	s.logger.Info("Snapshot invalidated", applog.FieldDataset, name)
}

// Purge drops every cached snapshot.
func (s *DashboardService) Purge() {
	s.source.Purge()
	s.logger.Info("Snapshot cache purged")
}

// HandleRefresh is the AMQP handler for refresh notifications.
func (s *DashboardService) HandleRefresh(ctx context.Context, msg *amqp.RefreshMessage) error {
	s.source.Invalidate(msg.Dataset)
	s.logger.InfoContext(ctx, "Snapshot refreshed",
		applog.FieldDataset, msg.Dataset,
		applog.FieldVersion, msg.Version,
		applog.FieldRows, msg.Rows)
	return nil
}
