package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pmpm/internal/core"
	"pmpm/internal/panel"
)

// rangeFlags are the --from/--to pair shared by the query commands.
type rangeFlags struct {
	from, to string
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "first period, YYYY or YYYY-MM")
	cmd.Flags().StringVar(&f.to, "to", "", "last period, YYYY or YYYY-MM")
}

func (f *rangeFlags) timeRange() (core.TimeRange, error) {
	if (f.from == "") != (f.to == "") {
		return core.TimeRange{}, fmt.Errorf("--from and --to must be given together")
	}
	for _, p := range []string{f.from, f.to} {
		if p != "" && !core.IsYear(p) && !core.IsYearMonth(p) {
			return core.TimeRange{}, fmt.Errorf("invalid period %q: must be YYYY or YYYY-MM", p)
		}
	}
	return core.TimeRange{Start: f.from, End: f.to}, nil
}

// parseFilters reads repeated --filter dim=value flags.
func parseFilters(raw []string) (map[string]string, error) {
	filters := make(map[string]string, len(raw))
	for _, kv := range raw {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid filter %q: want dimension=value", kv)
		}
		if _, dup := filters[k]; dup {
			return nil, fmt.Errorf("filter %q given twice", k)
		}
		filters[k] = strings.TrimSpace(v)
	}
	return filters, nil
}

func newPeriodsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "periods",
		Short: "List the selectable years and year-months",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			domain, err := svc.Periods(cmd.Context())
			if err != nil {
				return err
			}
			if a.output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), domain)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Years:       %s\n", strings.Join(domain.Years, " "))
			fmt.Fprintf(out, "Year-months: %s\n", strings.Join(domain.YearMonths, " "))
			return nil
		},
	}
}

func newPanelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "panels",
		Short: "List the dashboard panels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defs := svc.Panels()
			if a.output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), defs)
			}
			t := newTable(cmd.OutOrStdout(), "NAME", "DATASET", "GROUP BY", "FILTERS", "TITLE")
			for _, d := range defs {
				t.row(d.Name, d.Dataset, strings.Join(d.RegroupBy, ","), strings.Join(d.Filters, ","), d.Title)
			}
			return t.flush()
		},
	}
}

func newSummaryCmd(a *app) *cobra.Command {
	var rf rangeFlags
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show spend, member months and average PMPM for a window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := rf.timeRange()
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			view, err := svc.Summary(cmd.Context(), r)
			if err != nil {
				return err
			}
			if a.output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), view)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Summary, %s\n\n", rangeLabel(view.Range))
			t := newTable(out, "MEASURE", "TOTAL")
			t.row("Medical paid", view.Headline.MedicalPaid)
			t.row("Pharmacy paid", view.Headline.PharmacyPaid)
			t.row("Member months", view.Headline.MemberMonths)
			t.row("Average PMPM", view.Headline.AveragePMPM)
			if err := t.flush(); err != nil {
				return err
			}

			fmt.Fprintln(out)
			t = newTable(out, "FAMILY", "PERIOD", "PMPM", "PRIOR", "CHANGE")
			for _, fam := range view.SpendChange {
				for _, rec := range fam.Records {
					t.row(fam.Family, rec.Period, pmpm(rec.Ratio), pmpm(rec.PriorRatio), pct(rec.PctChange))
				}
			}
			return t.flush()
		},
	}
	rf.register(cmd)
	return cmd
}

func newPanelCmd(a *app) *cobra.Command {
	var (
		rf      rangeFlags
		filters []string
	)
	cmd := &cobra.Command{
		Use:   "panel NAME",
		Short: "Render one drill-down panel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := rf.timeRange()
			if err != nil {
				return err
			}
			fs, err := parseFilters(filters)
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			view, err := svc.Panel(cmd.Context(), args[0], r, fs)
			if err != nil {
				return err
			}
			if a.output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), view)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s, %s\n\n", view.Title, rangeLabel(view.Range))
			if len(view.Rows) == 0 {
				fmt.Fprintln(out, "(no rows)")
				return nil
			}
			cols := dimensionColumns(regroupOrder(svc.Panels(), view.Panel), view.Rows[0].Dimensions)
			if view.Format != panel.FormatPMPM {
				t := newTable(out, append(upper(cols), "TOTAL")...)
				for _, row := range view.Rows {
					t.row(append(dimensionCells(cols, row.Dimensions), row.Display)...)
				}
				return t.flush()
			}
			t := newTable(out, append(upper(cols), "PAID", "MEMBER MONTHS", "PMPM")...)
			for _, row := range view.Rows {
				cells := dimensionCells(cols, row.Dimensions)
				cells = append(cells, money(row.Numerator), core.HumanFormat(row.Denominator), pmpm(row.Ratio))
				t.row(cells...)
			}
			return t.flush()
		},
	}
	rf.register(cmd)
	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "dimension=value, repeatable")
	return cmd
}

func newTrendCmd(a *app) *cobra.Command {
	var (
		rf      rangeFlags
		filters []string
	)
	cmd := &cobra.Command{
		Use:   "trend NAME",
		Short: "Show a panel period over period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := rf.timeRange()
			if err != nil {
				return err
			}
			fs, err := parseFilters(filters)
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			view, err := svc.Trend(cmd.Context(), args[0], r, fs)
			if err != nil {
				return err
			}
			if a.output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), view)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s by %s, %s\n\n", view.Title, view.PeriodField, rangeLabel(view.Range))
			if len(view.Series) == 0 {
				fmt.Fprintln(out, "(no rows)")
				return nil
			}
			cols := dimensionColumns(regroupOrder(svc.Panels(), view.Panel), view.Series[0].Dimensions)
			if view.Format != panel.FormatPMPM {
				t := newTable(out, append(upper(cols), "PERIOD", "TOTAL", "CHANGE")...)
				for _, s := range view.Series {
					dims := dimensionCells(cols, s.Dimensions)
					for _, p := range s.Points {
						t.row(append(append([]string{}, dims...), p.Period, total(view.Format, p.Numerator), pct(p.PctChange))...)
					}
				}
				return t.flush()
			}
			t := newTable(out, append(upper(cols), "PERIOD", "PMPM", "PRIOR", "CHANGE", "PAID")...)
			for _, s := range view.Series {
				dims := dimensionCells(cols, s.Dimensions)
				for _, p := range s.Points {
					cells := append(append([]string{}, dims...), p.Period, pmpm(p.Ratio), pmpm(p.PriorRatio), pct(p.PctChange), money(p.Numerator))
					t.row(cells...)
				}
			}
			return t.flush()
		},
	}
	rf.register(cmd)
	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "dimension=value, repeatable")
	return cmd
}

func newBreakdownCmd(a *app) *cobra.Command {
	var rf rangeFlags
	cmd := &cobra.Command{
		Use:   "breakdown",
		Short: "Split the PMPM of a window by service setting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := rf.timeRange()
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			view, err := svc.Breakdown(cmd.Context(), r)
			if err != nil {
				return err
			}
			if a.output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), view)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "PMPM breakdown, %s\n\n", rangeLabel(view.Range))
			t := newTable(out, "CATEGORY", "PAID", "PMPM", "SHARE")
			for _, row := range view.Rows {
				t.row(row.Category, money(row.Paid), pmpm(row.PMPM), pct(row.Share))
			}
			t.row("Total", "", pmpm(view.TotalPMPM), "")
			return t.flush()
		},
	}
	rf.register(cmd)
	return cmd
}

func regroupOrder(defs []panel.Definition, name string) []string {
	for _, d := range defs {
		if d.Name == name {
			return d.RegroupBy
		}
	}
	return nil
}
