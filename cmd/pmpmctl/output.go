package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"pmpm/internal/core"
	"pmpm/internal/panel"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table writes tab-separated rows aligned in columns.
type table struct {
	tw *tabwriter.Writer
}

func newTable(w io.Writer, header ...string) *table {
	t := &table{tw: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
	t.row(header...)
	return t
}

func (t *table) row(cells ...string) {
	fmt.Fprintln(t.tw, strings.Join(cells, "\t"))
}

func (t *table) flush() error {
	return t.tw.Flush()
}

// dimensionColumns returns the dimension names of the first row, in the
// order the panel regroups by when known.
func dimensionColumns(order []string, dims map[string]string) []string {
	if len(order) > 0 {
		return order
	}
	cols := make([]string, 0, len(dims))
	for k := range dims {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func dimensionCells(cols []string, dims map[string]string) []string {
	cells := make([]string, len(cols))
	for i, c := range cols {
		cells[i] = dims[c]
	}
	return cells
}

func upper(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = strings.ToUpper(c)
	}
	return out
}

func money(v float64) string {
	return "$" + core.HumanFormat(v)
}

// total renders a summed value, as money unless it counts things.
func total(format string, v float64) string {
	if format == panel.FormatCount {
		return core.HumanFormat(v)
	}
	return money(v)
}

func pct(v core.NullFloat) string {
	if s := core.FormatPercent(v); s != "" {
		return s
	}
	return "-"
}

func pmpm(v core.NullFloat) string {
	if s := core.FormatCurrencyPMPM(v); s != "" {
		return s
	}
	return "-"
}

func rangeLabel(r core.TimeRange) string {
	if r.IsZero() {
		return "all periods"
	}
	return r.Start + " to " + r.End
}
