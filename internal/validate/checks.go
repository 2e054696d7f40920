package validate

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/leapstack-labs/mktwh/internal/source"
	"github.com/leapstack-labs/mktwh/internal/table"
	"github.com/leapstack-labs/mktwh/internal/warehouse"
	"github.com/leapstack-labs/mktwh/pkg/core"
)

func checkGrain(r *Report, e warehouse.Entry, raw *table.Raw) {
	idx := make([]int, len(e.Grain))
	for i, g := range e.Grain {
		idx[i] = raw.Index(g)
		if idx[i] < 0 {
			r.add(e.Name, core.CheckGrainUnique, false, "missing column "+g, "0 duplicates", strings.Join(e.Grain, ", "))
			return
		}
	}
	counts := make(map[string]int, len(raw.Records))
	keys := make([]string, len(raw.Records))
	for n, rec := range raw.Records {
		parts := make([]string, len(idx))
		for i, k := range idx {
			parts[i] = rec[k]
		}
		keys[n] = strings.Join(parts, "\x1f")
		counts[keys[n]]++
	}
	dups := 0
	for _, k := range keys {
		if counts[k] > 1 {
			dups++
		}
	}
	r.add(e.Name, core.CheckGrainUnique, dups == 0, fmt.Sprintf("%d duplicates", dups), "0 duplicates",
		strings.Join(e.Grain, ", "))
}

func checkDateRange(r *Report, e warehouse.Entry, raw *table.Raw, w core.Window) {
	vals, ok := raw.Values(e.DateColumn)
	if !ok {
		r.add(e.Name, core.CheckDateRange, false, "missing column "+e.DateColumn, w.String(), "")
		return
	}
	var lo, hi time.Time
	for i, v := range vals {
		d, err := time.Parse(core.DateLayout, v)
		if err != nil {
			r.add(e.Name, core.CheckDateRange, false, fmt.Sprintf("unparseable %q at row %d", v, i+1), w.String(), "")
			return
		}
		if i == 0 || d.Before(lo) {
			lo = d
		}
		if i == 0 || d.After(hi) {
			hi = d
		}
	}
	if len(vals) == 0 {
		r.add(e.Name, core.CheckDateRange, true, "no rows", w.String(), "")
		return
	}
	observed := lo.Format(core.DateLayout) + ".." + hi.Format(core.DateLayout)
	r.add(e.Name, core.CheckDateRange, w.Contains(lo) && w.Contains(hi), observed, w.String(), "")
}

func checkNonEmpty(r *Report, e warehouse.Entry, raw *table.Raw) {
	if len(raw.Records) == 0 {
		return
	}
	var empty []string
	for i, col := range raw.Header {
		if contains(e.NullableByDesign, col) {
			continue
		}
		allEmpty := true
		for _, rec := range raw.Records {
			if rec[i] != "" {
				allEmpty = false
				break
			}
		}
		if allEmpty {
			empty = append(empty, col)
		}
	}
	observed := "none"
	if len(empty) > 0 {
		observed = strings.Join(empty, ", ")
	}
	detail := ""
	if len(e.NullableByDesign) > 0 {
		detail = "nullable by design: " + strings.Join(e.NullableByDesign, ", ")
	}
	r.add(e.Name, core.CheckNonEmptyColumns, len(empty) == 0, observed, "none", detail)
}

func checkDateSpine(r *Report, raw *table.Raw, w core.Window) {
	if raw == nil {
		r.add(warehouse.DimDate, core.CheckDateSpine, false, "table missing", fmt.Sprintf("%d days", w.Days()), "")
		return
	}
	vals, _ := raw.Values("date")
	expected := fmt.Sprintf("%d consecutive days from %s", w.Days(), w.Start.Format(core.DateLayout))
	ok := len(vals) == w.Days()
	gap := ""
	for i, v := range vals {
		want := w.Start.AddDate(0, 0, i).Format(core.DateLayout)
		if v != want {
			ok = false
			gap = fmt.Sprintf("row %d is %s, want %s", i+1, v, want)
			break
		}
	}
	r.add(warehouse.DimDate, core.CheckDateSpine, ok, fmt.Sprintf("%d days", len(vals)), expected, gap)
}

type reconciliation struct {
	table     string
	column    string
	stream    core.Stream
	rawColumn string
}

// reconciliations compare raw totals with warehouse totals. Raw paid social
// spend includes files that report it as spend_usd.
var reconciliations = []reconciliation{
	{table: warehouse.FactPaidSocialDaily, column: "spend", stream: core.StreamPaidSocial, rawColumn: "spend"},
	{table: warehouse.FactOOHDaily, column: "spend", stream: core.StreamOOH, rawColumn: "spend"},
	{table: warehouse.FactEcommerceDaily, column: "gross_revenue", stream: core.StreamEcommerce, rawColumn: "line_revenue"},
}

func checkReconcile(r *Report, cfg Config, rc reconciliation, built *table.Raw) {
	expected := fmt.Sprintf("|delta| <= %.2f", cfg.Tolerance)
	label := rc.column + " vs raw " + rc.rawColumn
	if built == nil {
		r.add(rc.table, core.CheckReconcile, false, "table missing", expected, label)
		return
	}
	rawTotal, err := rawSum(cfg, rc.stream, rc.rawColumn)
	if err != nil {
		r.add(rc.table, core.CheckReconcile, false, "raw unreadable", expected, err.Error())
		return
	}
	vals, ok := built.Values(rc.column)
	if !ok {
		r.add(rc.table, core.CheckReconcile, false, "missing column "+rc.column, expected, label)
		return
	}
	builtTotal, err := sumMoney(vals)
	if err != nil {
		r.add(rc.table, core.CheckReconcile, false, "unparseable", expected, err.Error())
		return
	}
	delta := rawTotal.Sub(builtTotal).Abs()
	r.Deltas = append(r.Deltas, Delta{Table: rc.table, Column: rc.column, Raw: rawTotal, Built: builtTotal, Delta: delta})
	r.add(rc.table, core.CheckReconcile, delta.LessThanOrEqual(decimal.NewFromFloat(cfg.Tolerance)),
		fmt.Sprintf("raw %s, warehouse %s, delta %s",
			table.FormatMoney(rawTotal), table.FormatMoney(builtTotal), table.FormatMoney(delta)), expected, label)
}

// rawSum totals a column over every extract of a stream after drift ops.
func rawSum(cfg Config, s core.Stream, col string) (decimal.Decimal, error) {
	files, err := cfg.Registry.Discover(cfg.DataDir, s)
	if err != nil {
		return decimal.Zero, err
	}
	if len(files) == 0 {
		return decimal.Zero, fmt.Errorf("no %s extracts in %s", s, cfg.DataDir)
	}
	total := decimal.Zero
	for _, f := range files {
		e, err := source.ReadExtract(f)
		if err != nil {
			return decimal.Zero, err
		}
		i := e.Index(col)
		if i < 0 {
			return decimal.Zero, fmt.Errorf("%s: no %s column", f.Descriptor.ID, col)
		}
		vals := make([]string, len(e.Records))
		for n, rec := range e.Records {
			vals[n] = rec[i]
		}
		sum, err := sumMoney(vals)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s: %w", f.Descriptor.ID, err)
		}
		total = total.Add(sum)
	}
	return total, nil
}

// sumMoney adds decimal cells exactly. Null tokens count as zero.
func sumMoney(vals []string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, v := range vals {
		if table.IsNullToken(v) {
			continue
		}
		d, err := table.ParseMoney(v)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(d)
	}
	return total, nil
}

var webAccountingSchema = table.Schema{{Name: "event_datetime", Kind: table.Timestamp}}

func checkDedupAccounting(r *Report, cfg Config, events *table.Raw) {
	name := warehouse.FactWebAnalyticsEvents
	if events == nil {
		r.add(name, core.CheckDedupAccounting, false, "table missing", "raw - excluded", "")
		return
	}
	batches, err := source.LoadStream(cfg.Registry, cfg.DataDir, core.StreamWebAnalytics, webAccountingSchema)
	if err != nil {
		r.add(name, core.CheckDedupAccounting, false, "raw unreadable", "raw - excluded", err.Error())
		return
	}
	read, excluded := source.Totals(batches)
	want := read - excluded
	r.add(name, core.CheckDedupAccounting, len(events.Records) == want,
		fmt.Sprintf("%d events", len(events.Records)), fmt.Sprintf("%d events", want),
		fmt.Sprintf("raw %d - excluded %d", read, excluded))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
