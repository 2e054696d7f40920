// Package fact implements the per-stream fact transforms. Every transform
// reads its stream through the source registry, aligns it temporally,
// aggregates to its grain, and hands the tables to Run, which verifies grain
// and date range, sorts, and writes them.
package fact

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/mktwh/internal/reference"
	"github.com/leapstack-labs/mktwh/internal/source"
	"github.com/leapstack-labs/mktwh/internal/table"
	"github.com/leapstack-labs/mktwh/internal/warehouse"
	"github.com/leapstack-labs/mktwh/pkg/core"
)

// Env carries the inputs shared by every transform.
type Env struct {
	Registry *source.Registry
	DataDir  string
	Window   core.Window
	Lookup   *reference.Lookup
	Logger   *slog.Logger
}

func (e Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

// Result is the output of one transform.
type Result struct {
	Tables []*table.Table
	// RowsIn counts raw rows read, before exclusions.
	RowsIn int
	// Excluded counts rows dropped by source exclusions.
	Excluded int
	Actions  []string
}

// RowsOut returns the number of rows in the result's first (primary) table.
func (r *Result) RowsOut() int {
	if len(r.Tables) == 0 {
		return 0
	}
	return r.Tables[0].Len()
}

// Transform builds the fact tables of one stream.
type Transform struct {
	Name   string
	Stream core.Stream
	Build  func(Env) (*Result, error)
}

// Transforms lists every fact transform.
var Transforms = []Transform{
	{Name: "fact_paid_social", Stream: core.StreamPaidSocial, Build: PaidSocial},
	{Name: "fact_web_analytics", Stream: core.StreamWebAnalytics, Build: WebAnalytics},
	{Name: "fact_ecommerce", Stream: core.StreamEcommerce, Build: Ecommerce},
	{Name: "fact_organic_social", Stream: core.StreamOrganicSocial, Build: OrganicSocial},
	{Name: "fact_podcast", Stream: core.StreamPodcast, Build: Podcast},
	{Name: "fact_ooh", Stream: core.StreamOOH, Build: OOH},
}

// Run builds, finalizes and writes a transform's tables. No table is written
// unless every table of the transform passes its checks.
func Run(tr Transform, env Env, layout warehouse.Layout) (*Result, error) {
	res, err := tr.Build(env)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tr.Name, err)
	}
	var errs []error
	for _, t := range res.Tables {
		if err := Finalize(t, env.Window); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("%s: %w", tr.Name, err)
	}
	for _, t := range res.Tables {
		if _, err := layout.Write(t); err != nil {
			return nil, fmt.Errorf("%s: %w", tr.Name, err)
		}
	}

	log := env.logger()
	for _, t := range res.Tables {
		attrs := []any{"table", t.Name, "rows_in", res.RowsIn, "rows_out", t.Len()}
		if entry, ok := warehouse.Lookup(t.Name); ok && entry.DateColumn != "" {
			if lo, hi, ok := t.DateRange(entry.DateColumn); ok {
				attrs = append(attrs, "date_min", lo.Format(core.DateLayout), "date_max", hi.Format(core.DateLayout))
			}
		}
		log.Info("wrote fact table", attrs...)
	}
	for _, a := range res.Actions {
		log.Debug("transform action", "stage", tr.Name, "action", a)
	}
	return res, nil
}

// Finalize verifies the grain and the date range of a table and sorts it by
// its grain, or by its date column for pass-through tables.
func Finalize(t *table.Table, w core.Window) error {
	if err := table.CheckGrain(t); err != nil {
		return err
	}
	entry, ok := warehouse.Lookup(t.Name)
	if !ok {
		return fmt.Errorf("table %s is not in the warehouse catalog", t.Name)
	}
	if entry.DateColumn != "" {
		if err := CheckRange(t, entry.DateColumn, w); err != nil {
			return err
		}
	}
	if len(t.Grain) > 0 {
		return t.SortByGrain()
	}
	if entry.DateColumn != "" {
		return t.SortBy(entry.DateColumn)
	}
	return nil
}

// CheckRange returns a *core.RangeError when any date in col is outside w.
func CheckRange(t *table.Table, col string, w core.Window) error {
	lo, hi, ok := t.DateRange(col)
	if !ok {
		return nil
	}
	if !w.Contains(lo) || !w.Contains(hi) {
		return &core.RangeError{Table: t.Name, Column: col, Min: lo, Max: hi, Window: w}
	}
	return nil
}

// load reads and unions a stream.
func load(env Env, s core.Stream, schema table.Schema) (*table.Table, *Result, error) {
	batches, err := source.LoadStream(env.Registry, env.DataDir, s, schema)
	if err != nil {
		return nil, nil, err
	}
	all, err := source.Union(string(s), schema, batches)
	if err != nil {
		return nil, nil, err
	}
	res := &Result{}
	res.RowsIn, res.Excluded = source.Totals(batches)
	res.Actions = append(res.Actions, fmt.Sprintf("unioned %d files", len(batches)))
	for _, b := range batches {
		for _, op := range b.Applied {
			res.Actions = append(res.Actions, fmt.Sprintf("%s: %s", b.Source.ID, op))
		}
		if b.Excluded > 0 {
			res.Actions = append(res.Actions, fmt.Sprintf("%s: excluded %d rows", b.Source.ID, b.Excluded))
		}
	}
	return all, res, nil
}

// derive returns a table with extra computed columns prepended or appended.
// fn receives the source row and returns the complete output row.
func derive(src *table.Table, name string, schema table.Schema, fn func(table.Row) table.Row) *table.Table {
	out := table.New(name, schema)
	out.Rows = make([]table.Row, 0, src.Len())
	for _, r := range src.Rows {
		out.Rows = append(out.Rows, fn(r))
	}
	return out
}

// dayOf truncates a timestamp cell to its date.
func dayOf(v any) any {
	if ts, ok := v.(time.Time); ok {
		return core.Day(ts)
	}
	return nil
}

// grainOf returns the catalog grain of a table.
func grainOf(name string) []string {
	return warehouse.MustLookup(name).Grain
}

// prepend returns a new schema with c first.
func prepend(c table.Column, s table.Schema) table.Schema {
	return append(table.Schema{c}, s...)
}
