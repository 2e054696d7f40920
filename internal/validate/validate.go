// Package validate checks a built warehouse against its raw sources. It only
// reads: produced tables come back from disk, raw extracts through the source
// registry. Every check runs; none stops the others.
package validate

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"

	"github.com/leapstack-labs/mktwh/internal/source"
	"github.com/leapstack-labs/mktwh/internal/table"
	"github.com/leapstack-labs/mktwh/internal/warehouse"
	"github.com/leapstack-labs/mktwh/pkg/core"
)

// Config holds the validator inputs.
type Config struct {
	Layout    warehouse.Layout
	Registry  *source.Registry
	DataDir   string
	Window    core.Window
	Tolerance float64
	Logger    *slog.Logger
}

// Delta is the absolute difference of one reconciliation.
type Delta struct {
	Table  string
	Column string
	Raw    decimal.Decimal
	Built  decimal.Decimal
	Delta  decimal.Decimal
}

// Report is the pass/fail matrix of a validation run.
type Report struct {
	Checks []core.CheckResult
	Deltas []Delta
	// Rows is the row count of every produced table that could be read.
	Rows map[string]int
}

// Passed reports whether every check passed.
func (r *Report) Passed() bool {
	return len(r.Failed()) == 0
}

// Failed returns the failed checks.
func (r *Report) Failed() []core.CheckResult {
	var out []core.CheckResult
	for _, c := range r.Checks {
		if !c.Passed() {
			out = append(out, c)
		}
	}
	return out
}

// Counts returns the number of passed and failed checks.
func (r *Report) Counts() (pass, fail int) {
	for _, c := range r.Checks {
		if c.Passed() {
			pass++
		} else {
			fail++
		}
	}
	return pass, fail
}

// Err returns an error naming every failed check, or nil.
func (r *Report) Err() error {
	var errs []error
	for _, c := range r.Failed() {
		errs = append(errs, fmt.Errorf("check %s on %s failed: observed %s, expected %s",
			c.Check, c.Table, c.Observed, c.Expected))
	}
	return errors.Join(errs...)
}

func (r *Report) add(tbl, check string, ok bool, observed, expected, detail string) {
	status := core.CheckPass
	if !ok {
		status = core.CheckFail
	}
	r.Checks = append(r.Checks, core.CheckResult{
		Table:    tbl,
		Check:    check,
		Status:   status,
		Observed: observed,
		Expected: expected,
		Detail:   detail,
	})
}

// Run executes every check.
func Run(cfg Config) (*Report, error) {
	if err := cfg.Window.Validate(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	if cfg.Tolerance < 0 {
		return nil, fmt.Errorf("validate: negative tolerance %v", cfg.Tolerance)
	}
	if cfg.Registry == nil {
		cfg.Registry = source.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := &Report{Rows: map[string]int{}}
	tables := map[string]*table.Raw{}
	for _, e := range warehouse.Catalog {
		raw, err := cfg.Layout.Read(e.Name)
		switch {
		case errors.Is(err, os.ErrNotExist):
			r.add(e.Name, core.CheckFileExists, false, "missing", "present", e.File())
			continue
		case err != nil:
			r.add(e.Name, core.CheckFileExists, false, "unreadable", "present", err.Error())
			continue
		}
		r.add(e.Name, core.CheckFileExists, true, "present", "present", e.File())
		tables[e.Name] = raw
		r.Rows[e.Name] = len(raw.Records)
		r.add(e.Name, core.CheckRowCount, len(raw.Records) > 0, fmt.Sprint(len(raw.Records)), "> 0", "")
	}

	for _, e := range warehouse.Catalog {
		raw, ok := tables[e.Name]
		if !ok {
			continue
		}
		if len(e.Grain) > 0 {
			checkGrain(r, e, raw)
		}
		if e.DateColumn != "" {
			checkDateRange(r, e, raw, cfg.Window)
		}
		checkNonEmpty(r, e, raw)
	}

	checkDateSpine(r, tables[warehouse.DimDate], cfg.Window)
	for _, rc := range reconciliations {
		checkReconcile(r, cfg, rc, tables[rc.table])
	}
	checkDedupAccounting(r, cfg, tables[warehouse.FactWebAnalyticsEvents])

	pass, fail := r.Counts()
	logger.Info("validation complete", "passed", pass, "failed", fail)
	for _, c := range r.Failed() {
		logger.Warn("check failed", "table", c.Table, "check", c.Check, "observed", c.Observed, "expected", c.Expected)
	}
	return r, nil
}
