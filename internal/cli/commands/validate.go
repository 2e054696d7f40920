package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/mktwh/internal/cli/output"
	"github.com/leapstack-labs/mktwh/internal/source"
	"github.com/leapstack-labs/mktwh/internal/validate"
)

// ValidateOptions holds options for the validate command.
type ValidateOptions struct {
	ByMonth bool
}

type validateOutput struct {
	Passed  bool                  `json:"passed"`
	Checks  *output.ChecksSummary `json:"checks"`
	ByMonth []validate.MonthCount `json:"by_month,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	opts := &ValidateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the built warehouse against the raw extracts",
		Long: `Run every validation check against the warehouse as it is on disk,
without rebuilding: file presence, row counts, grain uniqueness, date ranges,
empty columns, the date spine, web deduplication accounting and the spend and
revenue reconciliations against the raw extracts.

Exits non-zero when any check fails.`,
		Example: `  mktwh validate
  mktwh validate --by-month
  mktwh validate -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.ByMonth, "by-month", false, "Also print row counts per table per month")

	return cmd
}

func runValidate(cmd *cobra.Command, opts *ValidateOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	window, err := cmdCtx.Cfg.CoreWindow()
	if err != nil {
		return err
	}

	report, err := validate.Run(validate.Config{
		Layout:    cmdCtx.Layout(),
		Registry:  source.Default(),
		DataDir:   cmdCtx.Cfg.DataDir,
		Window:    window,
		Tolerance: cmdCtx.Cfg.Reconcile.Tolerance,
		Logger:    cmdCtx.Logger,
	})
	if err != nil {
		return err
	}

	var months []validate.MonthCount
	if opts.ByMonth {
		// Tables that failed file_exists are reported by the checks; count what is readable.
		months, err = validate.ByMonth(cmdCtx.Layout())
		if err != nil && report.Passed() {
			return err
		}
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(validateOutput{
			Passed:  report.Passed(),
			Checks:  output.NewChecksSummary(report.Checks, true),
			ByMonth: months,
		}); err != nil {
			return err
		}
		return report.Err()
	}

	r.Header(1, "Warehouse validation")
	r.Muted(fmt.Sprintf("%s, window %s, tolerance %s", cmdCtx.Cfg.WarehouseDir, window, r.Money(cmdCtx.Cfg.Reconcile.Tolerance)))
	r.Println("")
	renderChecks(r, report.Checks, true)

	if len(report.Deltas) > 0 {
		r.Println("")
		r.Header(2, "Reconciliation")
		rows := make([][]string, 0, len(report.Deltas))
		for _, d := range report.Deltas {
			rows = append(rows, []string{d.Table, d.Column, r.Money(d.Raw.InexactFloat64()), r.Money(d.Built.InexactFloat64()), r.Money(d.Delta.InexactFloat64())})
		}
		r.Table([]string{"table", "column", "raw", "warehouse", "delta"}, rows)
	}

	if opts.ByMonth && len(months) > 0 {
		r.Println("")
		r.Header(2, "Rows by month")
		rows := make([][]string, 0, len(months))
		for _, m := range months {
			rows = append(rows, []string{m.Table, m.Month, r.Count(int64(m.Rows))})
		}
		r.Table([]string{"table", "month", "rows"}, rows)
	}

	r.Println("")
	if err := report.Err(); err != nil {
		pass, fail := report.Counts()
		r.Error(fmt.Sprintf("%d of %d checks failed", fail, pass+fail))
		return err
	}
	r.Success(fmt.Sprintf("All %d checks passed", len(report.Checks)))
	return nil
}
