package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/mktwh/internal/cli/output"
	"github.com/leapstack-labs/mktwh/pkg/core"
)

// RunsOptions holds options for the runs command.
type RunsOptions struct {
	Limit int
}

// NewRunsCommand creates the runs command and its show subcommand.
func NewRunsCommand() *cobra.Command {
	opts := &RunsOptions{}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded builds",
		Long: `List builds recorded in the run ledger, newest first.

Use 'mktwh runs show <id>' for the stages and checks of one run.`,
		Example: `  mktwh runs
  mktwh runs --limit 5 -o json
  mktwh runs show 6f1c2a9e-...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRuns(cmd, opts)
		},
	}
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")

	cmd.AddCommand(newRunsShowCommand())
	return cmd
}

func newRunsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show the stages and checks of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsShow(cmd, args[0])
		},
	}
}

func runRuns(cmd *cobra.Command, opts *RunsOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	store, err := cmdCtx.OpenExistingStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.ListRuns(cmd.Context(), opts.Limit)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		out := make([]*output.RunOutput, 0, len(runs))
		for _, run := range runs {
			out = append(out, output.NewRunOutput(run))
		}
		return r.JSON(out)
	}

	r.Header(1, fmt.Sprintf("Runs (%d)", len(runs)))
	if len(runs) == 0 {
		r.Muted("No runs recorded")
		return nil
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID,
			statusText(r, string(run.Status)),
			run.WindowStart.Format(core.DateLayout) + " to " + run.WindowEnd.Format(core.DateLayout),
			run.StartedAt.Local().Format(time.DateTime),
			runDuration(run),
			firstLine(run.Error),
		})
	}
	r.Table([]string{"id", "status", "window", "started", "duration", "error"}, rows)
	return nil
}

func runRunsShow(cmd *cobra.Command, id string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	store, err := cmdCtx.OpenExistingStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	run, err := store.GetRun(ctx, id)
	if err != nil {
		return err
	}
	stages, err := store.ListStageRuns(ctx, id)
	if err != nil {
		return err
	}
	checks, err := store.ListChecks(ctx, id)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		out := output.NewRunOutput(run)
		out.Stages = output.NewStageOutputs(stages)
		if len(checks) > 0 {
			out.Checks = output.NewChecksSummary(checks, true)
		}
		return r.JSON(out)
	}

	r.Header(1, "Run "+run.ID)
	r.Println(output.FormatKeyValue("Status", statusText(r, string(run.Status))))
	r.Println(output.FormatKeyValue("Window", run.WindowStart.Format(core.DateLayout)+" to "+run.WindowEnd.Format(core.DateLayout)))
	r.Println(output.FormatKeyValue("Started", run.StartedAt.Local().Format(time.DateTime)))
	r.Println(output.FormatKeyValue("Duration", runDuration(run)))
	if run.Error != "" {
		r.Println(output.FormatKeyValue("Error", run.Error))
	}
	r.Println("")

	r.Header(2, "Stages")
	rows := make([][]string, 0, len(stages))
	for _, s := range stages {
		rows = append(rows, []string{
			s.Stage,
			string(s.Phase),
			statusText(r, string(s.Status)),
			r.Count(s.RowsIn),
			r.Count(s.RowsOut),
			fmt.Sprintf("%dms", s.DurationMS),
			firstLine(s.Error),
		})
	}
	r.Table([]string{"stage", "phase", "status", "rows in", "rows out", "duration", "error"}, rows)

	if len(checks) > 0 {
		r.Println("")
		renderChecks(r, checks, false)
	}
	return nil
}

func runDuration(run *core.Run) string {
	if run.CompletedAt == nil {
		return "running"
	}
	return run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
}

// statusText colors a status in text mode.
func statusText(r *output.Renderer, status string) string {
	if r.EffectiveMode() != output.ModeText {
		return status
	}
	switch status {
	case string(core.RunStatusCompleted), string(core.StageStatusSuccess), string(core.CheckPass):
		return r.Styles().Success.Render(status)
	case string(core.RunStatusFailed), string(core.CheckFail): // also matches core.StageStatusFailed ("failed")
		return r.Styles().Error.Render(status)
	}
	return r.Styles().Muted.Render(status)
}
