package commands

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/mktwh/internal/cli/output"
	"github.com/leapstack-labs/mktwh/internal/pipeline"
	"github.com/leapstack-labs/mktwh/pkg/core"
)

// BuildOptions holds options for the build command.
type BuildOptions struct {
	Watch        bool
	SkipValidate bool
	Debounce     time.Duration
}

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	opts := &BuildOptions{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Rebuild the warehouse from the raw extracts",
		Long: `Rebuild every dimension and fact table from the raw extracts, then
validate the result.

Dimensions are built first, then facts, then the validation checks. A failed
stage skips everything after it and the command exits non-zero. Every run is
recorded in the run ledger.

With --watch, the warehouse is rebuilt whenever a CSV under the data or
reference directory changes, until interrupted.`,
		Example: `  # Full rebuild
  mktwh build

  # Rebuild a different window without checks
  mktwh build --window-start 2024-01-01 --window-end 2024-03-31 --skip-validate

  # Rebuild on every input change
  mktwh build --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Rebuild whenever an input CSV changes")
	cmd.Flags().BoolVar(&opts.SkipValidate, "skip-validate", false, "Skip the validation checks")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", pipeline.DefaultDebounce, "Quiet period before a watch rebuild")

	return cmd
}

func runBuild(cmd *cobra.Command, opts *BuildOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	if err := cmdCtx.Cfg.ValidateDirectories(); err != nil {
		return err
	}

	store, err := cmdCtx.OpenStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	pc, err := cmdCtx.PipelineConfig(store, opts.SkipValidate)
	if err != nil {
		return err
	}
	orch, err := pipeline.New(pc)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if opts.Watch {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		started := time.Now()
		return orch.Watch(ctx, pipeline.WatchOptions{
			Debounce: opts.Debounce,
			OnBuild: func(res *pipeline.Result, err error) {
				_ = renderBuild(r, res, err, time.Since(started))
				if r.EffectiveMode() != output.ModeJSON {
					r.Muted(fmt.Sprintf("Watching %s and %s (Ctrl+C to stop)", cmdCtx.Cfg.DataDir, cmdCtx.Cfg.ReferenceDir))
				}
				started = time.Now()
			},
		})
	}

	start := time.Now()
	res, buildErr := orch.Build(cmd.Context())
	if err := renderBuild(r, res, buildErr, time.Since(start)); err != nil {
		return err
	}
	return buildErr
}

// renderBuild prints the outcome of one build in the renderer's mode.
func renderBuild(r *output.Renderer, res *pipeline.Result, buildErr error, elapsed time.Duration) error {
	if res == nil {
		res = &pipeline.Result{}
	}

	if r.EffectiveMode() == output.ModeJSON {
		out := output.BuildOutput{
			Run:        output.NewRunOutput(res.Run),
			Success:    buildErr == nil,
			DurationMS: elapsed.Milliseconds(),
			Stages:     output.NewStageOutputs(res.Stages),
		}
		if res.Report != nil {
			out.Checks = output.NewChecksSummary(res.Report.Checks, true)
		}
		if buildErr != nil {
			out.Error = buildErr.Error()
		}
		return r.JSON(out)
	}

	r.Header(1, "Warehouse build")
	if res.Run != nil {
		r.Muted(fmt.Sprintf("Run %s, window %s to %s",
			res.Run.ID, res.Run.WindowStart.Format(core.DateLayout), res.Run.WindowEnd.Format(core.DateLayout)))
	}
	r.Println("")

	phase := core.Phase("")
	for _, s := range res.Stages {
		if s.Phase != phase {
			phase = s.Phase
			r.Header(2, output.Title(string(phase)))
		}
		r.StatusLine(s.Stage, string(s.Status), stageDetail(r, s))
	}

	if res.Report != nil {
		r.Println("")
		renderChecks(r, res.Report.Checks, false)
	}

	r.Println("")
	if buildErr != nil {
		r.Error(fmt.Sprintf("Build failed after %s", elapsed.Round(time.Millisecond)))
		return nil
	}
	r.Success(fmt.Sprintf("Built %d stages in %s", len(res.Stages), elapsed.Round(time.Millisecond)))
	return nil
}

func stageDetail(r *output.Renderer, s *core.StageRun) string {
	switch s.Status {
	case core.StageStatusSkipped:
		return ""
	case core.StageStatusFailed:
		return firstLine(s.Error)
	}
	if s.Phase == core.PhaseValidate {
		return fmt.Sprintf("%d checks, %dms", s.RowsOut, s.DurationMS)
	}
	return fmt.Sprintf("%s rows in, %s rows out, %dms", r.Count(s.RowsIn), r.Count(s.RowsOut), s.DurationMS)
}

// renderChecks prints the validation summary. Failed checks are always
// listed; passing checks only when all is set.
func renderChecks(r *output.Renderer, checks []core.CheckResult, all bool) {
	summary := output.NewChecksSummary(checks, false)
	r.Header(2, "Validation")
	r.Printf("%d passed, %d failed\n", summary.Passed, summary.Failed)

	var rows [][]string
	for _, c := range checks {
		if !all && c.Passed() {
			continue
		}
		status := string(c.Status)
		if r.EffectiveMode() == output.ModeText {
			if c.Passed() {
				status = r.Styles().Pass.Render(status)
			} else {
				status = r.Styles().Fail.Render(status)
			}
		}
		rows = append(rows, []string{c.Table, c.Check, status, c.Observed, c.Expected, c.Detail})
	}
	if len(rows) > 0 {
		r.Table([]string{"table", "check", "status", "observed", "expected", "detail"}, rows)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
