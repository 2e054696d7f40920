package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/mktwh/internal/cli/config"
	"github.com/leapstack-labs/mktwh/internal/cli/output"
	clitest "github.com/leapstack-labs/mktwh/internal/cli/testutil"
	"github.com/leapstack-labs/mktwh/internal/pipeline"
	"github.com/leapstack-labs/mktwh/internal/query"
	"github.com/leapstack-labs/mktwh/internal/source"
	"github.com/leapstack-labs/mktwh/internal/validate"
	"github.com/leapstack-labs/mktwh/pkg/core"
)

func TestNewBuildCommand(t *testing.T) {
	cmd := NewBuildCommand()

	assert.Equal(t, "build", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Example)
	for _, flag := range []string{"watch", "skip-validate", "debounce"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
	assert.Equal(t, "w", cmd.Flags().Lookup("watch").Shorthand)
}

func TestNewValidateCommand(t *testing.T) {
	cmd := NewValidateCommand()

	assert.Equal(t, "validate", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("by-month"))
}

func TestNewRunsCommand(t *testing.T) {
	cmd := NewRunsCommand()

	assert.Equal(t, "runs", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("limit"))

	show, _, err := cmd.Find([]string{"show"})
	require.NoError(t, err)
	assert.Equal(t, "show <id>", show.Use)
	assert.Error(t, show.Args(show, nil), "show requires an id")
}

func TestNewQueryCommand(t *testing.T) {
	cmd := NewQueryCommand()

	assert.Equal(t, "query [SQL]", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("input"))
}

func TestNewReferenceCommand(t *testing.T) {
	cmd := NewReferenceCommand()

	fetch, _, err := cmd.Find([]string{"fetch"})
	require.NoError(t, err)
	assert.Equal(t, "fetch", fetch.Use)
	assert.NotNil(t, fetch.Flags().Lookup("output-file"))
}

func TestNewCommandContext_RequiresConfig(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	_, err := NewCommandContext(cmd)
	require.Error(t, err)

	cmd.SetContext(config.WithConfig(context.Background(), &config.Config{
		WarehouseDir: "/tmp/wh",
		OutputFormat: config.OutputJSON,
	}))
	cc, err := NewCommandContext(cmd)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/wh", cc.Layout().Root)
	assert.Equal(t, output.ModeJSON, cc.Renderer.EffectiveMode())
	assert.NotNil(t, cc.Logger)
}

func TestPipelineConfig(t *testing.T) {
	cc := &CommandContext{Cfg: &config.Config{
		DataDir:      "data",
		ReferenceDir: "ref",
		WarehouseDir: "wh",
		Window: config.WindowConfig{
			Start: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC),
		},
		Reconcile: config.ReconcileConfig{Tolerance: 0.5},
	}}
	pc, err := cc.PipelineConfig(nil, true)
	require.NoError(t, err)
	assert.Nil(t, pc.Store, "a nil store must stay a nil interface")
	assert.True(t, pc.SkipValidate)
	assert.Equal(t, 90, pc.Window.Days())
	assert.InDelta(t, 0.5, pc.Tolerance, 1e-12)
	assert.NotNil(t, pc.Metrics)
}

func sampleResult() *pipeline.Result {
	return &pipeline.Result{
		Run: &core.Run{
			ID:          "run-1",
			Status:      core.RunStatusFailed,
			WindowStart: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			WindowEnd:   time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		},
		Stages: []*core.StageRun{
			{Stage: "dim_date", Phase: core.PhaseDimension, Status: core.StageStatusSuccess, RowsOut: 547, DurationMS: 3},
			{Stage: "fact_ooh", Phase: core.PhaseFact, Status: core.StageStatusFailed, Error: "bad spend\nmore"},
			{Stage: "validate", Phase: core.PhaseValidate, Status: core.StageStatusSkipped},
		},
	}
}

func TestRenderBuild_Markdown(t *testing.T) {
	tr := clitest.NewTestRenderer(output.ModeMarkdown, false)
	require.NoError(t, renderBuild(tr.Renderer, sampleResult(), errors.New("stage fact_ooh: bad spend"), 1500*time.Millisecond))

	out := tr.Output()
	clitest.AssertNoANSI(t, out)
	clitest.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "# Warehouse build")
	assert.Contains(t, out, "Run run-1, window 2023-01-01 to 2024-06-30")
	assert.Contains(t, out, "## Dimension")
	assert.Contains(t, out, "- ✓ dim_date (0 rows in, 547 rows out, 3ms)")
	assert.Contains(t, out, "- ✗ fact_ooh (bad spend)")
	assert.Contains(t, out, "- - validate\n")
	assert.Contains(t, tr.ErrorOutput(), "Build failed after 1.5s")
}

func TestRenderBuild_JSON(t *testing.T) {
	tr := clitest.NewTestRenderer(output.ModeJSON, false)
	require.NoError(t, renderBuild(tr.Renderer, sampleResult(), errors.New("boom"), time.Second))

	out := tr.Output()
	assert.Contains(t, out, `"success": false`)
	assert.Contains(t, out, `"error": "boom"`)
	assert.Contains(t, out, `"stage": "fact_ooh"`)
	assert.Contains(t, out, `"id": "run-1"`)
}

func TestRenderBuild_NilResult(t *testing.T) {
	tr := clitest.NewTestRenderer(output.ModeMarkdown, false)
	require.NoError(t, renderBuild(tr.Renderer, nil, errors.New("no ledger"), 0))
	assert.Contains(t, tr.Output(), "# Warehouse build")
}

func TestRenderChecks(t *testing.T) {
	checks := []core.CheckResult{
		{Table: "dim_date", Check: core.CheckDateSpine, Status: core.CheckPass, Observed: "547", Expected: "547"},
		{Table: "fact_ooh_daily", Check: core.CheckReconcile, Status: core.CheckFail, Observed: "1099.00", Expected: "1100.00"},
	}

	tr := clitest.NewTestRenderer(output.ModeMarkdown, false)
	renderChecks(tr.Renderer, checks, false)
	out := tr.Output()
	assert.Contains(t, out, "1 passed, 1 failed")
	assert.Contains(t, out, "| fact_ooh_daily | reconcile | FAIL | 1099.00 | 1100.00 |")
	assert.NotContains(t, out, "date_spine")

	tr.Reset()
	renderChecks(tr.Renderer, checks, true)
	assert.Contains(t, tr.Output(), "| dim_date | date_spine | PASS | 547 | 547 |")
}

func TestRenderChecks_TextStyled(t *testing.T) {
	tr := clitest.NewTestRenderer(output.ModeText, true)
	renderChecks(tr.Renderer, []core.CheckResult{
		{Table: "dim_date", Check: core.CheckRowCount, Status: core.CheckPass},
	}, true)
	assert.Contains(t, tr.Output(), "┌")
	assert.Contains(t, tr.Output(), "row_count")
}

func TestStageDetail(t *testing.T) {
	r := clitest.NewTestRenderer(output.ModeMarkdown, false).Renderer
	assert.Equal(t, "12,000 rows in, 547 rows out, 10ms", stageDetail(r, &core.StageRun{
		Phase: core.PhaseFact, Status: core.StageStatusSuccess, RowsIn: 12000, RowsOut: 547, DurationMS: 10,
	}))
	assert.Equal(t, "40 checks, 5ms", stageDetail(r, &core.StageRun{
		Phase: core.PhaseValidate, Status: core.StageStatusSuccess, RowsOut: 40, DurationMS: 5,
	}))
	assert.Empty(t, stageDetail(r, &core.StageRun{Status: core.StageStatusSkipped}))
}

func TestSourceOutput(t *testing.T) {
	reg := source.Default()
	var found bool
	for _, s := range core.Streams {
		for _, d := range reg.Sources(s) {
			so := sourceOutput(d, false)
			assert.True(t, so.Registered)
			assert.False(t, so.Present)
			assert.Equal(t, string(s), so.Stream)
			assert.Len(t, so.Ops, len(d.Ops))
			assert.Len(t, so.Exclusions, len(d.Exclude))
			found = true
		}
	}
	assert.True(t, found, "the default registry has sources")
}

func TestRenderResult(t *testing.T) {
	tr := clitest.NewTestRenderer(output.ModeMarkdown, false)
	require.NoError(t, renderResult(tr.Renderer, &query.Result{}))
	assert.Equal(t, "(0 rows)\n", tr.Output())
}

func TestRunDuration(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	done := start.Add(2500 * time.Millisecond)
	assert.Equal(t, "running", runDuration(&core.Run{StartedAt: start}))
	assert.Equal(t, "2.5s", runDuration(&core.Run{StartedAt: start, CompletedAt: &done}))
}

func TestValidateOutput_ByMonth(t *testing.T) {
	months := []validate.MonthCount{{Table: "dim_date", Month: "2023-01", Rows: 31}}
	tr := clitest.NewTestRenderer(output.ModeJSON, false)
	require.NoError(t, tr.JSON(validateOutput{Passed: true, Checks: output.NewChecksSummary(nil, true), ByMonth: months}))
	assert.Contains(t, tr.Output(), `"month": "2023-01"`)
}
