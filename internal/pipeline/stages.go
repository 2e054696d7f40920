package pipeline

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/mktwh/internal/dimension"
	"github.com/leapstack-labs/mktwh/internal/fact"
	"github.com/leapstack-labs/mktwh/internal/table"
	"github.com/leapstack-labs/mktwh/internal/validate"
	"github.com/leapstack-labs/mktwh/internal/warehouse"
	"github.com/leapstack-labs/mktwh/pkg/core"
)

// StageValidate is the name of the final validation stage.
const StageValidate = "validate"

// Stage is one node of the build graph.
type Stage struct {
	Name  string
	Phase core.Phase
	run   func(ctx context.Context, b *build) (*outcome, error)
}

// outcome is what a stage reports back to the orchestrator.
type outcome struct {
	RowsIn  int
	RowsOut int
	Tables  []*table.Table
	Report  *validate.Report
}

// dimensionStages returns the dimension stages in catalog order.
func dimensionStages() []*Stage {
	return []*Stage{
		{Name: warehouse.DimDate, Phase: core.PhaseDimension, run: buildDimDate},
		{Name: warehouse.DimGeography, Phase: core.PhaseDimension, run: buildDimGeography},
		{Name: warehouse.DimChannel, Phase: core.PhaseDimension, run: staticDimension(dimension.BuildChannel)},
		{Name: warehouse.DimCampaignInitiative, Phase: core.PhaseDimension, run: staticDimension(dimension.BuildCampaignInitiative)},
		{Name: warehouse.DimPodcast, Phase: core.PhaseDimension, run: buildDimPodcast},
	}
}

// factStages wraps every fact transform as a stage.
func factStages() []*Stage {
	stages := make([]*Stage, 0, len(fact.Transforms))
	for _, tr := range fact.Transforms {
		stages = append(stages, &Stage{Name: tr.Name, Phase: core.PhaseFact, run: factStage(tr)})
	}
	return stages
}

func validateStage() *Stage {
	return &Stage{Name: StageValidate, Phase: core.PhaseValidate, run: runValidate}
}

func buildDimDate(_ context.Context, b *build) (*outcome, error) {
	t, err := dimension.BuildDate(b.cfg.Window, b.cfg.Seasons)
	if err != nil {
		return nil, err
	}
	return b.writeDimension(t, 0)
}

func buildDimGeography(_ context.Context, b *build) (*outcome, error) {
	in, err := dimension.LoadGeographyInput(b.cfg.Registry, b.cfg.DataDir)
	if err != nil {
		return nil, err
	}
	t, err := dimension.BuildGeography(in, b.lookup, b.inferrer, b.logger)
	if err != nil {
		return nil, err
	}
	return b.writeDimension(t, in.RowsRead)
}

func buildDimPodcast(_ context.Context, b *build) (*outcome, error) {
	names, read, err := dimension.LoadPodcastNames(b.cfg.Registry, b.cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", warehouse.DimPodcast, err)
	}
	return b.writeDimension(dimension.BuildPodcast(names, b.inferrer), read)
}

func staticDimension(fn func() *table.Table) func(context.Context, *build) (*outcome, error) {
	return func(_ context.Context, b *build) (*outcome, error) {
		return b.writeDimension(fn(), 0)
	}
}

func factStage(tr fact.Transform) func(context.Context, *build) (*outcome, error) {
	return func(_ context.Context, b *build) (*outcome, error) {
		env := fact.Env{
			Registry: b.cfg.Registry,
			DataDir:  b.cfg.DataDir,
			Window:   b.cfg.Window,
			Lookup:   b.lookup,
			Logger:   b.logger.With("stage", tr.Name),
		}
		res, err := fact.Run(tr, env, b.cfg.Layout)
		if err != nil {
			return nil, err
		}
		return &outcome{RowsIn: res.RowsIn, RowsOut: res.RowsOut(), Tables: res.Tables}, nil
	}
}

func runValidate(_ context.Context, b *build) (*outcome, error) {
	report, err := validate.Run(validate.Config{
		Layout:    b.cfg.Layout,
		Registry:  b.cfg.Registry,
		DataDir:   b.cfg.DataDir,
		Window:    b.cfg.Window,
		Tolerance: b.cfg.Tolerance,
		Logger:    b.logger.With("stage", StageValidate),
	})
	if err != nil {
		return nil, err
	}
	out := &outcome{Report: report, RowsOut: len(report.Checks)}
	for _, n := range report.Rows {
		out.RowsIn += n
	}
	return out, report.Err()
}

// writeDimension checks a dimension's key and writes it.
func (b *build) writeDimension(t *table.Table, rowsIn int) (*outcome, error) {
	if err := table.CheckGrain(t); err != nil {
		return nil, err
	}
	path, err := b.cfg.Layout.Write(t)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.Name, err)
	}
	b.logger.Info("wrote dimension", "table", t.Name, "rows_in", rowsIn, "rows_out", t.Len(), "path", path)
	return &outcome{RowsIn: rowsIn, RowsOut: t.Len(), Tables: []*table.Table{t}}, nil
}
