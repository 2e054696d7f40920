// Package pipeline orchestrates a full warehouse rebuild. Stages form an
// explicit graph (every dimension before every fact, every fact before
// validation) and run level by level, one at a time, in a stable order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/mktwh/internal/config"
	"github.com/leapstack-labs/mktwh/internal/dag"
	"github.com/leapstack-labs/mktwh/internal/dimension"
	"github.com/leapstack-labs/mktwh/internal/metrics"
	"github.com/leapstack-labs/mktwh/internal/reference"
	"github.com/leapstack-labs/mktwh/internal/source"
	"github.com/leapstack-labs/mktwh/internal/validate"
	"github.com/leapstack-labs/mktwh/internal/warehouse"
	"github.com/leapstack-labs/mktwh/pkg/core"
)

// Config holds everything a build needs.
type Config struct {
	DataDir      string
	ReferenceDir string
	Layout       warehouse.Layout
	Window       core.Window
	Tolerance    float64
	Seasons      []dimension.Season
	GeoKeywords  []dimension.StateKeywords
	Registry     *source.Registry
	SkipValidate bool

	// Store records the run ledger; nil disables it.
	Store core.Store
	// Metrics is populated during the run; nil disables it.
	Metrics *metrics.Metrics
	// MetricsPath is the Prometheus textfile written after the run; empty disables it.
	MetricsPath string

	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.Registry == nil {
		c.Registry = source.Default()
	}
	if c.Seasons == nil {
		c.Seasons = dimension.DefaultSeasons
	}
	if c.GeoKeywords == nil {
		c.GeoKeywords = dimension.DefaultGeoKeywords
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("data directory is required"))
	}
	if c.ReferenceDir == "" {
		errs = append(errs, fmt.Errorf("reference directory is required"))
	}
	if c.Layout.Root == "" {
		errs = append(errs, fmt.Errorf("warehouse directory is required"))
	}
	if err := c.Window.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("tolerance must be >= 0, got %v", c.Tolerance))
	}
	if err := dimension.ValidateSeasons(c.Seasons); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Result is the outcome of one build.
type Result struct {
	Run    *core.Run
	Stages []*core.StageRun
	// Report is nil when validation was skipped or never reached.
	Report *validate.Report
}

// Failed returns the stages that did not succeed.
func (r *Result) Failed() []*core.StageRun {
	var out []*core.StageRun
	for _, s := range r.Stages {
		if s.Status == core.StageStatusFailed {
			out = append(out, s)
		}
	}
	return out
}

// Orchestrator runs builds.
type Orchestrator struct {
	cfg    Config
	graph  *dag.Graph[*Stage]
	logger *slog.Logger
}

// New validates cfg and assembles the build graph.
func New(cfg Config) (*Orchestrator, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid build config: %w", err)
	}
	g, err := Graph(!cfg.SkipValidate)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{cfg: cfg, graph: g, logger: cfg.Logger}, nil
}

// Graph returns the stage graph: every dimension stage precedes every fact
// stage, and every fact stage precedes validation when withValidate is set.
func Graph(withValidate bool) (*dag.Graph[*Stage], error) {
	g := dag.NewGraph[*Stage]()
	dims, facts := dimensionStages(), factStages()
	for _, s := range dims {
		g.AddNode(s.Name, s)
	}
	for _, s := range facts {
		g.AddNode(s.Name, s)
	}
	if withValidate {
		v := validateStage()
		g.AddNode(v.Name, v)
	}

	for _, f := range facts {
		for _, d := range dims {
			if err := g.AddEdge(d.Name, f.Name); err != nil {
				return nil, err
			}
		}
		if withValidate {
			if err := g.AddEdge(f.Name, StageValidate); err != nil {
				return nil, err
			}
		}
	}
	if cycle := g.FindCycle(); cycle != nil {
		return nil, fmt.Errorf("stage graph has a cycle: %v", cycle)
	}
	return g, nil
}

// Graph returns the orchestrator's stage graph.
func (o *Orchestrator) Graph() *dag.Graph[*Stage] {
	return o.graph
}

// build is the state shared by the stages of one run.
type build struct {
	cfg      Config
	lookup   *reference.Lookup
	inferrer *dimension.Inferrer
	logger   *slog.Logger
}

// prepare loads the inputs shared by several stages.
func (b *build) prepare() error {
	inf, err := dimension.NewInferrer(b.cfg.GeoKeywords)
	if err != nil {
		return err
	}
	lookup, err := reference.LoadLookup(filepath.Join(b.cfg.ReferenceDir, config.AirportLookupFile))
	if err != nil {
		return fmt.Errorf("airport lookup: %w", err)
	}
	b.logger.Debug("loaded airport lookup", "airports", lookup.Len())
	if err := b.cfg.Layout.Prepare(); err != nil {
		return err
	}
	b.inferrer, b.lookup = inf, lookup
	return nil
}

// Build performs one full rebuild. The returned error is non-nil when any
// stage failed or any validation check failed; the Result is always populated
// as far as the run got.
func (o *Orchestrator) Build(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{}
	logger := o.logger
	logger.Info("starting build", "window", o.cfg.Window.String(), "warehouse", o.cfg.Layout.Root)

	// The ledger outlives a cancelled build.
	ledgerCtx := context.WithoutCancel(ctx)
	if o.cfg.Store != nil {
		run, err := o.cfg.Store.CreateRun(ledgerCtx, o.cfg.Window)
		if err != nil {
			return nil, fmt.Errorf("failed to create run: %w", err)
		}
		res.Run = run
		logger = logger.With("run_id", run.ID)
	}

	b := &build{cfg: o.cfg, logger: logger}
	runErr := o.execute(ctx, b, res)

	success := runErr == nil
	o.cfg.Metrics.RecordRun(success, time.Now())
	if err := o.cfg.Metrics.WriteTextfile(o.cfg.MetricsPath); err != nil {
		logger.Warn("metrics export failed", "error", err)
	}

	if o.cfg.Store != nil && res.Run != nil {
		status, msg := core.RunStatusCompleted, ""
		if runErr != nil {
			status, msg = core.RunStatusFailed, runErr.Error()
		}
		if err := o.cfg.Store.CompleteRun(ledgerCtx, res.Run.ID, status, msg); err != nil {
			logger.Warn("failed to complete run", "error", err)
		}
		if run, err := o.cfg.Store.GetRun(ledgerCtx, res.Run.ID); err == nil {
			res.Run = run
		}
	}

	if runErr != nil {
		logger.Error("build failed", "duration", time.Since(start), "error", runErr)
		return res, runErr
	}
	logger.Info("build completed", "duration", time.Since(start), "stages", len(res.Stages))
	return res, nil
}

func (o *Orchestrator) execute(ctx context.Context, b *build, res *Result) error {
	levels, err := o.graph.Levels()
	if err != nil {
		return err
	}

	// A failed preflight skips every stage.
	failure := b.prepare()
	for _, level := range levels {
		for _, id := range level {
			node, _ := o.graph.Node(id)
			stage := node.Data
			if failure == nil {
				if err := ctx.Err(); err != nil {
					failure = err
				}
			}
			if failure != nil {
				o.record(ctx, b, res, &core.StageRun{
					Stage:  stage.Name,
					Phase:  stage.Phase,
					Status: core.StageStatusSkipped,
				})
				continue
			}
			if err := o.runStage(ctx, b, stage, res); err != nil {
				failure = fmt.Errorf("stage %s: %w", stage.Name, err)
			}
		}
	}
	return failure
}

func (o *Orchestrator) runStage(ctx context.Context, b *build, stage *Stage, res *Result) error {
	b.logger.Debug("running stage", "stage", stage.Name, "phase", stage.Phase)
	start := time.Now()
	out, err := stage.run(ctx, b)
	elapsed := time.Since(start)

	sr := &core.StageRun{
		Stage:      stage.Name,
		Phase:      stage.Phase,
		Status:     core.StageStatusSuccess,
		DurationMS: elapsed.Milliseconds(),
	}
	if out != nil {
		sr.RowsIn = int64(out.RowsIn)
		sr.RowsOut = int64(out.RowsOut)
		o.observe(ctx, b, res, out)
	}
	if err != nil {
		sr.Status = core.StageStatusFailed
		sr.Error = err.Error()
	}
	o.cfg.Metrics.RecordStageDuration(stage.Name, elapsed)
	o.record(ctx, b, res, sr)
	return err
}

// observe pushes a stage outcome into metrics, the ledger and the result.
func (o *Orchestrator) observe(ctx context.Context, b *build, res *Result, out *outcome) {
	for _, t := range out.Tables {
		o.cfg.Metrics.RecordTableRows(t.Name, t.Len())
	}
	if out.Report == nil {
		return
	}
	res.Report = out.Report
	for _, d := range out.Report.Deltas {
		o.cfg.Metrics.RecordReconciliation(d.Table, d.Column, d.Delta.InexactFloat64())
	}
	o.cfg.Metrics.RecordChecks(out.Report.Checks)
	if o.cfg.Store != nil && res.Run != nil {
		if err := o.cfg.Store.RecordChecks(context.WithoutCancel(ctx), res.Run.ID, out.Report.Checks); err != nil {
			b.logger.Warn("failed to record checks", "error", err)
		}
	}
}

func (o *Orchestrator) record(ctx context.Context, b *build, res *Result, sr *core.StageRun) {
	res.Stages = append(res.Stages, sr)
	if o.cfg.Store == nil || res.Run == nil {
		return
	}
	sr.RunID = res.Run.ID
	if err := o.cfg.Store.RecordStageRun(context.WithoutCancel(ctx), sr); err != nil {
		b.logger.Warn("failed to record stage run", "stage", sr.Stage, "error", err)
	}
}
