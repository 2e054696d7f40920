// Package commands implements the mktwh subcommands.
package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/mktwh/internal/cli/config"
	"github.com/leapstack-labs/mktwh/internal/cli/output"
	"github.com/leapstack-labs/mktwh/internal/metrics"
	"github.com/leapstack-labs/mktwh/internal/pipeline"
	"github.com/leapstack-labs/mktwh/internal/state"
	"github.com/leapstack-labs/mktwh/internal/warehouse"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the configuration the root
// command stored in cmd's context.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	mode := output.Mode(cfg.OutputFormat)
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode),
	}, nil
}

// Layout returns the configured warehouse layout.
func (c *CommandContext) Layout() warehouse.Layout {
	return warehouse.Layout{Root: c.Cfg.WarehouseDir}
}

// OpenStore opens the run ledger, creating its directory and schema.
// The caller closes the store.
func (c *CommandContext) OpenStore() (*state.SQLiteStore, error) {
	stateDir := filepath.Dir(c.Cfg.StatePath)
	if stateDir != "." && stateDir != "" {
		if err := os.MkdirAll(stateDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	store := state.NewSQLiteStore(c.Logger)
	if err := store.Open(c.Cfg.StatePath); err != nil {
		return nil, err
	}
	if err := store.InitSchema(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// OpenExistingStore opens the run ledger only if it exists.
func (c *CommandContext) OpenExistingStore() (*state.SQLiteStore, error) {
	if _, err := os.Stat(c.Cfg.StatePath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("run ledger not found at %s (run 'mktwh build' first)", c.Cfg.StatePath)
	}
	return c.OpenStore()
}

// PipelineConfig assembles the orchestrator configuration.
func (c *CommandContext) PipelineConfig(store *state.SQLiteStore, skipValidate bool) (pipeline.Config, error) {
	window, err := c.Cfg.CoreWindow()
	if err != nil {
		return pipeline.Config{}, err
	}
	pc := pipeline.Config{
		DataDir:      c.Cfg.DataDir,
		ReferenceDir: c.Cfg.ReferenceDir,
		Layout:       c.Layout(),
		Window:       window,
		Tolerance:    c.Cfg.Reconcile.Tolerance,
		SkipValidate: skipValidate,
		Metrics:      metrics.New(),
		MetricsPath:  c.Cfg.MetricsPath,
		Logger:       c.Logger,
	}
	if store != nil {
		pc.Store = store
	}
	return pc, nil
}
