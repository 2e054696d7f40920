// Package config loads the mktwh CLI configuration.
//
// Values are layered with koanf: defaults, then mktwh.yaml (searched upward
// from the working directory), then MKTWH_ environment variables, then
// explicitly set flags.
package config

import (
	"time"

	"github.com/leapstack-labs/mktwh/pkg/core"
)

// Output modes.
const (
	OutputAuto     = "auto"
	OutputText     = "text"
	OutputMarkdown = "markdown"
	OutputJSON     = "json"
)

// Config holds all CLI configuration options.
type Config struct {
	DataDir      string          `koanf:"data_dir" validate:"required"`
	ReferenceDir string          `koanf:"reference_dir" validate:"required"`
	WarehouseDir string          `koanf:"warehouse_dir" validate:"required"`
	StatePath    string          `koanf:"state_path" validate:"required"`
	MetricsPath  string          `koanf:"metrics_path"`
	Window       WindowConfig    `koanf:"window"`
	Reconcile    ReconcileConfig `koanf:"reconcile"`
	Reference    ReferenceConfig `koanf:"reference"`
	Verbose      bool            `koanf:"verbose"`
	OutputFormat string          `koanf:"output" validate:"oneof=auto text markdown json"`

	// ProjectRoot is the directory relative paths were resolved against.
	ProjectRoot string `koanf:"-"`
}

// WindowConfig bounds every date in the warehouse, inclusive.
type WindowConfig struct {
	Start time.Time `koanf:"start" validate:"required"`
	End   time.Time `koanf:"end" validate:"required,gtefield=Start"`
}

// ReconcileConfig controls the raw-versus-warehouse totals check.
type ReconcileConfig struct {
	Tolerance float64 `koanf:"tolerance" validate:"gte=0"`
}

// ReferenceConfig controls `mktwh reference fetch`.
type ReferenceConfig struct {
	URL     string        `koanf:"url" validate:"required,url"`
	Retries int           `koanf:"retries" validate:"gte=0,lte=10"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
	Codes   []string      `koanf:"codes" validate:"min=1,dive,len=3,uppercase"`
}

// CoreWindow returns the configured window as a core.Window.
func (c *Config) CoreWindow() (core.Window, error) {
	return core.NewWindow(c.Window.Start, c.Window.End)
}
