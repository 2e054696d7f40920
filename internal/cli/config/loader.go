package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	intconfig "github.com/leapstack-labs/mktwh/internal/config"
	"github.com/leapstack-labs/mktwh/pkg/core"
)

// EnvPrefix prefixes every environment variable read by the loader.
const EnvPrefix = "MKTWH_"

// configNames are the file names searched for, in order.
var configNames = []string{"mktwh.yaml", "mktwh.yml"}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// nestedKeys maps flat flag and environment names to nested config keys.
var nestedKeys = map[string]string{
	"state":               "state_path",
	"metrics":             "metrics_path",
	"window_start":        "window.start",
	"window_end":          "window.end",
	"tolerance":           "reconcile.tolerance",
	"reconcile_tolerance": "reconcile.tolerance",
	"reference_url":       "reference.url",
	"reference_retries":   "reference.retries",
	"reference_timeout":   "reference.timeout",
	"reference_codes":     "reference.codes",
}

// canonicalKey turns a flag or env name into a config key.
func canonicalKey(name string) string {
	key := strings.ToLower(strings.ReplaceAll(name, "-", "_"))
	if nested, ok := nestedKeys[key]; ok {
		return nested
	}
	return key
}

// Defaults returns the default configuration values keyed by config key.
func Defaults() map[string]any {
	return map[string]any{
		"data_dir":            intconfig.DefaultDataDir,
		"reference_dir":       intconfig.DefaultReferenceDir,
		"warehouse_dir":       intconfig.DefaultWarehouseDir,
		"state_path":          intconfig.DefaultStateFile,
		"metrics_path":        "",
		"window.start":        intconfig.DefaultWindowStart,
		"window.end":          intconfig.DefaultWindowEnd,
		"reconcile.tolerance": intconfig.DefaultTolerance,
		"reference.url":       intconfig.DefaultReferenceURL,
		"reference.retries":   intconfig.DefaultReferenceRetries,
		"reference.timeout":   intconfig.DefaultReferenceTimeout.String(),
		"reference.codes":     append([]string(nil), intconfig.DefaultAirportCodes...),
		"verbose":             false,
		"output":              OutputAuto,
	}
}

// findConfigUpward searches upward from startDir for a config file.
func findConfigUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		for _, name := range configNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// Load builds the configuration.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
// Relative paths from the file or defaults resolve against the directory of
// the config file, or the working directory when there is none; relative
// paths given as flags resolve against the working directory.
// It returns the config and the path of the file used, if any.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, string, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load defaults: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get working directory: %w", err)
	}
	if cfgFile == "" {
		cfgFile = findConfigUpward(cwd)
	}
	root := cwd
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, "", fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
		if abs, err := filepath.Abs(cfgFile); err == nil {
			root = filepath.Dir(abs)
		}
	}

	// MKTWH_WINDOW_START -> window.start
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return canonicalKey(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load env vars: %w", err)
	}

	flagPaths := map[string]string{}
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			key := canonicalKey(f.Name)
			if strings.HasSuffix(key, "_dir") || strings.HasSuffix(key, "_path") {
				flagPaths[key] = f.Value.String()
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, "", fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToTimeHookFunc(core.DateLayout),
				mapstructure.StringToSliceHookFunc(","),
			),
			Metadata:         nil,
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, "", fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.ProjectRoot = root
	resolve := func(key string, p *string) {
		if *p == "" || filepath.IsAbs(*p) {
			return
		}
		if _, ok := flagPaths[key]; ok {
			*p = filepath.Join(cwd, *p)
			return
		}
		*p = filepath.Join(root, *p)
	}
	resolve("data_dir", &cfg.DataDir)
	resolve("reference_dir", &cfg.ReferenceDir)
	resolve("warehouse_dir", &cfg.WarehouseDir)
	resolve("state_path", &cfg.StatePath)
	resolve("metrics_path", &cfg.MetricsPath)

	for i, code := range cfg.Reference.Codes {
		cfg.Reference.Codes[i] = strings.TrimSpace(code)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, cfgFile, nil
}

type (
	configKey struct{}
	loggerKey struct{}
)

// WithConfig returns a context carrying cfg.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config stored by WithConfig, or nil.
func FromContext(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	return nil
}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}
