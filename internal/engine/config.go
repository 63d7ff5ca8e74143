package engine

import (
	"errors"
	"fmt"
	"path/filepath"

	"pipegen/internal/compile"
	"pipegen/internal/types"
)

// StrategyKind names a compile backend.
type StrategyKind string

const (
	StrategyMemory  StrategyKind = "memory"
	StrategyDurable StrategyKind = "durable"
	StrategyPlugin  StrategyKind = "plugin"
)

// Config selects how operations are compiled.
type Config struct {
	Strategy StrategyKind `toml:"strategy" yaml:"strategy"`
	// Backend is the strategy wrapped by the durable cache: memory or plugin.
	Backend StrategyKind `toml:"backend" yaml:"backend"`
	// Path is the durable cache directory.
	Path         string               `toml:"path" yaml:"path"`
	Optimization compile.Optimization `toml:"optimization" yaml:"optimization"`
	// Unit prefixes the unit name of every operation.
	Unit string `toml:"unit" yaml:"unit"`
	// App is mixed into durable cache keys.
	App string `toml:"app" yaml:"app"`
	// ModuleDir is the host module root used by the plugin backend.
	ModuleDir string `toml:"module_dir" yaml:"module_dir"`
	// MaxDiagnostics bounds the diagnostics kept per failed build; 0 means
	// DefaultMaxDiagnostics.
	MaxDiagnostics int `toml:"max_diagnostics" yaml:"max_diagnostics"`
}

// DefaultMaxDiagnostics is used when Config.MaxDiagnostics is 0.
const DefaultMaxDiagnostics = 50

// DefaultConfig compiles in memory with debug markers.
func DefaultConfig() Config {
	return Config{
		Strategy:     StrategyMemory,
		Backend:      StrategyMemory,
		Optimization: compile.Debug,
		Unit:         "unit",
		App:          "pipegen",
	}
}

// Validate reports missing settings for the chosen strategy.
func (c Config) Validate() error {
	var errs []error
	switch c.Strategy {
	case StrategyMemory:
	case StrategyPlugin:
		if c.ModuleDir == "" {
			errs = append(errs, errors.New("plugin strategy needs module_dir"))
		}
	case StrategyDurable:
		if c.Path == "" {
			errs = append(errs, errors.New("durable strategy needs path"))
		}
		switch c.Backend {
		case "", StrategyMemory:
		case StrategyPlugin:
			if c.ModuleDir == "" {
				errs = append(errs, errors.New("durable plugin backend needs module_dir"))
			}
		default:
			errs = append(errs, fmt.Errorf("invalid durable backend %q (expected: memory|plugin)", c.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid strategy %q (expected: memory|durable|plugin)", c.Strategy))
	}
	if c.MaxDiagnostics < 0 {
		errs = append(errs, fmt.Errorf("max_diagnostics must not be negative, got %d", c.MaxDiagnostics))
	}
	return errors.Join(errs...)
}

func (c Config) diagnosticLimit() int {
	if c.MaxDiagnostics == 0 {
		return DefaultMaxDiagnostics
	}
	return c.MaxDiagnostics
}

// UnitName is the unit name used for operation op.
func (c Config) UnitName(op string) string {
	if c.Unit == "" {
		return op
	}
	return c.Unit + "." + op
}

// NewStrategy builds the compile backend described by cfg.
func NewStrategy(cfg Config, tbl *types.Table) (compile.Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	switch cfg.Strategy {
	case StrategyPlugin:
		return &compile.Plugin{ModuleDir: cfg.ModuleDir}, nil
	case StrategyDurable:
		var backend compile.Strategy = compile.NewInterpreter(tbl)
		if cfg.Backend == StrategyPlugin {
			backend = &compile.Plugin{ModuleDir: cfg.ModuleDir}
		}
		return compile.NewDurable(filepath.Clean(cfg.Path), cfg.App, backend), nil
	default:
		return compile.NewInterpreter(tbl), nil
	}
}
