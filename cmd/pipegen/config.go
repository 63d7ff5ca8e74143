package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pipegen/internal/engine"
)

var configNames = []string{"pipegen.toml", "pipegen.yaml", "pipegen.yml"}

type fileConfig struct {
	Engine engine.Config `toml:"engine" yaml:"engine"`
	Trace  traceConfig   `toml:"trace" yaml:"trace"`

	// Path is the file the config was read from, empty for defaults.
	Path string `toml:"-" yaml:"-"`
}

type traceConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Output string `toml:"output" yaml:"output"`
	Mode   string `toml:"mode" yaml:"mode"`
}

func findConfig(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		for _, name := range configNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, true, nil
			} else if !errors.Is(err, os.ErrNotExist) {
				return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// loadConfig reads path over the engine defaults. Relative paths in the file
// are taken from the file's directory.
func loadConfig(path string) (fileConfig, error) {
	cfg := fileConfig{Engine: engine.DefaultConfig(), Path: path}
	switch filepath.Ext(path) {
	case ".toml":
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return fileConfig{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return fileConfig{}, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
		}
		if meta.IsDefined("engine", "strategy") && cfg.Engine.Strategy == "" {
			return fileConfig{}, fmt.Errorf("%s: empty [engine].strategy", path)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fileConfig{}, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return fileConfig{}, fmt.Errorf("%s: failed to parse YAML: %w", path, err)
		}
	default:
		return fileConfig{}, fmt.Errorf("%s: unsupported config format", path)
	}

	root := filepath.Dir(path)
	if cfg.Engine.Path != "" && !filepath.IsAbs(cfg.Engine.Path) {
		cfg.Engine.Path = filepath.Join(root, cfg.Engine.Path)
	}
	if cfg.Engine.ModuleDir != "" && !filepath.IsAbs(cfg.Engine.ModuleDir) {
		cfg.Engine.ModuleDir = filepath.Join(root, cfg.Engine.ModuleDir)
	}
	if err := cfg.Engine.Validate(); err != nil {
		return fileConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// loadConfigFor resolves the config for cmd: --config, then a discovered
// file, then defaults. --strategy overrides the file.
func loadConfigFor(cmd *cobra.Command) (fileConfig, error) {
	flags := cmd.Root().PersistentFlags()
	path, err := flags.GetString("config")
	if err != nil {
		return fileConfig{}, err
	}
	cfg := fileConfig{Engine: engine.DefaultConfig()}
	if path == "" {
		found, ok, err := findConfig(".")
		if err != nil {
			return fileConfig{}, err
		}
		if ok {
			path = found
		}
	}
	if path != "" {
		if cfg, err = loadConfig(path); err != nil {
			return fileConfig{}, err
		}
	}
	if strategy, _ := flags.GetString("strategy"); strategy != "" {
		cfg.Engine.Strategy = engine.StrategyKind(strategy)
	}
	if n, _ := flags.GetInt("max-diagnostics"); n != 0 {
		cfg.Engine.MaxDiagnostics = n
	}
	if err := cfg.Engine.Validate(); err != nil {
		return fileConfig{}, err
	}
	return cfg, nil
}
