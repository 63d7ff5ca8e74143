package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"pipegen/internal/compile"
	"pipegen/internal/diag"
	"pipegen/internal/engine"
	"pipegen/internal/version"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestFindConfigWalksUp(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pipegen.yaml"), "engine:\n  strategy: memory\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	got, ok, err := findConfig(nested)
	if err != nil || !ok {
		t.Fatalf("findConfig() = %q, %v, %v, want found", got, ok, err)
	}
	if want := filepath.Join(root, "pipegen.yaml"); got != want {
		t.Fatalf("findConfig() = %q, want %q", got, want)
	}
}

func TestLoadConfigTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipegen.toml")
	writeFile(t, path, `
[engine]
strategy = "durable"
path = "cache"
optimization = "release"

[trace]
level = "phase"
`)
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Engine.Strategy != engine.StrategyDurable {
		t.Fatalf("Strategy = %q, want durable", cfg.Engine.Strategy)
	}
	if want := filepath.Join(dir, "cache"); cfg.Engine.Path != want {
		t.Fatalf("Path = %q, want %q", cfg.Engine.Path, want)
	}
	if cfg.Engine.Optimization != compile.Release {
		t.Fatalf("Optimization = %v, want release", cfg.Engine.Optimization)
	}
	if cfg.Engine.App != "pipegen" {
		t.Fatalf("App = %q, want default pipegen", cfg.Engine.App)
	}
	if cfg.Trace.Level != "phase" {
		t.Fatalf("Trace.Level = %q, want phase", cfg.Trace.Level)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipegen.yml")
	writeFile(t, path, "engine:\n  strategy: plugin\n  module_dir: ../host\n")
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if want := filepath.Join(filepath.Dir(dir), "host"); cfg.Engine.ModuleDir != want {
		t.Fatalf("ModuleDir = %q, want %q", cfg.Engine.ModuleDir, want)
	}
}

func TestLoadConfigRejects(t *testing.T) {
	cases := map[string]string{
		"unknown.toml":  "[engine]\nstrategy = \"memory\"\ncolour = \"red\"\n",
		"durable.toml":  "[engine]\nstrategy = \"durable\"\n",
		"strategy.yaml": "engine:\n  strategy: remote\n",
		"opt.toml":      "[engine]\noptimization = \"fast\"\n",
	}
	for name, content := range cases {
		path := filepath.Join(t.TempDir(), name)
		writeFile(t, path, content)
		if _, err := loadConfig(path); err == nil {
			t.Fatalf("loadConfig(%s) error = nil, want failure", name)
		}
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipegen.toml")
	writeFile(t, path, "[engine]\nstrategy = \"memory\"\n")
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--config", path, "--color", "off"}, args...))
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRunCommand(t *testing.T) {
	out, _, err := execute(t, "run", "balance", "token=t-alice", "account=alice")
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if !strings.Contains(out, "Amount:100") || !strings.Contains(out, "Currency:EUR") {
		t.Fatalf("run output = %q, want alice's balance", out)
	}

	out, _, err = execute(t, "run", "balance", "token=nope", "account=alice")
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if !strings.Contains(out, "status: unauthenticated") {
		t.Fatalf("run output = %q, want unauthenticated status", out)
	}

	if _, _, err := execute(t, "run", "balance", "account"); err == nil {
		t.Fatalf("run with malformed argument error = nil")
	}
}

func TestOpsCommand(t *testing.T) {
	out, _, err := execute(t, "ops")
	if err != nil {
		t.Fatalf("ops error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "accounts()") || !strings.HasPrefix(lines[2], "transfer(") {
		t.Fatalf("ops output = %q", out)
	}
}

func TestPreviewCommand(t *testing.T) {
	out, _, err := execute(t, "preview", "transfer")
	if err != nil {
		t.Fatalf("preview error: %v", err)
	}
	if !strings.Contains(out, "defer tx.Close()") {
		t.Fatalf("preview output lacks the transaction cleanup:\n%s", out)
	}
}

func TestWarmCommandPlain(t *testing.T) {
	out, _, err := execute(t, "warm", "--ui", "off", "balance", "accounts")
	if err != nil {
		t.Fatalf("warm error: %v", err)
	}
	if strings.Count(out, "compiled") != 2 {
		t.Fatalf("warm output = %q, want two compiled lines", out)
	}
}

func TestReadUIMode(t *testing.T) {
	for in, want := range map[string]uiMode{"": uiModeAuto, " ON ": uiModeOn, "off": uiModeOff} {
		got, err := readUIMode(in)
		if err != nil || got != want {
			t.Fatalf("readUIMode(%q) = %q, %v, want %q", in, got, err, want)
		}
	}
	if _, err := readUIMode("sometimes"); err == nil {
		t.Fatalf("readUIMode(sometimes) error = nil")
	}
	if shouldUseTUI(uiModeOff, os.Stdout) || !shouldUseTUI(uiModeOn, os.Stdout) {
		t.Fatalf("shouldUseTUI() ignored an explicit mode")
	}
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error: %v", err)
	}
	if !strings.HasPrefix(out, "pipegen "+version.Version) || strings.Contains(out, "commit:") {
		t.Fatalf("version output = %q, want only the version line", out)
	}

	out, _, err = execute(t, "version", "--hash", "--format", "json")
	if err != nil {
		t.Fatalf("version --format json error: %v", err)
	}
	var info version.Info
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("version json = %q: %v", out, err)
	}
	if info.Version != version.Version || info.Go == "" {
		t.Fatalf("version json = %+v", info)
	}
	if info.Message != "" || (version.GitCommit == "" && info.Commit != "unknown") {
		t.Fatalf("version json = %+v, want only the commit selected", info)
	}

	if _, _, err := execute(t, "version", "--format", "xml"); err == nil {
		t.Fatal("version --format xml should fail")
	}
}

func TestRecordTable(t *testing.T) {
	orig := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = orig }()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	out := recordTable([]compile.Record{
		{Key: "0123456789abcdef0123", Unit: "balance", Backend: "memory", Optimization: "release", Created: created},
		{Key: "fedcba9876543210fedc", Unit: "transfer", Backend: "memory", Optimization: "debug", Broken: true,
			Diagnostics: make([]diag.Diagnostic, 2), Created: created},
	})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("recordTable() = %q, want a header and two rows", out)
	}
	if !strings.HasPrefix(lines[0], "KEY") || !strings.Contains(lines[0], "STATE") {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "0123456789ab ") || strings.Contains(lines[1], "0123456789abc") {
		t.Fatalf("row = %q, want the key cut to 12 characters", lines[1])
	}
	if !strings.Contains(lines[2], "broken (2)") {
		t.Fatalf("row = %q, want the broken state", lines[2])
	}
	if strings.Index(lines[1], "memory") != strings.Index(lines[2], "memory") {
		t.Fatalf("columns are not aligned:\n%s", out)
	}
}
