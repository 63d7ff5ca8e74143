package compile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"plugin"

	"pipegen/internal/cachekey"
	"pipegen/internal/diag"
	"pipegen/internal/emit"
)

// DefaultBuildDir is where Plugin writes units, relative to the module root.
const DefaultBuildDir = ".pipegen/build"

// Plugin builds each unit as a Go plugin with the host toolchain. Units are
// written inside the host module so they can import its packages.
type Plugin struct {
	// ModuleDir is the root of the host module (the directory holding go.mod).
	ModuleDir string
	// BuildDir is relative to ModuleDir. Empty means DefaultBuildDir.
	BuildDir string
	// GoBin is the go command. Empty means "go" from PATH.
	GoBin string
}

func (*Plugin) Name() string { return "plugin" }

// Package is always main: go build -buildmode=plugin requires it.
func (*Plugin) Package(string) string { return "main" }

func (p *Plugin) Compile(ctx context.Context, u Unit) (*Artifact, error) {
	if p.ModuleDir == "" {
		return nil, errors.New("compile: plugin backend needs a module directory")
	}
	buildDir := p.BuildDir
	if buildDir == "" {
		buildDir = DefaultBuildDir
	}
	key := cachekey.Unit("", u.Name, u.Optimization.String(), u.Source)
	rel := filepath.Join(buildDir, Stem(u.Name)+"-"+key.Short())
	dir := filepath.Join(p.ModuleDir, rel)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, u.FileName()), u.Source, 0o600); err != nil {
		return nil, fmt.Errorf("compile: write unit: %w", err)
	}

	out := filepath.Join(dir, Stem(u.Name)+".so")
	args := []string{"build", "-buildmode=plugin", "-o", out}
	if u.Optimization == Debug {
		args = append(args, "-gcflags=all=-N -l")
	}
	args = append(args, "./"+filepath.ToSlash(rel))

	gobin := p.GoBin
	if gobin == "" {
		gobin = "go"
	}
	cmd := exec.CommandContext(ctx, gobin, args...)
	cmd.Dir = p.ModuleDir
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("compile: run %s: %w", gobin, err)
		}
		return nil, &Failure{
			Unit:        u.Name,
			Backend:     p.Name(),
			Source:      u.Source,
			Diagnostics: Diagnose(u, diag.CompileError, output.String()),
		}
	}
	return p.Reopen(ctx, u, out)
}

// Reopen loads a plugin built earlier.
func (p *Plugin) Reopen(_ context.Context, u Unit, path string) (*Artifact, error) {
	plug, err := plugin.Open(path)
	if err != nil {
		return nil, &Failure{
			Unit:        u.Name,
			Backend:     p.Name(),
			Source:      u.Source,
			Diagnostics: []diag.Diagnostic{diag.NewError(diag.LoadOpenFailed, diag.Location{File: path}, err.Error())},
		}
	}
	sym, err := plug.Lookup(emit.EntryPoint)
	if err != nil {
		return nil, &Failure{
			Unit:        u.Name,
			Backend:     p.Name(),
			Source:      u.Source,
			Diagnostics: []diag.Diagnostic{diag.NewError(diag.LoadMissingEntry, diag.Location{File: path}, err.Error())},
		}
	}
	return &Artifact{Unit: u.Name, Backend: p.Name(), Path: path, entry: any(sym)}, nil
}
