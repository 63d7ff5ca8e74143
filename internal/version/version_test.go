package version_test

import (
	"runtime"
	"testing"

	"github.com/fatih/color"

	"pipegen/internal/version"
)

func TestCurrent(t *testing.T) {
	orig, origCommit := version.Version, version.GitCommit
	defer func() { version.Version, version.GitCommit = orig, origCommit }()

	version.Version = "  "
	version.GitCommit = " abc123\n"
	info := version.Current()
	if info.Version != "dev" {
		t.Fatalf("Current().Version = %q, want dev for an empty stamp", info.Version)
	}
	if info.Commit != "abc123" {
		t.Fatalf("Current().Commit = %q, want abc123", info.Commit)
	}
	if info.Go != runtime.Version() {
		t.Fatalf("Current().Go = %q, want %q", info.Go, runtime.Version())
	}
}

func TestStyled(t *testing.T) {
	orig := color.NoColor
	defer func() { color.NoColor = orig }()

	color.NoColor = true
	for _, v := range []string{"0.1.0", "0.1.0-dev", "1.2.3-rc.1+build.123", "dev", "1.2"} {
		if got := version.Styled(v); got != v {
			t.Fatalf("Styled(%q) = %q, want it unchanged without colour", v, got)
		}
	}

	color.NoColor = false
	if got := version.Styled("1.2.3-dev"); got == "1.2.3-dev" {
		t.Fatalf("Styled() = %q, want colour codes", got)
	}
}
