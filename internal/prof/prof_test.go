package prof_test

import (
	"os"
	"path/filepath"
	"testing"

	"pipegen/internal/prof"
)

func TestSessionWritesProfiles(t *testing.T) {
	dir := t.TempDir()
	opts := prof.Options{
		CPU:   filepath.Join(dir, "cpu.out"),
		Mem:   filepath.Join(dir, "mem.out"),
		Trace: filepath.Join(dir, "trace.out"),
	}
	s, err := prof.Start(opts)
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop() error: %v", err)
	}
	for _, path := range []string{opts.CPU, opts.Mem, opts.Trace} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("Stat(%s) error: %v", filepath.Base(path), err)
		}
		if info.Size() == 0 && path != opts.CPU {
			t.Fatalf("%s is empty", filepath.Base(path))
		}
	}
}

func TestStartFailsOnBadPath(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing", "cpu.out")
	if _, err := prof.Start(prof.Options{CPU: missing}); err == nil {
		t.Fatalf("Start() error = nil, want failure for %s", missing)
	}
}
