package observ_test

import (
	"bytes"
	"strings"
	"testing"

	"pipegen/internal/observ"
)

func TestTimer_Report(t *testing.T) {
	tm := observ.NewTimer()
	end := tm.Track("resolve")
	end("12 frames")
	tm.Track("emit")("")

	r := tm.Report()
	if len(r.Phases) != 2 {
		t.Fatalf("Report() has %d phases, want 2", len(r.Phases))
	}
	if r.Phases[0].Name != "resolve" || r.Phases[0].Note != "12 frames" {
		t.Fatalf("Phases[0] = %+v, want resolve with note", r.Phases[0])
	}
	if r.TotalMS < r.Phases[0].DurationMS {
		t.Fatalf("TotalMS = %v, want at least the first phase", r.TotalMS)
	}

	var buf bytes.Buffer
	if err := r.Write(&buf, "checkout"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"checkout built in", "  resolve ", "  emit    ", "(12 frames)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("Write() = %q, missing %q", out, want)
		}
	}
}

func TestTimer_EmptyReport(t *testing.T) {
	r := observ.NewTimer().Report()
	if len(r.Phases) != 0 || r.TotalMS != 0 {
		t.Fatalf("Report() = %+v, want zero", r)
	}
	var buf bytes.Buffer
	if err := r.Write(&buf, "x"); err != nil || buf.Len() != 0 {
		t.Fatalf("Write() = %q, %v, want nothing", buf.String(), err)
	}
}
