// Package observ measures the phases of an operation build.
package observ

import (
	"fmt"
	"io"
	"time"

	"github.com/mattn/go-runewidth"
)

type phase struct {
	name  string
	start time.Time
	dur   time.Duration
	note  string
}

// Timer records named phases in the order they start. It is not safe for
// concurrent use; each build owns one.
type Timer struct {
	phases []phase
}

func NewTimer() *Timer { return &Timer{phases: make([]phase, 0, 8)} }

// Track starts phase name and returns the func that ends it with a note.
// Calling the func again moves the end.
func (t *Timer) Track(name string) func(note string) {
	t.phases = append(t.phases, phase{name: name, start: time.Now()})
	idx := len(t.phases) - 1
	return func(note string) {
		p := &t.phases[idx]
		p.dur = time.Since(p.start)
		p.note = note
	}
}

// PhaseReport is one finished phase.
type PhaseReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Note       string  `json:"note,omitempty"`
}

// Report is the timing summary of one build.
type Report struct {
	TotalMS float64       `json:"total_ms"`
	Phases  []PhaseReport `json:"phases"`
}

func (t *Timer) Report() Report {
	if len(t.phases) == 0 {
		return Report{}
	}
	r := Report{Phases: make([]PhaseReport, len(t.phases))}
	var total time.Duration
	for i, p := range t.phases {
		total += p.dur
		r.Phases[i] = PhaseReport{Name: p.name, DurationMS: millis(p.dur), Note: p.note}
	}
	r.TotalMS = millis(total)
	return r
}

// Write prints the report under title with the phase names aligned. An empty
// report prints nothing.
func (r Report) Write(w io.Writer, title string) error {
	if len(r.Phases) == 0 {
		return nil
	}
	width := 0
	for _, p := range r.Phases {
		width = max(width, runewidth.StringWidth(p.Name))
	}
	if _, err := fmt.Fprintf(w, "%s built in %.1f ms\n", title, r.TotalMS); err != nil {
		return err
	}
	for _, p := range r.Phases {
		line := fmt.Sprintf("  %s %8.2f ms", runewidth.FillRight(p.Name, width), p.DurationMS)
		if p.Note != "" {
			line += "  (" + p.Note + ")"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
