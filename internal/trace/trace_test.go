package trace_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"pipegen/internal/trace"
)

func TestLevel_ShouldEmit(t *testing.T) {
	tests := []struct {
		level trace.Level
		scope trace.Scope
		want  bool
	}{
		{trace.LevelOff, trace.ScopeEngine, false},
		{trace.LevelPhase, trace.ScopeOperation, true},
		{trace.LevelPhase, trace.ScopeStage, false},
		{trace.LevelDetail, trace.ScopeStage, true},
		{trace.LevelDetail, trace.ScopeFrame, false},
		{trace.LevelDebug, trace.ScopeFrame, true},
	}
	for _, tt := range tests {
		if got := tt.level.ShouldEmit(tt.scope); got != tt.want {
			t.Fatalf("%s.ShouldEmit(%s) = %v, want %v", tt.level, tt.scope, got, tt.want)
		}
	}
}

func TestStart_NestsSpans(t *testing.T) {
	ring := trace.NewRingTracer(16, trace.LevelDetail)
	ctx := trace.WithTracer(context.Background(), ring)

	ctx, op := trace.Start(ctx, trace.ScopeOperation, "op:checkout")
	_, phase := trace.Start(ctx, trace.ScopeStage, "emit")
	phase.End("")
	op.End("ok")

	events := ring.Snapshot()
	if len(events) != 4 {
		t.Fatalf("Snapshot() has %d events, want 4", len(events))
	}
	if events[1].ParentID != op.ID() {
		t.Fatalf("emit parent = %d, want %d", events[1].ParentID, op.ID())
	}
	if events[3].Kind != trace.KindSpanEnd || events[3].Detail != "ok" {
		t.Fatalf("last event = %+v, want end with detail ok", events[3])
	}
}

func TestStart_DisabledScope(t *testing.T) {
	ring := trace.NewRingTracer(16, trace.LevelPhase)
	ctx := trace.WithTracer(context.Background(), ring)
	got, sp := trace.Start(ctx, trace.ScopeFrame, "frame 3")
	sp.End("")
	if got != ctx {
		t.Fatalf("Start() replaced the context for a filtered scope")
	}
	if n := len(ring.Snapshot()); n != 0 {
		t.Fatalf("Snapshot() has %d events, want 0", n)
	}
}

func TestStreamAndMulti(t *testing.T) {
	var buf bytes.Buffer
	stream := trace.NewStreamTracer(&buf, trace.LevelDetail, trace.FormatNDJSON)
	ring := trace.NewRingTracer(4, trace.LevelDetail)
	multi := trace.NewMultiTracer(trace.LevelDetail, stream, ring)
	ctx := trace.WithTracer(context.Background(), multi)

	trace.Mark(ctx, trace.ScopeStage, "cache", "hit")

	if !strings.Contains(buf.String(), `"name":"cache"`) {
		t.Fatalf("stream output = %q, want cache event", buf.String())
	}
	if n := len(ring.Snapshot()); n != 1 {
		t.Fatalf("ring has %d events, want 1", n)
	}
	if err := multi.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestParse(t *testing.T) {
	if lvl, err := trace.ParseLevel("detail"); err != nil || lvl != trace.LevelDetail {
		t.Fatalf("ParseLevel(detail) = %v, %v", lvl, err)
	}
	if _, err := trace.ParseLevel("loud"); err == nil {
		t.Fatalf("ParseLevel(loud) error = nil, want error")
	}
	if m, err := trace.ParseMode("both"); err != nil || m != trace.ModeBoth {
		t.Fatalf("ParseMode(both) = %v, %v", m, err)
	}
}

func TestNopFromContext(t *testing.T) {
	tr := trace.FromContext(context.Background())
	if tr.Enabled() {
		t.Fatalf("FromContext() without tracer is enabled")
	}
	tr.Emit(&trace.Event{Name: "ignored"})
}

func TestRingWrapsOldestFirst(t *testing.T) {
	ring := trace.NewRingTracer(3, trace.LevelDebug)
	ctx := trace.WithTracer(context.Background(), ring)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		trace.Mark(ctx, trace.ScopeFrame, name, "")
	}
	var names []string
	for _, ev := range ring.Snapshot() {
		names = append(names, ev.Name)
	}
	if got := strings.Join(names, ","); got != "c,d,e" {
		t.Fatalf("Snapshot() names = %s, want c,d,e", got)
	}
	var buf bytes.Buffer
	if err := ring.Dump(&buf, trace.FormatText); err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if n := strings.Count(buf.String(), "\n"); n != 3 {
		t.Fatalf("Dump() wrote %d lines, want 3", n)
	}
}

func TestNew(t *testing.T) {
	tr, err := trace.New(trace.Config{Level: trace.LevelOff})
	if err != nil || tr.Enabled() {
		t.Fatalf("New(off) = %v, %v, want disabled tracer", tr, err)
	}
	var buf bytes.Buffer
	tr, err = trace.New(trace.Config{Level: trace.LevelPhase, Mode: trace.ModeStream, Output: &buf})
	if err != nil {
		t.Fatalf("New(stream) error = %v", err)
	}
	ctx := trace.WithTracer(context.Background(), tr)
	_, sp := trace.Start(ctx, trace.ScopeOperation, "op:balance")
	sp.WithExtra("mode", "none").End("compiled")
	if out := buf.String(); !strings.Contains(out, "← op:balance (compiled) {mode=none}") {
		t.Fatalf("stream output = %q", out)
	}
	if _, err := trace.New(trace.Config{Level: trace.LevelPhase}); err == nil {
		t.Fatalf("New() without mode error = nil")
	}
}

func TestHeartbeatStop(t *testing.T) {
	ring := trace.NewRingTracer(8, trace.LevelPhase)
	h := trace.StartHeartbeat(ring, time.Millisecond)
	if h == nil {
		t.Fatalf("StartHeartbeat() = nil")
	}
	h.Stop()
	h.Stop()
	if trace.StartHeartbeat(trace.Nop, time.Millisecond) != nil {
		t.Fatalf("StartHeartbeat(Nop) != nil")
	}
}
