// Package trace records the timeline of operation builds.
//
// A Tracer is carried in the context. The engine opens one span per
// operation build and nested spans for the build phases (arrange, resolve,
// emit, compile, load) and builder stages; frames are reported as points.
//
//	ctx = trace.WithTracer(ctx, tracer)
//	ctx, span := trace.Start(ctx, trace.ScopeStage, "emit")
//	defer span.End("")
//
// Levels select the finest scope that is recorded: phase keeps engine and
// operation events, detail adds stages, debug adds frames. Events go to a
// stream (text or NDJSON), a ring buffer dumped on exit, or both.
//
// Enable from the CLI with
//
//	pipegen warm --trace=- --trace-level=detail
package trace
