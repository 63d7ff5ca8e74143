// Package diag defines the diagnostic model shared by the build phases.
//
// # Purpose
//
//   - Provide deterministic data structures that capture findings produced
//     while resolving, emitting, compiling and loading a generated unit.
//   - Offer light-weight utilities (Reporter, Bag) that let producers emit
//     diagnostics without coupling to concrete storage or formatting layers.
//
// # Data model
//
// Diagnostic is the central record. It contains:
//
//   - Severity – tri-level enum (Info, Warning, Error) defined in severity.go.
//   - Code – compact numeric identifier (see codes.go) with stable string form.
//   - Message – human oriented text; keep it short and actionable.
//   - Location – file, line and column inside the generated unit. Build
//     errors that precede emission use the operation name as the file.
//   - Notes – optional secondary locations/messages, typically "frame N: label"
//     pointing at the frame that produced the offending line.
//
// Notes should be used sparingly: each note must add new context rather than
// repeating the diagnostic message.
//
// # Emitting diagnostics
//
// Producers start a ReportBuilder with ReportError and chain WithNote before
// calling Emit. DedupReporter filters repeats in front of a BagReporter, which
// stores into a Bag bounded by the configured diagnostic limit.
//
// Rendering for humans lives with the consumers; FormatShort is the stable
// one-line form used in tests and non-interactive output.
package diag
