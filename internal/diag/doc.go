// Package diag defines the diagnostic model shared by every stage of the
// compiler core.
//
// # Data model
//
// Diagnostic is the central record:
//
//   - Severity: Info, Warning or Error (severity.go).
//   - Code: compact numeric identifier with a stable string form (codes.go).
//     Codes at or above 9000 are internal: they signal a broken contract
//     between compiler stages rather than a problem in the user's program.
//   - Message: short, actionable text.
//   - Primary: the source.Span pointing at the issue.
//   - Notes: optional secondary spans.
//
// # Emitting diagnostics
//
// Stages receive a Reporter and emit through it, usually via the
// ReportError / ReportWarning builders. BagReporter stores diagnostics in a
// Bag, which supports sorting and deduplication.
//
// # Results
//
// Result[T] is the uniform outcome of a stage: a value (present even when
// error-recovery placeholders were substituted) plus parallel warning and
// error lists. Stages accumulate into a Bag and convert once at the end with
// FromBag.
package diag
