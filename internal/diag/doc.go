// Package diag defines the diagnostic model shared by all elaboration phases.
//
// Diagnostic is the central record: Severity, a stable numeric Code, a short
// message, the primary source.Span, and optional Notes adding secondary
// context (e.g. "declared parameters are ..."). Notes must add new context,
// not repeat the message.
//
// Producers emit through a diag.Reporter so that emission is decoupled from
// storage. BagReporter aggregates into a Bag, which supports sorting and
// deduplication for deterministic output. LockedReporter wraps any Reporter
// for use from concurrent elaboration workers.
//
// Package diag performs no formatting or IO; rendering lives in
// internal/diagfmt.
package diag
