// Package trace records the step-by-step account of one evaluation.
//
// A Recorder is opened when an evaluation starts. The evaluation appends one
// Check per rule in catalog order, then any Conflict found during resolution,
// and finally calls Complete, which seals the recorder and returns an immutable
// Trace. Recording into a sealed recorder fails with ErrTraceSealed.
//
// Traces convert to and from AuditRecord, a JSON-tagged form used by the audit
// store and by the CLI's JSON output.
package trace
