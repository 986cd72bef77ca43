// Package tracing sets up OpenTelemetry tracing for the adjudicator.
//
// Spans are exported over OTLP/gRPC when telemetry.tracing.enabled is set:
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    sampler: ratio
//	    sample_ratio: 0.1
//	    endpoint: otel-collector:4317
//	    otlp:
//	      insecure: true
//
// With tracing disabled, New returns a no-op tracer.
//
// A CLI run joins an existing trace when TRACEPARENT (and optionally
// TRACESTATE) is set in its environment; see ExtractFromEnv.
package tracing
