// Package telemetry groups the adjudicator's observability packages.
//
//   - logging: structured slog logging with PII redaction and case context
//   - metrics: Prometheus counters and histograms fed by engine, catalog and
//     audit observer hooks
//   - tracing: OpenTelemetry spans around evaluations, exported over OTLP
//
// The CLI builds all three from config.TelemetryConfig at startup.
package telemetry
