// Package logging builds the structured log/slog logger used across the
// adjudicator.
//
// # Usage
//
//	logger, err := logging.New(cfg.Telemetry.Logging, os.Stderr)
//	if err != nil {
//	    return err
//	}
//	ctx = logging.WithCaseID(ctx, "GRV-2024-0113")
//	logger.InfoContext(ctx, "case evaluated", "outcome", "REJECT")
//
// Records logged with a context carry case_id, catalog_version and the
// active OpenTelemetry trace_id/span_id.
//
// # PII Redaction
//
// With redact_pii enabled, string values are scrubbed before they are
// written:
//
//   - E-mail addresses: jane.doe@uni.example → ***@***
//   - Phone numbers: 555-123-4567 → ***-***-****
//   - IPv4 addresses: 10.1.2.3 → *.*.*.*
//   - API keys and bearer tokens
//
// Values under keys such as "password", "token" or "email" are replaced
// with "***" regardless of content.
package logging
