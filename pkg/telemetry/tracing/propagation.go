package tracing

import (
	"context"
	"os"
	"strings"

	"go.opentelemetry.io/otel/propagation"
)

// Environment variables carrying W3C trace context into a CLI run.
const (
	EnvTraceParent = "TRACEPARENT"
	EnvTraceState  = "TRACESTATE"
)

// Propagator returns the W3C trace context and baggage propagator.
func Propagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

// ExtractFromMap returns ctx with the trace context found in carrier.
func ExtractFromMap(ctx context.Context, carrier map[string]string) context.Context {
	return Propagator().Extract(ctx, propagation.MapCarrier(carrier))
}

// InjectToMap writes the trace context of ctx into carrier.
func InjectToMap(ctx context.Context, carrier map[string]string) {
	Propagator().Inject(ctx, propagation.MapCarrier(carrier))
}

// ExtractFromEnv returns ctx joined to the trace named by TRACEPARENT, so a
// CLI run started by an instrumented scheduler appears in its trace. An
// absent or malformed TRACEPARENT leaves ctx unchanged.
func ExtractFromEnv(ctx context.Context) context.Context {
	return extractFromLookup(ctx, os.LookupEnv)
}

func extractFromLookup(ctx context.Context, lookup func(string) (string, bool)) context.Context {
	tp, ok := lookup(EnvTraceParent)
	if !ok || !ValidateTraceParent(tp) {
		return ctx
	}
	carrier := map[string]string{"traceparent": tp}
	if ts, ok := lookup(EnvTraceState); ok {
		carrier["tracestate"] = ts
	}
	return ExtractFromMap(ctx, carrier)
}

// ValidateTraceParent reports whether s is a well-formed version 00
// traceparent: 00-<32 hex>-<16 hex>-<2 hex>, with non-zero IDs.
func ValidateTraceParent(s string) bool {
	parts := strings.Split(s, "-")
	if len(parts) != 4 {
		return false
	}
	version, traceID, parentID, flags := parts[0], parts[1], parts[2], parts[3]

	if version != "00" || len(traceID) != 32 || len(parentID) != 16 || len(flags) != 2 {
		return false
	}
	if !isHexString(traceID) || !isHexString(parentID) || !isHexString(flags) {
		return false
	}
	return traceID != strings.Repeat("0", 32) && parentID != strings.Repeat("0", 16)
}

func isHexString(s string) bool {
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
