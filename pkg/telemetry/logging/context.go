package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

type contextKey string

const (
	// CaseIDKey is the context key for the case under evaluation.
	CaseIDKey contextKey = "case_id"

	// CatalogVersionKey is the context key for the active catalog version.
	CatalogVersionKey contextKey = "catalog_version"
)

// WithCaseID adds a case ID to the context.
func WithCaseID(ctx context.Context, caseID string) context.Context {
	return context.WithValue(ctx, CaseIDKey, caseID)
}

// GetCaseID retrieves the case ID from the context.
func GetCaseID(ctx context.Context) string {
	if v, ok := ctx.Value(CaseIDKey).(string); ok {
		return v
	}
	return ""
}

// WithCatalogVersion adds a catalog version to the context.
func WithCatalogVersion(ctx context.Context, version string) context.Context {
	return context.WithValue(ctx, CatalogVersionKey, version)
}

// GetCatalogVersion retrieves the catalog version from the context.
func GetCatalogVersion(ctx context.Context) string {
	if v, ok := ctx.Value(CatalogVersionKey).(string); ok {
		return v
	}
	return ""
}

// ContextFields returns the log attributes carried by ctx: case ID, catalog
// version and, when a span is active, its trace and span IDs.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var attrs []slog.Attr
	if v := GetCaseID(ctx); v != "" {
		attrs = append(attrs, slog.String(string(CaseIDKey), v))
	}
	if v := GetCatalogVersion(ctx); v != "" {
		attrs = append(attrs, slog.String(string(CatalogVersionKey), v))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return attrs
}

// ContextHandler adds ContextFields to every record logged with a context.
type ContextHandler struct {
	next slog.Handler
}

// NewContextHandler wraps next.
func NewContextHandler(next slog.Handler) *ContextHandler {
	return &ContextHandler{next: next}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, rec slog.Record) error {
	if fields := ContextFields(ctx); len(fields) > 0 {
		rec = rec.Clone()
		rec.AddAttrs(fields...)
	}
	return h.next.Handle(ctx, rec)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{next: h.next.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{next: h.next.WithGroup(name)}
}
