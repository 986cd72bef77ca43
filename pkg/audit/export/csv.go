package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"mercator-hq/adjudicator/pkg/audit"
)

// CSVExporter writes one row per record. Candidates are flattened to a
// semicolon separated list of rule IDs; the trace is left out.
type CSVExporter struct {
	// IncludeHeader writes a header row first.
	IncludeHeader bool
}

// NewCSVExporter creates a CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

// ContentType implements audit.Exporter.
func (e *CSVExporter) ContentType() string { return "text/csv" }

// FileExtension implements audit.Exporter.
func (e *CSVExporter) FileExtension() string { return ".csv" }

// Header returns the CSV column names.
func Header() []string {
	return []string{
		"id", "case_id", "recorded_at",
		"catalog_name", "catalog_version",
		"outcome", "binding_rule", "binding_tier", "binding_priority", "binding_source", "binding_reason",
		"candidates", "conflicts", "needs_review",
		"error", "processing_time_ms", "hash",
	}
}

// Export writes records to w.
func (e *CSVExporter) Export(ctx context.Context, records []*audit.Record, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(Header()); err != nil {
			return audit.NewExportError("csv", len(records), err)
		}
	}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return audit.NewExportError("csv", len(records), err)
		}
		if err := writer.Write(recordToRow(rec)); err != nil {
			return audit.NewExportError("csv", len(records), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return audit.NewExportError("csv", len(records), err)
	}
	return nil
}

// ExportStream writes records from a channel, flushing every 100 rows.
func (e *CSVExporter) ExportStream(ctx context.Context, records <-chan *audit.Record, w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if e.IncludeHeader {
		if err := writer.Write(Header()); err != nil {
			return audit.NewExportError("csv", 0, err)
		}
	}

	count := 0
	for {
		select {
		case <-ctx.Done():
			return audit.NewExportError("csv", count, ctx.Err())

		case rec, ok := <-records:
			if !ok {
				writer.Flush()
				if err := writer.Error(); err != nil {
					return audit.NewExportError("csv", count, err)
				}
				return nil
			}
			if err := writer.Write(recordToRow(rec)); err != nil {
				return audit.NewExportError("csv", count, err)
			}
			count++
			if count%100 == 0 {
				writer.Flush()
				if err := writer.Error(); err != nil {
					return audit.NewExportError("csv", count, err)
				}
			}
		}
	}
}

func recordToRow(rec *audit.Record) []string {
	var tier, priority, source, reason string
	if b := rec.Binding; b != nil {
		tier = b.Tier.Name
		priority = strconv.Itoa(b.Priority)
		source = b.Source
		reason = b.Reason
	}

	candidates := make([]string, len(rec.Candidates))
	for i, c := range rec.Candidates {
		candidates[i] = c.RuleID
	}

	recordedAt := ""
	if !rec.RecordedAt.IsZero() {
		recordedAt = rec.RecordedAt.UTC().Format(time.RFC3339Nano)
	}

	return []string{
		rec.ID, rec.CaseID, recordedAt,
		rec.CatalogName, rec.CatalogVersion,
		rec.Outcome, rec.BindingRule, tier, priority, source, reason,
		strings.Join(candidates, ";"), strconv.Itoa(rec.Conflicts), strconv.FormatBool(rec.NeedsReview),
		rec.Error, strconv.FormatFloat(rec.Trace.ProcessingTimeMs, 'f', 3, 64), rec.Hash,
	}
}
