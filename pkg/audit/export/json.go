package export

import (
	"context"
	"encoding/json"
	"io"

	"mercator-hq/adjudicator/pkg/audit"
)

// JSONExporter writes records as a JSON array.
type JSONExporter struct {
	// Pretty indents the output.
	Pretty bool
}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// ContentType implements audit.Exporter.
func (e *JSONExporter) ContentType() string { return "application/json" }

// FileExtension implements audit.Exporter.
func (e *JSONExporter) FileExtension() string { return ".json" }

// Export writes records to w. No records produce "[]".
func (e *JSONExporter) Export(ctx context.Context, records []*audit.Record, w io.Writer) error {
	if records == nil {
		records = []*audit.Record{}
	}
	if err := ctx.Err(); err != nil {
		return audit.NewExportError("json", len(records), err)
	}

	enc := json.NewEncoder(w)
	if e.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(records); err != nil {
		return audit.NewExportError("json", len(records), err)
	}
	return nil
}

// ExportStream writes records from a channel as one JSON array, so large
// exports never hold every record in memory.
func (e *JSONExporter) ExportStream(ctx context.Context, records <-chan *audit.Record, w io.Writer) error {
	if _, err := io.WriteString(w, "["); err != nil {
		return audit.NewExportError("json", 0, err)
	}

	count := 0
	for {
		select {
		case <-ctx.Done():
			return audit.NewExportError("json", count, ctx.Err())

		case rec, ok := <-records:
			if !ok {
				closing := "]\n"
				if e.Pretty && count > 0 {
					closing = "\n]\n"
				}
				if _, err := io.WriteString(w, closing); err != nil {
					return audit.NewExportError("json", count, err)
				}
				return nil
			}

			sep := ","
			if count == 0 {
				sep = ""
			}
			if e.Pretty {
				sep += "\n  "
			}
			if _, err := io.WriteString(w, sep); err != nil {
				return audit.NewExportError("json", count, err)
			}

			data, err := e.marshal(rec)
			if err != nil {
				return audit.NewExportError("json", count, err)
			}
			if _, err := w.Write(data); err != nil {
				return audit.NewExportError("json", count, err)
			}
			count++
		}
	}
}

func (e *JSONExporter) marshal(rec *audit.Record) ([]byte, error) {
	if e.Pretty {
		return json.MarshalIndent(rec, "  ", "  ")
	}
	return json.Marshal(rec)
}
