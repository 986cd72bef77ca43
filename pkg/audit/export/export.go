// Package export writes audit records as JSON or CSV.
package export

import (
	"fmt"
	"strings"

	"mercator-hq/adjudicator/pkg/audit"
	"mercator-hq/adjudicator/pkg/config"
)

// Formats lists the supported export formats.
func Formats() []string {
	return []string{"json", "csv"}
}

// New returns the exporter for format, configured from cfg.
func New(format string, cfg config.ExportConfig) (audit.Exporter, error) {
	switch strings.ToLower(format) {
	case "json":
		return NewJSONExporter(cfg.JSONPretty), nil
	case "csv":
		return NewCSVExporter(cfg.CSVIncludeHeader), nil
	default:
		return nil, audit.NewExportError(format, 0,
			fmt.Errorf("unsupported format (supported: %s)", strings.Join(Formats(), ", ")))
	}
}
