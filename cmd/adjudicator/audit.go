package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/adjudicator/pkg/audit"
	"mercator-hq/adjudicator/pkg/audit/export"
	"mercator-hq/adjudicator/pkg/audit/query"
	"mercator-hq/adjudicator/pkg/audit/retention"
	"mercator-hq/adjudicator/pkg/cli"
)

var auditFlags struct {
	caseID   string
	catalog  string
	rule     string
	outcome  string
	status   string
	review   string
	conflict string
	since    string
	until    string
	limit    int
	offset   int
	order    string
	format   string
	output   string
}

var pruneFlags struct {
	days       int
	maxRecords int64
	archive    string
	schedule   bool
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query, verify, export and prune recorded decisions",
	Long: `Work with the audit log of recorded evaluations.

Records are written by "adjudicator evaluate --audit" (or when audit.enabled
is set) and carry a SHA-256 hash over their content, so any later change to a
stored record is detected.`,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "List recorded decisions matching a filter",
	Long: `List recorded decisions matching a filter, newest first by default.

Examples:
  # Everything that needs a human
  adjudicator audit query --review true

  # Cases decided by one rule this month
  adjudicator audit query --rule NAT-DEADLINE-01 --since 2026-10-01T00:00:00Z

  # Unresolved cases as CSV
  adjudicator audit query --outcome NONE --format csv`,
	Args: cobra.NoArgs,
	RunE: runAuditQuery,
}

var auditShowCmd = &cobra.Command{
	Use:   "show RECORD_ID",
	Short: "Show one record and verify its hash",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditShow,
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export matching records as JSON or CSV",
	Long: `Export every record matching the filter, oldest first. Records are
streamed page by page, so exports are not bounded by query.max_limit.

Examples:
  adjudicator audit export --format csv --output decisions.csv
  adjudicator audit export --conflict true --since 2026-01-01T00:00:00Z`,
	Args: cobra.NoArgs,
	RunE: runAuditExport,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete records beyond the retention policy",
	Long: `Delete records older than the retention period and the oldest records
beyond the maximum count. Deleted records can be archived to JSON files first.

With --schedule pruning runs on audit.retention.prune_schedule (cron syntax)
until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runAuditPrune,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditQueryCmd, auditShowCmd, auditExportCmd, auditPruneCmd)

	for _, c := range []*cobra.Command{auditQueryCmd, auditExportCmd} {
		f := c.Flags()
		f.StringVar(&auditFlags.caseID, "case", "", "case id")
		f.StringVar(&auditFlags.catalog, "catalog-version", "", "catalog version")
		f.StringVar(&auditFlags.rule, "rule", "", "binding rule id")
		f.StringVar(&auditFlags.outcome, "outcome", "", "binding outcome, or NONE for unresolved cases")
		f.StringVar(&auditFlags.status, "status", "", "evaluation status: success, error")
		f.StringVar(&auditFlags.review, "review", "", "needs human review: true, false")
		f.StringVar(&auditFlags.conflict, "conflict", "", "had a tier conflict: true, false")
		f.StringVar(&auditFlags.since, "since", "", "recorded at or after (RFC 3339)")
		f.StringVar(&auditFlags.until, "until", "", "recorded at or before (RFC 3339)")
		f.StringVarP(&auditFlags.output, "output", "O", "", "write to file instead of stdout")
	}
	auditQueryCmd.Flags().IntVar(&auditFlags.limit, "limit", 0, "maximum records (0 uses audit.query.default_limit)")
	auditQueryCmd.Flags().IntVar(&auditFlags.offset, "offset", 0, "records to skip")
	auditQueryCmd.Flags().StringVar(&auditFlags.order, "order", "desc", "sort by record time: asc, desc")

	auditQueryCmd.Flags().StringVarP(&auditFlags.format, "format", "o", "text", "output format: text, json, csv")
	auditShowCmd.Flags().StringVarP(&auditFlags.format, "format", "o", "text", "output format: text, json")
	auditExportCmd.Flags().StringVarP(&auditFlags.format, "format", "o", "json", "export format: json, csv")

	auditPruneCmd.Flags().IntVar(&pruneFlags.days, "days", -1, "retention in days (-1 uses audit.retention.days, 0 keeps all)")
	auditPruneCmd.Flags().Int64Var(&pruneFlags.maxRecords, "max-records", -1, "records to keep (-1 uses audit.retention.max_records, 0 is unlimited)")
	auditPruneCmd.Flags().StringVar(&pruneFlags.archive, "archive", "", "archive deleted records to this directory")
	auditPruneCmd.Flags().BoolVar(&pruneFlags.schedule, "schedule", false, "keep running and prune on the configured cron schedule")
}

// buildQuery turns the filter flags into a query.
func buildQuery() (*audit.Query, error) {
	q := &audit.Query{
		CaseID:         auditFlags.caseID,
		CatalogVersion: auditFlags.catalog,
		RuleID:         auditFlags.rule,
		Outcome:        auditFlags.outcome,
		Status:         auditFlags.status,
		Limit:          auditFlags.limit,
		Offset:         auditFlags.offset,
		SortOrder:      auditFlags.order,
	}

	var err error
	if q.StartTime, err = parseTimeFlag("since", auditFlags.since); err != nil {
		return nil, err
	}
	if q.EndTime, err = parseTimeFlag("until", auditFlags.until); err != nil {
		return nil, err
	}
	if q.NeedsReview, err = parseBoolFlag("review", auditFlags.review); err != nil {
		return nil, err
	}
	if q.HasConflict, err = parseBoolFlag("conflict", auditFlags.conflict); err != nil {
		return nil, err
	}
	return q, nil
}

func parseTimeFlag(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, cli.NewConfigError(name, fmt.Sprintf("invalid time %q, want RFC 3339", v))
	}
	return &t, nil
}

func parseBoolFlag(name, v string) (*bool, error) {
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, cli.NewConfigError(name, fmt.Sprintf("invalid boolean %q", v))
	}
	return &b, nil
}

func queryLimits() query.Limits {
	return query.Limits{DefaultLimit: cfg.Audit.Query.DefaultLimit, MaxLimit: cfg.Audit.Query.MaxLimit}
}

// openOutput returns stdout or the --output file.
func openOutput(cmd *cobra.Command) (io.Writer, func() error, error) {
	if auditFlags.output == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(auditFlags.output)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// recordRows is the tabular form of audit records.
type recordRows []*audit.Record

func (r recordRows) Header() []string {
	return []string{"ID", "RECORDED", "CASE", "OUTCOME", "RULE", "CONFLICTS", "REVIEW", "VERIFIED"}
}

func (r recordRows) Rows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, rec := range r {
		rows = append(rows, []string{
			rec.ID,
			rec.RecordedAt.Format(time.RFC3339),
			rec.CaseID,
			rec.Outcome,
			rec.BindingRule,
			strconv.Itoa(rec.Conflicts),
			strconv.FormatBool(rec.NeedsReview),
			strconv.FormatBool(rec.Verify()),
		})
	}
	return rows
}

func runAuditQuery(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(auditFlags.format)
	if err != nil {
		return err
	}
	q, err := buildQuery()
	if err != nil {
		return err
	}
	if err := query.Prepare(q, queryLimits()); err != nil {
		return err
	}

	store, err := openAuditStorage()
	if err != nil {
		return cli.NewCommandError("audit query", err)
	}
	defer store.Close()

	records, err := store.Query(cmd.Context(), q)
	if err != nil {
		return cli.NewCommandError("audit query", err)
	}

	w, closeOut, err := openOutput(cmd)
	if err != nil {
		return cli.NewCommandError("audit query", err)
	}
	if format == cli.FormatJSON {
		err = cli.NewFormatter(format).FormatTo(w, records)
	} else {
		err = cli.NewFormatter(format).FormatTo(w, recordRows(records))
	}
	if cerr := closeOut(); err == nil {
		err = cerr
	}
	return err
}

func runAuditShow(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(auditFlags.format)
	if err != nil {
		return err
	}

	store, err := openAuditStorage()
	if err != nil {
		return cli.NewCommandError("audit show", err)
	}
	defer store.Close()

	rec, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return cli.NewCommandError("audit show", err)
	}
	integrity := rec.CheckIntegrity()
	verified := integrity == nil

	w := cmd.OutOrStdout()
	if format == cli.FormatJSON {
		err = cli.NewFormatter(format).FormatTo(w, struct {
			*audit.Record
			Verified bool `json:"verified"`
		}{rec, verified})
		if err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w, "Record:     %s\n", rec.ID)
		fmt.Fprintf(w, "Recorded:   %s\n", rec.RecordedAt.Format(time.RFC3339))
		fmt.Fprintf(w, "Case:       %s\n", rec.CaseID)
		fmt.Fprintf(w, "Catalog:    %s %s\n", rec.CatalogName, rec.CatalogVersion)
		fmt.Fprintf(w, "Outcome:    %s\n", rec.Outcome)
		if rec.Binding != nil {
			fmt.Fprintf(w, "Binding:    %s (%s, priority %d)\n", rec.Binding.RuleID, rec.Binding.Tier, rec.Binding.Priority)
			fmt.Fprintf(w, "Reason:     %s\n", rec.Binding.Reason)
		}
		fmt.Fprintf(w, "Candidates: %d  Conflicts: %d  Needs review: %t\n", len(rec.Candidates), rec.Conflicts, rec.NeedsReview)
		if rec.Error != "" {
			fmt.Fprintf(w, "Error:      %s\n", rec.Error)
		}
		for _, check := range rec.Trace.RulesEvaluated {
			mark := "-"
			if check.Fired {
				mark = "+"
			}
			fmt.Fprintf(w, "  %s %s [%s p%d] %s\n", mark, check.RuleID, check.TierName, check.Priority, check.Summary)
		}
		fmt.Fprintf(w, "Hash:       %s (verified: %t)\n", rec.Hash, verified)
	}

	if !verified {
		logger.Warn("audit record failed integrity check", "record_id", rec.ID, "error", integrity)
		return cli.NewFindingsError("audit show", 1)
	}
	return nil
}

// streamExporter is implemented by exporters that write records as they
// arrive.
type streamExporter interface {
	ExportStream(ctx context.Context, records <-chan *audit.Record, w io.Writer) error
}

func runAuditExport(cmd *cobra.Command, args []string) error {
	exporter, err := export.New(auditFlags.format, cfg.Audit.Export)
	if err != nil {
		return err
	}
	stream, ok := exporter.(streamExporter)
	if !ok {
		return fmt.Errorf("format %s does not support streaming export", auditFlags.format)
	}

	q, err := buildQuery()
	if err != nil {
		return err
	}
	q.SortOrder = "asc"
	q.Offset = 0
	q.Limit = queryLimits().MaxLimit
	if q.Limit == 0 {
		q.Limit = query.MaxLimit
	}
	if err := query.Prepare(q, queryLimits()); err != nil {
		return err
	}

	store, err := openAuditStorage()
	if err != nil {
		return cli.NewCommandError("audit export", err)
	}
	defer store.Close()

	w, closeOut, err := openOutput(cmd)
	if err != nil {
		return cli.NewCommandError("audit export", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	records := make(chan *audit.Record, 256)
	pageErr := make(chan error, 1)
	go func() {
		defer close(records)
		pageErr <- pageRecords(ctx, store, q, records)
	}()

	err = stream.ExportStream(ctx, records, w)
	cancel()
	if perr := <-pageErr; err == nil && perr != nil && ctx.Err() == nil {
		err = perr
	}
	if cerr := closeOut(); err == nil {
		err = cerr
	}
	if err != nil {
		return cli.NewCommandError("audit export", err)
	}
	return nil
}

// pageRecords sends every record matching q to out, one page at a time.
func pageRecords(ctx context.Context, store audit.Storage, q *audit.Query, out chan<- *audit.Record) error {
	page := *q
	for {
		records, err := store.Query(ctx, &page)
		if err != nil {
			return err
		}
		for _, rec := range records {
			select {
			case out <- rec:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if len(records) < page.Limit {
			return nil
		}
		page.Offset += len(records)
	}
}

func runAuditPrune(cmd *cobra.Command, args []string) error {
	retentionCfg := cfg.Audit.Retention
	if pruneFlags.days >= 0 {
		retentionCfg.Days = pruneFlags.days
	}
	if pruneFlags.maxRecords >= 0 {
		retentionCfg.MaxRecords = pruneFlags.maxRecords
	}

	store, err := openAuditStorage()
	if err != nil {
		return cli.NewCommandError("audit prune", err)
	}
	defer store.Close()

	w := cmd.OutOrStdout()
	opts := []retention.Option{retention.WithLogger(logger)}
	if pruneFlags.archive != "" {
		opts = append(opts, retention.WithArchive(pruneFlags.archive))
	}
	if pruneFlags.schedule {
		opts = append(opts, retention.WithRunHook(func(r retention.Run) {
			if r.Err != nil {
				fmt.Fprintf(w, "%s prune failed: %v\n", r.Started.Format(time.RFC3339), r.Err)
				return
			}
			fmt.Fprintf(w, "%s pruned %d record(s)\n", r.Started.Format(time.RFC3339), r.Deleted)
		}))
	}
	pruner := retention.NewPruner(store, retentionCfg, opts...)

	if !pruneFlags.schedule {
		deleted, err := pruner.Prune(cmd.Context())
		if err != nil {
			return cli.NewCommandError("audit prune", err)
		}
		fmt.Fprintf(w, "pruned %d record(s)\n", deleted)
		return nil
	}

	if retentionCfg.PruneSchedule == "" {
		return cli.NewConfigError("audit.retention.prune_schedule", "required with --schedule")
	}
	if err := pruner.Start(cmd.Context()); err != nil {
		return cli.NewCommandError("audit prune", err)
	}
	defer pruner.Stop()

	if next := pruner.NextPruning(); next != nil {
		fmt.Fprintf(w, "next pruning at %s, press Ctrl+C to stop\n", next.Format(time.RFC3339))
	}
	<-cmd.Context().Done()
	return nil
}
