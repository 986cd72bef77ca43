package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/adjudicator/pkg/cli"
	"mercator-hq/adjudicator/pkg/engine"
	"mercator-hq/adjudicator/pkg/explain"
	"mercator-hq/adjudicator/pkg/facts"
	"mercator-hq/adjudicator/pkg/rules"
	"mercator-hq/adjudicator/pkg/trace"
)

var evaluateFlags struct {
	workers  int
	explain  bool
	trace    bool
	format   string
	audit    bool
	progress bool
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [flags] CASE_FILE...",
	Short: "Evaluate cases against the catalog",
	Long: `Evaluate one or more cases against the active catalog.

Each CASE_FILE is a YAML or JSON document holding the case id and its
attributes, either nested under "attributes" or flat. Use "-" to read a
single case from stdin.

The binding decision, candidates and conflicts are printed per case. Cases
with tied priorities are reported and make the command exit with status 2.

Examples:
  # Evaluate one case
  adjudicator evaluate --catalog examples/catalogs/grievance case.yaml

  # Evaluate a directory of cases in parallel, with explanations
  adjudicator evaluate --workers 8 --explain cases/*.yaml

  # Full JSON report including the rule trace, recorded to the audit log
  adjudicator evaluate --format json --trace --audit case.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().IntVarP(&evaluateFlags.workers, "workers", "w", 0, "concurrent evaluations (0 uses engine.workers)")
	evaluateCmd.Flags().BoolVar(&evaluateFlags.explain, "explain", false, "include a plain-language explanation")
	evaluateCmd.Flags().BoolVar(&evaluateFlags.trace, "trace", false, "include every rule check")
	evaluateCmd.Flags().StringVarP(&evaluateFlags.format, "format", "o", "text", "output format: text, json, csv")
	evaluateCmd.Flags().BoolVar(&evaluateFlags.audit, "audit", false, "record results to audit storage (also enabled by audit.enabled)")
	evaluateCmd.Flags().BoolVar(&evaluateFlags.progress, "progress", false, "report progress on stderr")
}

// caseReport is the printed form of one evaluation.
type caseReport struct {
	CaseID         string             `json:"case_id"`
	File           string             `json:"file,omitempty"`
	CatalogVersion string             `json:"catalog_version,omitempty"`
	Outcome        string             `json:"outcome"`
	Binding        *rules.Decision    `json:"binding,omitempty"`
	Candidates     []rules.Decision   `json:"candidates"`
	Conflicts      int                `json:"conflicts"`
	NeedsReview    bool               `json:"needs_review"`
	Faults         []string           `json:"faults,omitempty"`
	Error          string             `json:"error,omitempty"`
	Explanation    *explain.Narrative `json:"explanation,omitempty"`
	Trace          *trace.AuditRecord `json:"trace,omitempty"`
}

type evaluationReport []caseReport

func (r evaluationReport) Header() []string {
	return []string{"CASE", "OUTCOME", "RULE", "TIER", "CANDIDATES", "CONFLICTS", "REVIEW", "ERROR"}
}

func (r evaluationReport) Rows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, c := range r {
		rule, tier := "-", "-"
		if c.Binding != nil {
			rule, tier = c.Binding.RuleID, c.Binding.Tier.String()
		}
		rows = append(rows, []string{
			c.CaseID,
			c.Outcome,
			rule,
			tier,
			strconv.Itoa(len(c.Candidates)),
			strconv.Itoa(c.Conflicts),
			strconv.FormatBool(c.NeedsReview),
			c.Error,
		})
	}
	return rows
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(evaluateFlags.format)
	if err != nil {
		return err
	}

	batch, err := readCases(cmd, args)
	if err != nil {
		return cli.NewCommandError("evaluate", err)
	}

	workers := evaluateFlags.workers
	if workers <= 0 {
		workers = cfg.Engine.Workers
	}

	var progress cli.ProgressReporter = cli.NopProgress{}
	if evaluateFlags.progress {
		progress = cli.NewProgressReporter(cmd.ErrOrStderr())
	}

	svc, err := newServices(serviceOptions{
		audit:           evaluateFlags.audit || cfg.Audit.Enabled,
		evaluationHooks: []engine.Observer{progressObserver{progress}},
	})
	if err != nil {
		return cli.NewCommandError("evaluate", err)
	}
	defer func() {
		if cerr := svc.Close(cmd.Context()); cerr != nil {
			logger.Warn("shutdown incomplete", "error", cerr)
		}
	}()

	progress.Start(int64(len(batch)))
	items, err := svc.engine.EvaluateBatch(cmd.Context(), batch, workers)
	progress.Finish()
	if err != nil {
		return cli.NewCommandError("evaluate", err)
	}

	report := make(evaluationReport, 0, len(items))
	ambiguous := 0
	for i, item := range items {
		c := newCaseReport(item)
		if args[i] != "-" {
			c.File = args[i]
		}
		if engine.IsAmbiguous(item.Err) {
			ambiguous++
		}
		report = append(report, c)
	}

	var out any = report
	if format == cli.FormatText && (evaluateFlags.explain || evaluateFlags.trace) {
		printDetailed(cmd, report)
	} else {
		if format == cli.FormatJSON && len(report) == 1 {
			out = report[0]
		}
		if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), out); err != nil {
			return err
		}
	}

	if ambiguous > 0 {
		return cli.NewFindingsError("evaluate", ambiguous)
	}
	return nil
}

func readCases(cmd *cobra.Command, args []string) ([]*facts.Fact, error) {
	batch := make([]*facts.Fact, 0, len(args))
	stdinUsed := false
	for _, path := range args {
		var (
			f   *facts.Fact
			err error
		)
		if path == "-" {
			if stdinUsed {
				return nil, fmt.Errorf("stdin can only be read once")
			}
			stdinUsed = true
			f, err = facts.Decode(cmd.InOrStdin())
		} else {
			f, err = facts.DecodeFile(path)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		batch = append(batch, f)
	}
	return batch, nil
}

func newCaseReport(item engine.BatchItem) caseReport {
	c := caseReport{CaseID: item.Fact.ID(), Outcome: "NONE", NeedsReview: true}
	if item.Err != nil {
		c.Error = item.Err.Error()
	}
	res := item.Result
	if res == nil {
		return c
	}

	c.CatalogVersion = res.CatalogVersion
	c.Outcome = res.Outcome()
	c.Binding = res.Binding
	c.Candidates = res.Candidates
	c.Conflicts = len(res.Conflicts)
	c.NeedsReview = res.NeedsReview()
	for _, f := range res.Faults {
		c.Faults = append(c.Faults, f.Error())
	}
	if evaluateFlags.explain {
		n := explain.Explain(res)
		c.Explanation = &n
	}
	if evaluateFlags.trace && res.Trace != nil {
		rec := res.Trace.ToAuditRecord()
		c.Trace = &rec
	}
	return c
}

func printDetailed(cmd *cobra.Command, report evaluationReport) {
	w := cmd.OutOrStdout()
	for i, c := range report {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "Case %s: %s\n", c.CaseID, c.Outcome)
		if c.Binding != nil {
			fmt.Fprintf(w, "  Binding: %s (%s, priority %d)\n", c.Binding.RuleID, c.Binding.Tier, c.Binding.Priority)
			fmt.Fprintf(w, "  Reason:  %s\n", c.Binding.Reason)
			fmt.Fprintf(w, "  Source:  %s\n", c.Binding.Source)
		}
		fmt.Fprintf(w, "  Candidates: %d  Conflicts: %d  Needs review: %t\n", len(c.Candidates), c.Conflicts, c.NeedsReview)
		if c.Error != "" {
			fmt.Fprintf(w, "  Error: %s\n", c.Error)
		}
		for _, f := range c.Faults {
			fmt.Fprintf(w, "  Fault: %s\n", f)
		}
		if c.Explanation != nil {
			fmt.Fprintf(w, "  Summary: %s\n", c.Explanation.Summary)
			if c.Explanation.Explanation != "" {
				fmt.Fprintf(w, "  %s\n", c.Explanation.Explanation)
			}
			if c.Explanation.FinalDecisionContext != "" {
				fmt.Fprintf(w, "  %s\n", c.Explanation.FinalDecisionContext)
			}
		}
		if c.Trace != nil {
			fmt.Fprintf(w, "  Trace (%.3fms):\n", c.Trace.ProcessingTimeMs)
			for _, check := range c.Trace.RulesEvaluated {
				mark := "-"
				if check.Fired {
					mark = "+"
				}
				line := fmt.Sprintf("    %s %s [%s p%d] %s", mark, check.RuleID, check.TierName, check.Priority, check.Summary)
				if check.Error != "" {
					line += " error: " + check.Error
				}
				fmt.Fprintln(w, line)
			}
		}
	}
}

// progressObserver advances a progress reporter once per evaluation.
type progressObserver struct {
	progress cli.ProgressReporter
}

func (p progressObserver) ObserveEvaluation(*engine.Result, error, time.Duration) {
	p.progress.Increment()
}

