package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/adjudicator/pkg/catalog/manager"
	"mercator-hq/adjudicator/pkg/cli"
	rdlErrors "mercator-hq/adjudicator/pkg/rdl/errors"
)

var lintFlags struct {
	format string
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate a rule catalog",
	Long: `Parse, validate and compile the configured catalog without evaluating
anything.

Every problem found is reported with its kind and location: YAML syntax,
missing fields, unknown attributes, type mismatches, duplicate rule ids and
priorities shared within a tier. The command exits with status 2 when any
problem is found.

Examples:
  # Lint a catalog directory
  adjudicator lint --catalog examples/catalogs/grievance

  # Machine-readable problems
  adjudicator lint --catalog rules.yaml --format json`,
	Args: cobra.NoArgs,
	RunE: runLint,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVarP(&lintFlags.format, "format", "o", "text", "output format: text, json, csv")
}

// problem is one lint finding.
type problem struct {
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	Location string `json:"location,omitempty"`
}

type problems []problem

func (p problems) Header() []string { return []string{"KIND", "LOCATION", "MESSAGE"} }

func (p problems) Rows() [][]string {
	rows := make([][]string, 0, len(p))
	for _, pr := range p {
		rows = append(rows, []string{pr.Kind, pr.Location, pr.Message})
	}
	return rows
}

func runLint(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(lintFlags.format)
	if err != nil {
		return err
	}

	m, err := manager.New(&cfg.Catalog, manager.WithLogger(logger), manager.WithEngineLimits(cfg.Engine))
	if err != nil {
		return cli.NewCommandError("lint", err)
	}
	defer m.Close()

	loadErr := m.Load()
	found := flattenProblems(loadErr)

	if format == cli.FormatText {
		w := cmd.OutOrStdout()
		if len(found) == 0 {
			stats := m.Current().Stats()
			fmt.Fprintf(w, "catalog %s is valid: %d rules across %d tiers\n", m.Version(), stats.Rules, len(stats.RulesByTier))
			return nil
		}
		for _, p := range found {
			if p.Location != "" {
				fmt.Fprintf(w, "%s: [%s] %s\n", p.Location, p.Kind, p.Message)
			} else {
				fmt.Fprintf(w, "[%s] %s\n", p.Kind, p.Message)
			}
		}
	} else if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), found); err != nil {
		return err
	}

	if len(found) > 0 {
		return cli.NewFindingsError("lint", len(found))
	}
	return nil
}

// flattenProblems expands nested error lists into individual findings.
func flattenProblems(err error) problems {
	if err == nil {
		return problems{}
	}

	var out problems
	var rdlList *rdlErrors.ErrorList
	var rdlErr *rdlErrors.Error
	var mgrList *manager.ErrorList
	var loadErr *manager.LoadError

	switch {
	case errors.As(err, &mgrList):
		for _, e := range mgrList.Errors {
			out = append(out, flattenProblems(e)...)
		}
	case errors.As(err, &rdlList):
		for _, e := range rdlList.Errors {
			out = append(out, newProblem(e))
		}
	case errors.As(err, &rdlErr):
		out = append(out, newProblem(rdlErr))
	case errors.As(err, &loadErr):
		out = append(out, problem{Kind: string(rdlErrors.ErrorTypeIO), Message: loadErr.Error(), Location: loadErr.FilePath})
	default:
		out = append(out, problem{Kind: "catalog", Message: err.Error()})
	}
	return out
}

func newProblem(e *rdlErrors.Error) problem {
	p := problem{Kind: string(e.Type), Message: e.Message}
	if e.Suggestion != "" {
		p.Message += "; suggestion: " + e.Suggestion
	}
	if e.Location.IsValid() {
		p.Location = e.Location.String()
	}
	return p
}
