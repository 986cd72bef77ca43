package main

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/adjudicator/pkg/catalog/manager"
	"mercator-hq/adjudicator/pkg/cli"
	"mercator-hq/adjudicator/pkg/rules"
)

var testFlags struct {
	watch  bool
	run    string
	format string
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run the catalog's embedded test cases",
	Long: `Run the test cases embedded in the catalog files and compare each
evaluation with its expectation: binding outcome and rule, candidate and
conflict counts, review flag or priority ambiguity.

With --watch the catalog is reloaded whenever a file changes (or the git
source moves) and the tests run again, until interrupted.

Examples:
  # Run every test
  adjudicator test --catalog examples/catalogs/grievance

  # Only tests whose name matches a pattern
  adjudicator test --run 'deadline'

  # Re-run on every change
  adjudicator test --watch`,
	Args: cobra.NoArgs,
	RunE: runTest,
}

func init() {
	rootCmd.AddCommand(testCmd)

	testCmd.Flags().BoolVar(&testFlags.watch, "watch", false, "re-run tests whenever the catalog changes")
	testCmd.Flags().StringVar(&testFlags.run, "run", "", "only run tests whose name matches this regular expression")
	testCmd.Flags().StringVarP(&testFlags.format, "format", "o", "text", "output format: text, json, csv")
}

// testReport is the printed form of one test result.
type testReport struct {
	Name     string   `json:"name"`
	Passed   bool     `json:"passed"`
	Outcome  string   `json:"outcome,omitempty"`
	Failures []string `json:"failures,omitempty"`
}

type testReports []testReport

func (t testReports) Header() []string { return []string{"TEST", "RESULT", "OUTCOME", "FAILURES"} }

func (t testReports) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		rows = append(rows, []string{r.Name, status, r.Outcome, strings.Join(r.Failures, "; ")})
	}
	return rows
}

func (t testReports) failed() int {
	n := 0
	for _, r := range t {
		if !r.Passed {
			n++
		}
	}
	return n
}

func runTest(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(testFlags.format)
	if err != nil {
		return err
	}

	var filter *regexp.Regexp
	if testFlags.run != "" {
		filter, err = regexp.Compile(testFlags.run)
		if err != nil {
			return cli.NewConfigError("run", err.Error())
		}
	}

	catalogCfg := cfg.Catalog
	if testFlags.watch {
		catalogCfg.Watch = true
	}

	// Reload observers run under the manager's lock, so results are
	// handed to this goroutine instead of being printed from the hook.
	reloads := make(chan string, 1)
	onReload := reloadFunc(func(status string, _ *rules.Catalog) {
		select {
		case reloads <- status:
		default:
		}
	})

	m, err := manager.New(&catalogCfg,
		manager.WithLogger(logger),
		manager.WithEngineLimits(cfg.Engine),
		manager.WithObserver(onReload),
	)
	if err != nil {
		return cli.NewCommandError("test", err)
	}
	defer m.Close()

	if err := m.Load(); err != nil {
		return cli.NewCommandError("test", err)
	}
	<-reloads

	w := cmd.OutOrStdout()
	failed, err := runSuite(w, m, format, filter)
	if err != nil {
		return cli.NewCommandError("test", err)
	}

	if testFlags.watch {
		return watchTests(cmd, m, reloads, format, filter)
	}

	if failed > 0 {
		return cli.NewFindingsError("test", failed)
	}
	return nil
}

func watchTests(cmd *cobra.Command, m *manager.Manager, reloads <-chan string, format cli.OutputFormat, filter *regexp.Regexp) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	watchErr := make(chan error, 1)
	go func() { watchErr <- m.Watch(ctx) }()
	fmt.Fprintln(cmd.ErrOrStderr(), "watching for changes, press Ctrl+C to stop")

	for {
		select {
		case err := <-watchErr:
			if err != nil && ctx.Err() == nil {
				return cli.NewCommandError("test", err)
			}
			return nil
		case status := <-reloads:
			if status != manager.StatusSuccess {
				fmt.Fprintf(w, "\ncatalog reload failed, still testing %s: %v\n", m.Version(), m.LastError())
				continue
			}
			fmt.Fprintf(w, "\ncatalog changed, now %s\n", m.Version())
			if _, err := runSuite(w, m, format, filter); err != nil {
				logger.Error("test run failed", "error", err)
			}
		}
	}
}

// runSuite runs and prints the tests, returning how many failed.
func runSuite(w io.Writer, m *manager.Manager, format cli.OutputFormat, filter *regexp.Regexp) (int, error) {
	results, err := m.RunTests()
	if err != nil {
		return 0, err
	}

	report := make(testReports, 0, len(results))
	for _, r := range results {
		if filter != nil && !filter.MatchString(r.Name) {
			continue
		}
		tr := testReport{Name: r.Name, Passed: r.Passed, Failures: r.Failures}
		if r.Result != nil {
			tr.Outcome = r.Result.Outcome()
		}
		report = append(report, tr)
	}

	if format != cli.FormatText {
		return report.failed(), cli.NewFormatter(format).FormatTo(w, report)
	}

	for _, r := range report {
		if r.Passed {
			fmt.Fprintf(w, "PASS  %s\n", r.Name)
			continue
		}
		fmt.Fprintf(w, "FAIL  %s\n", r.Name)
		for _, f := range r.Failures {
			fmt.Fprintf(w, "        %s\n", f)
		}
	}
	failed := report.failed()
	fmt.Fprintf(w, "%d passed, %d failed (catalog %s)\n", len(report)-failed, failed, m.Version())
	return failed, nil
}
