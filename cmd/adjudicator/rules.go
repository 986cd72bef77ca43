package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/adjudicator/pkg/catalog/manager"
	"mercator-hq/adjudicator/pkg/cli"
	"mercator-hq/adjudicator/pkg/rules"
)

var rulesFlags struct {
	tier   int
	format string
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect the rules of a catalog",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rules by authority",
	Long: `List the catalog's rules in resolution order: highest
authority tier first, then by descending priority.

Examples:
  adjudicator rules list --catalog examples/catalogs/grievance
  adjudicator rules list --tier 1 --format json`,
	Args: cobra.NoArgs,
	RunE: runRulesList,
}

var rulesShowCmd = &cobra.Command{
	Use:   "show RULE_ID",
	Short: "Show one rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesShow,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd, rulesShowCmd)

	rulesCmd.PersistentFlags().StringVarP(&rulesFlags.format, "format", "o", "text", "output format: text, json, csv")
	rulesListCmd.Flags().IntVar(&rulesFlags.tier, "tier", 0, "only list rules of this tier level")
}

// ruleView is the printed form of a rule.
type ruleView struct {
	ID          string `json:"id"`
	TierLevel   int    `json:"tier_level"`
	TierName    string `json:"tier_name"`
	Priority    int    `json:"priority"`
	Source      string `json:"source"`
	Authority   string `json:"authority,omitempty"`
	Description string `json:"description,omitempty"`
	Condition   string `json:"condition,omitempty"`
}

func newRuleView(r rules.Rule) ruleView {
	return ruleView{
		ID:          r.ID,
		TierLevel:   r.Tier.Level,
		TierName:    r.Tier.Name,
		Priority:    r.Priority,
		Source:      r.Source,
		Authority:   r.Authority,
		Description: r.Description,
		Condition:   r.ConditionText,
	}
}

type ruleViews []ruleView

func (v ruleViews) Header() []string { return []string{"ID", "TIER", "PRIORITY", "SOURCE"} }

func (v ruleViews) Rows() [][]string {
	rows := make([][]string, 0, len(v))
	for _, r := range v {
		rows = append(rows, []string{r.ID, r.TierName, strconv.Itoa(r.Priority), r.Source})
	}
	return rows
}

func loadCatalog() (*rules.Catalog, error) {
	m, err := manager.New(&cfg.Catalog, manager.WithLogger(logger), manager.WithEngineLimits(cfg.Engine))
	if err != nil {
		return nil, err
	}
	defer m.Close()

	if err := m.Load(); err != nil {
		return nil, err
	}
	return m.Current(), nil
}

func runRulesList(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(rulesFlags.format)
	if err != nil {
		return err
	}
	catalog, err := loadCatalog()
	if err != nil {
		return cli.NewCommandError("rules list", err)
	}

	views := ruleViews{}
	for _, r := range catalog.Rules() {
		if rulesFlags.tier != 0 && r.Tier.Level != rulesFlags.tier {
			continue
		}
		views = append(views, newRuleView(r))
	}
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].TierLevel != views[j].TierLevel {
			return views[i].TierLevel < views[j].TierLevel
		}
		return views[i].Priority > views[j].Priority
	})
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), views)
}

func runRulesShow(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(rulesFlags.format)
	if err != nil {
		return err
	}
	catalog, err := loadCatalog()
	if err != nil {
		return cli.NewCommandError("rules show", err)
	}

	r, ok := catalog.Rule(args[0])
	if !ok {
		return cli.NewCommandError("rules show", fmt.Errorf("rule %q not found in catalog %s", args[0], catalog.Version()))
	}
	view := newRuleView(r)

	switch format {
	case cli.FormatJSON:
		return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), view)
	case cli.FormatCSV:
		return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), ruleViews{view})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "ID:          %s\n", view.ID)
	fmt.Fprintf(w, "Tier:        %s (level %d)\n", view.TierName, view.TierLevel)
	fmt.Fprintf(w, "Priority:    %d\n", view.Priority)
	fmt.Fprintf(w, "Source:      %s\n", view.Source)
	if view.Authority != "" {
		fmt.Fprintf(w, "Authority:   %s\n", view.Authority)
	}
	if view.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", view.Description)
	}
	if view.Condition != "" {
		fmt.Fprintf(w, "Condition:   %s\n", view.Condition)
	}
	return nil
}
