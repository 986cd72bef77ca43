package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/adjudicator/pkg/cli"
	"mercator-hq/adjudicator/pkg/config"
	"mercator-hq/adjudicator/pkg/secrets"
	"mercator-hq/adjudicator/pkg/telemetry/logging"
	"mercator-hq/adjudicator/pkg/telemetry/tracing"
)

var rootFlags struct {
	config    string
	catalog   string
	logLevel  string
	logFormat string
}

// Loaded by PersistentPreRunE before any subcommand runs.
var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "adjudicator",
	Short: "Hierarchical rule evaluation and conflict resolution for grievance cases",
	Long: `Adjudicator evaluates a case against a catalog of regulatory rules issued
by authorities at different tiers (national, accreditation, university) and
returns one binding decision with a complete, auditable trace.

When rules from different tiers disagree, the higher authority wins and the
conflict is recorded. Cases without a binding decision, or whose decision
asks for it, are flagged for human review.

Configuration is read from --config (YAML) and ADJUDICATOR_* environment
variables.`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadSettings,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
	ctx = tracing.ExtractFromEnv(ctx)

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return cli.ExitCode(err)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootFlags.config, "config", "c", "", "config file path (defaults only when empty)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.catalog, "catalog", "", "catalog file or directory (overrides catalog.path, forces file mode)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logFormat, "log-format", "", "log format: json, text")
}

func loadSettings(cmd *cobra.Command, args []string) error {
	loaded, err := config.LoadConfigWithEnvOverrides(rootFlags.config)
	if err != nil {
		return err
	}

	if rootFlags.catalog != "" {
		loaded.Catalog.Mode = "file"
		loaded.Catalog.Path = rootFlags.catalog
	}
	if rootFlags.logLevel != "" {
		loaded.Telemetry.Logging.Level = rootFlags.logLevel
	}
	if rootFlags.logFormat != "" {
		loaded.Telemetry.Logging.Format = rootFlags.logFormat
	}

	l, err := logging.New(loaded.Telemetry.Logging, cmd.ErrOrStderr())
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	resolver, err := secrets.FromConfig(loaded.Secrets, l)
	if err != nil {
		return cli.NewConfigError("secrets.dir", err.Error())
	}
	if err := resolver.ResolveConfig(cmd.Context(), loaded); err != nil {
		return cli.NewConfigError("secrets", err.Error())
	}

	cfg, logger = loaded, l
	slog.SetDefault(logger)
	return nil
}
