/*
Package cli provides the helpers shared by the adjudicator commands.

Output Formatting:

Results that implement Table render as aligned text columns, CSV, or JSON:

	formatter := cli.NewFormatter(cli.FormatCSV)
	if err := formatter.FormatTo(os.Stdout, ruleList); err != nil {
		return err
	}

Exit Codes:

ExitCode maps a command error to the process status. A FindingsError (lint
problems, failing catalog tests, ambiguous cases) exits with 2, any other
error with 1.

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
