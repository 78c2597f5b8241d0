/*
Package cli provides command-line helpers shared by the par command.

Output Formatting:

Command results are rendered as text, JSON, YAML or CSV:

	formatter, err := cli.NewFormatter(cli.FormatJSON)
	if err != nil {
		return err
	}
	return formatter.FormatTo(os.Stdout, results)

Values that know how to print themselves implement TextWriter for the text
format and CSVWriter for the CSV format.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()
*/
package cli
