package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/NenyaBit/PartialAnimationReplacer/pkg/cli"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/history"
)

var historyFlags struct {
	path    string
	subject string
	since   time.Duration
	limit   int
	format  string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded rule assignments",
	Long: `List the rule assignments recorded by "par run", newest first.

A record is written whenever an evaluation pass changes which rules apply to
which subjects.

Examples:
  # Last 10 records
  par history --limit 10

  # Records that assigned rules to one subject during the last hour
  par history --subject actor --since 1h

  # CSV output, one row per subject and record
  par history --format csv`,
	RunE: listHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyFlags.path, "db", "", "history database (defaults to history.path)")
	historyCmd.Flags().StringVar(&historyFlags.subject, "subject", "", "only records assigning rules to this subject")
	historyCmd.Flags().DurationVar(&historyFlags.since, "since", 0, "only records newer than this duration")
	historyCmd.Flags().IntVarP(&historyFlags.limit, "limit", "n", history.DefaultListLimit, "maximum number of records")
	historyCmd.Flags().StringVar(&historyFlags.format, "format", "text", "output format: text, json, yaml, csv")
}

// HistoryReport is the output of the history command.
type HistoryReport struct {
	Records []history.Record `json:"records" yaml:"records"`
}

// WriteText prints each record with its assignments.
func (r HistoryReport) WriteText(w io.Writer) error {
	if len(r.Records) == 0 {
		_, err := fmt.Fprintln(w, "no records")
		return err
	}
	for _, rec := range r.Records {
		fmt.Fprintf(w, "%s  generation %d  snapshot %s  rules %s\n",
			rec.CreatedAt.Local().Format(time.RFC3339), rec.Generation, rec.SnapshotID, rec.Version)
		for _, a := range rec.Assignments {
			fmt.Fprintf(w, "  %-20s %s\n", a.Subject, strings.Join(a.Rules, ", "))
		}
	}
	return nil
}

// CSVHeader implements cli.CSVWriter.
func (r HistoryReport) CSVHeader() []string {
	return []string{"created_at", "generation", "snapshot_id", "version", "subject", "rules"}
}

// CSVRows implements cli.CSVWriter with one row per assignment.
func (r HistoryReport) CSVRows() [][]string {
	var rows [][]string
	for _, rec := range r.Records {
		for _, a := range rec.Assignments {
			rows = append(rows, []string{
				rec.CreatedAt.UTC().Format(time.RFC3339Nano),
				strconv.FormatUint(rec.Generation, 10),
				rec.SnapshotID,
				rec.Version,
				a.Subject,
				strings.Join(a.Rules, ";"),
			})
		}
	}
	return rows
}

func listHistory(cmd *cobra.Command, args []string) error {
	formatter, err := cli.NewFormatter(cli.OutputFormat(historyFlags.format))
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Telemetry.Logging)
	if err != nil {
		return err
	}

	path := cfg.History.Path
	if historyFlags.path != "" {
		path = historyFlags.path
	}
	store, err := history.Open(history.StoreConfig{
		Path:        path,
		BusyTimeout: cfg.History.BusyTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	q := history.Query{
		Subject: historyFlags.subject,
		Limit:   historyFlags.limit,
	}
	if historyFlags.since > 0 {
		q.Since = time.Now().Add(-historyFlags.since)
	}

	records, err := store.List(commandContext(cmd), q)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}
	return formatter.FormatTo(cmdOut(cmd), HistoryReport{Records: records})
}
