package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/NenyaBit/PartialAnimationReplacer/pkg/cli"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/condition"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/manager"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/replacer"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/telemetry/logging"
)

var lintFlags struct {
	file   string
	dir    string
	format string
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate rule files",
	Long: `Validate rule files without loading them into a running process.

Each file is decoded, its conditions are compiled and the rule is checked
for the same problems that keep it out of the active set:
  - missing or uncompilable conditions
  - no frames nor limits
  - empty frames
  - overrides or limits without a joint name

Examples:
  # Lint single file
  par lint --file rules/hands.json

  # Lint a rule directory, including group directories
  par lint --dir rules/

  # JSON output for CI/CD
  par lint --dir rules/ --format json`,
	RunE: lintRules,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVarP(&lintFlags.file, "file", "f", "", "rule file to validate")
	lintCmd.Flags().StringVarP(&lintFlags.dir, "dir", "d", "", "rule directory to validate")
	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json, yaml")
}

// LintResult is the validation result for a single rule file.
type LintResult struct {
	File       string   `json:"file" yaml:"file"`
	Group      string   `json:"group,omitempty" yaml:"group,omitempty"`
	Valid      bool     `json:"valid" yaml:"valid"`
	Priority   uint64   `json:"priority,omitempty" yaml:"priority,omitempty"`
	Joints     []string `json:"joints,omitempty" yaml:"joints,omitempty"`
	Violations []string `json:"violations,omitempty" yaml:"violations,omitempty"`
}

// LintReport collects the results of a lint run.
type LintReport struct {
	Files   int          `json:"files" yaml:"files"`
	Invalid int          `json:"invalid" yaml:"invalid"`
	Results []LintResult `json:"results" yaml:"results"`
}

// WriteText prints one line per file and a summary.
func (r LintReport) WriteText(w io.Writer) error {
	for _, res := range r.Results {
		if res.Valid {
			fmt.Fprintf(w, "✓ %s (priority %d, %d joints)\n", res.File, res.Priority, len(res.Joints))
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", res.File)
		for _, v := range res.Violations {
			fmt.Fprintf(w, "    - %s\n", v)
		}
	}
	_, err := fmt.Fprintf(w, "\n%d files, %d invalid\n", r.Files, r.Invalid)
	return err
}

func lintRules(cmd *cobra.Command, args []string) error {
	if lintFlags.file == "" && lintFlags.dir == "" {
		return fmt.Errorf("either --file or --dir must be specified")
	}

	formatter, err := cli.NewFormatter(cli.OutputFormat(lintFlags.format))
	if err != nil {
		return err
	}

	loader := manager.NewLoader(nil, logging.Discard())

	var sources []manager.Source
	if lintFlags.file != "" {
		sources = append(sources, manager.Source{Path: lintFlags.file})
	}
	if lintFlags.dir != "" {
		found, err := loader.Discover(lintFlags.dir)
		if err != nil {
			return fmt.Errorf("failed to list rule files: %w", err)
		}
		sources = append(sources, found...)
	}
	if len(sources) == 0 {
		return fmt.Errorf("no rule files found")
	}

	parser := condition.NewParser(logging.Discard())
	report := LintReport{Results: make([]LintResult, 0, len(sources))}
	for _, src := range sources {
		res := lintFile(loader, parser, src)
		if !res.Valid {
			report.Invalid++
		}
		report.Results = append(report.Results, res)
	}
	report.Files = len(report.Results)

	if err := formatter.FormatTo(cmdOut(cmd), report); err != nil {
		return err
	}
	if report.Invalid > 0 {
		return fmt.Errorf("%d of %d rule files invalid: %w", report.Invalid, report.Files, cli.ErrFindings)
	}
	return nil
}

func lintFile(loader *manager.Loader, parser replacer.ConditionParser, src manager.Source) LintResult {
	result := LintResult{File: src.Path, Group: src.Group}

	data, err := loader.ReadFile(src.Path)
	if err != nil {
		result.Violations = []string{err.Error()}
		return result
	}

	r := replacer.New(data, parser, replacer.WithLogger(logging.Discard()))
	if err := r.Validate(src.Path); err != nil {
		var verr *replacer.ValidationError
		if errors.As(err, &verr) {
			result.Violations = verr.Violations
		} else {
			result.Violations = []string{err.Error()}
		}
		return result
	}

	result.Valid = true
	result.Priority = r.Priority()
	result.Joints = r.Footprint()
	return result
}

// cmdOut returns the command's output writer, or stdout when the command
// is invoked directly.
func cmdOut(cmd *cobra.Command) io.Writer {
	if cmd == nil {
		return rootCmd.OutOrStdout()
	}
	return cmd.OutOrStdout()
}
