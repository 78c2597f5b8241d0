package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/NenyaBit/PartialAnimationReplacer/pkg/replacer"
)

var convertFlags struct {
	in    string
	out   string
	force bool
}

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a rule file between JSON and YAML",
	Long: `Read a rule file and write it back in the encoding implied by the
output file's extension. Omitted fields are written with their defaults, so
converting a file to its own format normalizes it.

Examples:
  par convert --in rules/hands.yaml --out rules/hands.json
  par convert --in hands.json --out hands.json --force`,
	RunE: convertRule,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringVarP(&convertFlags.in, "in", "i", "", "rule file to read (required)")
	convertCmd.Flags().StringVarP(&convertFlags.out, "out", "o", "", "rule file to write (required)")
	convertCmd.Flags().BoolVar(&convertFlags.force, "force", false, "overwrite an existing output file")
	_ = convertCmd.MarkFlagRequired("in")
	_ = convertCmd.MarkFlagRequired("out")
}

func convertRule(cmd *cobra.Command, args []string) error {
	inFormat, ok := replacer.FormatFromPath(convertFlags.in)
	if !ok {
		return fmt.Errorf("unsupported input extension %q", filepath.Ext(convertFlags.in))
	}
	outFormat, ok := replacer.FormatFromPath(convertFlags.out)
	if !ok {
		return fmt.Errorf("unsupported output extension %q", filepath.Ext(convertFlags.out))
	}

	raw, err := os.ReadFile(convertFlags.in)
	if err != nil {
		return fmt.Errorf("failed to read rule file: %w", err)
	}
	data, err := replacer.Decode(raw, inFormat)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", convertFlags.in, err)
	}
	encoded, err := replacer.Encode(data, outFormat)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", convertFlags.out, err)
	}

	if !convertFlags.force {
		if _, err := os.Stat(convertFlags.out); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", convertFlags.out)
		}
	}

	if dir := filepath.Dir(convertFlags.out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(convertFlags.out, encoded, 0o644); err != nil {
		return fmt.Errorf("failed to write rule file: %w", err)
	}

	fmt.Fprintf(cmdOut(cmd), "✓ Converted %s (%s) to %s (%s)\n", convertFlags.in, inFormat, convertFlags.out, outFormat)
	return nil
}
