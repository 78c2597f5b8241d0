package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/NenyaBit/PartialAnimationReplacer/pkg/cli"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/condition"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/config"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/manager"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/scene"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/skeleton"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/subject"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/telemetry/logging"
)

var simulateFlags struct {
	scene  string
	rules  string
	ticks  int
	format string
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Evaluate rules against a scene and print the resulting pose",
	Long: `Load a rule directory and a scene file, run one evaluation pass and
then the given number of apply ticks. Every tick starts from the bind pose,
as an animation update would.

For each subject the command prints the rules it was assigned and the local
transform of every joint those rules claim. Rotations are Euler angles in
degrees, in the order the rule files use.

Examples:
  par simulate --scene scene.yaml --rules rules/
  par simulate --scene scene.yaml --rules rules/ --ticks 3 --format json`,
	RunE: simulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringVarP(&simulateFlags.scene, "scene", "s", "", "scene file (required)")
	simulateCmd.Flags().StringVarP(&simulateFlags.rules, "rules", "r", "", "rule directory (defaults to rules.directory)")
	simulateCmd.Flags().IntVar(&simulateFlags.ticks, "ticks", 1, "number of apply ticks")
	simulateCmd.Flags().StringVar(&simulateFlags.format, "format", "text", "output format: text, json, yaml")
	_ = simulateCmd.MarkFlagRequired("scene")
}

// JointPose is a joint's local transform after the apply pass.
type JointPose struct {
	Joint     string     `json:"joint" yaml:"joint"`
	Rotate    [3]float64 `json:"rotate" yaml:"rotate"`
	Translate [3]float64 `json:"translate" yaml:"translate"`
	Scale     float64    `json:"scale" yaml:"scale"`
}

// SubjectPose is the simulation result for one subject.
type SubjectPose struct {
	Subject string      `json:"subject" yaml:"subject"`
	Rules   []string    `json:"rules" yaml:"rules"`
	Joints  []JointPose `json:"joints,omitempty" yaml:"joints,omitempty"`
}

// SimulationReport is the output of the simulate command.
type SimulationReport struct {
	Snapshot string        `json:"snapshot" yaml:"snapshot"`
	Version  string        `json:"version" yaml:"version"`
	Rejected []string      `json:"rejected,omitempty" yaml:"rejected,omitempty"`
	Ticks    int           `json:"ticks" yaml:"ticks"`
	Applied  int           `json:"applied" yaml:"applied"`
	Subjects []SubjectPose `json:"subjects" yaml:"subjects"`
}

// WriteText prints the assignments and poses per subject.
func (r SimulationReport) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "snapshot %s (rules %s), %d ticks, %d applications\n", r.Snapshot, r.Version, r.Ticks, r.Applied)
	for _, path := range r.Rejected {
		fmt.Fprintf(w, "rejected %s\n", path)
	}
	for _, s := range r.Subjects {
		fmt.Fprintf(w, "\n%s\n", s.Subject)
		if len(s.Rules) == 0 {
			fmt.Fprintln(w, "  no rules")
			continue
		}
		for _, rule := range s.Rules {
			fmt.Fprintf(w, "  rule %s\n", rule)
		}
		for _, j := range s.Joints {
			fmt.Fprintf(w, "  %-24s rotate %7.2f %7.2f %7.2f  translate %7.3f %7.3f %7.3f  scale %.3f\n",
				j.Joint, j.Rotate[0], j.Rotate[1], j.Rotate[2],
				j.Translate[0], j.Translate[1], j.Translate[2], j.Scale)
		}
	}
	return nil
}

func simulate(cmd *cobra.Command, args []string) error {
	if simulateFlags.ticks < 0 {
		return fmt.Errorf("--ticks must not be negative")
	}
	formatter, err := cli.NewFormatter(cli.OutputFormat(simulateFlags.format))
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

	sc, err := scene.Load(simulateFlags.scene)
	if err != nil {
		return fmt.Errorf("failed to load scene: %w", err)
	}
	world, err := sc.Build()
	if err != nil {
		return fmt.Errorf("failed to build scene: %w", err)
	}

	dir := cfg.Rules.Directory
	if simulateFlags.rules != "" {
		dir = simulateFlags.rules
	}

	m, err := manager.New(manager.Config{
		Loader:      loaderConfig(cfg),
		Parallelism: cfg.Apply.Parallelism,
		Resolver:    world.Resolver(),
	}, world, condition.NewParser(logging.Discard()), logger)
	if err != nil {
		return err
	}

	loaded, err := m.LoadDirectory(filepath.Clean(dir))
	if err != nil && len(loaded.Rejected) == 0 {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	ctx := commandContext(cmd)
	snap := m.Evaluate(ctx)

	report := SimulationReport{
		Snapshot: snap.ID.String(),
		Version:  snap.Version,
		Rejected: loaded.Rejected,
		Ticks:    simulateFlags.ticks,
	}
	for i := 0; i < simulateFlags.ticks; i++ {
		world.Reset()
		applied, err := m.ApplyAll(ctx, world.Targets(), world.Updated)
		if err != nil {
			return err
		}
		report.Applied += applied
	}

	for _, id := range world.IDs() {
		report.Subjects = append(report.Subjects, subjectPose(snap, world, id))
	}

	return formatter.FormatTo(cmdOut(cmd), report)
}

func subjectPose(snap *manager.Snapshot, world *scene.World, id subject.ID) SubjectPose {
	pose := SubjectPose{Subject: string(id), Rules: []string{}}

	claimed := map[string]struct{}{}
	for _, rule := range snap.Rules(id) {
		pose.Rules = append(pose.Rules, rule.Source)
		for _, joint := range rule.Replacer.Footprint() {
			claimed[joint] = struct{}{}
		}
	}

	tree, ok := world.Tree(id)
	if !ok {
		return pose
	}
	names := make([]string, 0, len(claimed))
	for name := range claimed {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		joint, ok := tree.FindJoint(name)
		if !ok {
			continue
		}
		pose.Joints = append(pose.Joints, jointPose(joint))
	}
	return pose
}

func jointPose(j *skeleton.Joint) JointPose {
	x, y, z := j.Local.Rotate.EulerZXY()
	t := j.Local.Translate
	return JointPose{
		Joint:     j.Name,
		Rotate:    [3]float64{skeleton.RadToDeg(x), skeleton.RadToDeg(y), skeleton.RadToDeg(z)},
		Translate: [3]float64(t),
		Scale:     j.Local.Scale,
	}
}

// loaderConfig maps the rules section onto the manager's loader settings.
func loaderConfig(cfg *config.Config) *manager.LoaderConfig {
	return &manager.LoaderConfig{
		AllowedExtensions: cfg.Rules.Extensions,
		MaxFileSize:       cfg.Rules.MaxFileSize,
		SkipHidden:        cfg.Rules.SkipHidden,
	}
}
