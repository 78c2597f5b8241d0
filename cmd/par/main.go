// par runs partial animation replacement rules against skeletons.
//
// Rules live as JSON or YAML files in a rule directory, optionally grouped
// into one level of subdirectories. Each rule overrides or limits a set of
// joints for every subject whose conditions hold; when rules claim the
// same joint the higher priority wins.
//
// Usage:
//
//	# Run with the rule directory and scene from config.yaml
//	par run --scene scene.yaml
//
//	# Validate rule files
//	par lint --dir rules/
//
//	# Evaluate rules once against a scene and print the resulting pose
//	par simulate --scene scene.yaml --rules rules/
//
//	# Convert a rule file between YAML and JSON
//	par convert --in hands.yaml --out hands.json
//
//	# List recorded rule assignments
//	par history --subject actor --limit 10
package main

func main() {
	Execute()
}
