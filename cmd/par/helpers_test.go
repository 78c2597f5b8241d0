package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

const neckRule = `{
	"priority": 1,
	"refs": {"guard": "faction.guard"},
	"conditions": ["actor.faction == refs.guard"],
	"frames": [[{"name": "neck"}]]
}`

const brokenRule = `{"conditions": [], "frames": [[]]}`

const testScene = `
refs:
  faction.guard: guard
controlled: player
skeleton:
  root: root
  joints:
    - {name: spine, translate: [0, 1, 0]}
    - {name: neck, parent: spine, rotate: [10, 0, 0]}
subjects:
  - id: npc
    attributes: {faction: guard}
  - id: player
    attributes: {faction: none}
`

// writeFile creates path under dir with the given content.
func writeFile(t *testing.T, dir, path, content string) string {
	t.Helper()
	full := filepath.Join(dir, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return full
}

// captureOutput points cmd's output at a buffer for the test.
func captureOutput(t *testing.T, cmd *cobra.Command) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	t.Cleanup(func() { cmd.SetOut(nil) })
	return buf
}
