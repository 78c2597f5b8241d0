package manager

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/NenyaBit/PartialAnimationReplacer/pkg/condition"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/skeleton"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/subject"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ruleJSON renders a frame-only rule overriding joints with a rotation of
// angle radians about x.
func ruleJSON(priority int, condition string, angle float64, joints ...string) string {
	rot := skeleton.FromEulerZXY(angle, 0, 0)
	overrides := make([]string, len(joints))
	for i, j := range joints {
		overrides[i] = fmt.Sprintf(`{"name": %q, "rotate": [[%g, %g, %g], [%g, %g, %g], [%g, %g, %g]]}`,
			j,
			rot[0][0], rot[0][1], rot[0][2],
			rot[1][0], rot[1][1], rot[1][2],
			rot[2][0], rot[2][1], rot[2][2],
		)
	}
	conditions := "[]"
	if condition != "" {
		conditions = fmt.Sprintf("[%q]", condition)
	}
	return fmt.Sprintf(`{"priority": %d, "conditions": %s, "frames": [[%s]]}`,
		priority, conditions, strings.Join(overrides, ", "))
}

const invalidRule = `{"conditions": [], "frames": [], "limits": []}`

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

type staticSource []subject.Subject

func (s staticSource) Subjects(context.Context) []subject.Subject {
	return s
}

func newTestManager(t *testing.T, subjects ...subject.Subject) *Manager {
	t.Helper()
	if len(subjects) == 0 {
		subjects = []subject.Subject{subject.NewEntity("player", map[string]any{"sex": 1})}
	}
	m, err := New(Config{}, staticSource(subjects), condition.NewParser(testLogger()), testLogger())
	if err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}
	return m
}

func newTree(t *testing.T, joints ...string) *skeleton.Tree {
	t.Helper()
	tree := skeleton.NewTree("root")
	for _, j := range joints {
		if err := tree.AddJoint("root", j, skeleton.IdentityTransform()); err != nil {
			t.Fatalf("AddJoint(%q) error = %v", j, err)
		}
	}
	return tree
}

func sources(rules []RuleInfo) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = filepath.Base(r.Source)
	}
	return out
}

type countingRecorder struct {
	mu          sync.Mutex
	loads       map[string]int
	rules       int
	evaluations int
	applied     int
	groups      map[string]int
	changes     map[string]int
	rescans     int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		loads:   make(map[string]int),
		changes: make(map[string]int),
	}
}

func (r *countingRecorder) RecordLoad(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads[outcome]++
}

func (r *countingRecorder) RecordRules(active int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = active
}

func (r *countingRecorder) RecordEvaluation(time.Duration, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluations++
}

func (r *countingRecorder) RecordApply(_ time.Duration, applied int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied += applied
}

func (r *countingRecorder) RecordGroups(groups map[string]int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups = maps.Clone(groups)
}

func (r *countingRecorder) RecordChange(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes[kind]++
}

func (r *countingRecorder) RecordRescan(error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rescans++
}
