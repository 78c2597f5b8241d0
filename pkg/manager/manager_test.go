package manager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/NenyaBit/PartialAnimationReplacer/pkg/condition"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/replacer"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/skeleton"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/subject"
)

func TestNew_NilArguments(t *testing.T) {
	parser := condition.NewParser(testLogger())

	if _, err := New(Config{}, nil, parser, nil); err == nil || !strings.Contains(err.Error(), "subject source cannot be nil") {
		t.Errorf("New(nil source) error = %v, want subject source error", err)
	}
	if _, err := New(Config{}, staticSource{}, nil, nil); err == nil || !strings.Contains(err.Error(), "condition parser cannot be nil") {
		t.Errorf("New(nil parser) error = %v, want parser error", err)
	}
}

func TestNew_InitialState(t *testing.T) {
	m := newTestManager(t)

	snap := m.Snapshot()
	if snap == nil {
		t.Fatal("Snapshot() = nil, want empty snapshot")
	}
	if snap.Generation != 0 || snap.Len() != 0 {
		t.Errorf("initial snapshot = generation %d, %d subjects; want 0, 0", snap.Generation, snap.Len())
	}
	if !m.Enabled() {
		t.Error("Enabled() = false, want true")
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}

func TestManager_LoadFile_Idempotent(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "g", "a.json"), ruleJSON(1, "true", 0.5, "neck"))
	m := newTestManager(t)

	for i := 0; i < 2; i++ {
		if err := m.LoadFile(path); err != nil {
			t.Fatalf("LoadFile() #%d error = %v, want nil", i, err)
		}
	}

	if m.Len() != 1 {
		t.Errorf("Len() = %d after loading the same file twice, want 1", m.Len())
	}
}

func TestManager_LoadFile_ReplacesInPlace(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, filepath.Join(dir, "g", "a.json"), ruleJSON(1, "true", 0.1, "neck"))
	b := writeFile(t, filepath.Join(dir, "g", "b.json"), ruleJSON(1, "true", 0.1, "spine"))
	m := newTestManager(t)

	for _, p := range []string{a, b} {
		if err := m.LoadFile(p); err != nil {
			t.Fatalf("LoadFile(%q) error = %v", p, err)
		}
	}

	writeFile(t, a, ruleJSON(1, "true", 0.2, "head"))
	if err := m.ReloadFile(a); err != nil {
		t.Fatalf("ReloadFile() error = %v", err)
	}

	rules := m.Rules()
	if diff := cmp.Diff([]string{"a.json", "b.json"}, sources(rules)); diff != "" {
		t.Errorf("rule order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"head"}, rules[0].Joints); diff != "" {
		t.Errorf("reloaded joints mismatch (-want +got):\n%s", diff)
	}
}

func TestManager_PriorityOrder(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t)

	files := []struct {
		name     string
		priority int
	}{
		{"a.json", 1},
		{"b.json", 5},
		{"c.json", 1},
		{"d.json", 3},
	}
	for _, f := range files {
		path := writeFile(t, filepath.Join(dir, "g", f.name), ruleJSON(f.priority, "true", 0, f.name))
		if err := m.LoadFile(path); err != nil {
			t.Fatalf("LoadFile(%q) error = %v", f.name, err)
		}
	}

	want := []string{"b.json", "d.json", "a.json", "c.json"}
	if diff := cmp.Diff(want, sources(m.Rules())); diff != "" {
		t.Errorf("rule order mismatch (-want +got):\n%s", diff)
	}

	// Retraction keeps the index consistent with the new positions.
	if !m.RemoveFile(filepath.Join(dir, "g", "b.json")) {
		t.Fatal("RemoveFile() = false, want true")
	}
	writeFile(t, filepath.Join(dir, "g", "c.json"), ruleJSON(9, "true", 0, "c"))
	if err := m.LoadFile(filepath.Join(dir, "g", "c.json")); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	want = []string{"c.json", "d.json", "a.json"}
	if diff := cmp.Diff(want, sources(m.Rules())); diff != "" {
		t.Errorf("rule order after reload mismatch (-want +got):\n%s", diff)
	}
}

func TestManager_LoadFile_InvalidRetracts(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "g", "a.json"), ruleJSON(1, "true", 0.5, "neck"))
	rec := newCountingRecorder()
	m, err := New(Config{Recorder: rec}, staticSource{}, condition.NewParser(testLogger()), testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := m.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	writeFile(t, path, invalidRule)
	err = m.LoadFile(path)

	var vErr *replacer.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("LoadFile() error = %v, want *replacer.ValidationError", err)
	}
	if len(vErr.Violations) != 2 {
		t.Errorf("violations = %v, want 2", vErr.Violations)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after invalid reload", m.Len())
	}
	if rec.loads[OutcomeLoaded] != 1 || rec.loads[OutcomeInvalid] != 1 {
		t.Errorf("recorded loads = %v", rec.loads)
	}
	if rec.rules != 0 {
		t.Errorf("recorded active rules = %d, want 0", rec.rules)
	}
}

func TestManager_LoadFile_InvalidNeverAdded(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "g", "bad.json"), invalidRule)
	m := newTestManager(t)

	if err := m.LoadFile(path); err == nil {
		t.Fatal("LoadFile() error = nil, want validation error")
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}

func TestManager_LoadFile_ParseErrorKeepsPrevious(t *testing.T) {
	tests := []struct {
		name    string
		content string
		line    int
	}{
		{name: "syntax error", content: "{\n  \"priority\": ,\n}", line: 2},
		{name: "truncated", content: `{"priority": 4, "conditions": ["true"], "frames": [[{"na`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := writeFile(t, filepath.Join(dir, "g", "a.json"), ruleJSON(1, "true", 0.5, "neck"))
			m := newTestManager(t)

			if err := m.LoadFile(path); err != nil {
				t.Fatalf("LoadFile() error = %v", err)
			}

			writeFile(t, path, tt.content)
			err := m.LoadFile(path)

			var pErr *ParseError
			if !errors.As(err, &pErr) {
				t.Fatalf("LoadFile() error = %v, want *ParseError", err)
			}
			if tt.line != 0 && pErr.Line != tt.line {
				t.Errorf("ParseError.Line = %d, want %d", pErr.Line, tt.line)
			}

			rules := m.Rules()
			if len(rules) != 1 {
				t.Fatalf("Len() = %d, want the previous version kept", len(rules))
			}
			if diff := cmp.Diff([]string{"neck"}, rules[0].Joints); diff != "" {
				t.Errorf("kept joints mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestManager_LoadFile_BadConditionRetracts(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "g", "a.json"), ruleJSON(1, "true", 0.5, "neck"))
	m := newTestManager(t)

	if err := m.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	writeFile(t, path, ruleJSON(1, "actor.sex ==", 0.5, "neck"))
	if err := m.LoadFile(path); err == nil {
		t.Fatal("LoadFile() error = nil, want validation error")
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}

func TestManager_LoadFile_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "g", "notes.txt"), ruleJSON(1, "true", 0, "neck"))
	m := newTestManager(t)

	if err := m.LoadFile(path); !errors.Is(err, ErrUnsupportedExtension) {
		t.Errorf("LoadFile() error = %v, want ErrUnsupportedExtension", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}

func TestManager_LoadFile_MissingFileRetracts(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "g", "a.json"), ruleJSON(1, "true", 0, "neck"))
	m := newTestManager(t)

	if err := m.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	m.HandleChange(Change{Path: path, Kind: ChangeRemoved})
	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 while the file still exists", m.Len())
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove error = %v", err)
	}

	var lErr *LoadError
	if err := m.LoadFile(path); !errors.As(err, &lErr) {
		t.Errorf("LoadFile() error = %v, want *LoadError", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}

func TestManager_Evaluate_ConflictResolution(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t)

	for _, f := range []struct {
		name     string
		priority int
		joints   []string
	}{
		{"low.json", 1, []string{"neck", "head"}},
		{"high.json", 10, []string{"neck"}},
		{"disjoint.json", 0, []string{"hand"}},
	} {
		path := writeFile(t, filepath.Join(dir, "g", f.name), ruleJSON(f.priority, "true", 0.3, f.joints...))
		if err := m.LoadFile(path); err != nil {
			t.Fatalf("LoadFile(%q) error = %v", f.name, err)
		}
	}

	snap := m.Evaluate(context.Background())

	got := make([]string, 0)
	for _, src := range snap.Assignments()["player"] {
		got = append(got, filepath.Base(src))
	}
	if diff := cmp.Diff([]string{"high.json", "disjoint.json"}, got); diff != "" {
		t.Errorf("assignment mismatch (-want +got):\n%s", diff)
	}
}

func TestManager_Evaluate_ConditionPerSubject(t *testing.T) {
	dir := t.TempDir()
	female := subject.NewEntity("female", map[string]any{"sex": 1})
	male := subject.NewEntity("male", map[string]any{"sex": 0})
	m := newTestManager(t, female, male)

	path := writeFile(t, filepath.Join(dir, "g", "a.json"), ruleJSON(1, "actor.sex == 1", 0.3, "neck"))
	if err := m.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	snap := m.Evaluate(context.Background())

	if diff := cmp.Diff([]subject.ID{"female"}, snap.Subjects()); diff != "" {
		t.Errorf("subjects mismatch (-want +got):\n%s", diff)
	}
	if len(snap.Rules("male")) != 0 {
		t.Errorf("Rules(male) = %d rules, want 0", len(snap.Rules("male")))
	}
}

func TestManager_Evaluate_PublishesNewSnapshot(t *testing.T) {
	m := newTestManager(t)

	var (
		mu        sync.Mutex
		published []uint64
	)
	m.OnPublish(func(s *Snapshot) {
		mu.Lock()
		published = append(published, s.Generation)
		mu.Unlock()
	})

	old := m.Snapshot()
	first := m.Evaluate(context.Background())
	second := m.Evaluate(context.Background())

	if first == old || second == first {
		t.Error("Evaluate() must publish a new snapshot every pass")
	}
	if first.ID == second.ID {
		t.Error("snapshot IDs must differ between passes")
	}
	if m.Snapshot() != second {
		t.Error("Snapshot() does not return the last published snapshot")
	}
	if diff := cmp.Diff([]uint64{1, 2}, published); diff != "" {
		t.Errorf("published generations mismatch (-want +got):\n%s", diff)
	}
}

// Two rules share the neck joint. The higher priority one wins it whole;
// the lower priority rule is not applied at all, so the clavicle keeps its
// pose.
func TestManager_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t)

	a := writeFile(t, filepath.Join(dir, "g", "A.json"), ruleJSON(10, "true", 0.4, "spine", "neck"))
	b := writeFile(t, filepath.Join(dir, "g", "B.json"), ruleJSON(5, "true", -0.7, "neck", "clavicle"))

	result, err := m.LoadDirectory(dir)
	if err != nil {
		t.Fatalf("LoadDirectory() error = %v", err)
	}
	if diff := cmp.Diff([]string{a, b}, result.Loaded); diff != "" {
		t.Errorf("loaded mismatch (-want +got):\n%s", diff)
	}

	m.Evaluate(context.Background())

	tree := newTree(t, "spine", "neck", "clavicle")
	if !m.ApplySubject("player", tree) {
		t.Fatal("ApplySubject() = false, want true")
	}

	want := skeleton.FromEulerZXY(0.4, 0, 0)
	for _, name := range []string{"spine", "neck"} {
		j, _ := tree.FindJoint(name)
		if !j.Local.Rotate.ApproxEqual(want, 1e-9) {
			t.Errorf("%s rotation = %v, want rule A's pose", name, j.Local.Rotate)
		}
	}
	clavicle, _ := tree.FindJoint("clavicle")
	if clavicle.Local.Rotate != skeleton.Identity() {
		t.Errorf("clavicle rotation = %v, want untouched", clavicle.Local.Rotate)
	}

	if m.ApplySubject("stranger", tree) {
		t.Error("ApplySubject(unknown) = true, want false")
	}
}

func TestManager_ApplyAll(t *testing.T) {
	dir := t.TempDir()
	subjects := []subject.Subject{
		subject.NewEntity("a", map[string]any{"sex": 1}),
		subject.NewEntity("b", map[string]any{"sex": 0}),
		subject.NewEntity("c", map[string]any{"sex": 1}),
	}
	rec := newCountingRecorder()
	m, err := New(Config{Parallelism: 2, Recorder: rec}, staticSource(subjects), condition.NewParser(testLogger()), testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	path := writeFile(t, filepath.Join(dir, "g", "a.json"), ruleJSON(1, "actor.sex == 1", 0.2, "neck"))
	if err := m.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	m.Evaluate(context.Background())

	targets := make([]Target, 0, len(subjects))
	for _, s := range subjects {
		targets = append(targets, Target{ID: s.ID(), Tree: newTree(t, "neck")})
	}

	var (
		mu      sync.Mutex
		updated []subject.ID
	)
	n, err := m.ApplyAll(context.Background(), targets, func(id subject.ID, tree skeleton.JointTree) {
		tree.(*skeleton.Tree).UpdateWorld()
		mu.Lock()
		updated = append(updated, id)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("ApplyAll() error = %v", err)
	}
	if n != 2 {
		t.Errorf("ApplyAll() = %d, want 2", n)
	}
	if len(updated) != 2 {
		t.Errorf("update callbacks = %v, want 2", updated)
	}
	if rec.applied != 2 {
		t.Errorf("recorded applied = %d, want 2", rec.applied)
	}

	neck, _ := targets[0].Tree.FindJoint("neck")
	if !neck.World.Rotate.ApproxEqual(skeleton.FromEulerZXY(0.2, 0, 0), 1e-9) {
		t.Errorf("world rotation not updated: %v", neck.World.Rotate)
	}
}

func TestManager_ApplyAll_Disabled(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t)

	path := writeFile(t, filepath.Join(dir, "g", "a.json"), ruleJSON(1, "true", 0.2, "neck"))
	if err := m.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	m.Evaluate(context.Background())
	m.SetEnabled(false)

	tree := newTree(t, "neck")
	n, err := m.ApplyAll(context.Background(), []Target{{ID: "player", Tree: tree}}, nil)
	if err != nil || n != 0 {
		t.Errorf("ApplyAll() = (%d, %v), want (0, nil) while disabled", n, err)
	}
	if m.ApplySubject("player", tree) {
		t.Error("ApplySubject() = true while disabled")
	}

	m.SetEnabled(true)
	if !m.ApplySubject("player", tree) {
		t.Error("ApplySubject() = false after re-enabling")
	}
}

func TestManager_ApplyAll_Cancelled(t *testing.T) {
	m := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := m.ApplyAll(ctx, []Target{{ID: "player", Tree: newTree(t)}}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ApplyAll() error = %v, want context.Canceled", err)
	}
	if n != 0 {
		t.Errorf("ApplyAll() = %d, want 0", n)
	}
}

// Loads and evaluations race with apply passes; run with -race.
func TestManager_ConcurrentReloadAndApply(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t)
	path := writeFile(t, filepath.Join(dir, "g", "a.json"), ruleJSON(1, "true", 0.2, "neck"))
	tree := newTree(t, "neck")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_ = m.LoadFile(path)
			m.Evaluate(ctx)
			m.RemoveFile(path)
			m.Evaluate(ctx)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_, _ = m.ApplyAll(ctx, []Target{{ID: "player", Tree: tree}}, nil)
		}
	}()
	wg.Wait()
}

func TestManager_Version(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t)
	empty := m.Version()

	path := writeFile(t, filepath.Join(dir, "g", "a.json"), ruleJSON(1, "true", 0.2, "neck"))
	if err := m.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if m.Version() == empty {
		t.Error("Version() unchanged after load")
	}
	if len(m.Version()) != 16 {
		t.Errorf("Version() = %q, want 16 hex characters", m.Version())
	}
	if got := m.Evaluate(context.Background()).Version; got != m.Version() {
		t.Errorf("snapshot version = %q, want %q", got, m.Version())
	}
}

func TestManager_RelativeAndAbsolutePathsAreOneRule(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	abs := writeFile(t, filepath.Join(dir, "rules", "head", "neck.json"), ruleJSON(1, "true", 0.3, "neck"))
	m := newTestManager(t)

	if _, err := m.LoadDirectory("rules"); err != nil {
		t.Fatalf("LoadDirectory() error = %v", err)
	}
	if err := m.ReloadFile(abs); err != nil {
		t.Fatalf("ReloadFile(absolute) error = %v", err)
	}
	if err := m.LoadFile(filepath.Join("rules", "head", "..", "head", "neck.json")); err != nil {
		t.Fatalf("LoadFile(relative) error = %v", err)
	}
	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", m.Len())
	}
	if got := m.Rules()[0].Source; got != abs {
		t.Errorf("Source = %q, want %q", got, abs)
	}

	if err := os.Remove(abs); err != nil {
		t.Fatal(err)
	}
	result, err := m.LoadDirectory("rules")
	if err != nil {
		t.Fatalf("LoadDirectory() error = %v", err)
	}
	if diff := cmp.Diff([]string{abs}, result.Retracted); diff != "" {
		t.Errorf("Retracted mismatch (-want +got):\n%s", diff)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d after the file was removed, want 0", m.Len())
	}

	writeFile(t, abs, ruleJSON(1, "true", 0.3, "neck"))
	if err := m.LoadFile(abs); err != nil {
		t.Fatal(err)
	}
	if !m.RemoveFile(filepath.Join("rules", "head", "neck.json")) {
		t.Error("RemoveFile(relative) = false, want true")
	}
}

func TestManager_ConcurrentLoadsKeepNewestContent(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "g", "a.json"), ruleJSON(0, "true", 0, "neck"))
	m := newTestManager(t)

	var (
		writeMu sync.Mutex
		written int
		wg      sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				writeMu.Lock()
				written++
				tmp := path + ".tmp"
				if err := os.WriteFile(tmp, []byte(ruleJSON(written, "true", 0, "neck")), 0o644); err != nil {
					t.Error(err)
				}
				if err := os.Rename(tmp, path); err != nil {
					t.Error(err)
				}
				writeMu.Unlock()

				_ = m.LoadFile(path)
			}
		}()
	}
	wg.Wait()

	rules := m.Rules()
	if len(rules) != 1 {
		t.Fatalf("Len() = %d, want 1", len(rules))
	}
	if rules[0].Priority != uint64(written) {
		t.Errorf("installed priority %d, want the last written %d", rules[0].Priority, written)
	}
}

func TestManager_VersionTracksContent(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "g", "a.json"), ruleJSON(1, "true", 0.2, "neck"))
	m := newTestManager(t)

	if _, err := m.LoadDirectory(dir); err != nil {
		t.Fatalf("LoadDirectory() error = %v", err)
	}
	loaded := m.Version()

	if err := m.LoadFile(path); err != nil {
		t.Fatal(err)
	}
	if _, err := m.LoadDirectory(dir); err != nil {
		t.Fatal(err)
	}
	if got := m.Version(); got != loaded {
		t.Errorf("Version() = %q after reloading unchanged files, want %q", got, loaded)
	}

	writeFile(t, path, ruleJSON(1, "true", 0.4, "neck"))
	if err := m.LoadFile(path); err != nil {
		t.Fatal(err)
	}
	if m.Version() == loaded {
		t.Error("Version() unchanged after the rule content changed")
	}
}

func TestManager_OnPublishInGenerationOrder(t *testing.T) {
	m := newTestManager(t)

	var (
		mu   sync.Mutex
		seen []uint64
	)
	m.OnPublish(func(s *Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s.Generation)
	})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				m.Evaluate(context.Background())
			}
		}()
	}
	wg.Wait()

	if len(seen) != 400 {
		t.Fatalf("hooks saw %d snapshots, want 400", len(seen))
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] != seen[i-1]+1 {
			t.Fatalf("generation %d delivered after %d", seen[i], seen[i-1])
		}
	}
}
