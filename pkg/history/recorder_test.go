package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/NenyaBit/PartialAnimationReplacer/pkg/condition"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/manager"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/subject"
	"github.com/google/go-cmp/cmp"
)

type memoryAppender struct {
	mu      sync.Mutex
	records []Record
	err     error
	block   chan struct{}
}

func (m *memoryAppender) Append(_ context.Context, r Record) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, r)
	return nil
}

func (m *memoryAppender) snapshot() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}

const neckRule = `{"priority": 1, "conditions": ["true"], "frames": [[{"name": "neck"}]]}`

func newManager(t *testing.T) (*manager.Manager, string) {
	t.Helper()
	players := subject.SourceFunc(func(context.Context) []subject.Subject {
		return []subject.Subject{subject.NewEntity("player", nil)}
	})
	m, err := manager.New(manager.Config{}, players, condition.NewParser(testLogger()), testLogger())
	if err != nil {
		t.Fatalf("manager.New() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "head", "neck.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(neckRule), 0o644); err != nil {
		t.Fatal(err)
	}
	return m, path
}

func TestRecorder_JournalsChanges(t *testing.T) {
	m, path := newManager(t)
	store := &memoryAppender{}
	rec := NewRecorder(store, RecorderConfig{}, testLogger())
	m.OnPublish(rec.Publish)
	ctx := context.Background()

	m.Evaluate(ctx)

	if err := m.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	first := m.Evaluate(ctx)
	m.Evaluate(ctx)
	m.Evaluate(ctx)

	if err := rec.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got := store.snapshot()
	if len(got) != 2 {
		t.Fatalf("journaled %d records, want 2 (empty then loaded)", len(got))
	}
	want := []Assignment{{Subject: "player", Rules: []string{path}}}
	if diff := cmp.Diff(want, got[1].Assignments); diff != "" {
		t.Errorf("assignments mismatch (-want +got):\n%s", diff)
	}
	if got[1].SnapshotID != first.ID.String() || got[1].Generation != first.Generation {
		t.Errorf("record identity = %s/%d, want %s/%d",
			got[1].SnapshotID, got[1].Generation, first.ID, first.Generation)
	}
	if rec.Written() != 2 || rec.Dropped() != 0 {
		t.Errorf("Written() = %d, Dropped() = %d; want 2, 0", rec.Written(), rec.Dropped())
	}
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	m, path := newManager(t)
	store := &memoryAppender{block: make(chan struct{})}
	rec := NewRecorder(store, RecorderConfig{BufferSize: 1}, testLogger())
	m.OnPublish(rec.Publish)
	ctx := context.Background()

	// The worker takes the first record and blocks; the second fills the
	// queue; the third is dropped.
	m.Evaluate(ctx)
	if err := m.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for len(rec.records) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	m.Evaluate(ctx)
	m.RemoveFile(path)
	m.Evaluate(ctx)

	close(store.block)
	_ = rec.Close()

	if rec.Dropped() < 1 {
		t.Errorf("Dropped() = %d, want at least 1", rec.Dropped())
	}
}

func TestRecorder_SkipsOlderGenerations(t *testing.T) {
	m, path := newManager(t)
	store := &memoryAppender{}
	rec := NewRecorder(store, RecorderConfig{}, testLogger())
	ctx := context.Background()

	empty := m.Evaluate(ctx)
	if err := m.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	loaded := m.Evaluate(ctx)

	rec.Publish(loaded)
	rec.Publish(empty)
	if err := rec.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got := store.snapshot()
	if len(got) != 1 {
		t.Fatalf("journaled %d records, want 1", len(got))
	}
	if got[0].Generation != loaded.Generation {
		t.Errorf("journaled generation %d, want %d", got[0].Generation, loaded.Generation)
	}
}

func TestRecorder_AppendError(t *testing.T) {
	m, _ := newManager(t)
	store := &memoryAppender{err: errors.New("disk full")}
	rec := NewRecorder(store, RecorderConfig{}, testLogger())
	m.OnPublish(rec.Publish)

	m.Evaluate(context.Background())
	_ = rec.Close()

	if rec.Written() != 0 {
		t.Errorf("Written() = %d, want 0", rec.Written())
	}
}

func TestRecorder_PublishAfterClose(t *testing.T) {
	m, _ := newManager(t)
	rec := NewRecorder(&memoryAppender{}, RecorderConfig{}, testLogger())
	_ = rec.Close()
	_ = rec.Close()

	rec.Publish(m.Evaluate(context.Background()))

	if rec.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", rec.Dropped())
	}
}

func TestRecorder_WithStore(t *testing.T) {
	m, path := newManager(t)
	store := openTestStore(t)
	rec := NewRecorder(store, RecorderConfig{}, testLogger())
	m.OnPublish(rec.Publish)
	ctx := context.Background()

	if err := m.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	m.Evaluate(ctx)
	_ = rec.Close()

	got, err := store.List(ctx, Query{Subject: "player"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 1 || got[0].Assignments[0].Rules[0] != path {
		t.Errorf("List() = %+v", got)
	}
}
