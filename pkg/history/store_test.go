package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(StoreConfig{Path: filepath.Join(t.TempDir(), "nested", "history.db")}, testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func record(id string, gen uint64, at time.Time, assignments ...Assignment) Record {
	return Record{
		SnapshotID:  id,
		Generation:  gen,
		Version:     "v" + id,
		CreatedAt:   at,
		Assignments: assignments,
	}
}

func TestOpen_RequiresPath(t *testing.T) {
	if _, err := Open(StoreConfig{Path: "  "}, testLogger()); err == nil {
		t.Error("Open() error = nil, want error for empty path")
	}
}

func TestStore_AppendList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := record("a", 1, base,
		Assignment{Subject: "npc", Rules: []string{"arms/b.json"}},
		Assignment{Subject: "player", Rules: []string{"head/c.json", "arms/a.json"}},
	)
	second := record("b", 2, base.Add(time.Second))

	for _, r := range []Record{first, second} {
		if err := s.Append(ctx, r); err != nil {
			t.Fatalf("Append(%s) error = %v", r.SnapshotID, err)
		}
	}

	got, err := s.List(ctx, Query{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	second.Assignments = []Assignment{}
	want := []Record{second, first}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}

	n, err := s.Count(ctx)
	if err != nil || n != 2 {
		t.Errorf("Count() = %d, %v; want 2, nil", n, err)
	}
}

func TestStore_ListFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	records := []Record{
		record("a", 1, base, Assignment{Subject: "player", Rules: []string{"x.json"}}),
		record("b", 2, base.Add(time.Minute), Assignment{Subject: "npc", Rules: []string{"y.json"}}),
		record("c", 3, base.Add(2*time.Minute), Assignment{Subject: "player", Rules: []string{"z.json"}}),
	}
	for _, r := range records {
		if err := s.Append(ctx, r); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{name: "all", query: Query{}, want: []string{"c", "b", "a"}},
		{name: "subject", query: Query{Subject: "player"}, want: []string{"c", "a"}},
		{name: "since", query: Query{Since: base.Add(time.Minute)}, want: []string{"c", "b"}},
		{name: "limit", query: Query{Limit: 1}, want: []string{"c"}},
		{name: "subject and since", query: Query{Subject: "player", Since: base.Add(time.Second)}, want: []string{"c"}},
		{name: "unknown subject", query: Query{Subject: "ghost"}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(ctx, tt.query)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			var ids []string
			for _, r := range got {
				ids = append(ids, r.SnapshotID)
			}
			if diff := cmp.Diff(tt.want, ids); diff != "" {
				t.Errorf("List() ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStore_AppendDuplicate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := record("a", 1, base, Assignment{Subject: "player", Rules: []string{"x.json"}})
	if err := s.Append(ctx, r); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := s.Append(ctx, r); err == nil {
		t.Error("Append() duplicate error = nil, want constraint error")
	}

	got, err := s.List(ctx, Query{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 1 || len(got[0].Assignments) != 1 {
		t.Errorf("List() = %+v, want the first record only", got)
	}
}

func TestStore_Prune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		r := record(id, uint64(i+1), base.Add(time.Duration(i)*time.Hour),
			Assignment{Subject: "player", Rules: []string{id + ".json"}})
		if err := s.Append(ctx, r); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	deleted, err := s.Prune(ctx, base.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("Prune() deleted = %d, want 2", deleted)
	}

	var orphans int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assignments WHERE snapshot_id != 'c'`).Scan(&orphans); err != nil {
		t.Fatalf("count assignments: %v", err)
	}
	if orphans != 0 {
		t.Errorf("%d assignments left for pruned snapshots", orphans)
	}
}

func TestStore_Closed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if err := s.Append(ctx, record("a", 1, base)); !errors.Is(err, ErrClosed) {
		t.Errorf("Append() error = %v, want ErrClosed", err)
	}
	if _, err := s.List(ctx, Query{}); !errors.Is(err, ErrClosed) {
		t.Errorf("List() error = %v, want ErrClosed", err)
	}
	if err := s.Ping(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Ping() error = %v, want ErrClosed", err)
	}
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := Open(StoreConfig{Path: path}, testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Append(ctx, record("a", 1, base)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	_ = s.Close()

	s, err = Open(StoreConfig{Path: path}, testLogger())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("Count() after reopen = %d, want 1", n)
	}
}
