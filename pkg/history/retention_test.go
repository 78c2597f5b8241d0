package history

import (
	"context"
	"errors"
	"testing"
	"time"
)

type pruneFunc func(context.Context, time.Time) (int64, error)

func (f pruneFunc) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	return f(ctx, cutoff)
}

func TestRetention_Run(t *testing.T) {
	var cutoff time.Time
	r := NewRetention(pruneFunc(func(_ context.Context, c time.Time) (int64, error) {
		cutoff = c
		return 3, nil
	}), 7, "0 * * * *", testLogger())
	r.now = func() time.Time { return base }

	deleted, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if deleted != 3 {
		t.Errorf("Run() deleted = %d, want 3", deleted)
	}
	if want := base.Add(-7 * 24 * time.Hour); !cutoff.Equal(want) {
		t.Errorf("cutoff = %v, want %v", cutoff, want)
	}
}

func TestRetention_RunError(t *testing.T) {
	boom := errors.New("locked")
	r := NewRetention(pruneFunc(func(context.Context, time.Time) (int64, error) {
		return 0, boom
	}), 1, "", testLogger())

	if _, err := r.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, want %v", err, boom)
	}
}

func TestRetention_Unlimited(t *testing.T) {
	called := false
	r := NewRetention(pruneFunc(func(context.Context, time.Time) (int64, error) {
		called = true
		return 0, nil
	}), 0, "0 * * * *", testLogger())

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if r.IsRunning() {
		t.Error("IsRunning() = true with unlimited retention")
	}
	if _, err := r.Run(context.Background()); err != nil || called {
		t.Errorf("Run() pruned with unlimited retention (err = %v)", err)
	}
}

func TestRetention_StartStop(t *testing.T) {
	r := NewRetention(openTestStore(t), 7, "0 3 * * *", testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !r.IsRunning() {
		t.Fatal("IsRunning() = false after Start")
	}
	r.Stop()
	r.Stop()
	if r.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
}

func TestRetention_InvalidSchedule(t *testing.T) {
	r := NewRetention(openTestStore(t), 7, "whenever", testLogger())
	if err := r.Start(context.Background()); err == nil {
		t.Error("Start() error = nil, want invalid schedule error")
	}
}
