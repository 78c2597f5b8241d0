package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner is a store that can delete old records.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Retention prunes the journal on a cron schedule.
type Retention struct {
	store     Pruner
	retention time.Duration
	schedule  string
	cron      *cron.Cron
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	running bool
}

// NewRetention creates a scheduler deleting records older than
// retentionDays. Common schedules:
//   - "0 3 * * *"    - daily at 3 AM
//   - "0 */6 * * *"  - every 6 hours
func NewRetention(store Pruner, retentionDays int, schedule string, logger *slog.Logger) *Retention {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retention{
		store:     store,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		schedule:  schedule,
		cron:      cron.New(),
		logger:    logger.With("component", "history.retention"),
		now:       time.Now,
	}
}

// Start schedules pruning. It does nothing when the schedule is empty or
// retention is unlimited. The scheduler stops when ctx is cancelled.
func (r *Retention) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.schedule == "" || r.retention <= 0 {
		r.logger.Info("History retention not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(r.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", r.schedule, err)
	}
	if _, err := r.cron.AddFunc(r.schedule, func() { _, _ = r.Run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	r.cron.Start()
	r.running = true
	r.logger.Info("History retention started",
		"schedule", r.schedule,
		"retention", r.retention,
	)

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// Run prunes once and returns the number of deleted snapshots.
func (r *Retention) Run(ctx context.Context) (int64, error) {
	if r.retention <= 0 {
		return 0, nil
	}

	cutoff := r.now().Add(-r.retention)
	deleted, err := r.store.Prune(ctx, cutoff)
	if err != nil {
		r.logger.Error("History pruning failed", "error", err)
		return 0, err
	}

	if deleted > 0 {
		r.logger.Info("History pruning completed", "deleted_count", deleted, "cutoff", cutoff)
	} else {
		r.logger.Debug("History pruning completed, nothing to delete")
	}
	return deleted, nil
}

// Stop stops the scheduler and waits for a running prune to finish.
func (r *Retention) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	<-r.cron.Stop().Done()
	r.logger.Info("History retention stopped")
}

// IsRunning reports whether the scheduler is running.
func (r *Retention) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
