package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Rescanner reloads the whole rule directory on a cron schedule. It
// catches changes the file watcher missed, such as edits on network
// file systems.
type Rescanner struct {
	manager  *Manager
	root     string
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	lastRun time.Time
}

// NewRescanner creates a rescanner for root. Common schedules:
//   - "@every 30s"   - every 30 seconds
//   - "*/5 * * * *"  - every 5 minutes
//
// An empty schedule disables rescanning.
func NewRescanner(m *Manager, root, schedule string) *Rescanner {
	return &Rescanner{
		manager:  m,
		root:     root,
		schedule: schedule,
		cron:     cron.New(),
		logger:   m.logger.With("component", "manager.rescanner"),
	}
}

// Start schedules the rescan and returns. The scheduler stops when ctx is
// cancelled or Stop is called.
func (r *Rescanner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.schedule == "" {
		r.logger.Info("Rescan schedule not configured, skipping")
		return nil
	}

	if _, err := cron.ParseStandard(r.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", r.schedule, err)
	}

	if _, err := r.cron.AddFunc(r.schedule, r.Run); err != nil {
		return fmt.Errorf("failed to schedule rescan: %w", err)
	}

	r.cron.Start()
	r.running = true

	r.logger.Info("Rescanner started", "schedule", r.schedule, "path", r.root)

	go func() {
		<-ctx.Done()
		r.Stop()
	}()

	return nil
}

// Run performs one full directory reload.
func (r *Rescanner) Run() {
	result, err := r.manager.LoadDirectory(r.root)

	r.mu.Lock()
	r.lastRun = time.Now()
	r.mu.Unlock()

	r.manager.recorder.RecordRescan(err)
	if err != nil {
		r.logger.Warn("Scheduled rescan finished with errors",
			"rejected", len(result.Rejected),
			"error", err,
		)
		return
	}
	r.logger.Debug("Scheduled rescan completed",
		"loaded", len(result.Loaded),
		"retracted", len(result.Retracted),
	)
}

// Stop stops the scheduler and waits for a running rescan to finish.
func (r *Rescanner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	// Run takes mu, so wait for jobs without holding it.
	<-r.cron.Stop().Done()
	r.logger.Info("Rescanner stopped")
}

// IsRunning returns true if the scheduler is running.
func (r *Rescanner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// LastRun returns when the last rescan finished, or the zero time.
func (r *Rescanner) LastRun() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRun
}

// NextRun returns the next scheduled rescan time.
func (r *Rescanner) NextRun() *time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
