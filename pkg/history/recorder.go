package history

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NenyaBit/PartialAnimationReplacer/pkg/manager"
)

// Appender persists records.
type Appender interface {
	Append(ctx context.Context, r Record) error
}

// RecorderConfig configures asynchronous journaling.
type RecorderConfig struct {
	// BufferSize is the number of records queued for writing.
	// Default: 256
	BufferSize int

	// WriteTimeout bounds a single append.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// Recorder journals published snapshots without blocking the publisher.
// Snapshots whose assignments equal the previous one are skipped, as are
// snapshots older than the last one seen. Records are dropped when the
// queue is full.
type Recorder struct {
	store  Appender
	config RecorderConfig
	logger *slog.Logger

	mu      sync.Mutex
	last    []Assignment
	lastGen uint64
	seen    bool

	records chan Record
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once

	written atomic.Int64
	dropped atomic.Int64
}

// NewRecorder starts a recorder writing to store.
func NewRecorder(store Appender, cfg RecorderConfig, logger *slog.Logger) *Recorder {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		store:   store,
		config:  cfg,
		logger:  logger.With("component", "history.recorder"),
		records: make(chan Record, cfg.BufferSize),
		done:    make(chan struct{}),
	}
	r.wg.Add(1)
	go r.worker()
	return r
}

// Publish queues s for journaling. It has the shape of manager.PublishFunc.
func (r *Recorder) Publish(s *manager.Snapshot) {
	rec := FromSnapshot(s)

	r.mu.Lock()
	if r.seen && rec.Generation <= r.lastGen {
		r.mu.Unlock()
		r.logger.Debug("Skipping out of order snapshot",
			"generation", rec.Generation,
			"last_generation", r.lastGen,
		)
		return
	}
	same := r.seen && sameAssignments(r.last, rec.Assignments)
	r.last, r.lastGen, r.seen = rec.Assignments, rec.Generation, true
	r.mu.Unlock()
	if same {
		return
	}

	select {
	case <-r.done:
		r.dropped.Add(1)
		return
	default:
	}

	select {
	case r.records <- rec:
	default:
		r.dropped.Add(1)
		r.logger.Warn("History queue full, dropping snapshot",
			"snapshot_id", rec.SnapshotID,
			"generation", rec.Generation,
			"capacity", r.config.BufferSize,
		)
	}
}

// Written returns the number of records persisted.
func (r *Recorder) Written() int64 {
	return r.written.Load()
}

// Dropped returns the number of records discarded.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close stops accepting snapshots, drains the queue and waits for pending
// writes.
func (r *Recorder) Close() error {
	r.once.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case rec := <-r.records:
			r.write(rec)
		case <-r.done:
			for {
				select {
				case rec := <-r.records:
					r.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.store.Append(ctx, rec); err != nil {
		r.logger.Error("Failed to journal snapshot",
			"snapshot_id", rec.SnapshotID,
			"error", err,
		)
		return
	}
	r.written.Add(1)
	r.logger.Debug("Snapshot journaled",
		"snapshot_id", rec.SnapshotID,
		"generation", rec.Generation,
		"subjects", len(rec.Assignments),
	)
}
