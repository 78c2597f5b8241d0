package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// DefaultListLimit is the number of records List returns without a limit.
const DefaultListLimit = 50

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("history store is closed")

// StoreConfig configures the SQLite journal.
type StoreConfig struct {
	// Path is the database file. Parent directories are created.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// Store is a SQLite journal of snapshot records.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id TEXT PRIMARY KEY,
	generation INTEGER NOT NULL,
	version TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at);

CREATE TABLE IF NOT EXISTS assignments (
	snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	subject TEXT NOT NULL,
	position INTEGER NOT NULL,
	source TEXT NOT NULL,
	PRIMARY KEY (snapshot_id, subject, position)
);

CREATE INDEX IF NOT EXISTS idx_assignments_subject ON assignments(subject);
`

// Open opens or creates the journal at cfg.Path.
func Open(cfg StoreConfig, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("history path is required")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	path := filepath.Clean(cfg.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}

	s := &Store{
		db:     db,
		path:   path,
		logger: logger.With("component", "history.store"),
		closed: make(chan struct{}),
	}
	s.logger.Info("History store opened", "path", path)
	return s, nil
}

// Append writes r in a single transaction.
func (s *Store) Append(ctx context.Context, r Record) error {
	if s.isClosed() {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, generation, version, created_at) VALUES (?, ?, ?, ?)`,
		r.SnapshotID, int64(r.Generation), r.Version, r.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot %s: %w", r.SnapshotID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO assignments (snapshot_id, subject, position, source) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare assignment insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range r.Assignments {
		for pos, source := range a.Rules {
			if _, err := stmt.ExecContext(ctx, r.SnapshotID, a.Subject, pos, source); err != nil {
				return fmt.Errorf("insert assignment %s/%s: %w", r.SnapshotID, a.Subject, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// List returns records matching q, newest first.
func (s *Store) List(ctx context.Context, q Query) ([]Record, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	if q.Limit <= 0 {
		q.Limit = DefaultListLimit
	}

	var (
		where []string
		args  []any
	)
	if q.Subject != "" {
		where = append(where, `EXISTS (SELECT 1 FROM assignments a WHERE a.snapshot_id = s.id AND a.subject = ?)`)
		args = append(args, q.Subject)
	}
	if !q.Since.IsZero() {
		where = append(where, `s.created_at >= ?`)
		args = append(args, q.Since.UTC().UnixMilli())
	}

	query := `SELECT s.id, s.generation, s.version, s.created_at FROM snapshots s`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += ` ORDER BY s.created_at DESC, s.generation DESC LIMIT ?`
	args = append(args, q.Limit)

	records, err := s.listSnapshots(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	// Rows are closed before the next query; the pool holds one connection.
	for i := range records {
		assignments, err := s.assignments(ctx, records[i].SnapshotID)
		if err != nil {
			return nil, err
		}
		records[i].Assignments = assignments
	}
	return records, nil
}

func (s *Store) listSnapshots(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r          Record
			generation int64
			createdAt  int64
		)
		if err := rows.Scan(&r.SnapshotID, &generation, &r.Version, &createdAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		r.Generation = uint64(generation)
		r.CreatedAt = time.UnixMilli(createdAt).UTC()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return records, nil
}

func (s *Store) assignments(ctx context.Context, snapshotID string) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT subject, source FROM assignments WHERE snapshot_id = ? ORDER BY subject, position`,
		snapshotID,
	)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	out := []Assignment{}
	for rows.Next() {
		var subject, source string
		if err := rows.Scan(&subject, &source); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		if n := len(out); n > 0 && out[n-1].Subject == subject {
			out[n-1].Rules = append(out[n-1].Rules, source)
			continue
		}
		out = append(out, Assignment{Subject: subject, Rules: []string{source}})
	}
	return out, rows.Err()
}

// Prune deletes records created before cutoff and returns how many
// snapshots were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE created_at < ?`, cutoff.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of journaled snapshots.
func (s *Store) Count(ctx context.Context) (int64, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}
	return s.db.PingContext(ctx)
}

// Close closes the database. It is safe to call more than once.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.db.Close()
		s.logger.Info("History store closed", "path", s.path)
	})
	return err
}

func (s *Store) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}
