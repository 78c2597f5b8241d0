package manager

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeKind classifies a debounced file change.
type ChangeKind int

const (
	// ChangeWritten means the file was created or modified.
	ChangeWritten ChangeKind = iota
	// ChangeRemoved means the file was deleted or renamed away.
	ChangeRemoved
)

func (k ChangeKind) String() string {
	if k == ChangeRemoved {
		return "removed"
	}
	return "written"
}

// Change is a debounced event for one rule file.
type Change struct {
	Path string
	Kind ChangeKind
}

// FileWatcherConfig contains configuration for the file watcher.
type FileWatcherConfig struct {
	// Root is the rule directory. Root and its group directories are watched.
	Root string

	// DebounceInterval is the quiet period per file before a change is
	// reported (default: 100ms)
	DebounceInterval time.Duration

	// Extensions is the list of file extensions to watch
	Extensions []string

	// SkipHidden controls whether to skip hidden files
	SkipHidden bool
}

// DefaultFileWatcherConfig returns the default watcher configuration.
func DefaultFileWatcherConfig() *FileWatcherConfig {
	return &FileWatcherConfig{
		DebounceInterval: 100 * time.Millisecond,
		Extensions:       []string{".json", ".yaml", ".yml"},
		SkipHidden:       true,
	}
}

// FileWatcher watches rule files and reports debounced per-file changes.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	config   *FileWatcherConfig
	debounce *Debouncer

	mu       sync.Mutex
	running  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewFileWatcher creates a new file watcher.
func NewFileWatcher(config *FileWatcherConfig, logger *slog.Logger) (*FileWatcher, error) {
	if config == nil {
		config = DefaultFileWatcherConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher:  watcher,
		logger:   logger,
		config:   config,
		debounce: NewDebouncer(config.DebounceInterval),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch reports changes to onChange until ctx is cancelled or Stop is
// called. Changes to different files are debounced independently; the last
// event for a file within the interval decides its kind. onChange is called
// from timer goroutines and may run concurrently for different files.
func (fw *FileWatcher) Watch(ctx context.Context, onChange func(Change)) error {
	fw.mu.Lock()
	if fw.running {
		fw.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	fw.running = true
	fw.mu.Unlock()

	defer close(fw.doneCh)

	if err := fw.addTree(fw.config.Root); err != nil {
		return fmt.Errorf("failed to watch path: %w", err)
	}

	fw.logger.Info("File watcher started",
		"path", fw.config.Root,
		"debounce_ms", fw.config.DebounceInterval.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			fw.logger.Info("File watcher stopped (context cancelled)")
			return nil

		case <-fw.stopCh:
			fw.logger.Info("File watcher stopped")
			return nil

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			fw.handle(event, onChange)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			fw.logger.Error("File watcher error", "error", err)
		}
	}
}

func (fw *FileWatcher) handle(event fsnotify.Event, onChange func(Change)) {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	// A new group directory must be watched before its files appear.
	if event.Has(fsnotify.Create) && fw.isGroupDir(event.Name) {
		if err := fw.watcher.Add(event.Name); err != nil {
			fw.logger.Warn("Failed to watch new directory", "path", event.Name, "error", err)
			return
		}
		fw.logger.Debug("Watching directory", "path", event.Name)
		fw.rescanGroup(event.Name, onChange)
		return
	}

	if !fw.shouldProcess(event.Name) {
		return
	}

	kind := ChangeWritten
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		kind = ChangeRemoved
	}

	fw.logger.Debug("File event detected", "path", event.Name, "op", event.Op.String())

	change := Change{Path: event.Name, Kind: kind}
	fw.debounce.Trigger(event.Name, func() {
		onChange(change)
	})
}

// rescanGroup reports files already present in a newly created group
// directory, which may have been moved in as a whole.
func (fw *FileWatcher) rescanGroup(dir string, onChange func(Change)) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.IsDir() || !fw.shouldProcess(path) {
			continue
		}
		change := Change{Path: path, Kind: ChangeWritten}
		fw.debounce.Trigger(path, func() {
			onChange(change)
		})
	}
}

// Stop stops the file watcher and cancels pending changes.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		fw.mu.Lock()
		running := fw.running
		fw.mu.Unlock()

		close(fw.stopCh)
		if running {
			<-fw.doneCh
		}

		fw.debounce.Stop()

		if cerr := fw.watcher.Close(); cerr != nil {
			err = fmt.Errorf("failed to close watcher: %w", cerr)
		}
	})
	return err
}

// addTree watches root and its group directories.
func (fw *FileWatcher) addTree(root string) error {
	if err := fw.watcher.Add(root); err != nil {
		return err
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() || (fw.config.SkipHidden && strings.HasPrefix(e.Name(), ".")) {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if err := fw.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %q: %w", dir, err)
		}
		fw.logger.Debug("Watching directory", "path", dir)
	}
	return nil
}

func (fw *FileWatcher) isGroupDir(path string) bool {
	if filepath.Clean(filepath.Dir(path)) != filepath.Clean(fw.config.Root) {
		return false
	}
	if fw.config.SkipHidden && strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// shouldProcess reports whether path is a rule file inside a group directory.
func (fw *FileWatcher) shouldProcess(path string) bool {
	if filepath.Clean(filepath.Dir(filepath.Dir(path))) != filepath.Clean(fw.config.Root) {
		return false
	}

	base := filepath.Base(path)
	if fw.config.SkipHidden && strings.HasPrefix(base, ".") {
		return false
	}

	ext := strings.ToLower(filepath.Ext(base))
	for _, valid := range fw.config.Extensions {
		if ext == strings.ToLower(valid) {
			return true
		}
	}
	return false
}

// Debouncer delays callbacks per key until a quiet period has passed. A new
// trigger for a key replaces its pending callback.
type Debouncer struct {
	interval time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// NewDebouncer creates a new debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{
		interval: interval,
		timers:   make(map[string]*time.Timer),
	}
}

// Trigger schedules callback for key after the debounce interval,
// cancelling any callback still pending for the same key.
func (d *Debouncer) Trigger(key string, callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if t, ok := d.timers[key]; ok {
		t.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		if d.stopped || d.timers[key] != t {
			d.mu.Unlock()
			return
		}
		delete(d.timers, key)
		d.mu.Unlock()

		callback()
	})
	d.timers[key] = t
}

// Pending returns the number of keys with a scheduled callback.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// Stop cancels all pending callbacks. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
}

// Watch keeps the collection in sync with the rule directory at root until
// ctx is cancelled. Written files are reloaded and removed files are
// retracted. Watch blocks.
func (m *Manager) Watch(ctx context.Context, config *FileWatcherConfig) error {
	if config == nil {
		config = DefaultFileWatcherConfig()
	}
	if _, err := os.Stat(config.Root); errors.Is(err, fs.ErrNotExist) {
		return &LoadError{FilePath: config.Root, Message: "directory not found", Cause: err}
	}

	fw, err := NewFileWatcher(config, m.logger)
	if err != nil {
		return err
	}
	defer fw.Stop()

	return fw.Watch(ctx, m.HandleChange)
}

// HandleChange applies a single file change to the collection.
func (m *Manager) HandleChange(c Change) {
	m.recorder.RecordChange(c.Kind.String())

	switch c.Kind {
	case ChangeRemoved:
		// A rename within the directory is followed by a create for the
		// new name; an editor's atomic save recreates the same path.
		if _, err := os.Stat(c.Path); err == nil {
			_ = m.ReloadFile(c.Path)
			return
		}
		m.RemoveFile(c.Path)
	default:
		if err := m.ReloadFile(c.Path); err != nil {
			m.logger.Warn("Rule reload failed", "path", c.Path, "error", err)
		}
	}
}
