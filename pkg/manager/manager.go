package manager

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/NenyaBit/PartialAnimationReplacer/pkg/replacer"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/skeleton"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/subject"
)

// Manager owns the active rule collection and the published snapshot.
type Manager struct {
	loader      *Loader
	parser      replacer.ConditionParser
	resolver    replacer.ReferenceResolver
	source      subject.Source
	recorder    Recorder
	parallelism int
	logger      *slog.Logger

	// loadMu serializes loads and removals from file read to install, so
	// an older read of a source never replaces a newer one.
	loadMu sync.Mutex

	// mu guards rules, index, version and generation. It is held by loads
	// and by Evaluate, never by the apply pass.
	mu         sync.Mutex
	rules      []*Rule
	index      map[string]int
	version    string
	generation uint64

	current atomic.Pointer[Snapshot]
	enabled atomic.Bool

	// publishMu is taken before mu is released in Evaluate, so hooks see
	// snapshots in generation order.
	publishMu sync.Mutex
	hooksMu   sync.RWMutex
	hooks     []PublishFunc
}

// New creates a manager that evaluates rules against the subjects listed by
// source. The manager starts enabled with an empty published snapshot.
func New(cfg Config, source subject.Source, parser replacer.ConditionParser, logger *slog.Logger) (*Manager, error) {
	if source == nil {
		return nil, fmt.Errorf("subject source cannot be nil")
	}
	if parser == nil {
		return nil, fmt.Errorf("condition parser cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "manager")

	recorder := cfg.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	m := &Manager{
		loader:      NewLoader(cfg.Loader, logger),
		parser:      parser,
		resolver:    cfg.Resolver,
		source:      source,
		recorder:    recorder,
		parallelism: cfg.Parallelism,
		logger:      logger,
		index:       make(map[string]int),
	}
	m.version = m.computeVersion()
	m.current.Store(newSnapshot(0, m.version, map[subject.ID][]*Rule{}))
	m.enabled.Store(true)

	return m, nil
}

// Loader returns the manager's rule file loader.
func (m *Manager) Loader() *Loader {
	return m.loader
}

// OnPublish registers fn to be called after every published snapshot.
// Callbacks run on the evaluating goroutine after the lock is released,
// one snapshot at a time and in generation order.
func (m *Manager) OnPublish(fn PublishFunc) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// SetEnabled switches the apply pass on or off.
func (m *Manager) SetEnabled(enabled bool) {
	m.enabled.Store(enabled)
	m.logger.Info("Apply pass toggled", "enabled", enabled)
}

// Enabled reports whether the apply pass is active.
func (m *Manager) Enabled() bool {
	return m.enabled.Load()
}

// Snapshot returns the currently published snapshot. It is never nil.
func (m *Manager) Snapshot() *Snapshot {
	return m.current.Load()
}

// Version returns a short hash identifying the active rule collection.
func (m *Manager) Version() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

// Rules describes the active rules in priority order.
func (m *Manager) Rules() []RuleInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]RuleInfo, len(m.rules))
	for i, r := range m.rules {
		out[i] = RuleInfo{
			Source:   r.Source,
			Group:    r.Group,
			Priority: r.Priority(),
			Joints:   r.Footprint(),
			LoadedAt: r.LoadedAt,
		}
	}
	return out
}

// Len returns the number of active rules.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rules)
}

// LoadFile loads or reloads the rule at path. A valid rule replaces the
// previous version from the same path, or is appended. A file that cannot
// be read or fails validation retracts the previous version; a file that
// fails to decode returns a *ParseError and leaves the previous version
// active. Files without an accepted extension are ignored and return
// ErrUnsupportedExtension.
//
// Paths identify rules in absolute form, so "rules/g/a.json" and its
// absolute spelling are the same rule.
//
// The published snapshot is not touched; the next Evaluate reflects the
// change.
func (m *Manager) LoadFile(path string) error {
	path = canonicalPath(path)

	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	return m.loadSource(Source{Path: path, Group: filepath.Base(filepath.Dir(path))})
}

// ReloadFile is LoadFile for an explicit reload request.
func (m *Manager) ReloadFile(path string) error {
	m.logger.Info("Reloading rule file", "path", path)
	return m.LoadFile(path)
}

// RemoveFile retracts the rule loaded from path and reports whether one
// was active.
func (m *Manager) RemoveFile(path string) bool {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	return m.removeSource(canonicalPath(path))
}

// canonicalPath returns the identifier for a rule file path.
func canonicalPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func (m *Manager) removeSource(path string) bool {
	removed := m.retract(path)
	if removed {
		m.logger.Info("Rule retracted", "path", path)
		m.recorder.RecordLoad(OutcomeRetracted)
	}
	return removed
}

func (m *Manager) loadSource(src Source) error {
	if !m.loader.Accepts(src.Path) {
		return fmt.Errorf("%w: %s", ErrUnsupportedExtension, src.Path)
	}

	m.logger.Info("Loading rule file", "path", src.Path)

	data, err := m.loader.ReadFile(src.Path)
	if err != nil {
		m.recorder.RecordLoad(OutcomeFailed)
		var pErr *ParseError
		if errors.As(err, &pErr) {
			m.logger.Warn("Failed to parse rule file, keeping previous version", "path", src.Path, "error", err)
			return err
		}
		m.logger.Info("Failed to load rule file", "path", src.Path, "error", err)
		m.retract(src.Path)
		return err
	}

	r := replacer.New(data, m.parser,
		replacer.WithResolver(m.resolver),
		replacer.WithLogger(m.logger),
	)

	if !r.IsValid(src.Path) {
		m.recorder.RecordLoad(OutcomeInvalid)
		m.retract(src.Path)
		return r.Validate(src.Path)
	}

	m.install(&Rule{
		Source:   src.Path,
		Group:    src.Group,
		LoadedAt: time.Now(),
		Digest:   digest(data),
		Replacer: r,
	})
	m.recorder.RecordLoad(OutcomeLoaded)
	return nil
}

func (m *Manager) install(rule *Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i, ok := m.index[rule.Source]; ok {
		m.rules[i] = rule
	} else {
		m.rules = append(m.rules, rule)
	}
	m.sortLocked()
}

func (m *Manager) retract(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.index[path]
	if !ok {
		return false
	}
	m.rules = append(m.rules[:i], m.rules[i+1:]...)
	m.sortLocked()
	return true
}

// sortLocked orders rules by descending priority, keeping load order among
// equal priorities, and rebuilds the index.
func (m *Manager) sortLocked() {
	sort.SliceStable(m.rules, func(i, j int) bool {
		return m.rules[i].Priority() > m.rules[j].Priority()
	})

	clear(m.index)
	for i, r := range m.rules {
		m.index[r.Source] = i
	}

	m.version = m.computeVersion()
	m.recorder.RecordRules(len(m.rules))
}

func (m *Manager) computeVersion() string {
	h := sha256.New()
	for _, r := range m.rules {
		h.Write([]byte(r.Source))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatUint(r.Priority(), 10)))
		h.Write([]byte{0})
		h.Write([]byte(r.Digest))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}

// digest identifies decoded rule content, independent of when or how often
// it was loaded.
func digest(d replacer.Data) string {
	b, err := replacer.Encode(d, replacer.FormatJSON)
	if err != nil {
		b = []byte(fmt.Sprintf("%v", d))
	}
	return fmt.Sprintf("%x", sha256.Sum256(b))
}

// LoadDirectory loads every rule source under root and retracts active
// rules from root whose files are gone. Individual file failures are
// collected in the returned error; the result lists what happened to each
// source.
func (m *Manager) LoadDirectory(root string) (*LoadResult, error) {
	start := time.Now()
	root = canonicalPath(root)

	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	result := &LoadResult{Groups: make(map[string]int)}

	sources, err := m.loader.Discover(root)
	if err != nil {
		return result, err
	}

	errList := &ErrorList{}
	present := make(map[string]bool, len(sources))

	var group string
	for _, src := range sources {
		present[src.Path] = true

		if src.Group != group {
			if group != "" {
				m.logger.Info("Loaded rules from directory", "group", group, "count", result.Groups[group])
			}
			group = src.Group
			m.logger.Info("Processing directory", "group", group)
		}

		if err := m.loadSource(src); err != nil {
			errList.Add(err)
			result.Rejected = append(result.Rejected, src.Path)
			continue
		}
		result.Loaded = append(result.Loaded, src.Path)
		result.Groups[src.Group]++
	}
	if group != "" {
		m.logger.Info("Loaded rules from directory", "group", group, "count", result.Groups[group])
	}

	for _, path := range m.sourcesUnder(root) {
		if present[path] {
			continue
		}
		if m.removeSource(path) {
			result.Retracted = append(result.Retracted, path)
		}
	}

	m.recorder.RecordGroups(result.Groups)
	m.logger.Info("Rule directory loaded",
		"path", root,
		"loaded", len(result.Loaded),
		"rejected", len(result.Rejected),
		"retracted", len(result.Retracted),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, errList.ToError()
}

func (m *Manager) sourcesUnder(root string) []string {
	prefix := root + string(filepath.Separator)

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for _, r := range m.rules {
		if strings.HasPrefix(r.Source, prefix) {
			out = append(out, r.Source)
		}
	}
	return out
}

// Evaluate assigns rules to every live subject and publishes the result.
//
// For each subject, rules are visited in priority order and a matching rule
// is accepted only when none of its joints was claimed by a rule accepted
// earlier for that subject. Subjects without accepted rules are absent from
// the snapshot.
func (m *Manager) Evaluate(ctx context.Context) *Snapshot {
	start := time.Now()

	m.mu.Lock()
	subjects := m.source.Subjects(ctx)
	assignments := make(map[subject.ID][]*Rule)
	assigned := 0

	for _, s := range subjects {
		id := s.ID()
		if _, seen := assignments[id]; seen {
			continue
		}

		claimed := make(map[string]struct{})
		var accepted []*Rule

		for _, r := range m.rules {
			if r.Overlaps(claimed) {
				continue
			}
			if !r.Evaluate(s) {
				continue
			}
			r.Claim(claimed)
			accepted = append(accepted, r)
		}

		if len(accepted) > 0 {
			assignments[id] = accepted
			assigned += len(accepted)
		}
	}

	m.generation++
	snap := newSnapshot(m.generation, m.version, assignments)
	m.current.Store(snap)
	m.publishMu.Lock()
	m.mu.Unlock()
	defer m.publishMu.Unlock()

	m.recorder.RecordEvaluation(time.Since(start), len(subjects), assigned)
	m.logger.Debug("Published snapshot",
		"snapshot_id", snap.ID,
		"generation", snap.Generation,
		"subjects", len(subjects),
		"assigned", assigned,
	)

	m.hooksMu.RLock()
	hooks := m.hooks
	m.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(snap)
	}

	return snap
}

// ApplySubject applies the rules assigned to id in the current snapshot to
// tree. It reports whether the subject had any assigned rules.
func (m *Manager) ApplySubject(id subject.ID, tree skeleton.JointTree) bool {
	if !m.Enabled() {
		return false
	}
	return m.current.Load().apply(id, tree)
}

// ApplyAll applies the current snapshot to every target. The snapshot is
// loaded once for the whole call. Targets are processed in parallel and
// onChanged, if set, is called for every target that had rules applied. A
// cancelled context stops scheduling further targets; targets already
// started complete. ApplyAll returns the number of changed targets.
func (m *Manager) ApplyAll(ctx context.Context, targets []Target, onChanged UpdateFunc) (int, error) {
	if !m.Enabled() {
		return 0, nil
	}

	start := time.Now()
	snap := m.current.Load()

	var (
		g       errgroup.Group
		changed atomic.Int64
	)
	if m.parallelism > 0 {
		g.SetLimit(m.parallelism)
	}

	var err error
	for _, target := range targets {
		if err = ctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if !snap.apply(target.ID, target.Tree) {
				return nil
			}
			changed.Add(1)
			if onChanged != nil {
				onChanged(target.ID, target.Tree)
			}
			return nil
		})
	}
	_ = g.Wait()

	n := int(changed.Load())
	m.recorder.RecordApply(time.Since(start), n)
	return n, err
}
