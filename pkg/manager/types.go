package manager

import (
	"time"

	"github.com/NenyaBit/PartialAnimationReplacer/pkg/replacer"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/skeleton"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/subject"
)

// Config configures a Manager.
type Config struct {
	// Loader controls rule discovery and file validation. Nil uses
	// DefaultLoaderConfig.
	Loader *LoaderConfig

	// Parallelism bounds the number of subjects applied concurrently.
	// Zero or negative means unbounded.
	Parallelism int

	// Resolver resolves rule references. Nil leaves every reference
	// unresolved.
	Resolver replacer.ReferenceResolver

	// Recorder receives operational measurements. Nil discards them.
	Recorder Recorder
}

// Target pairs a subject with the joint tree the apply pass edits.
type Target struct {
	ID   subject.ID
	Tree skeleton.JointTree
}

// UpdateFunc is called after rules were applied to a subject's tree. It
// may be called concurrently for different subjects.
type UpdateFunc func(id subject.ID, tree skeleton.JointTree)

// PublishFunc observes every published snapshot.
type PublishFunc func(s *Snapshot)

// Load outcomes reported to Recorder.RecordLoad.
const (
	OutcomeLoaded    = "loaded"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "failed"
	OutcomeRetracted = "retracted"
)

// Recorder receives measurements from the manager. Implementations must be
// safe for concurrent use.
type Recorder interface {
	RecordLoad(outcome string)
	RecordRules(active int)
	RecordEvaluation(d time.Duration, subjects, assigned int)
	RecordApply(d time.Duration, applied int)
	RecordGroups(groups map[string]int)
	RecordChange(kind string)
	RecordRescan(err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordLoad(string)                        {}
func (nopRecorder) RecordRules(int)                          {}
func (nopRecorder) RecordEvaluation(time.Duration, int, int) {}
func (nopRecorder) RecordApply(time.Duration, int)           {}
func (nopRecorder) RecordGroups(map[string]int)              {}
func (nopRecorder) RecordChange(string)                      {}
func (nopRecorder) RecordRescan(error)                       {}

// RuleInfo describes a rule in the active collection.
type RuleInfo struct {
	Source   string    `json:"source"`
	Group    string    `json:"group,omitempty"`
	Priority uint64    `json:"priority"`
	Joints   []string  `json:"joints"`
	LoadedAt time.Time `json:"loaded_at"`
}

// LoadResult summarizes a directory load.
type LoadResult struct {
	// Loaded lists the sources installed as valid rules.
	Loaded []string `json:"loaded"`

	// Rejected lists the sources that failed to load or validate.
	Rejected []string `json:"rejected"`

	// Retracted lists previously active sources that are no longer present.
	Retracted []string `json:"retracted"`

	// Groups maps each group directory to the number of rules it loaded.
	Groups map[string]int `json:"groups"`
}
