package manager

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/NenyaBit/PartialAnimationReplacer/pkg/replacer"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/skeleton"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/subject"
)

// Rule is a loaded replacer together with its origin. A Rule is never
// modified after it enters the collection; a reload installs a new one.
type Rule struct {
	// Source is the rule file path and the rule's identifier.
	Source string

	// Group is the group directory the rule was discovered in, if any.
	Group string

	// LoadedAt is when this version of the rule was installed.
	LoadedAt time.Time

	// Digest hashes the decoded rule content.
	Digest string

	*replacer.Replacer
}

// Snapshot is one published evaluation result: the rules assigned to each
// subject, in priority order. A Snapshot is immutable.
type Snapshot struct {
	// ID uniquely identifies the evaluation pass.
	ID uuid.UUID

	// Generation increases by one with every published snapshot.
	Generation uint64

	// CreatedAt is when the evaluation pass finished.
	CreatedAt time.Time

	// Version identifies the rule collection the pass evaluated.
	Version string

	assignments map[subject.ID][]*Rule
}

func newSnapshot(generation uint64, version string, assignments map[subject.ID][]*Rule) *Snapshot {
	return &Snapshot{
		ID:          uuid.New(),
		Generation:  generation,
		CreatedAt:   time.Now(),
		Version:     version,
		assignments: assignments,
	}
}

// Rules returns the rules assigned to id in application order. The returned
// slice must not be modified.
func (s *Snapshot) Rules(id subject.ID) []*Rule {
	return s.assignments[id]
}

// Subjects returns the IDs of subjects with at least one assigned rule,
// sorted.
func (s *Snapshot) Subjects() []subject.ID {
	ids := make([]subject.ID, 0, len(s.assignments))
	for id := range s.assignments {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of subjects with assigned rules.
func (s *Snapshot) Len() int {
	return len(s.assignments)
}

// Assignments returns the rule sources assigned to each subject.
func (s *Snapshot) Assignments() map[subject.ID][]string {
	out := make(map[subject.ID][]string, len(s.assignments))
	for id, rules := range s.assignments {
		sources := make([]string, len(rules))
		for i, r := range rules {
			sources[i] = r.Source
		}
		out[id] = sources
	}
	return out
}

// apply applies every rule assigned to id to tree and reports whether any
// rule was assigned.
func (s *Snapshot) apply(id subject.ID, tree skeleton.JointTree) bool {
	rules, ok := s.assignments[id]
	if !ok {
		return false
	}
	for _, r := range rules {
		r.Apply(tree)
	}
	return true
}
