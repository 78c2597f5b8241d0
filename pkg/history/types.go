package history

import (
	"maps"
	"slices"
	"time"

	"github.com/NenyaBit/PartialAnimationReplacer/pkg/manager"
)

// Record is one journaled snapshot.
type Record struct {
	SnapshotID string    `json:"snapshot_id"`
	Generation uint64    `json:"generation"`
	Version    string    `json:"version"`
	CreatedAt  time.Time `json:"created_at"`

	// Assignments lists the rules per subject in application order.
	Assignments []Assignment `json:"assignments"`
}

// Assignment is the ordered rule sources applied to one subject.
type Assignment struct {
	Subject string   `json:"subject"`
	Rules   []string `json:"rules"`
}

// Query filters List results. Zero values match everything.
type Query struct {
	// Subject restricts results to records assigning rules to this subject.
	Subject string

	// Since excludes records created before this time.
	Since time.Time

	// Limit caps the number of records, newest first. Zero uses 50.
	Limit int
}

// FromSnapshot builds a record from a published snapshot. Assignments are
// sorted by subject.
func FromSnapshot(s *manager.Snapshot) Record {
	assignments := s.Assignments()

	r := Record{
		SnapshotID:  s.ID.String(),
		Generation:  s.Generation,
		Version:     s.Version,
		CreatedAt:   s.CreatedAt,
		Assignments: make([]Assignment, 0, len(assignments)),
	}
	for _, id := range slices.Sorted(maps.Keys(assignments)) {
		r.Assignments = append(r.Assignments, Assignment{
			Subject: string(id),
			Rules:   assignments[id],
		})
	}
	return r
}

// sameAssignments reports whether a and b assign the same rules in the
// same order.
func sameAssignments(a, b []Assignment) bool {
	return slices.EqualFunc(a, b, func(x, y Assignment) bool {
		return x.Subject == y.Subject && slices.Equal(x.Rules, y.Rules)
	})
}
