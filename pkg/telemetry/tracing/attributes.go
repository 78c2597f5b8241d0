package tracing

import (
	"go.opentelemetry.io/otel/attribute"

	"github.com/NenyaBit/PartialAnimationReplacer/pkg/manager"
)

// Span names.
const (
	SpanEvaluate      = "replacer.evaluate"
	SpanApply         = "replacer.apply"
	SpanLoadDirectory = "replacer.load_directory"
)

// Attribute keys use the "par." namespace.
const (
	AttrRulesVersion = "par.rules.version"
	AttrSnapshotID   = "par.snapshot.id"
	AttrGeneration   = "par.snapshot.generation"
	AttrSubjects     = "par.subjects"
	AttrAssigned     = "par.subjects.assigned"
	AttrApplied      = "par.subjects.applied"
	AttrDirectory    = "par.rules.directory"
	AttrLoaded       = "par.rules.loaded"
	AttrRejected     = "par.rules.rejected"
	AttrRetracted    = "par.rules.retracted"
)

// SnapshotAttributes describes a published snapshot.
func SnapshotAttributes(s *manager.Snapshot) []attribute.KeyValue {
	if s == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String(AttrSnapshotID, s.ID.String()),
		attribute.Int64(AttrGeneration, int64(s.Generation)),
		attribute.String(AttrRulesVersion, s.Version),
		attribute.Int(AttrAssigned, s.Len()),
	}
}

// LoadAttributes describes a directory load.
func LoadAttributes(root string, r *manager.LoadResult) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(AttrDirectory, root)}
	if r == nil {
		return attrs
	}
	return append(attrs,
		attribute.Int(AttrLoaded, len(r.Loaded)),
		attribute.Int(AttrRejected, len(r.Rejected)),
		attribute.Int(AttrRetracted, len(r.Retracted)),
	)
}

// ApplyAttributes describes an apply pass over subjects targets.
func ApplyAttributes(targets, applied int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrSubjects, targets),
		attribute.Int(AttrApplied, applied),
	}
}
