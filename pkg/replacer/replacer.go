package replacer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/NenyaBit/PartialAnimationReplacer/pkg/skeleton"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/subject"
)

// RefTable maps short reference names to resolved external entities. An
// unresolved name maps to nil.
type RefTable map[string]any

// Predicate is a compiled condition.
type Predicate interface {
	// IsTrue evaluates the condition for an acting and a target subject.
	IsTrue(acting, target subject.Subject) bool
}

// PredicateFunc adapts a function to Predicate.
type PredicateFunc func(acting, target subject.Subject) bool

// IsTrue implements Predicate.
func (f PredicateFunc) IsTrue(acting, target subject.Subject) bool {
	return f(acting, target)
}

// ConditionParser compiles a single condition expression.
type ConditionParser interface {
	Parse(expression string, refs RefTable) (Predicate, error)
}

// ReferenceResolver resolves an external entity identifier. It returns nil
// when the identifier cannot be resolved.
type ReferenceResolver interface {
	Resolve(identifier string) any
}

// chain is a conjunction of predicates.
type chain []Predicate

func (c chain) IsTrue(acting, target subject.Subject) bool {
	for _, p := range c {
		if !p.IsTrue(acting, target) {
			return false
		}
	}
	return true
}

// Option configures a Replacer at construction.
type Option func(*options)

type options struct {
	resolver ReferenceResolver
	logger   *slog.Logger
}

// WithResolver sets the resolver used for the refs table.
func WithResolver(r ReferenceResolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Replacer is an immutable rule. It is safe for concurrent use by multiple
// goroutines as long as each goroutine applies it to a different tree.
type Replacer struct {
	data Data

	refs         RefTable
	condition    Predicate
	conditionErr error

	footprint map[string]struct{}
	joints    []string

	logger *slog.Logger
}

// New builds a Replacer from rule data. Every reference is resolved, every
// non-empty condition is compiled with parser and the joint footprint is
// computed. A condition that fails to compile discards the whole chain;
// the failure is available from ConditionErr. New never fails: an unusable
// rule is reported by IsValid.
func New(data Data, parser ConditionParser, opts ...Option) *Replacer {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	r := &Replacer{
		data:      data.Clone(),
		refs:      make(RefTable, len(data.Refs)),
		footprint: make(map[string]struct{}),
		logger:    o.logger,
	}

	for key, id := range r.data.Refs {
		if o.resolver == nil {
			r.refs[key] = nil
			continue
		}
		r.refs[key] = o.resolver.Resolve(id)
	}

	r.compileConditions(parser)

	if len(r.data.Frames) > 0 {
		for _, ov := range r.data.Frames[0] {
			r.footprint[ov.Name] = struct{}{}
		}
	}
	for _, lim := range r.data.Limits {
		r.footprint[lim.Name] = struct{}{}
	}

	r.joints = make([]string, 0, len(r.footprint))
	for name := range r.footprint {
		r.joints = append(r.joints, name)
	}
	sort.Strings(r.joints)

	return r
}

func (r *Replacer) compileConditions(parser ConditionParser) {
	var compiled chain

	for i, text := range r.data.Conditions {
		if text == "" {
			continue
		}

		var (
			p   Predicate
			err error
		)
		if parser == nil {
			err = ErrNoParser
		} else {
			p, err = parser.Parse(text, r.refs)
		}
		if err != nil {
			r.conditionErr = &ConditionError{Index: i, Expression: text, Cause: err}
			r.logger.Info("Aborting condition parsing", "error", r.conditionErr)
			return
		}
		compiled = append(compiled, p)
	}

	if len(compiled) > 0 {
		r.condition = compiled
	}
}

// Priority returns the rule priority. Higher priorities are evaluated
// first and win joint conflicts.
func (r *Replacer) Priority() uint64 {
	return r.data.Priority
}

// Footprint returns the sorted names of the joints this rule may write.
func (r *Replacer) Footprint() []string {
	return append([]string(nil), r.joints...)
}

// Overlaps reports whether any joint in the footprint is already in claimed.
func (r *Replacer) Overlaps(claimed map[string]struct{}) bool {
	// Iterate the smaller set.
	if len(claimed) < len(r.footprint) {
		for name := range claimed {
			if _, ok := r.footprint[name]; ok {
				return true
			}
		}
		return false
	}
	for name := range r.footprint {
		if _, ok := claimed[name]; ok {
			return true
		}
	}
	return false
}

// Claim adds the footprint to claimed.
func (r *Replacer) Claim(claimed map[string]struct{}) {
	for name := range r.footprint {
		claimed[name] = struct{}{}
	}
}

// HasCondition reports whether a compiled condition exists.
func (r *Replacer) HasCondition() bool {
	return r.condition != nil
}

// ConditionErr returns the compile error that discarded the condition
// chain, if any.
func (r *Replacer) ConditionErr() error {
	return r.conditionErr
}

// Refs returns the resolved reference table.
func (r *Replacer) Refs() RefTable {
	out := make(RefTable, len(r.refs))
	for k, v := range r.refs {
		out[k] = v
	}
	return out
}

// Data returns a copy of the rule data for serialization.
func (r *Replacer) Data() Data {
	return r.data.Clone()
}

// Validate checks every rule invariant and returns a *ValidationError
// listing all violations, or nil.
func (r *Replacer) Validate(source string) error {
	var violations []string

	if r.condition == nil {
		msg := "must have conditions"
		if r.conditionErr != nil {
			msg = fmt.Sprintf("must have conditions (%v)", r.conditionErr)
		}
		violations = append(violations, msg)
	}

	if len(r.data.Frames) == 0 && len(r.data.Limits) == 0 {
		violations = append(violations, "no frames nor limits found")
	}

	for i, frame := range r.data.Frames {
		if len(frame) == 0 {
			violations = append(violations, fmt.Sprintf("no overrides defined in frame at %d", i))
		}
		for k, ov := range frame {
			if ov.Name == "" {
				violations = append(violations, fmt.Sprintf("override %d with no joint name in frame at %d", k, i))
			}
		}
	}

	for i, lim := range r.data.Limits {
		if lim.Name == "" {
			violations = append(violations, fmt.Sprintf("limit %d with no joint name", i))
		}
	}

	if len(violations) > 0 {
		return &ValidationError{Source: source, Violations: violations}
	}
	return nil
}

// IsValid logs every violated invariant and reports whether the rule may
// enter the active set.
func (r *Replacer) IsValid(source string) bool {
	err := r.Validate(source)
	if err == nil {
		return true
	}

	for _, v := range err.(*ValidationError).Violations {
		r.logger.Error("Invalid replacer rule",
			"file", source,
			"violation", v,
		)
	}
	return false
}

// Evaluate reports whether the rule applies to s. The subject is passed as
// both the acting and the target entity.
func (r *Replacer) Evaluate(s subject.Subject) bool {
	return r.condition != nil && r.condition.IsTrue(s, s)
}

// Apply edits the joints of tree. Frame 0 overrides are written first,
// then limits are applied. Joints missing from the tree are skipped.
func (r *Replacer) Apply(tree skeleton.JointTree) {
	// Only the first frame is honored.
	if len(r.data.Frames) > 0 {
		for _, ov := range r.data.Frames[0] {
			joint, ok := tree.FindJoint(ov.Name)
			if !ok {
				continue
			}
			if r.data.Rotate {
				joint.Local.Rotate = ov.Transform.Rotate
			}
			if r.data.Translate {
				joint.Local.Translate = ov.Transform.Translate
			}
			if r.data.Scale {
				joint.Local.Scale = ov.Transform.Scale
			}
		}
	}

	for i := range r.data.Limits {
		lim := &r.data.Limits[i]
		joint, ok := tree.FindJoint(lim.Name)
		if !ok {
			continue
		}

		if r.data.Rotate {
			r.clampRotation(joint, lim)
		}
		if r.data.Translate {
			for k := 0; k < 3; k++ {
				joint.Local.Translate[k] = Saturate(joint.Local.Translate[k], lim.TranslateLow[k], lim.TranslateHigh[k])
			}
		}
		if r.data.Scale {
			joint.Local.Scale = Saturate(joint.Local.Scale, lim.ScaleLow, lim.ScaleHigh)
		}
	}
}

func (r *Replacer) clampRotation(joint *skeleton.Joint, lim *Limit) {
	x, y, z := joint.Local.Rotate.EulerZXY()
	angles := [3]float64{x, y, z}
	for k := 0; k < 3; k++ {
		angles[k] = Saturate(angles[k], lim.RotateLow[k], lim.RotateHigh[k])
	}
	joint.Local.Rotate = skeleton.FromEulerZXY(angles[0], angles[1], angles[2])

	if r.logger.Enabled(context.Background(), slog.LevelDebug) {
		dx, dy, dz := joint.Local.Rotate.EulerXYZ()
		r.logger.Debug("Clamped joint rotation",
			"joint", lim.Name,
			"before_zxy_deg", []float64{skeleton.RadToDeg(x), skeleton.RadToDeg(y), skeleton.RadToDeg(z)},
			"after_xyz_deg", []float64{skeleton.RadToDeg(dx), skeleton.RadToDeg(dy), skeleton.RadToDeg(dz)},
		)
	}
}
