package replacer

import (
	"maps"
	"slices"

	"github.com/NenyaBit/PartialAnimationReplacer/pkg/skeleton"
)

// Override sets a joint's local transform to absolute values.
type Override struct {
	Name      string
	Transform skeleton.Transform
}

// Frame is one absolute pose: an ordered list of overrides.
type Frame []Override

// Limit softly constrains a joint's local transform. Rotation bounds are
// Z-X-Y Euler angles in radians, indexed x, y, z. Equal low and high bounds
// disable the constraint for that component.
type Limit struct {
	Name          string
	RotateLow     [3]float64
	RotateHigh    [3]float64
	TranslateLow  [3]float64
	TranslateHigh [3]float64
	ScaleLow      float64
	ScaleHigh     float64
}

// Data is the raw, unvalidated content of a rule file.
type Data struct {
	Priority uint64
	Frames   []Frame
	Limits   []Limit

	Rotate    bool
	Translate bool
	Scale     bool

	Conditions []string

	// Refs maps short names used in conditions to external entity
	// identifiers.
	Refs map[string]string
}

// DefaultData returns the values a rule file gets for omitted fields.
func DefaultData() Data {
	return Data{Rotate: true}
}

// Clone returns a deep copy of d.
func (d Data) Clone() Data {
	out := d
	if d.Frames != nil {
		out.Frames = make([]Frame, len(d.Frames))
		for i, f := range d.Frames {
			out.Frames[i] = slices.Clone(f)
		}
	}
	out.Limits = slices.Clone(d.Limits)
	out.Conditions = slices.Clone(d.Conditions)
	out.Refs = maps.Clone(d.Refs)
	return out
}
