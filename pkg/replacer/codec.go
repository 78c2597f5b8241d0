package replacer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/NenyaBit/PartialAnimationReplacer/pkg/skeleton"
)

// Format is a rule file encoding.
type Format string

const (
	// FormatJSON is the default rule file encoding.
	FormatJSON Format = "json"
	// FormatYAML is accepted for hand-authored rules.
	FormatYAML Format = "yaml"
)

// FormatFromPath returns the encoding implied by a file extension.
func FormatFromPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	default:
		return "", false
	}
}

// fileRule mirrors the on-disk layout. Pointer fields distinguish omitted
// values from zero values so defaults can be applied.
type fileRule struct {
	Priority   *uint64           `json:"priority,omitempty" yaml:"priority,omitempty"`
	Conditions []string          `json:"conditions" yaml:"conditions"`
	Rotate     *bool             `json:"rotate,omitempty" yaml:"rotate,omitempty"`
	Translate  *bool             `json:"translate,omitempty" yaml:"translate,omitempty"`
	Scale      *bool             `json:"scale,omitempty" yaml:"scale,omitempty"`
	Refs       map[string]string `json:"refs" yaml:"refs"`
	Frames     [][]fileOverride  `json:"frames" yaml:"frames"`
	Limits     []fileLimit       `json:"limits" yaml:"limits"`
}

type fileOverride struct {
	Name      string      `json:"name" yaml:"name"`
	Rotate    [][]float64 `json:"rotate,omitempty" yaml:"rotate,omitempty"`
	Translate *fileVec    `json:"translate,omitempty" yaml:"translate,omitempty"`
	Scale     *float64    `json:"scale,omitempty" yaml:"scale,omitempty"`
}

type fileVec struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

type fileLimit struct {
	Name          string    `json:"name" yaml:"name"`
	RotateLow     []float64 `json:"rotate_low,omitempty" yaml:"rotate_low,omitempty"`
	RotateHigh    []float64 `json:"rotate_high,omitempty" yaml:"rotate_high,omitempty"`
	TranslateLow  []float64 `json:"translate_low,omitempty" yaml:"translate_low,omitempty"`
	TranslateHigh []float64 `json:"translate_high,omitempty" yaml:"translate_high,omitempty"`
	ScaleLow      float64   `json:"scale_low" yaml:"scale_low"`
	ScaleHigh     float64   `json:"scale_high" yaml:"scale_high"`
}

// Decode parses rule file content in the given format and applies defaults:
// priority 0, rotate true, translate and scale false, identity rotation,
// zero translation and unit scale for overrides, and zero (disabled) limit
// bounds. Limit angles are converted from degrees to radians.
func Decode(data []byte, format Format) (Data, error) {
	var raw fileRule

	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&raw); err != nil {
			return Data{}, err
		}
		if _, err := dec.Token(); err != io.EOF {
			return Data{}, fmt.Errorf("unexpected content after rule at offset %d", dec.InputOffset())
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Data{}, err
		}
	default:
		return Data{}, fmt.Errorf("unsupported rule format %q", format)
	}

	return raw.toData()
}

// Encode serializes d in the given format. Limit angles are written in
// degrees.
func Encode(d Data, format Format) ([]byte, error) {
	raw := fromData(d)

	switch format {
	case FormatJSON:
		return json.MarshalIndent(raw, "", "\t")
	case FormatYAML:
		return yaml.Marshal(raw)
	default:
		return nil, fmt.Errorf("unsupported rule format %q", format)
	}
}

func (r fileRule) toData() (Data, error) {
	d := DefaultData()

	if r.Priority != nil {
		d.Priority = *r.Priority
	}
	if r.Rotate != nil {
		d.Rotate = *r.Rotate
	}
	if r.Translate != nil {
		d.Translate = *r.Translate
	}
	if r.Scale != nil {
		d.Scale = *r.Scale
	}
	d.Conditions = r.Conditions
	d.Refs = r.Refs

	for fi, frame := range r.Frames {
		f := make(Frame, 0, len(frame))
		for oi, o := range frame {
			ov, err := o.toOverride()
			if err != nil {
				return Data{}, fmt.Errorf("frames[%d][%d]: %w", fi, oi, err)
			}
			f = append(f, ov)
		}
		d.Frames = append(d.Frames, f)
	}

	for li, l := range r.Limits {
		lim, err := l.toLimit()
		if err != nil {
			return Data{}, fmt.Errorf("limits[%d]: %w", li, err)
		}
		d.Limits = append(d.Limits, lim)
	}

	return d, nil
}

func (o fileOverride) toOverride() (Override, error) {
	t := skeleton.IdentityTransform()

	if o.Rotate != nil {
		if len(o.Rotate) != 3 {
			return Override{}, fmt.Errorf("rotate: want 3 rows, got %d", len(o.Rotate))
		}
		for i, row := range o.Rotate {
			if len(row) != 3 {
				return Override{}, fmt.Errorf("rotate[%d]: want 3 columns, got %d", i, len(row))
			}
			copy(t.Rotate[i][:], row)
		}
	}
	if o.Translate != nil {
		t.Translate = skeleton.Vec3{o.Translate.X, o.Translate.Y, o.Translate.Z}
	}
	if o.Scale != nil {
		t.Scale = *o.Scale
	}

	return Override{Name: o.Name, Transform: t}, nil
}

func (l fileLimit) toLimit() (Limit, error) {
	lim := Limit{Name: l.Name, ScaleLow: l.ScaleLow, ScaleHigh: l.ScaleHigh}

	fields := []struct {
		name string
		src  []float64
		dst  *[3]float64
	}{
		{"rotate_low", l.RotateLow, &lim.RotateLow},
		{"rotate_high", l.RotateHigh, &lim.RotateHigh},
		{"translate_low", l.TranslateLow, &lim.TranslateLow},
		{"translate_high", l.TranslateHigh, &lim.TranslateHigh},
	}
	for _, f := range fields {
		if f.src == nil {
			continue
		}
		if len(f.src) != 3 {
			return Limit{}, fmt.Errorf("%s: want 3 values, got %d", f.name, len(f.src))
		}
		copy(f.dst[:], f.src)
	}

	for i := 0; i < 3; i++ {
		lim.RotateLow[i] = skeleton.DegToRad(lim.RotateLow[i])
		lim.RotateHigh[i] = skeleton.DegToRad(lim.RotateHigh[i])
	}
	return lim, nil
}

func fromData(d Data) fileRule {
	priority := d.Priority
	rotate, translate, scale := d.Rotate, d.Translate, d.Scale

	raw := fileRule{
		Priority:   &priority,
		Conditions: d.Conditions,
		Rotate:     &rotate,
		Translate:  &translate,
		Scale:      &scale,
		Refs:       d.Refs,
	}
	if raw.Conditions == nil {
		raw.Conditions = []string{}
	}
	if raw.Refs == nil {
		raw.Refs = map[string]string{}
	}

	raw.Frames = make([][]fileOverride, 0, len(d.Frames))
	for _, f := range d.Frames {
		frame := make([]fileOverride, 0, len(f))
		for _, o := range f {
			s := o.Transform.Scale
			rot := make([][]float64, 3)
			for i := range rot {
				rot[i] = append([]float64(nil), o.Transform.Rotate[i][:]...)
			}
			frame = append(frame, fileOverride{
				Name:   o.Name,
				Rotate: rot,
				Translate: &fileVec{
					X: o.Transform.Translate[0],
					Y: o.Transform.Translate[1],
					Z: o.Transform.Translate[2],
				},
				Scale: &s,
			})
		}
		raw.Frames = append(raw.Frames, frame)
	}

	raw.Limits = make([]fileLimit, 0, len(d.Limits))
	for _, l := range d.Limits {
		fl := fileLimit{
			Name:          l.Name,
			RotateLow:     make([]float64, 3),
			RotateHigh:    make([]float64, 3),
			TranslateLow:  append([]float64(nil), l.TranslateLow[:]...),
			TranslateHigh: append([]float64(nil), l.TranslateHigh[:]...),
			ScaleLow:      l.ScaleLow,
			ScaleHigh:     l.ScaleHigh,
		}
		for i := 0; i < 3; i++ {
			fl.RotateLow[i] = skeleton.RadToDeg(l.RotateLow[i])
			fl.RotateHigh[i] = skeleton.RadToDeg(l.RotateHigh[i])
		}
		raw.Limits = append(raw.Limits, fl)
	}

	return raw
}
