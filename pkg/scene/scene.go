package scene

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/NenyaBit/PartialAnimationReplacer/pkg/condition"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/manager"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/skeleton"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/subject"
)

// Scene is the decoded scene file.
type Scene struct {
	Refs       map[string]any `yaml:"refs"`
	Controlled string         `yaml:"controlled"`
	Skeleton   *SkeletonSpec  `yaml:"skeleton"`
	Subjects   []SubjectSpec  `yaml:"subjects"`
}

// SkeletonSpec describes a joint hierarchy. Joints must be listed after
// their parent.
type SkeletonSpec struct {
	Root   string      `yaml:"root"`
	Joints []JointSpec `yaml:"joints"`
}

// JointSpec is one joint's bind pose.
type JointSpec struct {
	Name      string      `yaml:"name"`
	Parent    string      `yaml:"parent"`
	Rotate    *[3]float64 `yaml:"rotate"`
	Translate *[3]float64 `yaml:"translate"`
	Scale     *float64    `yaml:"scale"`
}

// SubjectSpec is one subject.
type SubjectSpec struct {
	ID         string         `yaml:"id"`
	Visible    *bool          `yaml:"visible"`
	Attributes map[string]any `yaml:"attributes"`
	Skeleton   *SkeletonSpec  `yaml:"skeleton"`
}

// Load reads and decodes the scene file at path.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene %q: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scene %q: %w", path, err)
	}
	return s, nil
}

// Parse decodes a scene. Unknown fields are rejected.
func Parse(data []byte) (*Scene, error) {
	var s Scene
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks subject IDs and skeleton presence.
func (s *Scene) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(s.Subjects))
	for i, spec := range s.Subjects {
		switch {
		case spec.ID == "":
			errs = append(errs, fmt.Errorf("subject %d: missing id", i))
		case seen[spec.ID]:
			errs = append(errs, fmt.Errorf("subject %q: duplicate id", spec.ID))
		}
		seen[spec.ID] = true

		if spec.Skeleton == nil && s.Skeleton == nil {
			errs = append(errs, fmt.Errorf("subject %q: no skeleton and no shared skeleton", spec.ID))
		}
	}
	if s.Controlled != "" && !seen[s.Controlled] {
		errs = append(errs, fmt.Errorf("controlled subject %q is not defined", s.Controlled))
	}
	return errors.Join(errs...)
}

// Build instantiates the scene.
func (s *Scene) Build() (*World, error) {
	w := &World{
		registry: subject.NewRegistry(),
		trees:    make(map[subject.ID]*skeleton.Tree, len(s.Subjects)),
		bind:     make(map[subject.ID]map[string]skeleton.Transform, len(s.Subjects)),
		refs:     condition.StaticResolver(s.Refs),
	}

	for _, spec := range s.Subjects {
		skel := spec.Skeleton
		if skel == nil {
			skel = s.Skeleton
		}
		tree, err := skel.build()
		if err != nil {
			return nil, fmt.Errorf("subject %q: %w", spec.ID, err)
		}
		tree.UpdateWorld()

		id := subject.ID(spec.ID)
		entity := subject.NewEntity(id, spec.Attributes)
		if spec.ID == s.Controlled {
			w.registry.SetControlled(entity)
		} else {
			w.registry.Add(entity, spec.Visible == nil || *spec.Visible)
		}

		w.ids = append(w.ids, id)
		w.trees[id] = tree
		w.bind[id] = pose(tree)
	}
	return w, nil
}

func (spec *SkeletonSpec) build() (*skeleton.Tree, error) {
	root := spec.Root
	if root == "" {
		root = "root"
	}
	tree := skeleton.NewTree(root)
	for _, j := range spec.Joints {
		parent := j.Parent
		if parent == "" {
			parent = root
		}
		if err := tree.AddJoint(parent, j.Name, j.transform()); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

func (j JointSpec) transform() skeleton.Transform {
	t := skeleton.IdentityTransform()
	if j.Rotate != nil {
		t.Rotate = skeleton.FromEulerZXY(
			skeleton.DegToRad(j.Rotate[0]),
			skeleton.DegToRad(j.Rotate[1]),
			skeleton.DegToRad(j.Rotate[2]),
		)
	}
	if j.Translate != nil {
		t.Translate = skeleton.Vec3(*j.Translate)
	}
	if j.Scale != nil {
		t.Scale = *j.Scale
	}
	return t
}

func pose(tree *skeleton.Tree) map[string]skeleton.Transform {
	out := make(map[string]skeleton.Transform, tree.Len())
	tree.Walk(func(j *skeleton.Joint) {
		out[j.Name] = j.Local
	})
	return out
}

// World is a built scene: a subject registry plus one joint tree per
// subject.
type World struct {
	registry *subject.Registry
	ids      []subject.ID
	trees    map[subject.ID]*skeleton.Tree
	bind     map[subject.ID]map[string]skeleton.Transform
	refs     condition.StaticResolver
}

// Subjects implements subject.Source.
func (w *World) Subjects(ctx context.Context) []subject.Subject {
	return w.registry.Subjects(ctx)
}

// Registry returns the subject registry for visibility changes.
func (w *World) Registry() *subject.Registry {
	return w.registry
}

// Resolver returns the scene's reference table.
func (w *World) Resolver() condition.StaticResolver {
	return w.refs
}

// Tree returns the joint tree of id.
func (w *World) Tree(id subject.ID) (*skeleton.Tree, bool) {
	t, ok := w.trees[id]
	return t, ok
}

// IDs returns every subject ID in file order, including hidden ones.
func (w *World) IDs() []subject.ID {
	return slices.Clone(w.ids)
}

// Targets returns apply targets for every subject in file order.
func (w *World) Targets() []manager.Target {
	out := make([]manager.Target, 0, len(w.ids))
	for _, id := range w.ids {
		out = append(out, manager.Target{ID: id, Tree: w.trees[id]})
	}
	return out
}

// Reset restores every tree to its bind pose, as an animation update
// would before rules run.
func (w *World) Reset() {
	for id, tree := range w.trees {
		bind := w.bind[id]
		tree.Walk(func(j *skeleton.Joint) {
			j.Local = bind[j.Name]
		})
		tree.UpdateWorld()
	}
}

// Updated recomputes world transforms after rules changed a tree. It has
// the shape of manager.UpdateFunc.
func (w *World) Updated(_ subject.ID, tree skeleton.JointTree) {
	if t, ok := tree.(*skeleton.Tree); ok {
		t.UpdateWorld()
	}
}
