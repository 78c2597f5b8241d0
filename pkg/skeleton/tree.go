package skeleton

import (
	"fmt"
	"sync"
)

// Transform is a local or world space transform.
type Transform struct {
	Rotate    Mat3
	Translate Vec3
	Scale     float64
}

// IdentityTransform returns a transform with identity rotation, zero
// translation and unit scale.
func IdentityTransform() Transform {
	return Transform{Rotate: Identity(), Scale: 1}
}

// Compose returns the world transform of a child whose local transform is
// local and whose parent world transform is t.
func (t Transform) Compose(local Transform) Transform {
	return Transform{
		Rotate:    t.Rotate.Mul(local.Rotate),
		Translate: t.Translate.Add(t.Rotate.MulVec(local.Translate.Scale(t.Scale))),
		Scale:     t.Scale * local.Scale,
	}
}

// Joint is a named node in a skeleton. Local is mutable by rules; World is
// recomputed by Tree.UpdateWorld.
type Joint struct {
	Name     string
	Local    Transform
	World    Transform
	Parent   *Joint
	Children []*Joint
}

// JointTree is the lookup surface rules use to reach joints by name.
type JointTree interface {
	FindJoint(name string) (*Joint, bool)
}

// Tree is a joint hierarchy with a name index.
//
// A Tree is not safe for concurrent mutation. The apply pass touches each
// subject's tree from a single goroutine.
type Tree struct {
	root  *Joint
	index map[string]*Joint

	// mu guards the index only; joint transforms are owned by the caller.
	mu sync.RWMutex
}

// NewTree creates a tree whose root joint has the given name and an
// identity transform.
func NewTree(rootName string) *Tree {
	root := &Joint{Name: rootName, Local: IdentityTransform(), World: IdentityTransform()}
	return &Tree{
		root:  root,
		index: map[string]*Joint{rootName: root},
	}
}

// Root returns the root joint.
func (t *Tree) Root() *Joint {
	return t.root
}

// AddJoint attaches a new joint under parent.
func (t *Tree) AddJoint(parent, name string, local Transform) error {
	if name == "" {
		return fmt.Errorf("joint name cannot be empty")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.index[parent]
	if !ok {
		return fmt.Errorf("parent joint %q not found", parent)
	}
	if _, exists := t.index[name]; exists {
		return fmt.Errorf("joint %q already exists", name)
	}

	j := &Joint{Name: name, Local: local, Parent: p}
	p.Children = append(p.Children, j)
	t.index[name] = j
	return nil
}

// FindJoint returns the joint with the given name.
func (t *Tree) FindJoint(name string) (*Joint, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	j, ok := t.index[name]
	return j, ok
}

// Len returns the number of joints, including the root.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.index)
}

// Walk visits every joint depth first, parents before children.
func (t *Tree) Walk(fn func(j *Joint)) {
	var visit func(j *Joint)
	visit = func(j *Joint) {
		fn(j)
		for _, c := range j.Children {
			visit(c)
		}
	}
	visit(t.root)
}

// UpdateWorld recomputes world transforms from the root down.
func (t *Tree) UpdateWorld() {
	t.Walk(func(j *Joint) {
		if j.Parent == nil {
			j.World = j.Local
			return
		}
		j.World = j.Parent.World.Compose(j.Local)
	})
}
