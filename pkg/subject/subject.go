// Package subject defines the dynamic entities rules are evaluated against
// and the sources that enumerate them.
package subject

import (
	"context"
	"maps"
	"sort"
	"sync"
)

// ID identifies a subject across evaluation passes.
type ID string

// Subject is a live entity whose joint tree may be edited.
type Subject interface {
	ID() ID
}

// Attributed is implemented by subjects that expose named attributes to
// condition expressions.
type Attributed interface {
	Attributes() map[string]any
}

// Source enumerates the subjects that are live right now. Membership may
// change between calls.
type Source interface {
	Subjects(ctx context.Context) []Subject
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) []Subject

// Subjects implements Source.
func (f SourceFunc) Subjects(ctx context.Context) []Subject {
	return f(ctx)
}

// Entity is a Subject with a mutable attribute set. It is safe for
// concurrent use.
type Entity struct {
	id ID

	mu    sync.RWMutex
	attrs map[string]any
}

// NewEntity creates an entity with a copy of attrs.
func NewEntity(id ID, attrs map[string]any) *Entity {
	e := &Entity{id: id, attrs: make(map[string]any, len(attrs))}
	maps.Copy(e.attrs, attrs)
	return e
}

// ID implements Subject.
func (e *Entity) ID() ID {
	return e.id
}

// Attributes returns a copy of the entity's attributes.
func (e *Entity) Attributes() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.attrs)
}

// SetAttribute sets a single attribute.
func (e *Entity) SetAttribute(key string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attrs[key] = value
}

// Registry is a Source backed by an in-memory set of subjects. The
// controlled subject, when present, is always enumerated first; the others
// follow in ID order and only while visible.
type Registry struct {
	mu         sync.RWMutex
	controlled ID
	subjects   map[ID]Subject
	visible    map[ID]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		subjects: make(map[ID]Subject),
		visible:  make(map[ID]bool),
	}
}

// SetControlled registers s as the controlled subject.
func (r *Registry) SetControlled(s Subject) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.controlled = s.ID()
	r.subjects[s.ID()] = s
	r.visible[s.ID()] = true
}

// Add registers or replaces a subject.
func (r *Registry) Add(s Subject, visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subjects[s.ID()] = s
	r.visible[s.ID()] = visible
}

// SetVisible toggles whether a subject is enumerated.
func (r *Registry) SetVisible(id ID, visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subjects[id]; ok {
		r.visible[id] = visible
	}
}

// Remove drops a subject.
func (r *Registry) Remove(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.subjects, id)
	delete(r.visible, id)
	if r.controlled == id {
		r.controlled = ""
	}
}

// Get returns the subject with the given ID.
func (r *Registry) Get(id ID) (Subject, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.subjects[id]
	return s, ok
}

// Subjects implements Source.
func (r *Registry) Subjects(ctx context.Context) []Subject {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Subject, 0, len(r.subjects))
	if s, ok := r.subjects[r.controlled]; ok && r.controlled != "" {
		out = append(out, s)
	}

	ids := make([]ID, 0, len(r.subjects))
	for id := range r.subjects {
		if id == r.controlled || !r.visible[id] {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		out = append(out, r.subjects[id])
	}
	return out
}
