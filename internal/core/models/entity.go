// Package models holds the entity hierarchy robots are built from. A robot is
// a tree of named entities (links, sensor nodes); capabilities such as
// sensors are attached to entities as named components.
package models

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/zeusync/arenasim/internal/core/systems/physics"
)

var (
	ErrNilEntity     = errors.New("nil entity")
	ErrHasParent     = errors.New("entity already has a parent")
	ErrCyclicParent  = errors.New("entity cannot be its own ancestor")
	ErrEmptyName     = errors.New("empty entity name")
	ErrNilComponent  = errors.New("nil component")
	ErrEmptyCompName = errors.New("empty component name")
)

type EntityID uint64

var nextID atomic.Uint64

type component struct {
	name  string
	value any
}

// Entity is a node of the hierarchy. It is not safe for concurrent use.
type Entity struct {
	id       EntityID
	name     string
	local    physics.Pose
	parent   *Entity
	children []*Entity

	components []component
}

func NewEntity(name string) *Entity {
	return &Entity{
		id:    EntityID(nextID.Add(1)),
		name:  name,
		local: physics.Pose{Orientation: physics.Identity},
	}
}

func (e *Entity) ID() EntityID        { return e.id }
func (e *Entity) Name() string        { return e.name }
func (e *Entity) Parent() *Entity     { return e.parent }
func (e *Entity) Local() physics.Pose { return e.local }

func (e *Entity) SetLocal(p physics.Pose) { e.local = p }

// Children returns the direct children in insertion order.
func (e *Entity) Children() []*Entity {
	out := make([]*Entity, len(e.children))
	copy(out, e.children)
	return out
}

// Path is the slash separated names from the root.
func (e *Entity) Path() string {
	var parts []string
	for n := e; n != nil; n = n.parent {
		parts = append(parts, n.name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

func (e *Entity) Root() *Entity {
	n := e
	for n.parent != nil {
		n = n.parent
	}
	return n
}

// AddChild parents child under e.
func (e *Entity) AddChild(child *Entity) error {
	if child == nil {
		return ErrNilEntity
	}
	if child.name == "" {
		return ErrEmptyName
	}
	if child.parent != nil {
		return ErrHasParent
	}
	for n := e; n != nil; n = n.parent {
		if n == child {
			return ErrCyclicParent
		}
	}
	child.parent = e
	e.children = append(e.children, child)
	return nil
}

// RemoveChild detaches the first direct child called name.
func (e *Entity) RemoveChild(name string) (*Entity, bool) {
	for i, c := range e.children {
		if c.name == name {
			e.children = append(e.children[:i], e.children[i+1:]...)
			c.parent = nil
			return c, true
		}
	}
	return nil, false
}

// FindChild searches the descendants of e depth first and returns the first
// entity called name. e itself is not considered.
func (e *Entity) FindChild(name string) (*Entity, bool) {
	for _, c := range e.children {
		if c.name == name {
			return c, true
		}
		if found, ok := c.FindChild(name); ok {
			return found, true
		}
	}
	return nil, false
}

// Walk visits e and its descendants depth first, parents before children.
// Returning false from fn skips the subtree.
func (e *Entity) Walk(fn func(*Entity) bool) {
	if !fn(e) {
		return
	}
	for _, c := range e.children {
		c.Walk(fn)
	}
}

// SetComponent attaches value under name, replacing any component with the
// same name. It returns the replaced value.
func (e *Entity) SetComponent(name string, value any) (any, error) {
	if name == "" {
		return nil, ErrEmptyCompName
	}
	if value == nil {
		return nil, ErrNilComponent
	}
	for i := range e.components {
		if e.components[i].name == name {
			prev := e.components[i].value
			e.components[i].value = value
			return prev, nil
		}
	}
	e.components = append(e.components, component{name: name, value: value})
	return nil, nil
}

func (e *Entity) Component(name string) (any, bool) {
	for _, c := range e.components {
		if c.name == name {
			return c.value, true
		}
	}
	return nil, false
}

func (e *Entity) RemoveComponent(name string) bool {
	for i, c := range e.components {
		if c.name == name {
			e.components = append(e.components[:i], e.components[i+1:]...)
			return true
		}
	}
	return false
}

// Components returns component values in attach order.
func (e *Entity) Components() []any {
	out := make([]any, len(e.components))
	for i, c := range e.components {
		out[i] = c.value
	}
	return out
}

// ComponentsOf collects every component of type T in the subtree rooted at
// root, depth first.
func ComponentsOf[T any](root *Entity) []T {
	var out []T
	root.Walk(func(e *Entity) bool {
		for _, c := range e.components {
			if v, ok := c.value.(T); ok {
				out = append(out, v)
			}
		}
		return true
	})
	return out
}
