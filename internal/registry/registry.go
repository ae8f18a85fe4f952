package registry

import (
	"fmt"
)

// Registry is an ordered, read-only set of component descriptors. Order is
// significant: the selector breaks score ties in favour of the component
// registered first.
type Registry struct {
	components []ComponentDescriptor
	byID       map[string]int
}

// New validates components and builds a Registry preserving their order.
// Duplicate ids are rejected.
func New(components []ComponentDescriptor) (*Registry, error) {
	r := &Registry{
		components: make([]ComponentDescriptor, 0, len(components)),
		byID:       make(map[string]int, len(components)),
	}
	for i := range components {
		c := components[i]
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("registry: component %d (%q): %w", i, c.ID, err)
		}
		if _, dup := r.byID[c.ID]; dup {
			return nil, fmt.Errorf("registry: duplicate component id %q", c.ID)
		}
		r.byID[c.ID] = len(r.components)
		r.components = append(r.components, c)
	}
	return r, nil
}

// Len returns the number of registered components.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.components)
}

// All returns the components in registration order. The returned slice is a
// copy; descriptors share their tag slices with the registry and must not be
// modified.
func (r *Registry) All() []ComponentDescriptor {
	if r == nil {
		return nil
	}
	out := make([]ComponentDescriptor, len(r.components))
	copy(out, r.components)
	return out
}

// Get looks up a component by id.
func (r *Registry) Get(id string) (ComponentDescriptor, bool) {
	if r == nil {
		return ComponentDescriptor{}, false
	}
	i, ok := r.byID[id]
	if !ok {
		return ComponentDescriptor{}, false
	}
	return r.components[i], true
}

// ByCategory returns the components of one category in registration order.
func (r *Registry) ByCategory(cat Category) []ComponentDescriptor {
	var out []ComponentDescriptor
	for _, c := range r.components {
		if c.Category == cat {
			out = append(out, c)
		}
	}
	return out
}
