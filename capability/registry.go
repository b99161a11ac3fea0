package capability

import (
	"fmt"

	genuierrors "github.com/sweetpotato0/genui/errors"
)

// Registry is an immutable set of capabilities keyed by name.
// It is safe for concurrent use because nothing mutates it after NewRegistry.
type Registry struct {
	byName  map[string]*Descriptor
	ordered []Descriptor
}

// NewRegistry builds a registry from descs, preserving their order.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	r := &Registry{
		byName:  make(map[string]*Descriptor, len(descs)),
		ordered: make([]Descriptor, 0, len(descs)),
	}
	for _, d := range descs {
		if d.Name == "" {
			return nil, fmt.Errorf("capability name cannot be empty")
		}
		if d.Handler == nil {
			return nil, fmt.Errorf("capability %s has no handler", d.Name)
		}
		if d.Schema == nil {
			return nil, fmt.Errorf("capability %s has no input schema", d.Name)
		}
		if _, exists := r.byName[d.Name]; exists {
			return nil, fmt.Errorf("capability %s already registered", d.Name)
		}
		r.ordered = append(r.ordered, d)
		r.byName[d.Name] = &r.ordered[len(r.ordered)-1]
	}
	return r, nil
}

// MustRegistry is like NewRegistry but panics on error.
func MustRegistry(descs ...Descriptor) *Registry {
	r, err := NewRegistry(descs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (*Descriptor, error) {
	if r != nil {
		if d, ok := r.byName[name]; ok {
			return d, nil
		}
	}
	return nil, &genuierrors.UnknownCapabilityError{Name: name}
}

// Descriptors returns the registered descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	if r == nil {
		return nil
	}
	return append([]Descriptor(nil), r.ordered...)
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.ordered)
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.ordered))
	for _, d := range r.ordered {
		names = append(names, d.Name)
	}
	return names
}

// JSONSchemas returns every capability as a function definition in the
// common chat-completions tool format.
func (r *Registry) JSONSchemas() []map[string]any {
	if r == nil {
		return nil
	}
	schemas := make([]map[string]any, 0, len(r.ordered))
	for _, d := range r.ordered {
		schemas = append(schemas, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        d.Name,
				"description": d.Description,
				"parameters":  d.Schema.Definition(),
			},
		})
	}
	return schemas
}
