// Package capability holds the capabilities ("tools") a model may invoke
// instead of answering with text: their descriptors, the immutable registry
// they are looked up in, and the dispatcher that validates and executes one
// call.
package capability

import (
	"context"
	"encoding/json"
	"fmt"
)

// Call identifies one capability invocation requested by the model.
type Call struct {
	Name string
	ID   string
}

// Handler computes the payload of a capability artifact from validated input.
// The dispatcher invokes it at most once per call.
type Handler func(ctx context.Context, input any, call Call) (any, error)

// Descriptor describes a capability the model may select.
type Descriptor struct {
	// Name is the unique key within a registry.
	Name string
	// Description is a natural-language hint for the model.
	Description string
	// Schema validates the raw arguments and produces the handler input.
	Schema Validator
	// Handler computes the artifact payload.
	Handler Handler
}

// Typed builds a descriptor whose input schema is reflected from T. Validated
// arguments are decoded into a T before fn is called.
func Typed[T any](name, description string, fn func(ctx context.Context, in T, call Call) (any, error)) (Descriptor, error) {
	schema, err := SchemaFor[T]()
	if err != nil {
		return Descriptor{}, fmt.Errorf("capability %s: %w", name, err)
	}
	validator, err := NewJSONSchema(schema, WithDecoder(func(raw json.RawMessage) (any, error) {
		var in T
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, err
		}
		return in, nil
	}))
	if err != nil {
		return Descriptor{}, fmt.Errorf("capability %s: %w", name, err)
	}

	return Descriptor{
		Name:        name,
		Description: description,
		Schema:      validator,
		Handler: func(ctx context.Context, input any, call Call) (any, error) {
			in, ok := input.(T)
			if !ok {
				return nil, fmt.Errorf("capability %s: unexpected input type %T", name, input)
			}
			return fn(ctx, in, call)
		},
	}, nil
}

// MustTyped is like Typed but panics if the schema cannot be built. It is
// intended for package-level capability tables.
func MustTyped[T any](name, description string, fn func(ctx context.Context, in T, call Call) (any, error)) Descriptor {
	d, err := Typed(name, description, fn)
	if err != nil {
		panic(err)
	}
	return d
}
