package capability

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// Validator checks raw capability arguments and returns the typed value
// handed to the handler.
type Validator interface {
	Validate(raw json.RawMessage) (any, error)
	// Definition returns the JSON schema advertised to the model.
	Definition() map[string]any
}

// SchemaViolation lists the argument fields that failed validation.
type SchemaViolation struct {
	Fields []string
}

func (e *SchemaViolation) Error() string {
	return "schema validation errors: " + strings.Join(e.Fields, "; ")
}

// JSONSchema validates arguments against a JSON schema document.
type JSONSchema struct {
	definition map[string]any
	schema     *gojsonschema.Schema
	decode     func(json.RawMessage) (any, error)
}

// JSONSchemaOption configures a JSONSchema validator.
type JSONSchemaOption func(*JSONSchema)

// WithDecoder sets how validated arguments are decoded into handler input.
// The default decodes into map[string]any.
func WithDecoder(decode func(json.RawMessage) (any, error)) JSONSchemaOption {
	return func(s *JSONSchema) {
		if decode != nil {
			s.decode = decode
		}
	}
}

// NewJSONSchema compiles definition.
func NewJSONSchema(definition map[string]any, opts ...JSONSchemaOption) (*JSONSchema, error) {
	if definition == nil {
		definition = map[string]any{"type": "object"}
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(definition))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	s := &JSONSchema{
		definition: definition,
		schema:     compiled,
		decode:     decodeMap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Validate implements Validator.
func (s *JSONSchema) Validate(raw json.RawMessage) (any, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		raw = json.RawMessage(`{}`)
	}
	if !json.Valid(raw) {
		return nil, &SchemaViolation{Fields: []string{"(root): arguments are not valid JSON"}}
	}

	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		fields := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			fields = append(fields, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
		}
		return nil, &SchemaViolation{Fields: fields}
	}

	return s.decode(raw)
}

// Definition implements Validator.
func (s *JSONSchema) Definition() map[string]any {
	return s.definition
}

func decodeMap(raw json.RawMessage) (any, error) {
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SchemaFor reflects a JSON schema for T. Fields without omitempty are
// required and unknown properties are rejected.
func SchemaFor[T any]() (map[string]any, error) {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	reflected := r.Reflect(new(T))

	raw, err := json.Marshal(reflected)
	if err != nil {
		return nil, fmt.Errorf("marshal reflected schema: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode reflected schema: %w", err)
	}
	// Providers and gojsonschema both reject the 2020-12 meta-schema URL.
	delete(out, "$schema")
	delete(out, "$id")
	return out, nil
}
