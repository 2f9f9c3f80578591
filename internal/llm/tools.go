package llm

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Tool represents a function/tool that can be called by the LLM.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  *JSONSchema `json:"parameters"`
}

// JSONSchema represents a JSON Schema definition for tool parameters.
type JSONSchema struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Properties  map[string]*JSONSchema `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
	Enum        []string               `json:"enum,omitempty"`
	Items       *JSONSchema            `json:"items,omitempty"` // for array type
	Default     any                    `json:"default,omitempty"`
}

// SchemaFor reflects the parameter schema of a tool from a Go struct.
// Field descriptions come from `jsonschema_description` tags and required
// fields from `jsonschema:"required"`.
func SchemaFor(v any) (*JSONSchema, error) {
	r := &jsonschema.Reflector{
		ExpandedStruct:             true,
		DoNotReference:             true,
		AllowAdditionalProperties:  true,
		RequiredFromJSONSchemaTags: true,
	}
	raw, err := json.Marshal(r.Reflect(v))
	if err != nil {
		return nil, fmt.Errorf("llm: reflect schema: %w", err)
	}
	var s JSONSchema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("llm: decode schema: %w", err)
	}
	return &s, nil
}

// MustSchemaFor is SchemaFor for package-level tool definitions.
func MustSchemaFor(v any) *JSONSchema {
	s, err := SchemaFor(v)
	if err != nil {
		panic(err)
	}
	return s
}

// toMap renders a schema as a generic map for SDKs that take untyped schemas.
func (s *JSONSchema) toMap() map[string]any {
	if s == nil {
		return map[string]any{"type": "object"}
	}
	raw, _ := json.Marshal(s)
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	return m
}
