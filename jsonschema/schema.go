package jsonschema

// Schema is a minimal JSON Schema representation used for export.
// Keep this struct small and extend incrementally.
type Schema struct {
	// Core
	Type    string `json:"type,omitempty"`
	Format  string `json:"format,omitempty"`
	Default any    `json:"default,omitempty"`
	Const   any    `json:"const,omitempty"`
	Enum    []any  `json:"enum,omitempty"`
	Ref     string `json:"$ref,omitempty"`

	// Definitions referenced by $ref pointers, root document only.
	Defs map[string]*Schema `json:"$defs,omitempty"`

	// Object
	Properties map[string]*Schema `json:"properties,omitempty"`
	Required   []string           `json:"required,omitempty"`

	// Array / map
	Items                *Schema `json:"items,omitempty"`
	AdditionalProperties any     `json:"additionalProperties,omitempty"`

	// Union
	OneOf []*Schema `json:"oneOf,omitempty"`

	// Nullability (draft 2020-12 style union with null)
	Nullable bool `json:"-"`
}
