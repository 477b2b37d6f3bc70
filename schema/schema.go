package schema

import (
	"fmt"

	entikit "github.com/reoring/entikit"
)

// Schema is the immutable description of an entity: ordered field descriptors
// plus entity-level metadata. Build once and share freely; pipelines key their
// caches on schema identity.
type Schema struct {
	Name               string
	Fields             []*Field
	PrimaryField       *Field
	AutoIncrementField *Field

	byName map[string]*Field
}

// New assembles a schema and checks internal consistency. Malformed
// descriptors raise *entikit.SchemaDefinitionError.
func New(name string, fields ...*Field) (*Schema, error) {
	s := &Schema{
		Name:   name,
		Fields: fields,
		byName: make(map[string]*Field, len(fields)),
	}
	for _, f := range fields {
		if f.Name == "" {
			return nil, defErr(name, "field with empty name")
		}
		if _, dup := s.byName[f.Name]; dup {
			return nil, defErr(name, "duplicate field %q", f.Name)
		}
		s.byName[f.Name] = f
		if f.Primary {
			if s.PrimaryField != nil {
				return nil, defErr(name, "fields %q and %q both marked primary", s.PrimaryField.Name, f.Name)
			}
			s.PrimaryField = f
		}
		if f.AutoIncrement {
			if s.AutoIncrementField != nil {
				return nil, defErr(name, "fields %q and %q both marked auto-increment", s.AutoIncrementField.Name, f.Name)
			}
			s.AutoIncrementField = f
		}
		if err := checkField(name, f); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// MustNew is New panicking on malformed descriptors; for package-level
// declarations.
func MustNew(name string, fields ...*Field) *Schema {
	s, err := New(name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func checkField(schemaName string, f *Field) error {
	switch f.Tag {
	case TagArray, TagMap:
		if f.Elem == nil {
			return defErr(schemaName, "field %q: %s requires an element descriptor", f.Name, f.Tag)
		}
		if err := checkField(schemaName, f.Elem); err != nil {
			return err
		}
	case TagUnion:
		if len(f.Union) == 0 {
			return defErr(schemaName, "field %q: union requires at least one candidate", f.Name)
		}
		for _, c := range f.Union {
			if c.Tag == TagUnion {
				return defErr(schemaName, "field %q: nested unions are not supported; flatten the candidates", f.Name)
			}
			if err := checkField(schemaName, c); err != nil {
				return err
			}
		}
	case TagEnum:
		if len(f.EnumValues) == 0 {
			return defErr(schemaName, "field %q: enum requires a value set", f.Name)
		}
		if f.EnumLabels != nil && len(f.EnumLabels) != len(f.EnumValues) {
			return defErr(schemaName, "field %q: enum labels must align with values", f.Name)
		}
	case TagLiteral:
		if f.Literal == nil {
			return defErr(schemaName, "field %q: literal requires a value", f.Name)
		}
	case TagReference:
		if f.ref == nil && f.RefName == "" {
			return defErr(schemaName, "field %q: reference requires a target", f.Name)
		}
	}
	return nil
}

func defErr(schemaName, format string, args ...any) error {
	return &entikit.SchemaDefinitionError{Schema: schemaName, Detail: fmt.Sprintf(format, args...)}
}

// Field returns the descriptor for name, or nil.
func (s *Schema) Field(name string) *Field { return s.byName[name] }

// FieldNames returns field names in declaration order.
func (s *Schema) FieldNames() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// RequiredFields returns fields that demand input: not optional, no default,
// not auto-increment. Declaration order.
func (s *Schema) RequiredFields() []*Field {
	var out []*Field
	for _, f := range s.Fields {
		if !f.Optional && !f.HasDefault && !f.AutoIncrement {
			out = append(out, f)
		}
	}
	return out
}
