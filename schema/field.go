package schema

import (
	"context"

	entikit "github.com/reoring/entikit"
)

// TypeTag identifies which converter/validator registry entries apply to a
// field. Exactly one primary conversion generator applies per tag per
// direction; union fields have no primary tag of their own.
type TypeTag int

const (
	TagAny TypeTag = iota
	TagString
	TagNumber  // float64 on the entity side
	TagInteger // int64 on the entity side
	TagBoolean
	TagDate   // time.Time on the entity side, RFC3339 text on the neutral side
	TagBinary // []byte on the entity side, routed through the serializer binary hook
	TagLiteral
	TagEnum
	TagArray
	TagMap
	TagReference // nested/foreign entity, resolved lazily to allow cycles
	TagUnion
)

func (t TypeTag) String() string {
	switch t {
	case TagAny:
		return "any"
	case TagString:
		return "string"
	case TagNumber:
		return "number"
	case TagInteger:
		return "integer"
	case TagBoolean:
		return "boolean"
	case TagDate:
		return "date"
	case TagBinary:
		return "binary"
	case TagLiteral:
		return "literal"
	case TagEnum:
		return "enum"
	case TagArray:
		return "array"
	case TagMap:
		return "map"
	case TagReference:
		return "reference"
	case TagUnion:
		return "union"
	default:
		return "typetag(?)"
	}
}

// Rule is one custom validator attached to a field. A nil result means the
// value passed. Rules run after the required-ness and type-shape checks, in
// declaration order; the first failing rule ends that field's chain.
type Rule func(ctx context.Context, path string, v any) *entikit.FieldError

// Field is one attribute of a schema: type tag, modifiers, defaults,
// nested/union references. Fields are assembled through F and FieldOpt values
// and must not be mutated after the owning schema is built.
type Field struct {
	Name          string
	Tag           TypeTag
	Optional      bool // Permits absent input.
	Nullable      bool // Permits explicit null, passed through untouched.
	HasDefault    bool // Supplies Default when input is absent.
	Default       any
	Elem          *Field   // Element descriptor for TagArray/TagMap.
	Union         []*Field // Candidates for TagUnion, declaration order.
	Literal       any      // Value for TagLiteral.
	EnumValues    []any    // Declared value set for TagEnum.
	EnumLabels    []string // Optional labels, index-aligned with EnumValues.
	AllowLabels   bool     // Whether labels are accepted as input values.
	IsReference   bool     // Stored as the target's primary key rather than embedded.
	Primary       bool
	AutoIncrement bool
	Groups        []string // Visibility-group labels for ConvertOpt.Groups filtering.
	Validators    []Rule

	// Lazy reference resolution; at most one of ref/RefName is set for
	// TagReference fields.
	ref     func() *Schema
	RefName string
}

// Resolve returns the referenced schema for a TagReference field, consulting
// the registry for by-name references. Resolution is deliberately deferred to
// compile time so a schema can reference itself before it is fully built.
func (f *Field) Resolve(reg *Registry) (*Schema, error) {
	if f.ref != nil {
		if s := f.ref(); s != nil {
			return s, nil
		}
		return nil, &entikit.SchemaDefinitionError{Schema: f.Name, Detail: "lazy reference resolved to nil"}
	}
	if f.RefName != "" {
		if reg == nil {
			return nil, &entikit.SchemaDefinitionError{Schema: f.Name, Detail: "by-name reference " + f.RefName + " requires a registry"}
		}
		return reg.Schema(f.RefName)
	}
	return nil, &entikit.SchemaDefinitionError{Schema: f.Name, Detail: "reference field has no target"}
}

// InAnyGroup reports whether the field carries at least one of the labels.
func (f *Field) InAnyGroup(labels []string) bool {
	for _, g := range labels {
		for _, l := range f.Groups {
			if g == l {
				return true
			}
		}
	}
	return false
}

// FieldOpt mutates a field under construction.
type FieldOpt func(*Field)

// F builds a field descriptor.
func F(name string, tag TypeTag, opts ...FieldOpt) *Field {
	f := &Field{Name: name, Tag: tag}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Optional permits absent input for the field.
func Optional() FieldOpt { return func(f *Field) { f.Optional = true } }

// Nullable permits explicit null input, passed through without conversion.
func Nullable() FieldOpt { return func(f *Field) { f.Nullable = true } }

// Default supplies a value used when input is absent.
func Default(v any) FieldOpt {
	return func(f *Field) {
		f.HasDefault = true
		f.Default = v
	}
}

// Primary marks the field as the schema's primary field.
func Primary() FieldOpt { return func(f *Field) { f.Primary = true } }

// AutoIncrement marks the field as assigned by a collaborator; absent input is
// left unset rather than treated as missing.
func AutoIncrement() FieldOpt { return func(f *Field) { f.AutoIncrement = true } }

// Elem sets the element descriptor for array and map fields. The element's
// name is ignored; paths use indices (arrays) or keys (maps).
func Elem(e *Field) FieldOpt { return func(f *Field) { f.Elem = e } }

// Of sets the union candidates, declaration order preserved.
func Of(candidates ...*Field) FieldOpt { return func(f *Field) { f.Union = candidates } }

// Literal sets the literal value for TagLiteral fields.
func Literal(v any) FieldOpt { return func(f *Field) { f.Literal = v } }

// Enum declares the value set for TagEnum fields. labels may be nil; when
// given it must align with values by index.
func Enum(values []any, labels []string) FieldOpt {
	return func(f *Field) {
		f.EnumValues = values
		f.EnumLabels = labels
	}
}

// AllowLabels accepts enum labels as input, mapped to their values on decode.
func AllowLabels() FieldOpt { return func(f *Field) { f.AllowLabels = true } }

// Ref points a TagReference field at an already built schema.
func Ref(s *Schema) FieldOpt {
	return func(f *Field) { f.ref = func() *Schema { return s } }
}

// RefLazy points a TagReference field at a schema produced on demand,
// enabling self-referential declarations.
func RefLazy(fn func() *Schema) FieldOpt { return func(f *Field) { f.ref = fn } }

// RefName points a TagReference field at a schema registered under name;
// resolved through the compiler's registry.
func RefName(name string) FieldOpt { return func(f *Field) { f.RefName = name } }

// Reference marks the field as stored by the target's primary key. Scalar
// input is converted with the target's primary field; object input is
// converted with the full nested pipeline.
func Reference() FieldOpt { return func(f *Field) { f.IsReference = true } }

// Groups attaches visibility-group labels.
func Groups(labels ...string) FieldOpt { return func(f *Field) { f.Groups = labels } }

// Rules attaches custom validator rules, run in the given order.
func Rules(rules ...Rule) FieldOpt { return func(f *Field) { f.Validators = rules } }
