package jsonschema

import (
	entikit "github.com/reoring/entikit"
	"github.com/reoring/entikit/schema"
)

// FromSchema projects an entity schema into a JSON Schema document. Cyclic
// references are emitted as $ref pointers keyed by entity name, and every
// referenced schema lands in the root document's $defs so the pointers
// resolve.
func FromSchema(s *schema.Schema, reg *schema.Registry) (*Schema, error) {
	ex := &exporter{reg: reg, seen: map[string]bool{}, needed: map[string]*schema.Schema{}}
	root, err := ex.object(s)
	if err != nil {
		return nil, err
	}
	// Building a definition can surface further references; iterate until the
	// needed set is fully materialized.
	defs := map[string]*Schema{}
	for {
		added := false
		for name, target := range ex.needed {
			if _, done := defs[name]; done {
				continue
			}
			ds, err := ex.object(target)
			if err != nil {
				return nil, err
			}
			defs[name] = ds
			added = true
		}
		if !added {
			break
		}
	}
	if len(defs) > 0 {
		root.Defs = defs
	}
	return root, nil
}

type exporter struct {
	reg  *schema.Registry
	seen map[string]bool
	// needed records every schema a $ref points at.
	needed map[string]*schema.Schema
}

func (ex *exporter) object(s *schema.Schema) (*Schema, error) {
	if ex.seen[s.Name] {
		ex.needed[s.Name] = s
		return &Schema{Ref: "#/$defs/" + s.Name}, nil
	}
	ex.seen[s.Name] = true
	defer delete(ex.seen, s.Name)

	props := make(map[string]*Schema, len(s.Fields))
	var required []string
	for _, f := range s.Fields {
		fs, err := ex.field(f)
		if err != nil {
			return nil, err
		}
		props[f.Name] = fs
		if !f.Optional && !f.HasDefault && !f.AutoIncrement {
			required = append(required, f.Name)
		}
	}
	return &Schema{Type: "object", Properties: props, Required: required}, nil
}

func (ex *exporter) field(f *schema.Field) (*Schema, error) {
	out := &Schema{Nullable: f.Nullable}
	if f.HasDefault {
		out.Default = f.Default
	}
	switch f.Tag {
	case schema.TagString:
		out.Type = "string"
	case schema.TagNumber:
		out.Type = "number"
	case schema.TagInteger:
		out.Type = "integer"
	case schema.TagBoolean:
		out.Type = "boolean"
	case schema.TagDate:
		out.Type = "string"
		out.Format = "date-time"
	case schema.TagBinary:
		out.Type = "string"
		out.Format = "byte"
	case schema.TagLiteral:
		out.Const = f.Literal
	case schema.TagEnum:
		out.Enum = f.EnumValues
	case schema.TagArray:
		items, err := ex.field(f.Elem)
		if err != nil {
			return nil, err
		}
		out.Type = "array"
		out.Items = items
	case schema.TagMap:
		elem, err := ex.field(f.Elem)
		if err != nil {
			return nil, err
		}
		out.Type = "object"
		out.AdditionalProperties = elem
	case schema.TagReference:
		target, err := f.Resolve(ex.reg)
		if err != nil {
			return nil, err
		}
		nested, err := ex.object(target)
		if err != nil {
			return nil, err
		}
		if f.IsReference {
			// stored as the target's primary key; the object shape is one of
			// the accepted inputs
			if target.PrimaryField != nil {
				pk, err := ex.field(target.PrimaryField)
				if err != nil {
					return nil, err
				}
				out.OneOf = []*Schema{pk, nested}
				return out, nil
			}
		}
		*out = *nested
		out.Nullable = f.Nullable
	case schema.TagUnion:
		variants := make([]*Schema, 0, len(f.Union))
		for _, cand := range f.Union {
			vs, err := ex.field(cand)
			if err != nil {
				return nil, err
			}
			variants = append(variants, vs)
		}
		out.OneOf = variants
	case schema.TagAny:
		// unconstrained
	default:
		return nil, &entikit.SchemaDefinitionError{Schema: f.Name, Detail: "cannot export " + f.Tag.String()}
	}
	return out, nil
}
