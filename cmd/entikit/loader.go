package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/reoring/entikit/rules"
	"github.com/reoring/entikit/schema"
)

// fileDef is the YAML shape of an entity-definition file:
//
//	entities:
//	  - name: product
//	    fields:
//	      - name: id
//	        type: integer
//	        primary: true
//	        autoIncrement: true
//	        optional: true
//	      - name: price
//	        type: number
//	        rules:
//	          - min: 0
//	          - expr: "value < 1000000"
type fileDef struct {
	Entities []entityDef `yaml:"entities"`
}

type entityDef struct {
	Name   string     `yaml:"name"`
	Fields []fieldDef `yaml:"fields"`
}

type fieldDef struct {
	Name          string           `yaml:"name"`
	Type          string           `yaml:"type"`
	Optional      bool             `yaml:"optional"`
	Nullable      bool             `yaml:"nullable"`
	Default       any              `yaml:"default"`
	Primary       bool             `yaml:"primary"`
	AutoIncrement bool             `yaml:"autoIncrement"`
	Reference     bool             `yaml:"reference"`
	Ref           string           `yaml:"ref"`
	Elem          *fieldDef        `yaml:"elem"`
	Of            []fieldDef       `yaml:"of"`
	Value         any              `yaml:"value"`
	Values        []any            `yaml:"values"`
	Labels        []string         `yaml:"labels"`
	AllowLabels   bool             `yaml:"allowLabels"`
	Groups        []string         `yaml:"groups"`
	Rules         []map[string]any `yaml:"rules"`
}

var typeTags = map[string]schema.TypeTag{
	"any":       schema.TagAny,
	"string":    schema.TagString,
	"number":    schema.TagNumber,
	"integer":   schema.TagInteger,
	"boolean":   schema.TagBoolean,
	"date":      schema.TagDate,
	"binary":    schema.TagBinary,
	"literal":   schema.TagLiteral,
	"enum":      schema.TagEnum,
	"array":     schema.TagArray,
	"map":       schema.TagMap,
	"reference": schema.TagReference,
	"union":     schema.TagUnion,
}

// loadDefinitions reads an entity-definition file and registers every entity
// lazily, so definitions may reference each other (and themselves) in any
// order. It returns the defined entity names in file order.
func loadDefinitions(path string, reg *schema.Registry) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var def fileDef
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	names := make([]string, 0, len(def.Entities))
	for _, ent := range def.Entities {
		ent := ent
		if ent.Name == "" {
			return nil, fmt.Errorf("%s: entity with empty name", path)
		}
		names = append(names, ent.Name)
		reg.Define(ent.Name, func() (*schema.Schema, error) {
			fields := make([]*schema.Field, 0, len(ent.Fields))
			for _, fd := range ent.Fields {
				f, err := buildField(fd)
				if err != nil {
					return nil, fmt.Errorf("entity %s: %w", ent.Name, err)
				}
				fields = append(fields, f)
			}
			return schema.New(ent.Name, fields...)
		})
	}
	return names, nil
}

func buildField(fd fieldDef) (*schema.Field, error) {
	tag, ok := typeTags[fd.Type]
	if !ok {
		return nil, fmt.Errorf("field %s: unknown type %q", fd.Name, fd.Type)
	}
	var opts []schema.FieldOpt
	if fd.Optional {
		opts = append(opts, schema.Optional())
	}
	if fd.Nullable {
		opts = append(opts, schema.Nullable())
	}
	if fd.Default != nil {
		opts = append(opts, schema.Default(fd.Default))
	}
	if fd.Primary {
		opts = append(opts, schema.Primary())
	}
	if fd.AutoIncrement {
		opts = append(opts, schema.AutoIncrement())
	}
	if fd.Reference {
		opts = append(opts, schema.Reference())
	}
	if fd.Ref != "" {
		opts = append(opts, schema.RefName(fd.Ref))
	}
	if fd.Elem != nil {
		elem, err := buildField(*fd.Elem)
		if err != nil {
			return nil, err
		}
		opts = append(opts, schema.Elem(elem))
	}
	if len(fd.Of) > 0 {
		cands := make([]*schema.Field, 0, len(fd.Of))
		for _, cd := range fd.Of {
			cand, err := buildField(cd)
			if err != nil {
				return nil, err
			}
			cands = append(cands, cand)
		}
		opts = append(opts, schema.Of(cands...))
	}
	if fd.Value != nil {
		opts = append(opts, schema.Literal(fd.Value))
	}
	if len(fd.Values) > 0 {
		opts = append(opts, schema.Enum(fd.Values, fd.Labels))
	}
	if fd.AllowLabels {
		opts = append(opts, schema.AllowLabels())
	}
	if len(fd.Groups) > 0 {
		opts = append(opts, schema.Groups(fd.Groups...))
	}
	if len(fd.Rules) > 0 {
		rs, err := buildRules(fd.Name, fd.Rules)
		if err != nil {
			return nil, err
		}
		opts = append(opts, schema.Rules(rs...))
	}
	return schema.F(fd.Name, tag, opts...), nil
}

func buildRules(fieldName string, defs []map[string]any) ([]schema.Rule, error) {
	out := make([]schema.Rule, 0, len(defs))
	for _, d := range defs {
		if len(d) != 1 {
			return nil, fmt.Errorf("field %s: each rule takes exactly one key", fieldName)
		}
		for kind, arg := range d {
			r, err := buildRule(fieldName, kind, arg)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		}
	}
	return out, nil
}

func buildRule(fieldName, kind string, arg any) (schema.Rule, error) {
	switch kind {
	case "min":
		n, ok := toFloat(arg)
		if !ok {
			return nil, fmt.Errorf("field %s: min takes a number", fieldName)
		}
		return rules.Min(n), nil
	case "max":
		n, ok := toFloat(arg)
		if !ok {
			return nil, fmt.Errorf("field %s: max takes a number", fieldName)
		}
		return rules.Max(n), nil
	case "minLength":
		n, ok := toFloat(arg)
		if !ok {
			return nil, fmt.Errorf("field %s: minLength takes a number", fieldName)
		}
		return rules.MinLength(int(n)), nil
	case "maxLength":
		n, ok := toFloat(arg)
		if !ok {
			return nil, fmt.Errorf("field %s: maxLength takes a number", fieldName)
		}
		return rules.MaxLength(int(n)), nil
	case "pattern":
		s, ok := arg.(string)
		if !ok {
			return nil, fmt.Errorf("field %s: pattern takes a string", fieldName)
		}
		return rules.Pattern(s), nil
	case "expr":
		s, ok := arg.(string)
		if !ok {
			return nil, fmt.Errorf("field %s: expr takes a string", fieldName)
		}
		return rules.Expr(s)
	case "oneOf":
		xs, ok := arg.([]any)
		if !ok {
			return nil, fmt.Errorf("field %s: oneOf takes a list", fieldName)
		}
		return rules.OneOf(xs...), nil
	default:
		return nil, fmt.Errorf("field %s: unknown rule %q", fieldName, kind)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
