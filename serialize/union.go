package serialize

import (
	"context"
	"fmt"
	"sort"
	"time"

	entikit "github.com/reoring/entikit"
	"github.com/reoring/entikit/codec"
	"github.com/reoring/entikit/schema"
)

// unionCandidate pairs one candidate descriptor with its guard predicate, its
// compiled conversion, and a human-readable discriminant for error reporting.
type unionCandidate struct {
	field *schema.Field
	guard func(v any) bool
	desc  string
	step  ValueStep
	// discriminated marks object candidates carrying a literal discriminant
	// field; they rank ahead of generic object shapes.
	discriminated bool
}

// specificity classes order candidates most-specific first so ambiguous
// shapes resolve deterministically to the first matching guard. Lower runs
// earlier; declaration order breaks ties.
func specificity(f *schema.Field, discriminated bool) int {
	switch f.Tag {
	case schema.TagLiteral:
		return 0
	case schema.TagEnum:
		return 1
	case schema.TagDate:
		return 2
	case schema.TagBinary:
		return 3
	case schema.TagInteger:
		return 4
	case schema.TagNumber:
		return 5
	case schema.TagBoolean:
		return 6
	case schema.TagString:
		return 7
	case schema.TagArray:
		return 8
	case schema.TagReference:
		if discriminated {
			return 9 // object shape with a literal discriminant
		}
		return 10
	case schema.TagMap:
		return 11
	default:
		return 12
	}
}

// unionStep builds the dispatch step for a field with candidates: guards are
// evaluated in specificity order and the first match converts the value.
func (c *Compiler) unionStep(cc CompileCtx) (Step, error) {
	f := cc.Field
	cands := make([]unionCandidate, 0, len(f.Union))
	for _, cand := range f.Union {
		vs, err := c.valueStep(cand, cc.Path, cc.Serializer, cc.Direction)
		if err != nil {
			return nil, err
		}
		guard, desc, discriminated, err := c.guardFor(cand)
		if err != nil {
			return nil, err
		}
		cands = append(cands, unionCandidate{field: cand, guard: guard, desc: desc, step: vs, discriminated: discriminated})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return specificity(cands[i].field, cands[i].discriminated) < specificity(cands[j].field, cands[j].discriminated)
	})

	tried := make([]string, len(cands))
	for i, cand := range cands {
		tried[i] = cand.desc
	}
	path := cc.Path
	return func(ctx context.Context, v any, opt *entikit.ConvertOpt) (any, error) {
		for _, cand := range cands {
			if cand.guard(v) {
				return cand.step.Exec(ctx, v, opt)
			}
		}
		// no guard matched: optional leaves unset, then nullable null, then
		// default, then a structured failure naming the discriminants tried
		switch {
		case f.Optional:
			return Unset, nil
		case f.Nullable:
			return nil, nil
		case f.HasDefault:
			return f.Default, nil
		}
		return nil, &entikit.NoMatchingUnionVariant{Path: path, Tried: tried}
	}, nil
}

// guardFor computes the discriminating predicate for one candidate: literal
// equality, primitive shape checks, or required-key/discriminant checks for
// referenced schemas.
func (c *Compiler) guardFor(f *schema.Field) (guard func(v any) bool, desc string, discriminated bool, err error) {
	switch f.Tag {
	case schema.TagLiteral:
		lit := f.Literal
		return func(v any) bool { return looseValueEqual(v, lit) }, fmt.Sprintf("%v", lit), false, nil
	case schema.TagEnum:
		values := f.EnumValues
		labels := f.EnumLabels
		allowLabels := f.AllowLabels
		return func(v any) bool {
			for _, want := range values {
				if looseValueEqual(v, want) {
					return true
				}
			}
			if allowLabels {
				if s, ok := v.(string); ok {
					for _, l := range labels {
						if s == l {
							return true
						}
					}
				}
			}
			return false
		}, "enum", false, nil
	case schema.TagDate:
		return func(v any) bool {
			switch t := v.(type) {
			case time.Time:
				return true
			case string:
				return codec.IsRFC3339(t)
			}
			return false
		}, "date", false, nil
	case schema.TagBinary:
		return func(v any) bool {
			switch b := v.(type) {
			case []byte:
				return true
			case string:
				_, err := codec.DecodeBase64("", b)
				return err == nil
			}
			return false
		}, "binary", false, nil
	case schema.TagInteger:
		return func(v any) bool { _, ok := asInt64(v); return ok }, "integer", false, nil
	case schema.TagNumber:
		return func(v any) bool { _, ok := asFloat64(v); return ok }, "number", false, nil
	case schema.TagBoolean:
		return func(v any) bool { _, ok := v.(bool); return ok }, "boolean", false, nil
	case schema.TagString:
		return func(v any) bool { _, ok := v.(string); return ok }, "string", false, nil
	case schema.TagArray:
		return func(v any) bool { _, ok := v.([]any); return ok }, "array", false, nil
	case schema.TagMap:
		return func(v any) bool { _, ok := v.(map[string]any); return ok }, "map", false, nil
	case schema.TagReference:
		target, rerr := f.Resolve(c.registry)
		if rerr != nil {
			return nil, "", false, rerr
		}
		// pk-stored references also accept a bare primary-key value
		var pkGuard func(v any) bool
		if f.IsReference && target.PrimaryField != nil {
			pg, _, _, perr := c.guardFor(target.PrimaryField)
			if perr != nil {
				return nil, "", false, perr
			}
			pkGuard = pg
		}
		type keyCheck struct {
			name    string
			literal any // non-nil for discriminant fields
		}
		var checks []keyCheck
		for _, tf := range target.Fields {
			if tf.Tag == schema.TagLiteral && !tf.Optional {
				checks = append(checks, keyCheck{name: tf.Name, literal: tf.Literal})
				discriminated = true
				continue
			}
			if !tf.Optional && !tf.HasDefault && !tf.AutoIncrement {
				checks = append(checks, keyCheck{name: tf.Name})
			}
		}
		return func(v any) bool {
			m, ok := v.(map[string]any)
			if !ok {
				return pkGuard != nil && pkGuard(v)
			}
			for _, kc := range checks {
				got, present := m[kc.name]
				if !present {
					return false
				}
				if kc.literal != nil && !looseValueEqual(got, kc.literal) {
					return false
				}
			}
			return true
		}, target.Name, discriminated, nil
	default:
		return func(v any) bool { return true }, f.Tag.String(), false, nil
	}
}
