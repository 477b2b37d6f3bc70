package serialize

import (
	"context"
	"sort"
	"sync"
	"time"

	entikit "github.com/reoring/entikit"
	"github.com/reoring/entikit/codec"
	"github.com/reoring/entikit/i18n"
	"github.com/reoring/entikit/schema"
)

// CheckFunc is one primitive type-shape check. A nil result means the value
// has the expected shape.
type CheckFunc func(ctx context.Context, path string, v any) *entikit.FieldError

// ValidatorRegistry is the per-type validator table, structurally parallel to
// the Serializer's generator tables. Composite tags (array, map, union,
// reference, enum, literal) are assembled by the engine; primitives dispatch
// here and can be overridden.
type ValidatorRegistry struct {
	mu     sync.RWMutex
	checks map[schema.TypeTag]CheckFunc
}

// NewValidatorRegistry returns a registry with the built-in primitive checks.
func NewValidatorRegistry() *ValidatorRegistry {
	r := &ValidatorRegistry{checks: make(map[schema.TypeTag]CheckFunc)}
	r.Register(schema.TagAny, func(ctx context.Context, path string, v any) *entikit.FieldError { return nil })
	r.Register(schema.TagString, shapeCheck("string", func(v any) bool { _, ok := v.(string); return ok }))
	r.Register(schema.TagNumber, shapeCheck("number", func(v any) bool { _, ok := asFloat64(v); return ok }))
	r.Register(schema.TagInteger, shapeCheck("integer", func(v any) bool { _, ok := asInt64(v); return ok }))
	r.Register(schema.TagBoolean, shapeCheck("boolean", func(v any) bool { _, ok := v.(bool); return ok }))
	r.Register(schema.TagDate, shapeCheck("date", func(v any) bool {
		switch t := v.(type) {
		case time.Time:
			return true
		case string:
			return codec.IsRFC3339(t)
		}
		return false
	}))
	r.Register(schema.TagBinary, shapeCheck("binary", func(v any) bool {
		switch b := v.(type) {
		case []byte:
			return true
		case string:
			_, err := codec.DecodeBase64("", b)
			return err == nil
		}
		return false
	}))
	return r
}

// Register installs (or overrides) the check for a tag.
func (r *ValidatorRegistry) Register(tag schema.TypeTag, check CheckFunc) {
	r.mu.Lock()
	r.checks[tag] = check
	r.mu.Unlock()
}

func (r *ValidatorRegistry) lookup(tag schema.TypeTag) (CheckFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.checks[tag]
	return c, ok
}

func shapeCheck(expected string, ok func(v any) bool) CheckFunc {
	return func(ctx context.Context, path string, v any) *entikit.FieldError {
		if ok(v) {
			return nil
		}
		fe := typeError(path, expected, v)[0]
		return &fe
	}
}

// checkFn is the compiled shape check for one descriptor; composites may emit
// several entries for nested values.
type checkFn func(ctx context.Context, path string, v any) entikit.FieldErrors

// Validator is the compiled validation pipeline for one schema: every field
// is checked, all applicable errors collected, field declaration order
// preserved in the result.
type Validator struct {
	schema *schema.Schema
	// steps is written once, before the outermost build returns; cyclic
	// references observe the filled slice by the time validation runs.
	steps []vStep
}

type vStep struct {
	field *schema.Field
	check checkFn
	rules []schema.Rule
}

// Validator returns the compiled (and cached) validator for s.
func (c *Compiler) Validator(s *schema.Schema) (*Validator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validatorLocked(s)
}

func (c *Compiler) validatorLocked(s *schema.Schema) (*Validator, error) {
	if vd, ok := c.validators[s]; ok {
		return vd, nil
	}
	vd := &Validator{schema: s}
	// published before the fields compile so cyclic references resolve to the
	// same validator
	c.validators[s] = vd
	steps := make([]vStep, 0, len(s.Fields))
	for _, f := range s.Fields {
		check, err := c.buildCheck(f)
		if err != nil {
			delete(c.validators, s)
			return nil, err
		}
		steps = append(steps, vStep{field: f, check: check, rules: f.Validators})
	}
	vd.steps = steps
	return vd, nil
}

// buildCheck assembles the shape check for one descriptor, recursing into
// composite tags.
func (c *Compiler) buildCheck(f *schema.Field) (checkFn, error) {
	switch f.Tag {
	case schema.TagLiteral:
		lit := f.Literal
		return func(ctx context.Context, path string, v any) entikit.FieldErrors {
			if looseValueEqual(v, lit) {
				return nil
			}
			return typeError(path, "literal", v)
		}, nil
	case schema.TagEnum:
		values := f.EnumValues
		labels := f.EnumLabels
		allowLabels := f.AllowLabels
		return func(ctx context.Context, path string, v any) entikit.FieldErrors {
			for _, want := range values {
				if looseValueEqual(v, want) {
					return nil
				}
			}
			if allowLabels {
				if s, ok := v.(string); ok {
					for _, l := range labels {
						if s == l {
							return nil
						}
					}
				}
			}
			return entikit.FieldErrors{{
				Path:    path,
				Code:    entikit.CodeInvalidEnum,
				Message: i18n.T(entikit.CodeInvalidEnum, nil),
				Params:  map[string]any{"allowed": values, "got": v},
			}}
		}, nil
	case schema.TagArray:
		elem, err := c.buildCheck(f.Elem)
		if err != nil {
			return nil, err
		}
		elemNullable := f.Elem.Nullable
		return func(ctx context.Context, path string, v any) entikit.FieldErrors {
			xs, ok := v.([]any)
			if !ok {
				return typeError(path, "array", v)
			}
			var errs entikit.FieldErrors
			for i, x := range xs {
				if x == nil {
					if !elemNullable {
						errs = entikit.AppendFieldErrors(errs, typeError(entikit.IndexPath(path, i), "non-null element", x)...)
					}
					continue
				}
				errs = entikit.AppendFieldErrors(errs, elem(ctx, entikit.IndexPath(path, i), x)...)
			}
			return errs
		}, nil
	case schema.TagMap:
		elem, err := c.buildCheck(f.Elem)
		if err != nil {
			return nil, err
		}
		elemNullable := f.Elem.Nullable
		return func(ctx context.Context, path string, v any) entikit.FieldErrors {
			m, ok := v.(map[string]any)
			if !ok {
				return typeError(path, "map", v)
			}
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			var errs entikit.FieldErrors
			for _, k := range keys {
				x := m[k]
				if x == nil {
					if !elemNullable {
						errs = entikit.AppendFieldErrors(errs, typeError(entikit.JoinPath(path, k), "non-null element", x)...)
					}
					continue
				}
				errs = entikit.AppendFieldErrors(errs, elem(ctx, entikit.JoinPath(path, k), x)...)
			}
			return errs
		}, nil
	case schema.TagUnion:
		type vcand struct {
			guard func(v any) bool
			check checkFn
			desc  string
			disc  bool
			field *schema.Field
		}
		cands := make([]vcand, 0, len(f.Union))
		for _, cand := range f.Union {
			check, err := c.buildCheck(cand)
			if err != nil {
				return nil, err
			}
			guard, desc, disc, err := c.guardFor(cand)
			if err != nil {
				return nil, err
			}
			cands = append(cands, vcand{guard: guard, check: check, desc: desc, disc: disc, field: cand})
		}
		sort.SliceStable(cands, func(i, j int) bool {
			return specificity(cands[i].field, cands[i].disc) < specificity(cands[j].field, cands[j].disc)
		})
		tried := make([]string, len(cands))
		for i, cand := range cands {
			tried[i] = cand.desc
		}
		fallback := f.Optional || f.Nullable || f.HasDefault
		return func(ctx context.Context, path string, v any) entikit.FieldErrors {
			for _, cand := range cands {
				if cand.guard(v) {
					return cand.check(ctx, path, v)
				}
			}
			if fallback {
				return nil
			}
			return entikit.FieldErrors{{
				Path:    path,
				Code:    entikit.CodeNoMatchingVariant,
				Message: i18n.T(entikit.CodeNoMatchingVariant, nil),
				Params:  map[string]any{"tried": tried},
			}}
		}, nil
	case schema.TagReference:
		target, err := f.Resolve(c.registry)
		if err != nil {
			return nil, err
		}
		nested, err := c.validatorLocked(target)
		if err != nil {
			return nil, err
		}
		var pk checkFn
		if f.IsReference && target.PrimaryField != nil {
			pk, err = c.buildCheck(target.PrimaryField)
			if err != nil {
				return nil, err
			}
		}
		return func(ctx context.Context, path string, v any) entikit.FieldErrors {
			if m, ok := v.(map[string]any); ok {
				return nested.Validate(ctx, m).Rebase(path)
			}
			if pk != nil {
				return pk(ctx, path, v)
			}
			return typeError(path, "object", v)
		}, nil
	default:
		check, ok := c.vchecks.lookup(f.Tag)
		if !ok {
			return nil, &entikit.SchemaDefinitionError{Schema: f.Name, Detail: "no validator registered for " + f.Tag.String()}
		}
		return func(ctx context.Context, path string, v any) entikit.FieldErrors {
			if fe := check(ctx, path, v); fe != nil {
				return entikit.FieldErrors{*fe}
			}
			return nil
		}, nil
	}
}

// Validate checks value against the schema. Every field is checked and all
// applicable errors collected; a field's chain is required-ness, then type
// shape, then custom rules, where the first failing rule stops that field's
// chain without affecting other fields.
func (vd *Validator) Validate(ctx context.Context, value any) entikit.FieldErrors {
	m, ok := value.(map[string]any)
	if !ok {
		return typeError("", "object", value)
	}
	var errs entikit.FieldErrors
	for _, st := range vd.steps {
		f := st.field
		v, present := m[f.Name]
		if !present {
			if !f.Optional && !f.HasDefault && !f.AutoIncrement {
				errs = entikit.AppendFieldErrors(errs, entikit.FieldError{
					Path:    f.Name,
					Code:    entikit.CodeRequired,
					Message: i18n.T(entikit.CodeRequired, nil),
				})
			}
			continue
		}
		if v == nil {
			if !f.Nullable {
				errs = entikit.AppendFieldErrors(errs, typeError(f.Name, f.Tag.String(), nil)...)
			}
			continue
		}
		if shapeErrs := st.check(ctx, f.Name, v); len(shapeErrs) > 0 {
			errs = entikit.AppendFieldErrors(errs, shapeErrs...)
			continue
		}
		for _, rule := range st.rules {
			if fe := rule(ctx, f.Name, v); fe != nil {
				errs = entikit.AppendFieldErrors(errs, *fe)
				break
			}
		}
	}
	return errs
}

// Validate compiles (or reuses) the validator for s and runs it. The returned
// error reports definition problems only; validation findings are the list.
func (c *Compiler) Validate(ctx context.Context, s *schema.Schema, value any) (entikit.FieldErrors, error) {
	vd, err := c.Validator(s)
	if err != nil {
		return nil, err
	}
	return vd.Validate(ctx, value), nil
}

// ValidateAndThrow validates and then decodes through the named serializer.
// A non-empty finding list is raised as *entikit.ValidationFailed carrying the
// full list.
func (c *Compiler) ValidateAndThrow(ctx context.Context, s *schema.Schema, serializerName string, value any, opt *entikit.ConvertOpt) (map[string]any, error) {
	errs, err := c.Validate(ctx, s, value)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return nil, &entikit.ValidationFailed{Schema: s.Name, Errors: errs}
	}
	out, err := c.Convert(ctx, s, serializerName, entikit.Decode, value, opt)
	if err != nil {
		return nil, err
	}
	entity, _ := out.(map[string]any)
	return entity, nil
}
