package serialize

import (
	"context"
	"fmt"

	entikit "github.com/reoring/entikit"
	"github.com/reoring/entikit/i18n"
	"github.com/reoring/entikit/schema"
)

// ValueStep is one field's compiled conversion: the accumulated prepend steps
// plus the primary step, with absent/null policy applied by the caller.
type ValueStep struct {
	field    *schema.Field
	path     string
	prepends []PrependStep
	run      Step
}

// Exec converts one present value. Null passes through untouched when the
// field is nullable; otherwise it is a structural error. Prepend steps run
// first and may fully decide the outcome.
func (vs ValueStep) Exec(ctx context.Context, v any, opt *entikit.ConvertOpt) (any, error) {
	if v == nil {
		if vs.field.Nullable {
			return nil, nil
		}
		return nil, typeError(vs.path, vs.field.Tag.String(), nil)
	}
	for _, p := range vs.prepends {
		out, done, err := p(ctx, v, opt)
		if err != nil {
			return nil, err
		}
		if done {
			return out, nil
		}
	}
	return vs.run(ctx, v, opt)
}

type fieldStep struct {
	field *schema.Field
	path  string
	vs    ValueStep
}

// Pipeline is a compiled, cached, reusable conversion for one
// (schema, serializer, direction[, subset]). Immutable once published by the
// compiler and safe for unlimited concurrent invocation.
type Pipeline struct {
	schema     *schema.Schema
	serializer *Serializer
	dir        entikit.Direction
	subset     []string // canonical, nil for full conversion

	// steps is written exactly once, before the outermost compile returns.
	// Forward references handed out during cyclic compilation observe the
	// filled slice by the time any pipeline can run.
	steps []fieldStep
}

// Schema returns the schema this pipeline was compiled for.
func (p *Pipeline) Schema() *schema.Schema { return p.schema }

// Direction returns the pipeline's conversion direction.
func (p *Pipeline) Direction() entikit.Direction { return p.dir }

// Subset returns the canonical field subset, nil for full conversion.
func (p *Pipeline) Subset() []string { return p.subset }

// Run executes the pipeline against input. For decode the input is neutral
// data and the output an entity value; for encode the reverse. Structural
// failures are collected as FieldErrors; typed errors raised by field steps
// (NoMatchingUnionVariant, InvalidEnumValue, nested-pipeline errors) propagate
// unchanged.
func (p *Pipeline) Run(ctx context.Context, input any, opt *entikit.ConvertOpt) (any, error) {
	src, ok := input.(map[string]any)
	if !ok {
		return nil, typeError("", "object", input)
	}
	out := make(map[string]any, len(p.steps))
	// Nested pipelines see the entity under construction at the end of the
	// ancestor chain.
	stepOpt := opt.WithParent(out)

	var errs entikit.FieldErrors
	for _, fs := range p.steps {
		if !groupAllowed(stepOpt, fs.field) {
			continue
		}
		v, present := src[fs.field.Name]
		if !present {
			switch {
			case fs.field.HasDefault:
				out[fs.field.Name] = fs.field.Default
			case fs.field.Optional || fs.field.AutoIncrement:
				// left unset; auto-increment values are assigned by a collaborator
			default:
				errs = entikit.AppendFieldErrors(errs, entikit.FieldError{
					Path:    fs.path,
					Code:    entikit.CodeRequired,
					Message: i18n.T(entikit.CodeRequired, nil),
				})
			}
			continue
		}
		res, err := fs.vs.Exec(ctx, v, stepOpt)
		if err != nil {
			if fe, ok := entikit.AsFieldErrors(err); ok {
				errs = entikit.AppendFieldErrors(errs, fe...)
				continue
			}
			return nil, err
		}
		if res == Unset {
			continue
		}
		out[fs.field.Name] = res
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

// groupAllowed applies the visibility-group filter: with filtering active,
// only fields carrying a matching label are converted.
func groupAllowed(opt *entikit.ConvertOpt, f *schema.Field) bool {
	if opt == nil || len(opt.Groups) == 0 {
		return true
	}
	return f.InAnyGroup(opt.Groups)
}

// typeError builds the single-entry invalid_type error every step shares.
func typeError(path, expected string, got any) entikit.FieldErrors {
	gotName := "null"
	if got != nil {
		gotName = fmt.Sprintf("%T", got)
	}
	return entikit.FieldErrors{{
		Path:    path,
		Code:    entikit.CodeInvalidType,
		Message: i18n.T(entikit.CodeInvalidType, nil),
		Params:  map[string]any{"expected": expected, "got": gotName},
	}}
}

// rebaseError re-roots an error produced by a nested pipeline or element step
// under base, preserving the original error kind.
func rebaseError(err error, base string) error {
	if err == nil || base == "" {
		return err
	}
	if fe, ok := entikit.AsFieldErrors(err); ok {
		return fe.Rebase(base)
	}
	switch e := err.(type) {
	case *entikit.NoMatchingUnionVariant:
		return &entikit.NoMatchingUnionVariant{Path: entikit.JoinPath(base, e.Path), Tried: e.Tried}
	case *entikit.InvalidEnumValue:
		return &entikit.InvalidEnumValue{Path: entikit.JoinPath(base, e.Path), Value: e.Value, Allowed: e.Allowed}
	}
	return err
}
