package serialize

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	entikit "github.com/reoring/entikit"
	"github.com/reoring/entikit/codec"
	"github.com/reoring/entikit/schema"
)

// NewJSONSerializer builds the built-in serializer for the JSON-flavored
// neutral representation: json.Number/float64 numbers, base64 text for binary,
// RFC3339 text for dates. Adapters extend or override it through the
// Register/Prepend/RegisterForBinary hooks.
func NewJSONSerializer() *Serializer {
	s := NewSerializer("json")

	s.Register(entikit.Decode, schema.TagAny, identityGenerator)
	s.Register(entikit.Encode, schema.TagAny, identityGenerator)

	s.Register(entikit.Decode, schema.TagString, decodeString)
	s.Register(entikit.Encode, schema.TagString, encodeString)
	s.Register(entikit.Decode, schema.TagNumber, decodeNumber)
	s.Register(entikit.Encode, schema.TagNumber, decodeNumber) // entity and neutral share float64
	s.Register(entikit.Decode, schema.TagInteger, decodeInteger)
	s.Register(entikit.Encode, schema.TagInteger, decodeInteger)
	s.Register(entikit.Decode, schema.TagBoolean, decodeBoolean)
	s.Register(entikit.Encode, schema.TagBoolean, decodeBoolean)
	s.Register(entikit.Decode, schema.TagDate, decodeDate)
	s.Register(entikit.Encode, schema.TagDate, encodeDate)
	s.Register(entikit.Decode, schema.TagEnum, enumGenerator)
	s.Register(entikit.Encode, schema.TagEnum, enumGenerator)

	// The literal prepend fully decides the outcome; the primary slot is the
	// fall-through required by the registry contract.
	s.Register(entikit.Decode, schema.TagLiteral, identityGenerator)
	s.Register(entikit.Encode, schema.TagLiteral, identityGenerator)
	s.Prepend(entikit.Decode, schema.TagLiteral, literalPrepend)
	s.Prepend(entikit.Encode, schema.TagLiteral, literalPrepend)

	s.RegisterForBinary(entikit.Decode, decodeBinary)
	s.RegisterForBinary(entikit.Encode, encodeBinary)

	s.Register(entikit.Decode, schema.TagArray, arrayGenerator)
	s.Register(entikit.Encode, schema.TagArray, arrayGenerator)
	s.Register(entikit.Decode, schema.TagMap, mapGenerator)
	s.Register(entikit.Encode, schema.TagMap, mapGenerator)
	s.Register(entikit.Decode, schema.TagReference, referenceGenerator)
	s.Register(entikit.Encode, schema.TagReference, referenceGenerator)

	return s
}

func identityGenerator(cc CompileCtx) (Step, error) {
	return func(ctx context.Context, v any, opt *entikit.ConvertOpt) (any, error) {
		return v, nil
	}, nil
}

func decodeString(cc CompileCtx) (Step, error) {
	path := cc.Path
	return func(ctx context.Context, v any, opt *entikit.ConvertOpt) (any, error) {
		if s, ok := v.(string); ok {
			return s, nil
		}
		if opt != nil && opt.Loosely {
			switch n := v.(type) {
			case bool:
				return strconv.FormatBool(n), nil
			case json.Number:
				return string(n), nil
			case float64:
				return strconv.FormatFloat(n, 'f', -1, 64), nil
			case int:
				return strconv.Itoa(n), nil
			case int64:
				return strconv.FormatInt(n, 10), nil
			}
		}
		return nil, typeError(path, "string", v)
	}, nil
}

func encodeString(cc CompileCtx) (Step, error) {
	return decodeString(cc)
}

func decodeNumber(cc CompileCtx) (Step, error) {
	path := cc.Path
	return func(ctx context.Context, v any, opt *entikit.ConvertOpt) (any, error) {
		if f, ok := asFloat64(v); ok {
			return f, nil
		}
		if opt != nil && opt.Loosely {
			if s, ok := v.(string); ok {
				if f, err := strconv.ParseFloat(s, 64); err == nil {
					return f, nil
				}
			}
		}
		return nil, typeError(path, "number", v)
	}, nil
}

func decodeInteger(cc CompileCtx) (Step, error) {
	path := cc.Path
	return func(ctx context.Context, v any, opt *entikit.ConvertOpt) (any, error) {
		if i, ok := asInt64(v); ok {
			return i, nil
		}
		if opt != nil && opt.Loosely {
			if s, ok := v.(string); ok {
				if i, err := strconv.ParseInt(s, 10, 64); err == nil {
					return i, nil
				}
			}
		}
		return nil, typeError(path, "integer", v)
	}, nil
}

func decodeBoolean(cc CompileCtx) (Step, error) {
	path := cc.Path
	return func(ctx context.Context, v any, opt *entikit.ConvertOpt) (any, error) {
		if b, ok := v.(bool); ok {
			return b, nil
		}
		if opt != nil && opt.Loosely {
			switch n := v.(type) {
			case string:
				if b, err := strconv.ParseBool(n); err == nil {
					return b, nil
				}
			default:
				if i, ok := asInt64(v); ok && (i == 0 || i == 1) {
					return i == 1, nil
				}
			}
		}
		return nil, typeError(path, "boolean", v)
	}, nil
}

func decodeDate(cc CompileCtx) (Step, error) {
	path := cc.Path
	return func(ctx context.Context, v any, opt *entikit.ConvertOpt) (any, error) {
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			return codec.ParseRFC3339(path, t)
		}
		return nil, typeError(path, "date", v)
	}, nil
}

func encodeDate(cc CompileCtx) (Step, error) {
	path := cc.Path
	return func(ctx context.Context, v any, opt *entikit.ConvertOpt) (any, error) {
		switch t := v.(type) {
		case time.Time:
			return codec.FormatRFC3339Canonical(t), nil
		case string:
			if codec.IsRFC3339(t) {
				return t, nil
			}
			return nil, entikit.FieldErrors{{Path: path, Code: entikit.CodeInvalidFormat, Message: "invalid RFC3339 time"}}
		}
		return nil, typeError(path, "date", v)
	}, nil
}

func decodeBinary(cc CompileCtx) (Step, error) {
	path := cc.Path
	return func(ctx context.Context, v any, opt *entikit.ConvertOpt) (any, error) {
		switch b := v.(type) {
		case []byte:
			return b, nil
		case string:
			return codec.DecodeBase64(path, b)
		}
		return nil, typeError(path, "binary", v)
	}, nil
}

func encodeBinary(cc CompileCtx) (Step, error) {
	path := cc.Path
	return func(ctx context.Context, v any, opt *entikit.ConvertOpt) (any, error) {
		switch b := v.(type) {
		case []byte:
			return codec.EncodeBase64(b), nil
		case string:
			if _, err := codec.DecodeBase64(path, b); err != nil {
				return nil, err
			}
			return b, nil
		}
		return nil, typeError(path, "binary", v)
	}, nil
}

// literalPrepend fully decides literal fields: whatever arrives, the output is
// the declared literal value.
func literalPrepend(cc CompileCtx) (PrependStep, error) {
	lit := cc.Field.Literal
	return func(ctx context.Context, v any, opt *entikit.ConvertOpt) (any, bool, error) {
		return lit, true, nil
	}, nil
}

func enumGenerator(cc CompileCtx) (Step, error) {
	f := cc.Field
	path := cc.Path
	return func(ctx context.Context, v any, opt *entikit.ConvertOpt) (any, error) {
		for _, want := range f.EnumValues {
			if looseValueEqual(v, want) {
				return want, nil
			}
		}
		if f.AllowLabels {
			if s, ok := v.(string); ok {
				for i, label := range f.EnumLabels {
					if s == label {
						return f.EnumValues[i], nil
					}
				}
			}
		}
		return nil, &entikit.InvalidEnumValue{Path: path, Value: v, Allowed: f.EnumValues}
	}, nil
}

func arrayGenerator(cc CompileCtx) (Step, error) {
	path := cc.Path
	elem, err := cc.ValueStep(cc.Field.Elem, path)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, v any, opt *entikit.ConvertOpt) (any, error) {
		xs, ok := v.([]any)
		if !ok {
			return nil, typeError(path, "array", v)
		}
		out := make([]any, 0, len(xs))
		for i, x := range xs {
			ev, err := elem.Exec(ctx, x, opt)
			if err != nil {
				return nil, rebaseError(stripBase(err, path), entikit.IndexPath(path, i))
			}
			if ev == Unset {
				continue
			}
			out = append(out, ev)
		}
		return out, nil
	}, nil
}

func mapGenerator(cc CompileCtx) (Step, error) {
	path := cc.Path
	elem, err := cc.ValueStep(cc.Field.Elem, path)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, v any, opt *entikit.ConvertOpt) (any, error) {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, typeError(path, "map", v)
		}
		// key-sorted order for deterministic error selection
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(m))
		for _, k := range keys {
			ev, err := elem.Exec(ctx, m[k], opt)
			if err != nil {
				return nil, rebaseError(stripBase(err, path), entikit.JoinPath(path, k))
			}
			if ev == Unset {
				continue
			}
			out[k] = ev
		}
		return out, nil
	}, nil
}

func referenceGenerator(cc CompileCtx) (Step, error) {
	target, err := cc.ResolveRef()
	if err != nil {
		return nil, err
	}
	p, err := cc.Nested(target)
	if err != nil {
		return nil, err
	}
	var pk *ValueStep
	if cc.Field.IsReference && target.PrimaryField != nil {
		pkStep, err := cc.ValueStep(target.PrimaryField, cc.Path)
		if err != nil {
			return nil, err
		}
		pk = &pkStep
	}
	path := cc.Path
	dir := cc.Direction
	return func(ctx context.Context, v any, opt *entikit.ConvertOpt) (any, error) {
		switch m := v.(type) {
		case map[string]any:
			out, err := p.Run(ctx, m, opt)
			if err != nil {
				return nil, rebaseError(err, path)
			}
			return out, nil
		case string:
			if pk != nil {
				if out, err := pk.Exec(ctx, m, opt); err == nil {
					return out, nil
				}
			}
			if dir == entikit.Decode {
				// Deliberate leniency: external input sometimes carries an
				// embedded JSON object as text. Unparsable text leaves the
				// field unset instead of failing the whole pipeline.
				parsed, perr := entikit.JSONBytes([]byte(m))
				if perr != nil {
					return Unset, nil
				}
				pm, ok := parsed.(map[string]any)
				if !ok {
					return Unset, nil
				}
				out, err := p.Run(ctx, pm, opt)
				if err != nil {
					return nil, rebaseError(err, path)
				}
				return out, nil
			}
			return nil, typeError(path, "object", v)
		default:
			if pk != nil {
				return pk.Exec(ctx, v, opt)
			}
			return nil, typeError(path, "object", v)
		}
	}, nil
}

// ---- neutral-value coercion helpers ----

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	}
	return 0, false
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if integralInRange(n) {
			return int64(n), true
		}
	case float32:
		f := float64(n)
		if integralInRange(f) {
			return int64(f), true
		}
	case json.Number:
		if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(string(n), 64); err == nil && integralInRange(f) {
			return int64(f), true
		}
	}
	return 0, false
}

// integralInRange reports whether f is a whole number inside the int64 range.
// The upper bound is exclusive: float64(math.MaxInt64) rounds up to 2^63.
func integralInRange(f float64) bool {
	return f == math.Trunc(f) && !math.IsInf(f, 0) && f >= math.MinInt64 && f < math.MaxInt64
}

// looseValueEqual compares with numeric normalization so json.Number("2"),
// int64(2) and float64(2) all match a declared 2.
func looseValueEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aok := asFloat64(a)
	bf, bok := asFloat64(b)
	if aok || bok {
		return aok && bok && af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// stripBase removes the field path an element step already carries so rebasing
// under an indexed path does not duplicate the base segment.
func stripBase(err error, base string) error {
	fe, ok := entikit.AsFieldErrors(err)
	if !ok {
		switch e := err.(type) {
		case *entikit.NoMatchingUnionVariant:
			return &entikit.NoMatchingUnionVariant{Path: trimBase(e.Path, base), Tried: e.Tried}
		case *entikit.InvalidEnumValue:
			return &entikit.InvalidEnumValue{Path: trimBase(e.Path, base), Value: e.Value, Allowed: e.Allowed}
		}
		return err
	}
	out := make(entikit.FieldErrors, len(fe))
	for i, it := range fe {
		it.Path = trimBase(it.Path, base)
		out[i] = it
	}
	return out
}

func trimBase(p, base string) string {
	if p == base {
		return ""
	}
	if base != "" && len(p) > len(base)+1 && p[:len(base)] == base && p[len(base)] == '.' {
		return p[len(base)+1:]
	}
	return p
}
