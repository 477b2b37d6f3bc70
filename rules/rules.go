// Package rules provides declarative per-field validator rules attached to
// schema fields. Rules run after the required-ness and type-shape checks; the
// first failing rule ends that field's chain without affecting other fields.
package rules

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/goccy/go-json"

	entikit "github.com/reoring/entikit"
	"github.com/reoring/entikit/i18n"
	"github.com/reoring/entikit/schema"
)

// Min requires numeric values >= n (inclusive). Non-numeric values are ignored
// by this rule; type errors are the shape check's concern.
func Min(n float64) schema.Rule {
	return func(ctx context.Context, path string, v any) *entikit.FieldError {
		f, ok := asFloat(v)
		if !ok {
			return nil
		}
		if f < n {
			return &entikit.FieldError{
				Path: path, Code: entikit.CodeTooSmall,
				Message: i18n.T(entikit.CodeTooSmall, nil),
				Params:  map[string]any{"min": n, "got": f},
				Rule:    "min",
			}
		}
		return nil
	}
}

// Max requires numeric values <= n (inclusive).
func Max(n float64) schema.Rule {
	return func(ctx context.Context, path string, v any) *entikit.FieldError {
		f, ok := asFloat(v)
		if !ok {
			return nil
		}
		if f > n {
			return &entikit.FieldError{
				Path: path, Code: entikit.CodeTooBig,
				Message: i18n.T(entikit.CodeTooBig, nil),
				Params:  map[string]any{"max": n, "got": f},
				Rule:    "max",
			}
		}
		return nil
	}
}

// MinLength requires strings of at least n runes.
func MinLength(n int) schema.Rule {
	return func(ctx context.Context, path string, v any) *entikit.FieldError {
		s, ok := v.(string)
		if !ok {
			return nil
		}
		if utf8.RuneCountInString(s) < n {
			return &entikit.FieldError{
				Path: path, Code: entikit.CodeTooShort,
				Message: i18n.T(entikit.CodeTooShort, nil),
				Params:  map[string]any{"min": n, "got": utf8.RuneCountInString(s)},
				Rule:    "minLength",
			}
		}
		return nil
	}
}

// MaxLength requires strings of at most n runes.
func MaxLength(n int) schema.Rule {
	return func(ctx context.Context, path string, v any) *entikit.FieldError {
		s, ok := v.(string)
		if !ok {
			return nil
		}
		if utf8.RuneCountInString(s) > n {
			return &entikit.FieldError{
				Path: path, Code: entikit.CodeTooLong,
				Message: i18n.T(entikit.CodeTooLong, nil),
				Params:  map[string]any{"max": n, "got": utf8.RuneCountInString(s)},
				Rule:    "maxLength",
			}
		}
		return nil
	}
}

// Pattern requires strings matching the regular expression. A malformed
// expression yields a rule that always reports the compile failure.
func Pattern(expr string) schema.Rule {
	re, err := regexp.Compile(expr)
	return func(ctx context.Context, path string, v any) *entikit.FieldError {
		if err != nil {
			return &entikit.FieldError{
				Path: path, Code: entikit.CodeParseError,
				Message: "invalid pattern: " + err.Error(),
				Cause:   err,
				Rule:    "pattern",
			}
		}
		s, ok := v.(string)
		if !ok {
			return nil
		}
		if !re.MatchString(s) {
			return &entikit.FieldError{
				Path: path, Code: entikit.CodePattern,
				Message: i18n.T(entikit.CodePattern, nil),
				Params:  map[string]any{"pattern": expr},
				Rule:    "pattern",
			}
		}
		return nil
	}
}

// OneOf requires the value to equal one of the given values (loose numeric
// equality, so 2 matches 2.0 and json.Number("2")).
func OneOf(values ...any) schema.Rule {
	return func(ctx context.Context, path string, v any) *entikit.FieldError {
		for _, want := range values {
			if looseEqual(v, want) {
				return nil
			}
		}
		return &entikit.FieldError{
			Path: path, Code: entikit.CodeInvalidEnum,
			Message: i18n.T(entikit.CodeInvalidEnum, nil),
			Params:  map[string]any{"allowed": values, "got": v},
			Rule:    "oneOf",
		}
	}
}

// Custom wraps an arbitrary predicate as a named rule.
func Custom(name string, pred func(v any) bool, message string) schema.Rule {
	return func(ctx context.Context, path string, v any) *entikit.FieldError {
		if pred(v) {
			return nil
		}
		msg := message
		if msg == "" {
			msg = i18n.T(entikit.CodeCustomRule, nil)
		}
		return &entikit.FieldError{Path: path, Code: entikit.CodeCustomRule, Message: msg, Rule: name}
	}
}

// ---- helpers ----

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8, int16, int32, int64:
		return float64(reflect.ValueOf(n).Int()), true
	case uint, uint8, uint16, uint32, uint64:
		return float64(reflect.ValueOf(n).Uint()), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	}
	return 0, false
}

func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
