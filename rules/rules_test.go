package rules_test

import (
	"context"
	"testing"

	"github.com/goccy/go-json"

	entikit "github.com/reoring/entikit"
	"github.com/reoring/entikit/rules"
)

func TestMinMax(t *testing.T) {
	ctx := context.Background()
	if fe := rules.Min(10)(ctx, "n", float64(5)); fe == nil || fe.Code != entikit.CodeTooSmall {
		t.Fatalf("expected too_small, got %+v", fe)
	}
	if fe := rules.Min(10)(ctx, "n", float64(10)); fe != nil {
		t.Fatalf("bound is inclusive: %+v", fe)
	}
	if fe := rules.Max(10)(ctx, "n", json.Number("11")); fe == nil || fe.Code != entikit.CodeTooBig {
		t.Fatalf("json.Number must be compared numerically: %+v", fe)
	}
	if fe := rules.Min(10)(ctx, "n", "not a number"); fe != nil {
		t.Fatalf("non-numeric values are the shape check's concern: %+v", fe)
	}
}

func TestLengthRulesCountRunes(t *testing.T) {
	ctx := context.Background()
	// four runes, twelve bytes
	s := "日本語字"
	if fe := rules.MinLength(5)(ctx, "s", s); fe == nil || fe.Code != entikit.CodeTooShort {
		t.Fatalf("expected too_short, got %+v", fe)
	}
	if fe := rules.MaxLength(4)(ctx, "s", s); fe != nil {
		t.Fatalf("rune count is 4, not byte count: %+v", fe)
	}
}

func TestPattern(t *testing.T) {
	ctx := context.Background()
	r := rules.Pattern("^[a-z]+$")
	if fe := r(ctx, "s", "hello"); fe != nil {
		t.Fatalf("unexpected failure: %+v", fe)
	}
	if fe := r(ctx, "s", "Hello1"); fe == nil || fe.Code != entikit.CodePattern {
		t.Fatalf("expected pattern failure, got %+v", fe)
	}

	bad := rules.Pattern("([")
	if fe := bad(ctx, "s", "x"); fe == nil || fe.Code != entikit.CodeParseError {
		t.Fatalf("malformed pattern must surface at evaluation: %+v", fe)
	}
}

func TestOneOf(t *testing.T) {
	ctx := context.Background()
	r := rules.OneOf("a", float64(2))
	if fe := r(ctx, "v", "a"); fe != nil {
		t.Fatalf("unexpected failure: %+v", fe)
	}
	if fe := r(ctx, "v", json.Number("2")); fe != nil {
		t.Fatalf("loose numeric equality must match: %+v", fe)
	}
	if fe := r(ctx, "v", "b"); fe == nil || fe.Code != entikit.CodeInvalidEnum {
		t.Fatalf("expected invalid_enum, got %+v", fe)
	}
}

func TestCustom(t *testing.T) {
	ctx := context.Background()
	r := rules.Custom("even", func(v any) bool {
		f, ok := v.(float64)
		return ok && int64(f)%2 == 0
	}, "must be even")
	if fe := r(ctx, "n", float64(4)); fe != nil {
		t.Fatalf("unexpected failure: %+v", fe)
	}
	fe := r(ctx, "n", float64(3))
	if fe == nil || fe.Code != entikit.CodeCustomRule || fe.Message != "must be even" || fe.Rule != "even" {
		t.Fatalf("expected named custom failure, got %+v", fe)
	}
}
