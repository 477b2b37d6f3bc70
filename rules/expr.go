package rules

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	entikit "github.com/reoring/entikit"
	"github.com/reoring/entikit/i18n"
	"github.com/reoring/entikit/schema"
)

// Expr compiles an expression rule over the field value. The expression sees
// the value as `value` and must evaluate to a boolean; false fails the rule.
// Expressions are compiled once, at rule construction.
//
//	schema.F("price", schema.TagNumber, schema.Rules(rules.MustExpr("value >= 0")))
func Expr(src string) (schema.Rule, error) {
	prog, err := expr.Compile(src, expr.Env(exprEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("rules: compile %q: %w", src, err)
	}
	return exprRule(src, prog), nil
}

// MustExpr is Expr panicking on a malformed expression; for package-level
// declarations alongside schemas.
func MustExpr(src string) schema.Rule {
	r, err := Expr(src)
	if err != nil {
		panic(err)
	}
	return r
}

type exprEnv struct {
	Value any `expr:"value"`
}

func exprRule(src string, prog *vm.Program) schema.Rule {
	return func(ctx context.Context, path string, v any) *entikit.FieldError {
		out, err := expr.Run(prog, exprEnv{Value: normalizeExprValue(v)})
		if err != nil {
			return &entikit.FieldError{
				Path: path, Code: entikit.CodeParseError,
				Message: "expression failed: " + err.Error(),
				Cause:   err,
				Rule:    "expr",
			}
		}
		if ok, _ := out.(bool); !ok {
			return &entikit.FieldError{
				Path: path, Code: entikit.CodeCustomRule,
				Message: i18n.T(entikit.CodeCustomRule, nil),
				Params:  map[string]any{"expr": src, "got": v},
				Rule:    "expr",
			}
		}
		return nil
	}
}

// normalizeExprValue converts json.Number into float64 so numeric comparisons
// inside expressions behave as written.
func normalizeExprValue(v any) any {
	if f, ok := asFloat(v); ok {
		return f
	}
	return v
}
