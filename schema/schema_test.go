package schema_test

import (
	"errors"
	"testing"

	entikit "github.com/reoring/entikit"
	"github.com/reoring/entikit/schema"
)

func TestNew_ProductShape(t *testing.T) {
	s, err := schema.New("product",
		schema.F("id", schema.TagInteger, schema.Primary(), schema.AutoIncrement(), schema.Optional()),
		schema.F("category", schema.TagString),
		schema.F("title", schema.TagString),
		schema.F("price", schema.TagNumber),
		schema.F("rating", schema.TagNumber, schema.Default(float64(0))),
	)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.PrimaryField == nil || s.PrimaryField.Name != "id" {
		t.Fatalf("primary field not resolved: %+v", s.PrimaryField)
	}
	if s.AutoIncrementField == nil || s.AutoIncrementField.Name != "id" {
		t.Fatalf("auto-increment field not resolved: %+v", s.AutoIncrementField)
	}
	if got := s.FieldNames(); len(got) != 5 || got[0] != "id" || got[4] != "rating" {
		t.Fatalf("unexpected field order: %v", got)
	}
	req := s.RequiredFields()
	if len(req) != 3 {
		t.Fatalf("expected category/title/price required, got %d", len(req))
	}
}

func TestNew_TwoPrimariesRejected(t *testing.T) {
	_, err := schema.New("broken",
		schema.F("a", schema.TagInteger, schema.Primary()),
		schema.F("b", schema.TagInteger, schema.Primary()),
	)
	if err == nil {
		t.Fatalf("expected error")
	}
	var de *entikit.SchemaDefinitionError
	if !errors.As(err, &de) {
		t.Fatalf("expected SchemaDefinitionError, got %T", err)
	}
	if de.Schema != "broken" {
		t.Fatalf("unexpected schema name: %q", de.Schema)
	}
}

func TestNew_DuplicateFieldRejected(t *testing.T) {
	_, err := schema.New("dup",
		schema.F("x", schema.TagString),
		schema.F("x", schema.TagString),
	)
	var de *entikit.SchemaDefinitionError
	if !errors.As(err, &de) {
		t.Fatalf("expected SchemaDefinitionError, got %v", err)
	}
}

func TestNew_CompositeConsistency(t *testing.T) {
	if _, err := schema.New("s", schema.F("xs", schema.TagArray)); err == nil {
		t.Fatalf("array without elem must fail")
	}
	if _, err := schema.New("s", schema.F("u", schema.TagUnion)); err == nil {
		t.Fatalf("union without candidates must fail")
	}
	if _, err := schema.New("s", schema.F("e", schema.TagEnum)); err == nil {
		t.Fatalf("enum without values must fail")
	}
	if _, err := schema.New("s", schema.F("e", schema.TagEnum, schema.Enum([]any{1, 2}, []string{"one"}))); err == nil {
		t.Fatalf("misaligned enum labels must fail")
	}
	if _, err := schema.New("s", schema.F("r", schema.TagReference)); err == nil {
		t.Fatalf("reference without target must fail")
	}
}

func TestRegistry_MemoizesByName(t *testing.T) {
	reg := schema.NewRegistry()
	calls := 0
	reg.Define("node", func() (*schema.Schema, error) {
		calls++
		return schema.New("node",
			schema.F("value", schema.TagString),
			schema.F("next", schema.TagReference, schema.RefName("node"), schema.Optional()),
		)
	})
	a, err := reg.Schema("node")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	b, err := reg.Schema("node")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if a != b {
		t.Fatalf("expected identical schema instances")
	}
	if calls != 1 {
		t.Fatalf("expected one build, got %d", calls)
	}

	// The self reference resolves through the registry once built.
	next := a.Field("next")
	got, err := next.Resolve(reg)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got != a {
		t.Fatalf("self reference should resolve to the same schema")
	}
}

func TestRegistry_UnknownName(t *testing.T) {
	reg := schema.NewRegistry()
	if _, err := reg.Schema("ghost"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRefLazy_SelfReference(t *testing.T) {
	var node *schema.Schema
	node = schema.MustNew("node",
		schema.F("value", schema.TagString),
		schema.F("next", schema.TagReference, schema.RefLazy(func() *schema.Schema { return node }), schema.Optional()),
	)
	got, err := node.Field("next").Resolve(nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got != node {
		t.Fatalf("lazy self reference should resolve to the owning schema")
	}
}
