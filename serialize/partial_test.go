package serialize_test

import (
	"context"
	"testing"

	entikit "github.com/reoring/entikit"
	"github.com/reoring/entikit/serialize"
)

func TestConvertPartial_TouchesOnlyRequestedFields(t *testing.T) {
	ctx := context.Background()
	c := serialize.NewCompiler(nil)
	s := productSchema(t)

	out, err := c.ConvertPartial(ctx, s, "json", entikit.Decode, []string{"price"}, map[string]any{
		"price": float64(10),
		"title": "x",
	}, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	sub := out.(map[string]any)
	if len(sub) != 1 || sub["price"] != float64(10) {
		t.Fatalf("partial output must hold the subset only: %#v", sub)
	}

	// applied onto an existing entity it changes price only
	entity := map[string]any{"title": "Car", "price": float64(1), "rating": float64(3)}
	for k, v := range sub {
		entity[k] = v
	}
	if entity["price"] != float64(10) || entity["title"] != "Car" || entity["rating"] != float64(3) {
		t.Fatalf("partial application leaked: %#v", entity)
	}
}

func TestConvertPartial_SubsetKeyedSeparately(t *testing.T) {
	c := serialize.NewCompiler(nil)
	s := productSchema(t)
	ser, err := c.Serializer("json")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	full, err := c.Compile(s, ser, entikit.Decode, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	sub, err := c.Compile(s, ser, entikit.Decode, []string{"price"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if full == sub {
		t.Fatalf("differing subsets must never collide in the cache")
	}

	// ordering and duplicates canonicalize to one pipeline
	a, err := c.Compile(s, ser, entikit.Decode, []string{"title", "price"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	b, err := c.Compile(s, ser, entikit.Decode, []string{"price", "title", "price"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if a != b {
		t.Fatalf("canonicalized subsets must share one pipeline")
	}
}

func TestConvertPartial_UnknownFieldRejected(t *testing.T) {
	ctx := context.Background()
	c := serialize.NewCompiler(nil)
	s := productSchema(t)
	_, err := c.ConvertPartial(ctx, s, "json", entikit.Decode, []string{"ghost"}, map[string]any{}, nil)
	if err == nil {
		t.Fatalf("expected error for unknown subset field")
	}
}

func TestConvertPartial_RequiredAppliesWithinSubsetOnly(t *testing.T) {
	ctx := context.Background()
	c := serialize.NewCompiler(nil)
	s := productSchema(t)

	// title is required in full conversion but outside the subset here
	out, err := c.ConvertPartial(ctx, s, "json", entikit.Decode, []string{"price"}, map[string]any{
		"price": float64(2),
	}, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.(map[string]any)["price"] != float64(2) {
		t.Fatalf("unexpected output: %#v", out)
	}

	// a required field inside the subset still surfaces
	_, err = c.ConvertPartial(ctx, s, "json", entikit.Decode, []string{"title"}, map[string]any{}, nil)
	fe, ok := entikit.AsFieldErrors(err)
	if !ok || len(fe) != 1 || fe[0].Code != entikit.CodeRequired {
		t.Fatalf("expected required error, got %v", err)
	}
}
