package serialize_test

import (
	"context"
	"testing"

	"github.com/reoring/entikit/serialize"
)

func TestApplyMergePatch_UpdateAndRemove(t *testing.T) {
	ctx := context.Background()
	c := serialize.NewCompiler(nil)
	s := productSchema(t)

	entity := map[string]any{
		"category": "toys",
		"title":    "Car",
		"price":    float64(499),
		"rating":   float64(3),
	}
	out, err := c.ApplyMergePatch(ctx, s, "json", entity, []byte(`{"price": 100, "title": null}`), nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out["price"] != float64(100) {
		t.Fatalf("patched price wrong: %#v", out)
	}
	if _, present := out["title"]; present {
		t.Fatalf("null member must remove the field: %#v", out)
	}
	if out["rating"] != float64(3) || out["category"] != "toys" {
		t.Fatalf("untouched fields must survive: %#v", out)
	}
	if entity["price"] != float64(499) {
		t.Fatalf("the input entity must not be mutated: %#v", entity)
	}
}

func TestApplyMergePatch_UnknownKeysIgnored(t *testing.T) {
	ctx := context.Background()
	c := serialize.NewCompiler(nil)
	s := productSchema(t)

	entity := map[string]any{
		"category": "toys",
		"title":    "Car",
		"price":    float64(1),
	}
	out, err := c.ApplyMergePatch(ctx, s, "json", entity, []byte(`{"ghost": true, "price": 2}`), nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out["price"] != float64(2) {
		t.Fatalf("known key must apply: %#v", out)
	}
	if _, present := out["ghost"]; present {
		t.Fatalf("unknown patch keys must be ignored: %#v", out)
	}
}

func TestApplyMergePatch_RejectsNonObjectPatch(t *testing.T) {
	ctx := context.Background()
	c := serialize.NewCompiler(nil)
	s := productSchema(t)

	entity := map[string]any{
		"category": "toys",
		"title":    "Car",
		"price":    float64(1),
	}
	if _, err := c.ApplyMergePatch(ctx, s, "json", entity, []byte(`[1, 2]`), nil); err == nil {
		t.Fatalf("array patch must be rejected")
	}
	if _, err := c.ApplyMergePatch(ctx, s, "json", entity, []byte(`{"price":`), nil); err == nil {
		t.Fatalf("malformed patch must be rejected")
	}
}

func TestApplyMergePatch_TypedPatchValuesDecode(t *testing.T) {
	ctx := context.Background()
	c := serialize.NewCompiler(nil)
	s := productSchema(t)

	entity := map[string]any{
		"category": "toys",
		"title":    "Car",
		"price":    float64(1),
	}
	// merge patch numbers arrive as JSON numbers and still pass through the
	// field's decode step
	out, err := c.ApplyMergePatch(ctx, s, "json", entity, []byte(`{"price": 12.5}`), nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out["price"] != float64(12.5) {
		t.Fatalf("patched value must be decoded: %#v", out)
	}
}
