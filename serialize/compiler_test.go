package serialize_test

import (
	"context"
	"testing"
	"time"

	entikit "github.com/reoring/entikit"
	"github.com/reoring/entikit/schema"
	"github.com/reoring/entikit/serialize"
)

func productSchema(t *testing.T) *schema.Schema {
	t.Helper()
	return schema.MustNew("product",
		schema.F("id", schema.TagInteger, schema.Primary(), schema.AutoIncrement(), schema.Optional()),
		schema.F("category", schema.TagString),
		schema.F("title", schema.TagString),
		schema.F("price", schema.TagNumber),
		schema.F("rating", schema.TagNumber, schema.Default(float64(0))),
	)
}

func TestConvert_ProductScenario(t *testing.T) {
	ctx := context.Background()
	c := serialize.NewCompiler(nil)
	s := productSchema(t)

	out, err := c.Convert(ctx, s, "json", entikit.Decode, map[string]any{
		"category": "toys",
		"title":    "Car",
		"price":    float64(499),
	}, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	entity := out.(map[string]any)
	if entity["rating"] != float64(0) {
		t.Fatalf("default not applied: %#v", entity["rating"])
	}
	if _, present := entity["id"]; present {
		t.Fatalf("auto-increment id must stay unset pending assignment: %#v", entity)
	}
	if entity["price"] != float64(499) || entity["title"] != "Car" {
		t.Fatalf("unexpected entity: %#v", entity)
	}
}

func TestConvert_MissingRequiredCollected(t *testing.T) {
	ctx := context.Background()
	c := serialize.NewCompiler(nil)
	s := productSchema(t)

	_, err := c.Convert(ctx, s, "json", entikit.Decode, map[string]any{"price": float64(1)}, nil)
	fe, ok := entikit.AsFieldErrors(err)
	if !ok {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if len(fe) != 2 {
		t.Fatalf("expected category and title missing, got %v", fe)
	}
	// declaration order
	if fe[0].Path != "category" || fe[1].Path != "title" {
		t.Fatalf("unexpected order: %v", fe)
	}
	for _, it := range fe {
		if it.Code != entikit.CodeRequired {
			t.Fatalf("unexpected code: %+v", it)
		}
	}
}

func TestCompile_DeterministicAndCached(t *testing.T) {
	c := serialize.NewCompiler(nil)
	s := productSchema(t)
	ser, err := c.Serializer("json")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	p1, err := c.Compile(s, ser, entikit.Decode, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	p2, err := c.Compile(s, ser, entikit.Decode, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if p1 != p2 {
		t.Fatalf("expected one physical pipeline per key")
	}

	c.Reset()
	p3, err := c.Compile(s, ser, entikit.Decode, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if p3 == p1 {
		t.Fatalf("reset should drop cached pipelines")
	}
}

func TestRoundTrip_SupportedTags(t *testing.T) {
	ctx := context.Background()
	c := serialize.NewCompiler(nil)
	s := schema.MustNew("sample",
		schema.F("name", schema.TagString),
		schema.F("count", schema.TagInteger),
		schema.F("ratio", schema.TagNumber),
		schema.F("active", schema.TagBoolean),
		schema.F("created", schema.TagDate),
		schema.F("blob", schema.TagBinary),
		schema.F("status", schema.TagEnum, schema.Enum([]any{"new", "done"}, nil)),
		schema.F("tags", schema.TagArray, schema.Elem(schema.F("", schema.TagString))),
		schema.F("scores", schema.TagMap, schema.Elem(schema.F("", schema.TagNumber))),
	)

	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	entity := map[string]any{
		"name":    "widget",
		"count":   int64(42),
		"ratio":   1.5,
		"active":  true,
		"created": created,
		"blob":    []byte{1, 2, 3},
		"status":  "done",
		"tags":    []any{"a", "b"},
		"scores":  map[string]any{"x": 1.0, "y": 2.0},
	}

	neutral, err := c.Convert(ctx, s, "json", entikit.Encode, entity, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	nm := neutral.(map[string]any)
	if _, ok := nm["created"].(string); !ok {
		t.Fatalf("date should encode to text, got %#v", nm["created"])
	}
	if _, ok := nm["blob"].(string); !ok {
		t.Fatalf("binary should encode to text, got %#v", nm["blob"])
	}

	back, err := c.Convert(ctx, s, "json", entikit.Decode, neutral, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	bm := back.(map[string]any)
	if bm["name"] != "widget" || bm["count"] != int64(42) || bm["ratio"] != 1.5 || bm["active"] != true {
		t.Fatalf("primitive round trip mismatch: %#v", bm)
	}
	if got := bm["created"].(time.Time); !got.Equal(created) {
		t.Fatalf("date round trip mismatch: %v", got)
	}
	if got := bm["blob"].([]byte); len(got) != 3 || got[0] != 1 {
		t.Fatalf("binary round trip mismatch: %v", got)
	}
	if got := bm["tags"].([]any); len(got) != 2 || got[0] != "a" {
		t.Fatalf("array round trip mismatch: %v", got)
	}
	if got := bm["scores"].(map[string]any); got["x"] != 1.0 || got["y"] != 2.0 {
		t.Fatalf("map round trip mismatch: %v", got)
	}
}

func TestCycle_SelfReference(t *testing.T) {
	ctx := context.Background()
	reg := schema.NewRegistry()
	reg.Define("node", func() (*schema.Schema, error) {
		return schema.New("node",
			schema.F("value", schema.TagString),
			schema.F("next", schema.TagReference, schema.RefName("node"), schema.Optional()),
		)
	})
	c := serialize.NewCompiler(reg)
	s, err := reg.Schema("node")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	out, err := c.Convert(ctx, s, "json", entikit.Decode, map[string]any{
		"value": "a",
		"next": map[string]any{
			"value": "b",
			"next":  map[string]any{"value": "c"},
		},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	level1 := out.(map[string]any)
	level2 := level1["next"].(map[string]any)
	level3 := level2["next"].(map[string]any)
	if level3["value"] != "c" {
		t.Fatalf("nested values wrong: %#v", out)
	}
	if _, present := level3["next"]; present {
		t.Fatalf("optional tail must stay unset")
	}
}

func TestCycle_MutualReference(t *testing.T) {
	ctx := context.Background()
	reg := schema.NewRegistry()
	reg.Define("author", func() (*schema.Schema, error) {
		return schema.New("author",
			schema.F("name", schema.TagString),
			schema.F("latest", schema.TagReference, schema.RefName("post"), schema.Optional()),
		)
	})
	reg.Define("post", func() (*schema.Schema, error) {
		return schema.New("post",
			schema.F("title", schema.TagString),
			schema.F("author", schema.TagReference, schema.RefName("author"), schema.Optional()),
		)
	})
	c := serialize.NewCompiler(reg)
	s, err := reg.Schema("author")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	out, err := c.Convert(ctx, s, "json", entikit.Decode, map[string]any{
		"name": "ann",
		"latest": map[string]any{
			"title":  "hello",
			"author": map[string]any{"name": "ann"},
		},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	latest := out.(map[string]any)["latest"].(map[string]any)
	if latest["title"] != "hello" {
		t.Fatalf("unexpected nested value: %#v", out)
	}
	if latest["author"].(map[string]any)["name"] != "ann" {
		t.Fatalf("unexpected back reference: %#v", out)
	}
}

func TestConvert_NullableAndNull(t *testing.T) {
	ctx := context.Background()
	c := serialize.NewCompiler(nil)
	s := schema.MustNew("n",
		schema.F("note", schema.TagString, schema.Nullable()),
		schema.F("strict", schema.TagString, schema.Optional()),
	)

	out, err := c.Convert(ctx, s, "json", entikit.Decode, map[string]any{"note": nil}, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	m := out.(map[string]any)
	if v, present := m["note"]; !present || v != nil {
		t.Fatalf("nullable null must pass through: %#v", m)
	}

	_, err = c.Convert(ctx, s, "json", entikit.Decode, map[string]any{"note": nil, "strict": nil}, nil)
	fe, ok := entikit.AsFieldErrors(err)
	if !ok || len(fe) != 1 || fe[0].Path != "strict" || fe[0].Code != entikit.CodeInvalidType {
		t.Fatalf("null on non-nullable must be invalid_type: %v", err)
	}
}

func TestConvert_NestedErrorPathsRebased(t *testing.T) {
	ctx := context.Background()
	reg := schema.NewRegistry()
	reg.Define("item", func() (*schema.Schema, error) {
		return schema.New("item", schema.F("qty", schema.TagInteger))
	})
	reg.Define("order", func() (*schema.Schema, error) {
		return schema.New("order",
			schema.F("first", schema.TagReference, schema.RefName("item")),
		)
	})
	c := serialize.NewCompiler(reg)
	s, _ := reg.Schema("order")

	_, err := c.Convert(ctx, s, "json", entikit.Decode, map[string]any{
		"first": map[string]any{"qty": "many"},
	}, nil)
	fe, ok := entikit.AsFieldErrors(err)
	if !ok || len(fe) != 1 {
		t.Fatalf("expected one nested error, got %v", err)
	}
	if fe[0].Path != "first.qty" {
		t.Fatalf("nested path not rebased: %+v", fe[0])
	}
}

func TestConvert_NestedAsStringLeniency(t *testing.T) {
	ctx := context.Background()
	reg := schema.NewRegistry()
	reg.Define("meta", func() (*schema.Schema, error) {
		return schema.New("meta", schema.F("k", schema.TagString))
	})
	reg.Define("doc", func() (*schema.Schema, error) {
		return schema.New("doc",
			schema.F("meta", schema.TagReference, schema.RefName("meta"), schema.Optional()),
		)
	})
	c := serialize.NewCompiler(reg)
	s, _ := reg.Schema("doc")

	// embedded object as text decodes
	out, err := c.Convert(ctx, s, "json", entikit.Decode, map[string]any{"meta": `{"k":"v"}`}, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.(map[string]any)["meta"].(map[string]any)["k"] != "v" {
		t.Fatalf("embedded object not parsed: %#v", out)
	}

	// unparsable text leaves the field unset rather than failing
	out, err = c.Convert(ctx, s, "json", entikit.Decode, map[string]any{"meta": "not json"}, nil)
	if err != nil {
		t.Fatalf("leniency must not fail the pipeline: %v", err)
	}
	if _, present := out.(map[string]any)["meta"]; present {
		t.Fatalf("unparsable text must leave the field unset: %#v", out)
	}
}

func TestConvert_GroupsFilter(t *testing.T) {
	ctx := context.Background()
	c := serialize.NewCompiler(nil)
	s := schema.MustNew("user",
		schema.F("name", schema.TagString, schema.Groups("public")),
		schema.F("email", schema.TagString, schema.Groups("private")),
	)
	out, err := c.Convert(ctx, s, "json", entikit.Encode, map[string]any{
		"name":  "ann",
		"email": "a@example.com",
	}, &entikit.ConvertOpt{Groups: []string{"public"}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	m := out.(map[string]any)
	if _, present := m["email"]; present {
		t.Fatalf("group filter leaked a private field: %#v", m)
	}
	if m["name"] != "ann" {
		t.Fatalf("expected public field: %#v", m)
	}
}

func TestConvert_LooseCoercions(t *testing.T) {
	ctx := context.Background()
	c := serialize.NewCompiler(nil)
	s := schema.MustNew("loose",
		schema.F("price", schema.TagNumber),
		schema.F("count", schema.TagInteger),
		schema.F("ok", schema.TagBoolean),
	)
	in := map[string]any{"price": "4.5", "count": "7", "ok": float64(1)}

	if _, err := c.Convert(ctx, s, "json", entikit.Decode, in, nil); err == nil {
		t.Fatalf("strict mode must reject mismatched shapes")
	}

	out, err := c.Convert(ctx, s, "json", entikit.Decode, in, &entikit.ConvertOpt{Loosely: true})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	m := out.(map[string]any)
	if m["price"] != 4.5 || m["count"] != int64(7) || m["ok"] != true {
		t.Fatalf("loose coercions wrong: %#v", m)
	}
}

func TestConvert_UnknownSerializer(t *testing.T) {
	ctx := context.Background()
	c := serialize.NewCompiler(nil)
	s := productSchema(t)
	_, err := c.Convert(ctx, s, "bson", entikit.Decode, map[string]any{}, nil)
	fe, ok := entikit.AsFieldErrors(err)
	if !ok || fe[0].Code != entikit.CodeUnknownSerializer {
		t.Fatalf("expected unknown_serializer, got %v", err)
	}
}

func TestRegisterTypeConverter_Override(t *testing.T) {
	ctx := context.Background()
	c := serialize.NewCompiler(nil)
	s := schema.MustNew("o", schema.F("v", schema.TagString))

	// last registration wins for the primary slot
	err := c.RegisterTypeConverter("json", entikit.Decode, schema.TagString, func(cc serialize.CompileCtx) (serialize.Step, error) {
		return func(ctx context.Context, v any, opt *entikit.ConvertOpt) (any, error) {
			return "override", nil
		}, nil
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	out, err := c.Convert(ctx, s, "json", entikit.Decode, map[string]any{"v": "x"}, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.(map[string]any)["v"] != "override" {
		t.Fatalf("override not applied: %#v", out)
	}
}

func TestPrependTypeConverter_ShortCircuitAndFallThrough(t *testing.T) {
	ctx := context.Background()
	c := serialize.NewCompiler(nil)
	s := schema.MustNew("p", schema.F("v", schema.TagString))

	err := c.PrependTypeConverter("json", entikit.Decode, schema.TagString, func(cc serialize.CompileCtx) (serialize.PrependStep, error) {
		return func(ctx context.Context, v any, opt *entikit.ConvertOpt) (any, bool, error) {
			if v == "magic" {
				return "decided", true, nil
			}
			return nil, false, nil
		}, nil
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	out, err := c.Convert(ctx, s, "json", entikit.Decode, map[string]any{"v": "magic"}, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.(map[string]any)["v"] != "decided" {
		t.Fatalf("prepend did not decide: %#v", out)
	}

	out, err = c.Convert(ctx, s, "json", entikit.Decode, map[string]any{"v": "plain"}, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.(map[string]any)["v"] != "plain" {
		t.Fatalf("prepend must fall through: %#v", out)
	}
}

func TestConvert_ReferenceByPrimaryKey(t *testing.T) {
	ctx := context.Background()
	reg := schema.NewRegistry()
	reg.Define("user", func() (*schema.Schema, error) {
		return schema.New("user",
			schema.F("id", schema.TagInteger, schema.Primary()),
			schema.F("name", schema.TagString, schema.Optional()),
		)
	})
	reg.Define("ticket", func() (*schema.Schema, error) {
		return schema.New("ticket",
			schema.F("owner", schema.TagReference, schema.RefName("user"), schema.Reference()),
		)
	})
	c := serialize.NewCompiler(reg)
	s, _ := reg.Schema("ticket")

	// scalar primary key accepted
	out, err := c.Convert(ctx, s, "json", entikit.Decode, map[string]any{"owner": float64(7)}, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.(map[string]any)["owner"] != int64(7) {
		t.Fatalf("pk not converted with the target primary tag: %#v", out)
	}

	// full embedded object accepted too
	out, err = c.Convert(ctx, s, "json", entikit.Decode, map[string]any{
		"owner": map[string]any{"id": float64(7), "name": "ann"},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.(map[string]any)["owner"].(map[string]any)["name"] != "ann" {
		t.Fatalf("embedded reference not decoded: %#v", out)
	}
}
