package entikit

// Package entikit provides:
//
// - A runtime entity model: declarative field descriptors assembled into immutable schemas (schema/)
// - A schema-driven JIT compiler that builds, caches, and executes conversion pipelines
//   between neutral data (primitives, []any, map[string]any) and entity values (serialize/)
// - A structural validation engine producing ordered FieldError lists over the same schemas
// - A stable error model (dotted path, symbolic code, message) shared by every layer
//
// Design policy:
// - Keep only shared types and the error model in the root package; put the schema model
//   under schema/, the compiler and serializers under serialize/, leaf codecs under codec/,
//   validator rules under rules/, and the CLI under cmd/entikit.
// - Registries and pipeline caches are explicit context objects (serialize.Compiler);
//   a default instance exists for convenience but is never required.
// - Prefer black-box testing against public APIs.
//
// Typical usage:
//
//	product := schema.MustNew("product",
//	    schema.F("id", schema.TagInteger, schema.Primary(), schema.AutoIncrement(), schema.Optional()),
//	    schema.F("title", schema.TagString),
//	    schema.F("price", schema.TagNumber),
//	)
//	c := serialize.Default()
//	entity, err := c.Convert(ctx, product, "json", entikit.Decode, data, nil)
