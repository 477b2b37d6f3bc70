// Package serialize contains the schema-driven JIT compiler: per-type-tag
// generator registries (Serializer), the pipeline cache and compilation-stack
// bookkeeping (Compiler), union dispatch, the structural validation engine,
// and the partial/patch builder.
//
// A Compiler is the explicit context object owning every process-wide-looking
// table: named serializers, compiled pipelines, compiled validators. Compiled
// pipelines are immutable once published and safe for unlimited concurrent
// invocation; registry lookups happen at compile time, never at run time.
package serialize
