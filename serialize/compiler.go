package serialize

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	entikit "github.com/reoring/entikit"
	"github.com/reoring/entikit/schema"
)

// pipeKey identifies one compiled pipeline: schema identity, serializer
// identity, direction, and the canonical field subset.
type pipeKey struct {
	schema *schema.Schema
	ser    *Serializer
	dir    entikit.Direction
	subset string
}

// Compiler owns the pipeline cache, the named-serializer table, and the
// compilation bookkeeping that makes reentrant (cyclic) builds safe. It is the
// explicit context object bootstrapping code passes around; Default() offers a
// process-wide convenience instance.
type Compiler struct {
	mu       sync.Mutex
	registry *schema.Registry

	serializers map[string]*Serializer
	cache       map[pipeKey]*Pipeline
	// building tracks in-progress compilations. A reentrant request for a key
	// found here receives the already-allocated *Pipeline whose steps are
	// filled in before the outer compile returns: the forward reference that
	// lets schema A's compilation transitively trigger schema A's own
	// compilation without recursing.
	building map[pipeKey]*Pipeline

	validators map[*schema.Schema]*Validator
	vchecks    *ValidatorRegistry
}

// NewCompiler returns a compiler with the built-in JSON-neutral serializer
// installed under "json" and the default validator registry. reg may be nil
// when no by-name schema references are used.
func NewCompiler(reg *schema.Registry) *Compiler {
	c := &Compiler{
		registry:    reg,
		serializers: make(map[string]*Serializer),
		cache:       make(map[pipeKey]*Pipeline),
		building:    make(map[pipeKey]*Pipeline),
		validators:  make(map[*schema.Schema]*Validator),
		vchecks:     NewValidatorRegistry(),
	}
	c.AddSerializer(NewJSONSerializer())
	return c
}

var (
	defaultOnce     sync.Once
	defaultCompiler *Compiler
)

// Default returns the process-wide convenience compiler. Core contracts never
// require it; construct a Compiler per context when isolation matters.
func Default() *Compiler {
	defaultOnce.Do(func() {
		defaultCompiler = NewCompiler(schema.NewRegistry())
	})
	return defaultCompiler
}

// SchemaRegistry returns the registry consulted for by-name references.
func (c *Compiler) SchemaRegistry() *schema.Registry { return c.registry }

// AddSerializer installs a serializer under its own name, replacing any
// previous serializer with that name. Pipelines already compiled against the
// replaced serializer stay valid; they key on serializer identity.
func (c *Compiler) AddSerializer(s *Serializer) {
	c.mu.Lock()
	c.serializers[s.Name()] = s
	c.mu.Unlock()
}

// Serializer returns the named serializer for direct registry extension.
func (c *Compiler) Serializer(name string) (*Serializer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serializerLocked(name)
}

func (c *Compiler) serializerLocked(name string) (*Serializer, error) {
	s, ok := c.serializers[name]
	if !ok {
		return nil, entikit.FieldErrors{{Path: "", Code: entikit.CodeUnknownSerializer, Message: fmt.Sprintf("serializer %q not registered", name)}}
	}
	return s, nil
}

// ValidatorChecks returns the per-type validator registry for extension.
func (c *Compiler) ValidatorChecks() *ValidatorRegistry { return c.vchecks }

// Reset drops every cached pipeline and validator. Intended for tests;
// production callers rely on the cache being append-only.
func (c *Compiler) Reset() {
	c.mu.Lock()
	c.cache = make(map[pipeKey]*Pipeline)
	c.building = make(map[pipeKey]*Pipeline)
	c.validators = make(map[*schema.Schema]*Validator)
	c.mu.Unlock()
}

// Compile builds (or returns the cached) pipeline for the tuple. subset may be
// nil for full conversion; otherwise it restricts the pipeline to those field
// names. Compiling the same tuple twice returns the same *Pipeline.
func (c *Compiler) Compile(s *schema.Schema, ser *Serializer, dir entikit.Direction, subset []string) (*Pipeline, error) {
	names, err := canonicalSubset(s, subset)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compileLocked(s, ser, dir, names)
}

// canonicalSubset validates and sorts a field subset so differing orderings
// share one cache entry.
func canonicalSubset(s *schema.Schema, subset []string) ([]string, error) {
	if subset == nil {
		return nil, nil
	}
	names := make([]string, 0, len(subset))
	seen := make(map[string]struct{}, len(subset))
	for _, n := range subset {
		if s.Field(n) == nil {
			return nil, &entikit.SchemaDefinitionError{Schema: s.Name, Detail: fmt.Sprintf("partial conversion names unknown field %q", n)}
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (c *Compiler) compileLocked(s *schema.Schema, ser *Serializer, dir entikit.Direction, subset []string) (*Pipeline, error) {
	key := pipeKey{schema: s, ser: ser, dir: dir}
	if subset != nil {
		// bracketed so the empty subset never collides with "all fields"
		key.subset = "[" + strings.Join(subset, ",") + "]"
	}
	if p, ok := c.cache[key]; ok {
		return p, nil
	}
	if p, ok := c.building[key]; ok {
		return p, nil // forward reference; steps land before the outer compile returns
	}

	p := &Pipeline{schema: s, serializer: ser, dir: dir, subset: subset}
	c.building[key] = p
	defer delete(c.building, key)

	include := map[string]struct{}(nil)
	if subset != nil {
		include = make(map[string]struct{}, len(subset))
		for _, n := range subset {
			include[n] = struct{}{}
		}
	}

	steps := make([]fieldStep, 0, len(s.Fields))
	for _, f := range s.Fields {
		if include != nil {
			if _, ok := include[f.Name]; !ok {
				continue
			}
		}
		vs, err := c.valueStep(f, f.Name, ser, dir)
		if err != nil {
			return nil, err
		}
		steps = append(steps, fieldStep{field: f, path: f.Name, vs: vs})
	}
	p.steps = steps
	c.cache[key] = p
	return p, nil
}

// valueStep resolves the generators for one descriptor and compiles them into
// an executable step. Union fields bypass the primary registry; their value is
// always resolved by evaluating candidates.
func (c *Compiler) valueStep(f *schema.Field, path string, ser *Serializer, dir entikit.Direction) (ValueStep, error) {
	vs := ValueStep{field: f, path: path}
	cc := CompileCtx{Field: f, Path: path, Direction: dir, Compiler: c, Serializer: ser}

	if f.Tag == schema.TagUnion {
		run, err := c.unionStep(cc)
		if err != nil {
			return vs, err
		}
		vs.run = run
		return vs, nil
	}

	gen, pgens, ok := ser.lookup(dir, f.Tag)
	if !ok {
		return vs, &entikit.SchemaDefinitionError{
			Schema: path,
			Detail: fmt.Sprintf("serializer %q has no %s converter for %s", ser.Name(), dir, f.Tag),
		}
	}
	for _, pg := range pgens {
		ps, err := pg(cc)
		if err != nil {
			return vs, err
		}
		vs.prepends = append(vs.prepends, ps)
	}
	run, err := gen(cc)
	if err != nil {
		return vs, err
	}
	vs.run = run
	return vs, nil
}

// ---- boundary operations ----

// Convert compiles (or reuses) the pipeline for the tuple and runs it against
// data. Decode builds an entity value from neutral data; encode the reverse.
func (c *Compiler) Convert(ctx context.Context, s *schema.Schema, serializerName string, dir entikit.Direction, data any, opt *entikit.ConvertOpt) (any, error) {
	p, err := c.pipeline(s, serializerName, dir, nil)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, data, opt)
}

// ConvertPartial converts only the named fields, leaving all others untouched
// on the output side. Used by incremental-update call sites.
func (c *Compiler) ConvertPartial(ctx context.Context, s *schema.Schema, serializerName string, dir entikit.Direction, fields []string, data any, opt *entikit.ConvertOpt) (any, error) {
	if fields == nil {
		fields = []string{}
	}
	p, err := c.pipeline(s, serializerName, dir, fields)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, data, opt)
}

func (c *Compiler) pipeline(s *schema.Schema, serializerName string, dir entikit.Direction, subset []string) (*Pipeline, error) {
	ser, err := c.Serializer(serializerName)
	if err != nil {
		return nil, err
	}
	return c.Compile(s, ser, dir, subset)
}

// RegisterTypeConverter installs a primary generator on a named serializer;
// the registry extension point adapters use for storage-specific encodings.
func (c *Compiler) RegisterTypeConverter(serializerName string, dir entikit.Direction, tag schema.TypeTag, g Generator) error {
	ser, err := c.Serializer(serializerName)
	if err != nil {
		return err
	}
	ser.Register(dir, tag, g)
	return nil
}

// PrependTypeConverter installs a pre-check generator on a named serializer.
func (c *Compiler) PrependTypeConverter(serializerName string, dir entikit.Direction, tag schema.TypeTag, g PrependGenerator) error {
	ser, err := c.Serializer(serializerName)
	if err != nil {
		return err
	}
	ser.Prepend(dir, tag, g)
	return nil
}
