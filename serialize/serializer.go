package serialize

import (
	"context"
	"sync"

	entikit "github.com/reoring/entikit"
	"github.com/reoring/entikit/schema"
)

// Step is one compiled conversion fragment: it transforms a single source
// value into its destination representation. Returning Unset leaves the
// destination field unset.
type Step func(ctx context.Context, v any, opt *entikit.ConvertOpt) (any, error)

// PrependStep runs before a field's primary step and may fully decide the
// outcome by returning done=true; otherwise control falls through.
type PrependStep func(ctx context.Context, v any, opt *entikit.ConvertOpt) (out any, done bool, err error)

// Generator emits a conversion step for one field at compile time.
type Generator func(cc CompileCtx) (Step, error)

// PrependGenerator emits a pre-check step for one field at compile time.
type PrependGenerator func(cc CompileCtx) (PrependStep, error)

// Unset is returned by a Step to leave the destination field unset.
var Unset any = unsetMarker{}

type unsetMarker struct{}

// CompileCtx is the compile-time context handed to generators: the field
// descriptor, its dotted path, the direction, and handles for recursing into
// sub-descriptors and nested schemas.
type CompileCtx struct {
	Field      *schema.Field
	Path       string
	Direction  entikit.Direction
	Compiler   *Compiler
	Serializer *Serializer
}

// ValueStep compiles a conversion step for a sub-descriptor (array element,
// map value, union candidate). For use inside generators at compile time only.
func (cc CompileCtx) ValueStep(f *schema.Field, path string) (ValueStep, error) {
	return cc.Compiler.valueStep(f, path, cc.Serializer, cc.Direction)
}

// Nested compiles a pipeline for a referenced schema in the same direction.
// Reentrant requests for a pipeline already being built receive a forward
// reference to it, so cyclic schema graphs compile without unbounded
// recursion. For use inside generators at compile time only.
func (cc CompileCtx) Nested(s *schema.Schema) (*Pipeline, error) {
	return cc.Compiler.compileLocked(s, cc.Serializer, cc.Direction, nil)
}

// ResolveRef resolves the field's referenced schema through the compiler's
// schema registry.
func (cc CompileCtx) ResolveRef() (*schema.Schema, error) {
	return cc.Field.Resolve(cc.Compiler.registry)
}

type regKey struct {
	dir entikit.Direction
	tag schema.TypeTag
}

// Serializer is a named collection of per-type-tag conversion-fragment
// generators, one table per direction, plus binary-type and prepend hooks.
// Extensible: new type tags or overrides can be registered without modifying
// the compiler. Last registration wins for the primary slot; prepends
// accumulate in registration order.
type Serializer struct {
	name string

	mu       sync.RWMutex
	primary  map[regKey]Generator
	prepends map[regKey][]PrependGenerator
	binary   map[entikit.Direction]Generator
}

// NewSerializer returns an empty serializer registry under the given name.
func NewSerializer(name string) *Serializer {
	return &Serializer{
		name:     name,
		primary:  make(map[regKey]Generator),
		prepends: make(map[regKey][]PrependGenerator),
		binary:   make(map[entikit.Direction]Generator),
	}
}

// Name returns the registry name used for compiler lookup.
func (s *Serializer) Name() string { return s.name }

// Register installs the primary generator for (direction, tag), replacing any
// previous registration.
func (s *Serializer) Register(dir entikit.Direction, tag schema.TypeTag, g Generator) {
	s.mu.Lock()
	s.primary[regKey{dir, tag}] = g
	s.mu.Unlock()
}

// Prepend appends a pre-check generator for (direction, tag). Prepend steps
// run in registration order before the primary step.
func (s *Serializer) Prepend(dir entikit.Direction, tag schema.TypeTag, g PrependGenerator) {
	s.mu.Lock()
	k := regKey{dir, tag}
	s.prepends[k] = append(s.prepends[k], g)
	s.mu.Unlock()
}

// RegisterForBinary installs the binary-type hook for a direction. TagBinary
// fields without an explicit primary registration route through this hook.
func (s *Serializer) RegisterForBinary(dir entikit.Direction, g Generator) {
	s.mu.Lock()
	s.binary[dir] = g
	s.mu.Unlock()
}

// lookup resolves the primary and prepend generators for (direction, tag).
func (s *Serializer) lookup(dir entikit.Direction, tag schema.TypeTag) (Generator, []PrependGenerator, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k := regKey{dir, tag}
	g, ok := s.primary[k]
	if !ok && tag == schema.TagBinary {
		g, ok = s.binary[dir]
	}
	if !ok {
		return nil, nil, false
	}
	return g, s.prepends[k], true
}
