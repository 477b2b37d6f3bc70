package schema

import (
	"sync"

	entikit "github.com/reoring/entikit"
)

// Registry memoizes schemas by entity name and lets fields reference entities
// by name (RefName) before the target has been built. Definitions store a
// build function; building never resolves references, so mutually or
// self-referential definitions are safe.
type Registry struct {
	mu       sync.Mutex
	builders map[string]func() (*Schema, error)
	built    map[string]*Schema
	building map[string]bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]func() (*Schema, error)),
		built:    make(map[string]*Schema),
		building: make(map[string]bool),
	}
}

// Define registers a lazy schema definition under name. Last definition wins
// until the schema has been built; redefining a built schema is a no-op for
// existing pipelines, which key on schema identity.
func (r *Registry) Define(name string, build func() (*Schema, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[name] = build
	delete(r.built, name)
}

// Register stores an already built schema under its own name.
func (r *Registry) Register(s *Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.built[s.Name] = s
}

// Schema returns the memoized schema for name, building it on first use.
// Building a schema whose definition re-enters Schema for the same name is a
// definition error; field references resolve lazily and never re-enter.
func (r *Registry) Schema(name string) (*Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.schemaLocked(name)
}

func (r *Registry) schemaLocked(name string) (*Schema, error) {
	if s, ok := r.built[name]; ok {
		return s, nil
	}
	build, ok := r.builders[name]
	if !ok {
		return nil, &entikit.SchemaDefinitionError{Schema: name, Detail: "not defined in registry"}
	}
	if r.building[name] {
		return nil, &entikit.SchemaDefinitionError{Schema: name, Detail: "definition cycle: build function re-entered"}
	}
	r.building[name] = true
	defer delete(r.building, name)
	s, err := build()
	if err != nil {
		return nil, err
	}
	r.built[name] = s
	return s, nil
}
