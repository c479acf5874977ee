package schema

import (
	"fmt"
	"sort"
)

// Registry holds named schemas so actions can reference them by name
// (for example "meta": {"schema": "user"} in a JSON action document).
//
// A Registry is built once and then only read; it is not safe for
// concurrent Register calls.
type Registry struct {
	byName map[string]Schema
	names  map[Schema]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Schema),
		names:  make(map[Schema]string),
	}
}

// Register adds s under name. Names must be unique and schemas valid.
func (r *Registry) Register(name string, s Schema) error {
	if name == "" {
		return fmt.Errorf("register schema: empty name")
	}
	if !Valid(s) {
		return fmt.Errorf("register schema %q: schema is nil", name)
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("register schema %q: duplicate name", name)
	}
	r.byName[name] = s
	if _, named := r.names[s]; !named {
		r.names[s] = name
	}
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, s Schema) *Registry {
	if err := r.Register(name, s); err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the schema registered under name.
func (r *Registry) Lookup(name string) (Schema, bool) {
	if r == nil {
		return nil, false
	}
	s, ok := r.byName[name]
	return s, ok
}

// Name returns the first name s was registered under.
func (r *Registry) Name(s Schema) (string, bool) {
	if r == nil || !Valid(s) {
		return "", false
	}
	name, ok := r.names[s]
	return name, ok
}

// Names returns all registered names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered names.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.byName)
}
