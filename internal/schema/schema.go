package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/normware/internal/ir"
)

// Schema describes how to find and key entities inside a payload.
// It is a sealed interface: only *Entity, *Array, *Values, *Object and
// *Union implement it.
type Schema interface {
	schemaNode() // Sealed - only the types in this package implement it
	String() string
}

// DefaultIDAttribute is the id field used when an entity sets none.
const DefaultIDAttribute = "id"

// IDFunc derives an entity id from the raw entity object.
// The returned value must be an ir.String or ir.Int.
type IDFunc func(ir.Object) (ir.Value, error)

// MergeFunc combines an already-stored entity with a newly seen copy of it.
// Neither argument may be mutated; the returned object is stored.
type MergeFunc func(key, id string, existing, incoming ir.Object) ir.Object

// Entity is a schema for an entity type stored under Key in the entities map.
type Entity struct {
	key         string
	idAttribute string
	idFunc      IDFunc
	merge       MergeFunc
	fields      map[string]Schema
}

// EntityOption configures an Entity.
type EntityOption func(*Entity)

// WithIDAttribute sets the field the id is read from.
func WithIDAttribute(name string) EntityOption {
	return func(e *Entity) {
		e.idAttribute = name
	}
}

// WithIDFunc derives ids with fn instead of reading an attribute.
func WithIDFunc(fn IDFunc) EntityOption {
	return func(e *Entity) {
		e.idFunc = fn
	}
}

// WithMergeStrategy replaces the default merge of repeated entities.
func WithMergeStrategy(fn MergeFunc) EntityOption {
	return func(e *Entity) {
		e.merge = fn
	}
}

// NewEntity creates an entity schema stored under key.
//
// Nested fields are attached with Define, which may be called after
// construction so that entities can reference each other (or themselves).
func NewEntity(key string, opts ...EntityOption) *Entity {
	e := &Entity{
		key:         key,
		idAttribute: DefaultIDAttribute,
		fields:      make(map[string]Schema),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (*Entity) schemaNode() {}

// Key returns the entities map key for this schema.
func (e *Entity) Key() string { return e.key }

// IDAttribute returns the attribute ids are read from.
func (e *Entity) IDAttribute() string { return e.idAttribute }

// Define attaches nested schemas to fields of this entity.
// Later calls add to (and override) earlier definitions.
func (e *Entity) Define(fields map[string]Schema) *Entity {
	for name, s := range fields {
		e.fields[name] = s
	}
	return e
}

// Fields returns the defined nested field names in sorted order.
func (e *Entity) Fields() []string {
	return sortedNames(e.fields)
}

// Field returns the schema defined for a nested field.
func (e *Entity) Field(name string) (Schema, bool) {
	s, ok := e.fields[name]
	return s, ok
}

func (e *Entity) String() string { return e.key }

// Array is a schema for a list whose elements all follow one schema.
type Array struct {
	of Schema
}

// ArrayOf creates an array schema.
func ArrayOf(s Schema) *Array {
	return &Array{of: s}
}

func (*Array) schemaNode() {}

// Elem returns the element schema.
func (a *Array) Elem() Schema { return a.of }

func (a *Array) String() string { return "[" + a.of.String() + "]" }

// Values is a schema for an object whose values all follow one schema,
// with arbitrary keys.
type Values struct {
	of Schema
}

// ValuesOf creates a values schema.
func ValuesOf(s Schema) *Values {
	return &Values{of: s}
}

func (*Values) schemaNode() {}

// Elem returns the value schema.
func (v *Values) Elem() Schema { return v.of }

func (v *Values) String() string { return "{" + v.of.String() + "}" }

// Object is a schema for a plain (non-entity) object with some nested
// fields that follow schemas. Undefined fields are copied as-is.
type Object struct {
	fields map[string]Schema
}

// ObjectOf creates a plain object schema.
func ObjectOf(fields map[string]Schema) *Object {
	o := &Object{fields: make(map[string]Schema, len(fields))}
	for name, s := range fields {
		o.fields[name] = s
	}
	return o
}

func (*Object) schemaNode() {}

func (o *Object) String() string {
	parts := make([]string, 0, len(o.fields))
	for _, name := range sortedNames(o.fields) {
		parts = append(parts, name+": "+o.fields[name].String())
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Union is a schema for a value that is one of several entity types,
// selected by a discriminator attribute on the value.
type Union struct {
	attribute string
	members   map[string]Schema
}

// UnionOf creates a union schema. attribute names the field whose string
// value selects the member schema.
func UnionOf(attribute string, members map[string]Schema) *Union {
	u := &Union{attribute: attribute, members: make(map[string]Schema, len(members))}
	for name, s := range members {
		u.members[name] = s
	}
	return u
}

func (*Union) schemaNode() {}

// Attribute returns the discriminator attribute.
func (u *Union) Attribute() string { return u.attribute }

func (u *Union) String() string {
	return fmt.Sprintf("union(%s: %s)", u.attribute, strings.Join(sortedNames(u.members), "|"))
}

// Valid reports whether s is a usable schema descriptor.
// A nil interface or a typed nil pointer is not.
func Valid(s Schema) bool {
	if s == nil {
		return false
	}
	v := reflect.ValueOf(s)
	return !(v.Kind() == reflect.Pointer && v.IsNil())
}

// Describe renders s for logs and encodings; "<none>" for invalid schemas.
func Describe(s Schema) string {
	if !Valid(s) {
		return "<none>"
	}
	return s.String()
}

func sortedNames(m map[string]Schema) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
