package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/normware/internal/schema"
)

// Compile error codes (E200-E299)
const (
	ErrCUE                = "E200" // CUE syntax or evaluation error
	ErrEmptyKey           = "E201" // entity key is empty
	ErrUnknownReference   = "E202" // reference names no declared schema
	ErrMalformedReference = "E203" // reference string cannot be parsed
	ErrDuplicateName      = "E204" // name declared twice
	ErrMissingAttribute   = "E205" // union without discriminator attribute
	ErrInvalidField       = "E206" // field has the wrong CUE kind
	ErrNoSchemas          = "E207" // no entity or union declared
)

// CompileError represents a compilation error with source position.
type CompileError struct {
	Code    string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Line returns the 1-based source line, or 0 when unknown.
func (e *CompileError) Line() int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// CompileSource compiles CUE source text into a schema registry.
// filename is used only for error positions.
func CompileSource(filename, src string) (*schema.Registry, error) {
	v := cuecontext.New().CompileString(src, cue.Filename(filename))
	return CompileSchemas(v)
}

// CompileSchemas compiles the `entity` and `union` blocks of v into a
// registry, returning the first error found.
//
// Expected shape:
//
//	entity: user: {
//	    key:          "users"   // optional, defaults to the label
//	    id_attribute: "id"      // optional, defaults to "id"
//	    fields: { friends: "[user]", profile: "profile", tags: "{tag}" }
//	}
//	union: owner: { attribute: "type", members: { user: "user", group: "group" } }
//
// Entities are declared before any fields are resolved, so entities may
// reference each other, and themselves, in any order.
func CompileSchemas(v cue.Value) (*schema.Registry, error) {
	reg, errs := compile(v, true)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return reg, nil
}

// CheckSchemas compiles v and returns every error found (not fail-fast).
func CheckSchemas(v cue.Value) []*CompileError {
	_, errs := compile(v, false)
	return errs
}

type entityDecl struct {
	name   string
	entity *schema.Entity
	value  cue.Value
}

type compileState struct {
	entities map[string]*schema.Entity
	unions   map[string]*schema.Union
	errs     []*CompileError
	failFast bool
}

func (c *compileState) fail(err *CompileError) bool {
	c.errs = append(c.errs, err)
	return c.failFast
}

func compile(v cue.Value, failFast bool) (*schema.Registry, []*CompileError) {
	if err := v.Validate(); err != nil {
		return nil, []*CompileError{formatCUEError(err)}
	}

	c := &compileState{
		entities: make(map[string]*schema.Entity),
		unions:   make(map[string]*schema.Union),
		failFast: failFast,
	}
	reg := schema.NewRegistry()

	// Pass 1: declare entities.
	var decls []entityDecl
	entitiesVal := v.LookupPath(cue.ParsePath("entity"))
	if entitiesVal.Exists() {
		iter, err := entitiesVal.Fields()
		if err != nil {
			return nil, []*CompileError{formatCUEError(err)}
		}
		for iter.Next() {
			decl, cerr := declareEntity(iter.Label(), iter.Value())
			if cerr != nil {
				if c.fail(cerr) {
					return nil, c.errs
				}
				continue
			}
			c.entities[decl.name] = decl.entity
			decls = append(decls, decl)
		}
	}

	// Pass 2: unions, whose members must be declared entities.
	var unionOrder []string
	unionsVal := v.LookupPath(cue.ParsePath("union"))
	if unionsVal.Exists() {
		iter, err := unionsVal.Fields()
		if err != nil {
			return nil, []*CompileError{formatCUEError(err)}
		}
		for iter.Next() {
			name := iter.Label()
			if _, dup := c.entities[name]; dup {
				if c.fail(&CompileError{Code: ErrDuplicateName, Field: "union." + name, Message: fmt.Sprintf("name %q is already an entity", name), Pos: iter.Value().Pos()}) {
					return nil, c.errs
				}
				continue
			}
			u, cerr := c.compileUnion(name, iter.Value())
			if cerr != nil {
				if c.fail(cerr) {
					return nil, c.errs
				}
				continue
			}
			c.unions[name] = u
			unionOrder = append(unionOrder, name)
		}
	}

	if len(decls) == 0 && len(unionOrder) == 0 && len(c.errs) == 0 {
		return nil, []*CompileError{{Code: ErrNoSchemas, Field: "entity", Message: "no entity or union schemas declared", Pos: v.Pos()}}
	}

	// Pass 3: resolve entity fields now that every name is known.
	for _, decl := range decls {
		if cerr := c.defineFields(decl); cerr != nil {
			if c.fail(cerr) {
				return nil, c.errs
			}
		}
	}

	if len(c.errs) > 0 {
		return nil, c.errs
	}

	for _, decl := range decls {
		if err := reg.Register(decl.name, decl.entity); err != nil {
			return nil, []*CompileError{{Code: ErrDuplicateName, Field: "entity." + decl.name, Message: err.Error(), Pos: decl.value.Pos()}}
		}
	}
	for _, name := range unionOrder {
		if err := reg.Register(name, c.unions[name]); err != nil {
			return nil, []*CompileError{{Code: ErrDuplicateName, Field: "union." + name, Message: err.Error()}}
		}
	}
	return reg, nil
}

func declareEntity(name string, v cue.Value) (entityDecl, *CompileError) {
	field := "entity." + name

	key, cerr := optionalString(v, "key", field)
	if cerr != nil {
		return entityDecl{}, cerr
	}
	if key == "" {
		if v.LookupPath(cue.ParsePath("key")).Exists() {
			return entityDecl{}, &CompileError{Code: ErrEmptyKey, Field: field + ".key", Message: "entity key must not be empty", Pos: v.Pos()}
		}
		key = name
	}

	idAttr, cerr := optionalString(v, "id_attribute", field)
	if cerr != nil {
		return entityDecl{}, cerr
	}

	var opts []schema.EntityOption
	if idAttr != "" {
		opts = append(opts, schema.WithIDAttribute(idAttr))
	}
	return entityDecl{name: name, entity: schema.NewEntity(key, opts...), value: v}, nil
}

func (c *compileState) defineFields(decl entityDecl) *CompileError {
	fieldsVal := decl.value.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil
	}

	iter, err := fieldsVal.Fields()
	if err != nil {
		return &CompileError{Code: ErrInvalidField, Field: "entity." + decl.name + ".fields", Message: "fields must be a struct", Pos: fieldsVal.Pos()}
	}

	fields := make(map[string]schema.Schema)
	for iter.Next() {
		path := "entity." + decl.name + ".fields." + iter.Label()
		ref, err := iter.Value().String()
		if err != nil {
			return &CompileError{Code: ErrInvalidField, Field: path, Message: "schema reference must be a string", Pos: iter.Value().Pos()}
		}
		s, cerr := c.resolve(ref, path, iter.Value().Pos())
		if cerr != nil {
			return cerr
		}
		fields[iter.Label()] = s
	}
	decl.entity.Define(fields)
	return nil
}

func (c *compileState) compileUnion(name string, v cue.Value) (*schema.Union, *CompileError) {
	field := "union." + name

	attr, cerr := optionalString(v, "attribute", field)
	if cerr != nil {
		return nil, cerr
	}
	if attr == "" {
		return nil, &CompileError{Code: ErrMissingAttribute, Field: field + ".attribute", Message: "union requires a discriminator attribute", Pos: v.Pos()}
	}

	membersVal := v.LookupPath(cue.ParsePath("members"))
	iter, err := membersVal.Fields()
	if !membersVal.Exists() || err != nil {
		return nil, &CompileError{Code: ErrInvalidField, Field: field + ".members", Message: "union requires a members struct", Pos: v.Pos()}
	}

	members := make(map[string]schema.Schema)
	for iter.Next() {
		path := field + ".members." + iter.Label()
		ref, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{Code: ErrInvalidField, Field: path, Message: "member must name an entity", Pos: iter.Value().Pos()}
		}
		e, ok := c.entities[ref]
		if !ok {
			return nil, &CompileError{Code: ErrUnknownReference, Field: path, Message: fmt.Sprintf("unknown entity %q", ref), Pos: iter.Value().Pos()}
		}
		members[iter.Label()] = e
	}
	if len(members) == 0 {
		return nil, &CompileError{Code: ErrInvalidField, Field: field + ".members", Message: "union requires at least one member", Pos: v.Pos()}
	}
	return schema.UnionOf(attr, members), nil
}

// resolve parses a reference: "name", "[ref]" (array of) or "{ref}" (values of).
func (c *compileState) resolve(ref, field string, pos token.Pos) (schema.Schema, *CompileError) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return nil, &CompileError{Code: ErrMalformedReference, Field: field, Message: "empty schema reference", Pos: pos}
	case strings.HasPrefix(ref, "["):
		if !strings.HasSuffix(ref, "]") {
			return nil, &CompileError{Code: ErrMalformedReference, Field: field, Message: fmt.Sprintf("unterminated array reference %q", ref), Pos: pos}
		}
		inner, cerr := c.resolve(ref[1:len(ref)-1], field, pos)
		if cerr != nil {
			return nil, cerr
		}
		return schema.ArrayOf(inner), nil
	case strings.HasPrefix(ref, "{"):
		if !strings.HasSuffix(ref, "}") {
			return nil, &CompileError{Code: ErrMalformedReference, Field: field, Message: fmt.Sprintf("unterminated values reference %q", ref), Pos: pos}
		}
		inner, cerr := c.resolve(ref[1:len(ref)-1], field, pos)
		if cerr != nil {
			return nil, cerr
		}
		return schema.ValuesOf(inner), nil
	}

	if strings.ContainsAny(ref, "[]{} ") {
		return nil, &CompileError{Code: ErrMalformedReference, Field: field, Message: fmt.Sprintf("malformed schema reference %q", ref), Pos: pos}
	}
	if e, ok := c.entities[ref]; ok {
		return e, nil
	}
	if u, ok := c.unions[ref]; ok {
		return u, nil
	}
	return nil, &CompileError{Code: ErrUnknownReference, Field: field, Message: fmt.Sprintf("unknown schema %q", ref), Pos: pos}
}

// optionalString reads a string field, returning "" when it is absent.
func optionalString(v cue.Value, name, field string) (string, *CompileError) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{Code: ErrInvalidField, Field: field + "." + name, Message: "must be a string", Pos: fv.Pos()}
	}
	return s, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) *CompileError {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &CompileError{Code: ErrCUE, Field: "cue", Message: err.Error()}
	}

	first := errs[0]
	ce := &CompileError{Code: ErrCUE, Field: "cue", Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}
