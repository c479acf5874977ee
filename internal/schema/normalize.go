package schema

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/roach88/normware/internal/ir"
)

// MaxDepth bounds recursion so self-referencing Go values fail instead of
// exhausting the stack. JSON-decoded payloads can never reach it.
const MaxDepth = 512

// Normalizer flattens nested payloads into an entities map plus a result
// skeleton. The zero value is not usable; create one with NewNormalizer.
//
// Thread-safety: a Normalizer holds no per-call state and is safe for
// concurrent use.
type Normalizer struct {
	logger *slog.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLogger sets the logger used for merge-conflict warnings.
func WithLogger(l *slog.Logger) Option {
	return func(n *Normalizer) {
		n.logger = l
	}
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize runs a Normalizer logging to slog.Default().
func Normalize(data ir.Value, s Schema) (*Result, error) {
	return NewNormalizer().Normalize(data, s)
}

// Normalize flattens data according to s.
//
// data must be an ir.Object or ir.Array. Every entity found is replaced in
// the result skeleton by its id and stored in Entities under its key. An
// entity seen more than once is merged (see WithMergeStrategy); by default
// the earlier value of a conflicting field is kept and a warning is logged.
func (n *Normalizer) Normalize(data ir.Value, s Schema) (*Result, error) {
	if !Valid(s) {
		return nil, newError(ErrCodeInvalidSchema, "$", "schema is nil")
	}
	switch data.(type) {
	case ir.Object, ir.Array:
	default:
		return nil, newError(ErrCodeInvalidInput, "$", "normalize accepts an object or an array, got %s", kindOf(data))
	}

	w := &walker{n: n, entities: make(Entities)}
	result, err := w.visit("$", data, s, 0)
	if err != nil {
		return nil, err
	}
	return &Result{Result: result, Entities: w.entities}, nil
}

func (n *Normalizer) log() *slog.Logger {
	if n.logger != nil {
		return n.logger
	}
	return slog.Default()
}

// walker carries the entities collected during one Normalize call.
type walker struct {
	n        *Normalizer
	entities Entities
}

func (w *walker) visit(path string, v ir.Value, s Schema, depth int) (ir.Value, error) {
	// Primitives and null are never normalized, whatever the schema says.
	switch v.(type) {
	case ir.Object, ir.Array:
	default:
		return v, nil
	}
	if depth > MaxDepth {
		return nil, newError(ErrCodeMaxDepth, path, "payload nests deeper than %d levels", MaxDepth)
	}
	if !Valid(s) {
		return nil, newError(ErrCodeInvalidSchema, path, "schema is nil")
	}

	switch s := s.(type) {
	case *Entity:
		obj, ok := v.(ir.Object)
		if !ok {
			return nil, newError(ErrCodeTypeMismatch, path, "entity %q expects an object, got %s", s.key, kindOf(v))
		}
		return w.visitEntity(path, obj, s, depth)

	case *Array:
		arr, ok := v.(ir.Array)
		if !ok {
			return nil, newError(ErrCodeTypeMismatch, path, "%s expects an array, got %s", s, kindOf(v))
		}
		out := make(ir.Array, len(arr))
		for i, elem := range arr {
			x, err := w.visit(fmt.Sprintf("%s[%d]", path, i), elem, s.of, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil

	case *Values:
		obj, ok := v.(ir.Object)
		if !ok {
			return nil, newError(ErrCodeTypeMismatch, path, "%s expects an object, got %s", s, kindOf(v))
		}
		out := make(ir.Object, len(obj))
		for _, k := range obj.SortedKeys() {
			x, err := w.visit(path+"."+k, obj[k], s.of, depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = x
		}
		return out, nil

	case *Object:
		obj, ok := v.(ir.Object)
		if !ok {
			return nil, newError(ErrCodeTypeMismatch, path, "object schema expects an object, got %s", kindOf(v))
		}
		return w.visitFields(path, obj, s.fields, depth)

	case *Union:
		obj, ok := v.(ir.Object)
		if !ok {
			return nil, newError(ErrCodeTypeMismatch, path, "%s expects an object, got %s", s, kindOf(v))
		}
		name, ok := obj[s.attribute].(ir.String)
		if !ok {
			return nil, newError(ErrCodeUnknownMember, path, "union discriminator %q is missing or not a string", s.attribute)
		}
		member, ok := s.members[string(name)]
		if !ok {
			return nil, newError(ErrCodeUnknownMember, path, "union has no member %q", string(name))
		}
		id, err := w.visit(path, obj, member, depth+1)
		if err != nil {
			return nil, err
		}
		return ir.Object{"id": id, "schema": name}, nil

	default:
		return nil, newError(ErrCodeInvalidSchema, path, "unsupported schema %T", s)
	}
}

// visitFields returns a shallow copy of obj with every defined field that is
// present replaced by its normalized form.
func (w *walker) visitFields(path string, obj ir.Object, fields map[string]Schema, depth int) (ir.Object, error) {
	out := obj.Clone()
	for _, name := range sortedNames(fields) {
		val, ok := obj[name]
		if !ok {
			continue
		}
		x, err := w.visit(path+"."+name, val, fields[name], depth+1)
		if err != nil {
			return nil, err
		}
		out[name] = x
	}
	return out, nil
}

func (w *walker) visitEntity(path string, obj ir.Object, e *Entity, depth int) (ir.Value, error) {
	id, err := entityID(path, obj, e)
	if err != nil {
		return nil, err
	}

	processed, err := w.visitFields(path, obj, e.fields, depth)
	if err != nil {
		return nil, err
	}

	idKey := IDString(id)
	bucket, ok := w.entities[e.key]
	if !ok {
		bucket = make(map[string]ir.Object)
		w.entities[e.key] = bucket
	}
	if existing, seen := bucket[idKey]; seen {
		merge := e.merge
		if merge == nil {
			merge = w.n.mergeEntity
		}
		bucket[idKey] = merge(e.key, idKey, existing, processed)
	} else {
		bucket[idKey] = processed
	}
	return id, nil
}

// mergeEntity is the default MergeFunc: fields missing from existing are
// filled in from incoming. A differing value is reported and the earlier one
// kept.
func (n *Normalizer) mergeEntity(key, id string, existing, incoming ir.Object) ir.Object {
	out := existing.Clone()
	for _, field := range incoming.SortedKeys() {
		next := incoming[field]
		if prev, ok := out[field]; ok && !ir.Equal(prev, next) {
			n.log().Warn("entity field conflict, keeping earlier value",
				"entity", key,
				"id", id,
				"field", field,
			)
			continue
		}
		out[field] = next
	}
	return out
}

func entityID(path string, obj ir.Object, e *Entity) (ir.Value, error) {
	var (
		id  ir.Value
		err error
	)
	if e.idFunc != nil {
		id, err = e.idFunc(obj)
		if err != nil {
			return nil, &Error{Code: ErrCodeInvalidID, Path: path, Message: fmt.Sprintf("entity %q id function failed", e.key), Err: err}
		}
	} else {
		id = obj[e.idAttribute]
	}

	switch id.(type) {
	case ir.String, ir.Int:
		return id, nil
	case nil, ir.Null:
		return nil, newError(ErrCodeMissingID, path, "entity %q has no %q attribute", e.key, e.idAttribute)
	default:
		return nil, newError(ErrCodeInvalidID, path, "entity %q id must be a string or integer, got %s", e.key, kindOf(id))
	}
}

// IDString renders an entity id as its entities map key.
func IDString(id ir.Value) string {
	switch v := id.(type) {
	case ir.String:
		return string(v)
	case ir.Int:
		return strconv.FormatInt(int64(v), 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func kindOf(v ir.Value) string {
	switch v.(type) {
	case nil:
		return "nothing"
	case ir.Null:
		return "null"
	case ir.String:
		return "string"
	case ir.Int, ir.Float:
		return "number"
	case ir.Bool:
		return "bool"
	case ir.Array:
		return "array"
	case ir.Object:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
