package action

import (
	"fmt"

	"github.com/roach88/normware/internal/ir"
	"github.com/roach88/normware/internal/schema"
)

// Document keys.
const (
	KeyType    = "type"
	KeyPayload = "payload"
	KeyError   = "error"
	KeyMeta    = "meta"
	KeySchema  = "schema"
)

// Decode parses a JSON action document.
//
//	{"type": "USER_LOADED", "payload": {...}, "meta": {"schema": "user"}}
//
// meta.schema names a schema in reg; an unknown name is an error. A null
// meta.schema means no schema and is not written back by Encode, so such a
// document re-encodes with meta.schema absent.
func Decode(data []byte, reg *schema.Registry) (Action, error) {
	v, err := ir.UnmarshalValue(data)
	if err != nil {
		return Action{}, fmt.Errorf("decode action: %w", err)
	}
	return FromValue(v, reg)
}

// FromValue builds an Action from an already-decoded document.
func FromValue(v ir.Value, reg *schema.Registry) (Action, error) {
	obj, ok := v.(ir.Object)
	if !ok {
		return Action{}, fmt.Errorf("action must be an object, got %T", v)
	}

	var a Action
	for _, k := range obj.SortedKeys() {
		switch k {
		case KeyType, KeyPayload, KeyError, KeyMeta:
		default:
			return Action{}, fmt.Errorf("action: unknown field %q", k)
		}
	}

	typ, ok := obj[KeyType].(ir.String)
	if !ok || typ == "" {
		return Action{}, fmt.Errorf("action: %q must be a non-empty string", KeyType)
	}
	a.Type = string(typ)

	if p, ok := obj[KeyPayload]; ok {
		a.Payload = p
	}

	switch e := obj[KeyError].(type) {
	case nil, ir.Null:
	case ir.Bool:
		a.Error = bool(e)
	default:
		return Action{}, fmt.Errorf("action %s: %q must be a boolean", a.Type, KeyError)
	}

	switch m := obj[KeyMeta].(type) {
	case nil, ir.Null:
	case ir.Object:
		meta, err := metaFromObject(m, reg)
		if err != nil {
			return Action{}, fmt.Errorf("action %s: %w", a.Type, err)
		}
		a.Meta = meta
	default:
		return Action{}, fmt.Errorf("action %s: %q must be an object", a.Type, KeyMeta)
	}

	return a, nil
}

func metaFromObject(obj ir.Object, reg *schema.Registry) (*Meta, error) {
	meta := &Meta{Extra: make(ir.Object, len(obj))}
	for k, v := range obj {
		if k != KeySchema {
			meta.Extra[k] = v
			continue
		}
		switch name := v.(type) {
		case ir.Null:
		case ir.String:
			s, ok := reg.Lookup(string(name))
			if !ok {
				return nil, fmt.Errorf("meta.schema: unknown schema %q", string(name))
			}
			meta.Schema = s
		default:
			return nil, fmt.Errorf("meta.schema must name a schema")
		}
	}
	return meta, nil
}

// ToObject renders a as a document. A schema is written by its registry
// name, or by its description when reg does not know it.
func ToObject(a Action, reg *schema.Registry) ir.Object {
	obj := ir.Object{KeyType: ir.String(a.Type)}
	if a.Payload != nil {
		obj[KeyPayload] = a.Payload
	}
	if a.Error {
		obj[KeyError] = ir.Bool(true)
	}
	if a.Meta != nil {
		meta := a.Meta.Extra.Clone()
		if meta == nil {
			meta = ir.Object{}
		}
		if schema.Valid(a.Meta.Schema) {
			name, ok := reg.Name(a.Meta.Schema)
			if !ok {
				name = schema.Describe(a.Meta.Schema)
			}
			meta[KeySchema] = ir.String(name)
		}
		obj[KeyMeta] = meta
	}
	return obj
}

// Encode renders a as JSON with sorted keys.
func Encode(a Action, reg *schema.Registry) ([]byte, error) {
	return ir.MarshalValue(ToObject(a, reg))
}

// EncodeCanonical renders a as canonical JSON, suitable for hashing.
func EncodeCanonical(a Action, reg *schema.Registry) ([]byte, error) {
	return ir.MarshalCanonical(ToObject(a, reg))
}
