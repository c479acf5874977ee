// Package action defines the action value that flows through a dispatch
// pipeline, and its JSON document form.
//
// Actions follow the flux-standard shape: a type, an optional payload, an
// error flag and optional meta. Actions are treated as immutable values;
// every update returns a new Action and leaves the receiver untouched.
package action

import (
	"github.com/roach88/normware/internal/ir"
	"github.com/roach88/normware/internal/schema"
)

// Action is a single dispatched event.
type Action struct {
	// Type identifies the action. Required.
	Type string

	// Payload is nil or ir.Null{} when the action carries none.
	Payload ir.Value

	// Error marks Payload as describing a failure.
	Error bool

	// Meta is nil when the action carries no meta.
	Meta *Meta
}

// Meta is action metadata. Schema asks a normalizing interceptor to
// flatten the payload; Extra holds every other meta key.
type Meta struct {
	Schema schema.Schema
	Extra  ir.Object
}

// HasPayload reports whether a carries a payload.
func (a Action) HasPayload() bool {
	return !ir.IsNull(a.Payload)
}

// HasSchema reports whether a carries a usable normalization schema.
func (a Action) HasSchema() bool {
	return a.Meta != nil && schema.Valid(a.Meta.Schema)
}

// WithPayload returns a copy of a with its payload replaced.
func (a Action) WithPayload(p ir.Value) Action {
	out := a
	out.Payload = p
	return out
}

// WithoutSchema returns a copy of a whose meta no longer carries a schema.
// Meta stays present (possibly empty) if a had one.
func (a Action) WithoutSchema() Action {
	out := a
	if a.Meta != nil {
		m := a.Meta.Clone()
		m.Schema = nil
		out.Meta = m
	}
	return out
}

// Clone returns a copy of a that shares no meta with it.
// The payload is shared; values are never mutated in place.
func (a Action) Clone() Action {
	out := a
	out.Meta = a.Meta.Clone()
	return out
}

// Clone returns a copy of m. Nil-safe.
func (m *Meta) Clone() *Meta {
	if m == nil {
		return nil
	}
	return &Meta{
		Schema: m.Schema,
		Extra:  m.Extra.Clone(),
	}
}
