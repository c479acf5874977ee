package harness

import (
	"github.com/roach88/normware/internal/ir"
)

// TraceEvent records one dispatched step.
type TraceEvent struct {
	Seq  int64
	Type string

	// Dispatched is the action document as dispatched.
	Dispatched ir.Object

	// Forwarded is the document that reached the reducer, or nil when
	// dispatch failed before that.
	Forwarded ir.Object

	// Error is the error code (or message) when dispatch failed.
	Error string
}

// Value renders the event for golden comparison.
func (e TraceEvent) Value() ir.Object {
	obj := ir.Object{
		"seq":        ir.Int(e.Seq),
		"type":       ir.String(e.Type),
		"dispatched": e.Dispatched,
	}
	if e.Forwarded != nil {
		obj["forwarded"] = e.Forwarded
	}
	if e.Error != "" {
		obj["error"] = ir.String(e.Error)
	}
	return obj
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`

	// State is the final store state: {"entities": {key: {id: entity}}}.
	State ir.Value `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
