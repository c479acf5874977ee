// Package dispatch is a minimal predictable-state container: a Store holds
// one state value, and every action reaches the reducer only after passing
// through a chain of interceptors.
//
// Interceptors are installed with factories. A Factory receives the store's
// API once, at construction, and returns the Interceptor used for every
// dispatch:
//
//	store := dispatch.New(reducer, ir.Object{},
//	    normalizer.Factory(),
//	    journal.Recorder(),
//	)
//
// The first factory's interceptor sees each action first; the reducer runs
// last.
package dispatch

import (
	"errors"

	"github.com/roach88/normware/internal/action"
	"github.com/roach88/normware/internal/ir"
)

// ErrDispatchDuringSetup is returned when a factory dispatches before the
// interceptor chain has been fully built.
var ErrDispatchDuringSetup = errors.New("dispatch: dispatching while constructing the interceptor chain")

// Reducer computes the next state from the current state and an action.
// Reducers must not retain or mutate their arguments.
type Reducer func(state ir.Value, a action.Action) ir.Value

// Next forwards an action to the rest of the chain.
type Next func(a action.Action) error

// Dispatcher accepts actions.
type Dispatcher interface {
	Dispatch(a action.Action) error
}

// API is the view of the store handed to factories.
// Dispatch re-enters the full chain from the first interceptor.
type API interface {
	Dispatcher
	GetState() ir.Value
}

// Interceptor sees an action before the reducer does. It forwards the
// action (or a replacement) with next, or stops it by not calling next.
type Interceptor interface {
	Handle(a action.Action, next Next) error
}

// InterceptorFunc adapts a function to Interceptor.
type InterceptorFunc func(a action.Action, next Next) error

// Handle calls f.
func (f InterceptorFunc) Handle(a action.Action, next Next) error {
	return f(a, next)
}

// Factory builds an Interceptor bound to a store.
type Factory func(api API) Interceptor

// Passthrough forwards every action unchanged.
var Passthrough Interceptor = InterceptorFunc(func(a action.Action, next Next) error {
	return next(a)
})

// Chain composes interceptors into one. The first sees the action first.
func Chain(interceptors ...Interceptor) Interceptor {
	ics := append([]Interceptor(nil), interceptors...)
	return InterceptorFunc(func(a action.Action, next Next) error {
		return compose(ics, next)(a)
	})
}

func compose(ics []Interceptor, last Next) Next {
	next := last
	for i := len(ics) - 1; i >= 0; i-- {
		ic, n := ics[i], next
		next = func(a action.Action) error {
			return ic.Handle(a, n)
		}
	}
	return next
}

// Compile-time check that InterceptorFunc implements Interceptor.
var _ Interceptor = InterceptorFunc(nil)
