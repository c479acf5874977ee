package dispatch

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/roach88/normware/internal/action"
	"github.com/roach88/normware/internal/ir"
)

// Store holds state and runs actions through its interceptor chain.
//
// Thread-safety model:
//   - Dispatch, GetState, Subscribe: safe from any goroutine
//   - reducer calls are serialized; interceptors may run concurrently
//   - subscribers run on the dispatching goroutine, after the state update
type Store struct {
	reducer Reducer

	mu    sync.Mutex // guards state
	state ir.Value

	chain atomic.Pointer[Next]

	subsMu  sync.Mutex
	subs    map[uint64]func()
	nextSub uint64
}

// New creates a store whose actions pass through the interceptors built by
// factories, in order, before reaching reducer.
//
// Factories run once, in order, each receiving the store's API. An
// interceptor that dispatches from inside its factory gets
// ErrDispatchDuringSetup.
func New(reducer Reducer, initial ir.Value, factories ...Factory) *Store {
	s := &Store{
		reducer: reducer,
		state:   initial,
		subs:    make(map[uint64]func()),
	}

	setup := Next(func(action.Action) error { return ErrDispatchDuringSetup })
	s.chain.Store(&setup)

	ics := make([]Interceptor, 0, len(factories))
	for _, f := range factories {
		ics = append(ics, f(s))
	}

	chain := compose(ics, s.reduce)
	s.chain.Store(&chain)
	return s
}

// Dispatch runs a through the interceptor chain and the reducer.
// The first error returned by any interceptor is returned unchanged.
func (s *Store) Dispatch(a action.Action) error {
	return (*s.chain.Load())(a)
}

// GetState returns the current state.
func (s *Store) GetState() ir.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn to run after every state update and returns a
// function that removes it. Calling the returned function twice is a no-op.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
		})
	}
}

func (s *Store) reduce(a action.Action) error {
	s.mu.Lock()
	s.state = s.reducer(s.state, a)
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *Store) notify() {
	s.subsMu.Lock()
	ids := make([]uint64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	s.subsMu.Unlock()

	// Subscription order.
	slices.Sort(ids)
	for _, id := range ids {
		s.subsMu.Lock()
		fn, ok := s.subs[id]
		s.subsMu.Unlock()
		if ok {
			fn()
		}
	}
}

// Compile-time check that Store implements API.
var _ API = (*Store)(nil)
