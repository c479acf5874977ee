package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/normware/internal/action"
	"github.com/roach88/normware/internal/compiler"
	"github.com/roach88/normware/internal/dispatch"
	"github.com/roach88/normware/internal/ir"
	"github.com/roach88/normware/internal/journal"
	"github.com/roach88/normware/internal/normalizer"
	"github.com/roach88/normware/internal/schema"
	"github.com/roach88/normware/internal/testutil"
)

// Harness executes one scenario against a fresh store and journal.
type Harness struct {
	registry *schema.Registry
	journal  *journal.Journal
	store    *dispatch.Store
	clock    *testutil.DeterministicClock
	logger   *slog.Logger

	// forwarded is the last action that reached the reducer.
	forwarded *action.Action
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Compile the scenario's CUE schemas
//  2. Open a fresh in-memory journal with deterministic clock and ids
//  3. Build a store: normalizer, journal recorder, then the reducer
//  4. Dispatch each step and check its expectations
//  5. Evaluate assertions against the final state and journal
//
// An error is returned only when the scenario cannot run at all; failed
// expectations are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	reg, err := compiler.CompileDir(scenario.Schemas)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schemas: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in scenarios

	j, err := journal.Open(":memory:",
		journal.WithClock(testutil.NewDeterministicClock()),
		journal.WithIDGenerator(testutil.NewFixedIDGenerator("entry")),
		journal.WithRegistry(reg),
		journal.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer j.Close()

	h := &Harness{
		registry: reg,
		journal:  j,
		clock:    testutil.NewDeterministicClock(),
		logger:   logger,
	}
	h.store = dispatch.New(mergeEntities, ir.Object{"entities": ir.Object{}},
		normalizer.Factory(normalizer.WithLogger(logger)),
		j.Recorder(),
		h.capture,
	)

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(i, step, result); err != nil {
			return nil, err
		}
	}
	result.State = h.store.GetState()

	ctx := context.Background()
	for _, msg := range EvaluateAssertions(ctx, result, scenario.Assertions, j) {
		result.AddError(msg)
	}
	return result, nil
}

// capture is the last interceptor; it remembers what reaches the reducer.
func (h *Harness) capture(dispatch.API) dispatch.Interceptor {
	return dispatch.InterceptorFunc(func(a action.Action, next dispatch.Next) error {
		forwarded := a
		h.forwarded = &forwarded
		return next(a)
	})
}

func (h *Harness) executeStep(i int, step Step, result *Result) error {
	doc, err := ir.FromAny(step.Dispatch)
	if err != nil {
		return fmt.Errorf("steps[%d]: invalid action document: %w", i, err)
	}
	a, err := action.FromValue(doc, h.registry)
	if err != nil {
		return fmt.Errorf("steps[%d]: %w", i, err)
	}

	h.forwarded = nil
	dispatchErr := h.store.Dispatch(a)

	event := TraceEvent{
		Seq:        h.clock.Next(),
		Type:       a.Type,
		Dispatched: action.ToObject(a, h.registry),
	}
	if h.forwarded != nil {
		event.Forwarded = action.ToObject(*h.forwarded, h.registry)
	}
	if dispatchErr != nil {
		event.Error = errorLabel(dispatchErr)
	}
	result.Trace = append(result.Trace, event)

	for _, msg := range checkExpect(step.Expect, event, h.forwarded, dispatchErr) {
		result.AddError(fmt.Sprintf("steps[%d] %s: %s", i, a.Type, msg))
	}

	h.logger.Info("step completed",
		"step", i,
		"type", a.Type,
		"forwarded", h.forwarded != nil,
		"error", event.Error,
	)
	return nil
}

// checkExpect compares a step's outcome with its expectation.
func checkExpect(e *Expect, event TraceEvent, forwarded *action.Action, dispatchErr error) []string {
	if e == nil {
		if dispatchErr != nil {
			return []string{fmt.Sprintf("unexpected error: %v", dispatchErr)}
		}
		return nil
	}

	if e.Error != "" {
		switch {
		case dispatchErr == nil:
			return []string{fmt.Sprintf("expected error %q, dispatch succeeded", e.Error)}
		case string(schema.CodeOf(dispatchErr)) != e.Error && !strings.Contains(dispatchErr.Error(), e.Error):
			return []string{fmt.Sprintf("expected error %q, got: %v", e.Error, dispatchErr)}
		}
		return nil
	}
	if dispatchErr != nil {
		return []string{fmt.Sprintf("unexpected error: %v", dispatchErr)}
	}
	if forwarded == nil {
		return []string{"no action reached the reducer"}
	}

	var errs []string
	passthrough := ir.Equal(event.Dispatched, event.Forwarded)
	if e.Passthrough != nil && *e.Passthrough != passthrough {
		errs = append(errs, fmt.Sprintf("passthrough = %t, want %t", passthrough, *e.Passthrough))
	}
	if e.Normalized != nil && *e.Normalized == passthrough {
		errs = append(errs, fmt.Sprintf("normalized = %t, want %t", !passthrough, *e.Normalized))
	}
	if e.SchemaStripped != nil {
		stripped := !forwarded.HasSchema()
		if stripped != *e.SchemaStripped {
			errs = append(errs, fmt.Sprintf("schema_stripped = %t, want %t", stripped, *e.SchemaStripped))
		}
	}
	if e.Payload != nil {
		if msg := compareValue("payload", e.Payload, forwarded.Payload); msg != "" {
			errs = append(errs, msg)
		}
	}
	if e.Result != nil {
		obj, _ := forwarded.Payload.(ir.Object)
		if msg := compareValue("result", e.Result, obj["result"]); msg != "" {
			errs = append(errs, msg)
		}
	}
	return errs
}

func compareValue(what string, expected any, actual ir.Value) string {
	want, err := ir.FromAny(expected)
	if err != nil {
		return fmt.Sprintf("%s: invalid expected value: %v", what, err)
	}
	if !ir.Equal(want, actual) {
		return fmt.Sprintf("%s = %s, want %s", what, render(actual), render(want))
	}
	return ""
}

func render(v ir.Value) string {
	if v == nil {
		return "<absent>"
	}
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// errorLabel prefers the stable normalization error code over the message.
func errorLabel(err error) string {
	if code := schema.CodeOf(err); code != "" {
		return string(code)
	}
	return err.Error()
}

// mergeEntities is the scenario reducer: it folds normalized payloads into
// state["entities"], later entities replacing earlier ones.
func mergeEntities(state ir.Value, a action.Action) ir.Value {
	res, err := schema.ResultFromValue(a.Payload)
	if err != nil || a.Error {
		return state
	}

	current, _ := state.(ir.Object)
	entities, _ := current["entities"].(ir.Object)
	merged := entities.Clone()
	if merged == nil {
		merged = ir.Object{}
	}
	for _, key := range res.Keys() {
		bucket, _ := merged[key].(ir.Object)
		bucket = bucket.Clone()
		if bucket == nil {
			bucket = ir.Object{}
		}
		for id, entity := range res.Entities[key] {
			bucket[id] = entity
		}
		merged[key] = bucket
	}

	next := current.Clone()
	if next == nil {
		next = ir.Object{}
	}
	next["entities"] = merged
	return next
}
