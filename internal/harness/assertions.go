package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/normware/internal/ir"
	"github.com/roach88/normware/internal/journal"
)

// AssertionError provides detailed failure information with trace context.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s assertion failed:\n", e.Type)
	fmt.Fprintf(&sb, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&sb, "  actual:   %s\n", e.Actual)
	if len(e.Trace) > 0 {
		sb.WriteString("  trace:\n")
		for _, ev := range e.Trace {
			outcome := "forwarded"
			switch {
			case ev.Error != "":
				outcome = "failed: " + ev.Error
			case ev.Forwarded == nil:
				outcome = "stopped"
			}
			fmt.Fprintf(&sb, "    [%d] %s %s\n", ev.Seq, ev.Type, outcome)
		}
	}
	return sb.String()
}

// EvaluateAssertions checks every assertion against the final state and the
// journal of forwarded actions, returning one message per failure.
func EvaluateAssertions(ctx context.Context, result *Result, assertions []Assertion, j *journal.Journal) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertEntity:
			err = assertEntity(result, a)
		case AssertForwardedCount:
			err = assertForwardedCount(ctx, result, a, j)
		case AssertForwardedOrder:
			err = assertForwardedOrder(ctx, result, a, j)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

// assertEntity checks that state.entities[key][id] exists and that every
// listed field equals the expected value. Unlisted fields are ignored.
func assertEntity(result *Result, a Assertion) error {
	state, _ := result.State.(ir.Object)
	entities, _ := state["entities"].(ir.Object)
	bucket, _ := entities[a.Key].(ir.Object)
	entity, ok := bucket[a.ID].(ir.Object)
	if !ok {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("entity %s/%s", a.Key, a.ID),
			Actual:   "not found",
			Trace:    result.Trace,
		}
	}

	want, err := ir.FromAny(a.Fields)
	if err != nil {
		return fmt.Errorf("invalid expected fields: %w", err)
	}
	for name, expected := range want.(ir.Object) {
		actual, present := entity[name]
		if !present || !ir.Equal(expected, actual) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s/%s.%s = %s", a.Key, a.ID, name, render(expected)),
				Actual:   render(actual),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

// assertForwardedCount counts journal entries, optionally of one type.
func assertForwardedCount(ctx context.Context, result *Result, a Assertion, j *journal.Journal) error {
	entries, err := j.Entries(ctx, journal.Filter{Type: a.Action})
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	if len(entries) != a.Count {
		what := "forwarded actions"
		if a.Action != "" {
			what = fmt.Sprintf("forwarded %s actions", a.Action)
		}
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d %s", a.Count, what),
			Actual:   fmt.Sprintf("%d", len(entries)),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertForwardedOrder checks that the listed types were forwarded in the
// given relative order. Other forwarded types may appear in between.
func assertForwardedOrder(ctx context.Context, result *Result, a Assertion, j *journal.Journal) error {
	entries, err := j.Entries(ctx, journal.Filter{})
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	types := make([]string, len(entries))
	for i, e := range entries {
		types[i] = e.Type
	}

	pos := 0
	for _, want := range a.Actions {
		found := false
		for pos < len(types) {
			pos++
			if types[pos-1] == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     a.Type,
				Expected: strings.Join(a.Actions, " -> "),
				Actual:   strings.Join(types, " -> "),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}
