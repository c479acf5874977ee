package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/normware/internal/ir"
)

// Snapshot renders the deterministic part of a result as canonical JSON:
// {"scenario": name, "state": ..., "trace": [...]}.
func Snapshot(name string, result *Result) ([]byte, error) {
	trace := make(ir.Array, len(result.Trace))
	for i, ev := range result.Trace {
		trace[i] = ev.Value()
	}
	state := result.State
	if state == nil {
		state = ir.Null{}
	}
	return ir.MarshalCanonical(ir.Object{
		"scenario": ir.String(name),
		"state":    state,
		"trace":    trace,
	})
}

// RunWithGolden runs a scenario and compares its snapshot with
// testdata/golden/<name>.golden. Run tests with -update to regenerate.
func RunWithGolden(t *testing.T, scenario *Scenario) *Result {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		t.Fatalf("scenario %s failed to run: %v", scenario.Name, err)
	}
	if !result.Pass {
		t.Errorf("scenario %s failed:", scenario.Name)
		for _, msg := range result.Errors {
			t.Errorf("  %s", msg)
		}
	}

	AssertGolden(t, scenario.Name, result)
	return result
}

// AssertGolden compares a result snapshot with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		t.Fatalf("failed to render snapshot: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
