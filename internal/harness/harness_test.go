package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/normware/internal/ir"
)

const blogSchemas = `package schemas

entity: user: key: "users"

entity: article: {
	key: "articles"
	fields: {
		author:   "user"
		comments: "[comment]"
	}
}

entity: comment: {
	key: "comments"
	fields: commenter: "user"
}
`

func writeSchemas(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blog.cue"), []byte(src), 0644))
	return dir
}

func boolPtr(b bool) *bool { return &b }

func articleAction() map[string]any {
	return map[string]any{
		"type": "ARTICLE_LOADED",
		"payload": map[string]any{
			"id":     1,
			"title":  "Hello",
			"author": map[string]any{"id": 7, "name": "Ada"},
			"comments": []any{
				map[string]any{"id": 10, "commenter": map[string]any{"id": 7, "name": "Ada"}},
				map[string]any{"id": 11, "commenter": map[string]any{"id": 8, "name": "Grace"}},
			},
		},
		"meta": map[string]any{"schema": "article"},
	}
}

func TestRun_NormalizesAndMergesState(t *testing.T) {
	scenario := &Scenario{
		Name:        "merge",
		Description: "Normalized entities land in state",
		Schemas:     writeSchemas(t, blogSchemas),
		Steps: []Step{
			{
				Dispatch: articleAction(),
				Expect: &Expect{
					Normalized:     boolPtr(true),
					SchemaStripped: boolPtr(true),
					Result:         1,
				},
			},
		},
		Assertions: []Assertion{
			{Type: AssertEntity, Key: "users", ID: "8", Fields: map[string]any{"name": "Grace"}},
			{Type: AssertEntity, Key: "comments", ID: "10", Fields: map[string]any{"commenter": 7}},
			{Type: AssertEntity, Key: "articles", ID: "1", Fields: map[string]any{"comments": []any{10, 11}}},
			{Type: AssertForwardedCount, Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 1)
	ev := result.Trace[0]
	assert.Equal(t, int64(1), ev.Seq)
	assert.Equal(t, "ARTICLE_LOADED", ev.Type)
	assert.Empty(t, ev.Error)
	assert.Equal(t, ir.Object{}, ev.Forwarded["meta"])

	state := result.State.(ir.Object)
	users := state["entities"].(ir.Object)["users"].(ir.Object)
	assert.Len(t, users, 2)
}

func TestRun_PassThroughCases(t *testing.T) {
	scenario := &Scenario{
		Name:        "passthrough",
		Description: "Actions the normalizer must not touch",
		Schemas:     writeSchemas(t, blogSchemas),
		Steps: []Step{
			{Dispatch: map[string]any{"type": "NO_META", "payload": map[string]any{"id": 1}}, Expect: &Expect{Passthrough: boolPtr(true)}},
			{Dispatch: map[string]any{"type": "NO_SCHEMA", "payload": map[string]any{"id": 1}, "meta": map[string]any{"page": 2}}, Expect: &Expect{Passthrough: boolPtr(true)}},
			{Dispatch: map[string]any{"type": "NO_PAYLOAD", "meta": map[string]any{"schema": "user"}}, Expect: &Expect{Passthrough: boolPtr(true), SchemaStripped: boolPtr(false)}},
			{Dispatch: map[string]any{"type": "FAILED", "error": true, "payload": map[string]any{"id": 1}, "meta": map[string]any{"schema": "user"}}, Expect: &Expect{Passthrough: boolPtr(true), Payload: map[string]any{"id": 1}}},
		},
		Assertions: []Assertion{
			{Type: AssertForwardedCount, Count: 4},
			{Type: AssertForwardedOrder, Actions: []string{"NO_META", "NO_PAYLOAD", "FAILED"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	for _, ev := range result.Trace {
		assert.True(t, ir.Equal(ev.Dispatched, ev.Forwarded), "%s changed", ev.Type)
	}
	assert.Equal(t, ir.Object{"entities": ir.Object{}}, result.State)
}

func TestRun_ErrorStopsAction(t *testing.T) {
	scenario := &Scenario{
		Name:        "missing_id",
		Description: "A payload without id is not forwarded",
		Schemas:     writeSchemas(t, blogSchemas),
		Steps: []Step{
			{
				Dispatch: map[string]any{
					"type":    "USER_LOADED",
					"payload": map[string]any{"name": "nobody"},
					"meta":    map[string]any{"schema": "user"},
				},
				Expect: &Expect{Error: "MISSING_ID"},
			},
		},
		Assertions: []Assertion{
			{Type: AssertForwardedCount, Count: 0},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 1)
	assert.Equal(t, "MISSING_ID", result.Trace[0].Error)
	assert.Nil(t, result.Trace[0].Forwarded)
}

func TestRun_ErrorMatchesMessageFragment(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "Error expectations match messages too",
		Schemas:     writeSchemas(t, blogSchemas),
		Steps: []Step{
			{
				Dispatch: map[string]any{
					"type":    "USER_LOADED",
					"payload": []any{"not", "users"},
					"meta":    map[string]any{"schema": "user"},
				},
				Expect: &Expect{Error: "expects an object"},
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "TYPE_MISMATCH", result.Trace[0].Error)
}

func TestRun_FailedExpectations(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong",
		Description: "Every expectation here is wrong",
		Schemas:     writeSchemas(t, blogSchemas),
		Steps: []Step{
			{
				Dispatch: articleAction(),
				Expect: &Expect{
					Passthrough:    boolPtr(true),
					SchemaStripped: boolPtr(false),
					Result:         2,
				},
			},
			{
				Dispatch: map[string]any{"type": "PING"},
				Expect:   &Expect{Error: "MISSING_ID"},
			},
		},
		Assertions: []Assertion{
			{Type: AssertEntity, Key: "users", ID: "99"},
			{Type: AssertForwardedCount, Count: 5},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 6)
	assert.Contains(t, result.Errors[0], "steps[0] ARTICLE_LOADED: passthrough = false, want true")
	assert.Contains(t, result.Errors[2], "result = 1, want 2")
	assert.Contains(t, result.Errors[3], `expected error "MISSING_ID", dispatch succeeded`)
	assert.Contains(t, result.Errors[4], "entity users/99")
}

func TestRun_UnexpectedErrorFailsStep(t *testing.T) {
	scenario := &Scenario{
		Name:        "unexpected",
		Description: "An error without an error expectation fails",
		Schemas:     writeSchemas(t, blogSchemas),
		Steps: []Step{
			{Dispatch: map[string]any{
				"type":    "USER_LOADED",
				"payload": map[string]any{"id": true},
				"meta":    map[string]any{"schema": "user"},
			}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected error")
	assert.Contains(t, result.Errors[0], "INVALID_ID")
}

func TestRun_UnknownSchemaNameIsRunError(t *testing.T) {
	scenario := &Scenario{
		Name:        "unknown",
		Description: "meta.schema must name a compiled schema",
		Schemas:     writeSchemas(t, blogSchemas),
		Steps: []Step{
			{Dispatch: map[string]any{
				"type":    "X",
				"payload": map[string]any{"id": 1},
				"meta":    map[string]any{"schema": "nope"},
			}},
		},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps[0]")
	assert.Contains(t, err.Error(), `unknown schema "nope"`)
}

func TestRun_InvalidSchemas(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad",
		Description: "Schemas that do not compile",
		Schemas:     writeSchemas(t, "package schemas\n\nentity: post: fields: author: \"ghost\"\n"),
		Steps:       []Step{{Dispatch: map[string]any{"type": "PING"}}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile schemas")
}

func TestRun_Deterministic(t *testing.T) {
	scenario := &Scenario{
		Name:        "determinism",
		Description: "Two runs produce identical snapshots",
		Schemas:     writeSchemas(t, blogSchemas),
		Steps: []Step{
			{Dispatch: articleAction()},
			{Dispatch: map[string]any{"type": "PING"}},
		},
	}

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := Snapshot(scenario.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestMergeEntities_LaterWins(t *testing.T) {
	state := ir.Object{"entities": ir.Object{
		"users": ir.Object{"1": ir.Object{"id": ir.Int(1), "name": ir.String("old")}},
	}}
	payload := ir.Object{
		"result": ir.Int(1),
		"entities": ir.Object{
			"users": ir.Object{"1": ir.Object{"id": ir.Int(1), "name": ir.String("new")}},
			"posts": ir.Object{"9": ir.Object{"id": ir.Int(9)}},
		},
	}

	next := mergeEntities(state, actionWithPayload(payload)).(ir.Object)
	entities := next["entities"].(ir.Object)
	assert.Equal(t, ir.String("new"), entities["users"].(ir.Object)["1"].(ir.Object)["name"])
	assert.Contains(t, entities, "posts")

	// The previous state is untouched.
	old := state["entities"].(ir.Object)["users"].(ir.Object)["1"].(ir.Object)
	assert.Equal(t, ir.String("old"), old["name"])
}

func TestMergeEntities_IgnoresOtherPayloads(t *testing.T) {
	state := ir.Object{"entities": ir.Object{}}
	assert.Equal(t, state, mergeEntities(state, actionWithPayload(ir.Object{"id": ir.Int(1)})))
	assert.Equal(t, state, mergeEntities(state, actionWithPayload(nil)))
}
