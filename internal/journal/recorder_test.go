package journal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/normware/internal/action"
	"github.com/roach88/normware/internal/dispatch"
	"github.com/roach88/normware/internal/ir"
)

func TestRecorder_AppendsAndForwards(t *testing.T) {
	j := openTestJournal(t, WithIDGenerator(NewFixedGenerator("1", "2")))

	var reduced []string
	store := dispatch.New(func(state ir.Value, a action.Action) ir.Value {
		reduced = append(reduced, a.Type)
		return state
	}, ir.Null{}, j.Recorder())

	require.NoError(t, store.Dispatch(action.Action{Type: "FIRST"}))
	require.NoError(t, store.Dispatch(action.Action{Type: "SECOND", Payload: ir.Bool(false)}))

	assert.Equal(t, []string{"FIRST", "SECOND"}, reduced)

	entries, err := j.Entries(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, `{"type":"FIRST"}`, entries[0].Body)
	assert.Equal(t, `{"payload":false,"type":"SECOND"}`, entries[1].Body)
}

func TestRecorder_AppendFailureStopsAction(t *testing.T) {
	j := openTestJournal(t, WithIDGenerator(NewFixedGenerator("dup", "dup")))

	reduced := 0
	store := dispatch.New(func(state ir.Value, a action.Action) ir.Value {
		reduced++
		return state
	}, ir.Null{}, j.Recorder())

	require.NoError(t, store.Dispatch(action.Action{Type: "A"}))
	require.Error(t, store.Dispatch(action.Action{Type: "B"}))
	assert.Equal(t, 1, reduced)
}
