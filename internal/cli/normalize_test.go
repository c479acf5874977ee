package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/normware/internal/journal"
)

const articleJSON = `{
	"type": "ARTICLE_LOADED",
	"payload": {"id": 1, "title": "Hello", "author": {"id": 7, "name": "Ada"}},
	"meta": {"schema": "article", "page": 2}
}`

func runNormalizeCmd(t *testing.T, opts *RootOptions, stdin string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewNormalizeCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestNormalizeText(t *testing.T) {
	input := writeFile(t, t.TempDir(), "action.json", articleJSON)

	output, err := runNormalizeCmd(t, &RootOptions{Format: "text", Schemas: writeSchemaDir(t)}, "", input)
	require.NoError(t, err)
	assert.Contains(t, output, markOK+" ARTICLE_LOADED normalized (2 entities)")
	assert.Contains(t, output, `"result": 1`)
	assert.Contains(t, output, `"page": 2`)
	assert.NotContains(t, output, `"schema"`)
}

func TestNormalizeJSONFromStdin(t *testing.T) {
	output, err := runNormalizeCmd(t, &RootOptions{Format: "json", Schemas: writeSchemaDir(t)}, articleJSON, "-")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Type       string         `json:"type"`
			Normalized bool           `json:"normalized"`
			Entities   int            `json:"entities"`
			Action     map[string]any `json:"action"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Normalized)
	assert.Equal(t, 2, resp.Data.Entities)

	payload := resp.Data.Action["payload"].(map[string]any)
	users := payload["entities"].(map[string]any)["users"].(map[string]any)
	assert.Equal(t, "Ada", users["7"].(map[string]any)["name"])
	assert.Equal(t, map[string]any{"page": float64(2)}, resp.Data.Action["meta"])
}

func TestNormalizePassThrough(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no meta", `{"type":"PING","payload":{"id":1}}`},
		{"no schema", `{"type":"PING","payload":{"id":1},"meta":{"page":1}}`},
		{"no payload", `{"type":"PING","meta":{"schema":"user"}}`},
		{"error action", `{"type":"PING","error":true,"payload":{"id":1},"meta":{"schema":"user"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := runNormalizeCmd(t, &RootOptions{Format: "json", Schemas: writeSchemaDir(t)}, tt.input, "-")
			require.NoError(t, err)

			var resp struct {
				Data struct {
					Normalized bool            `json:"normalized"`
					Action     json.RawMessage `json:"action"`
				} `json:"data"`
			}
			require.NoError(t, json.Unmarshal([]byte(output), &resp))
			assert.False(t, resp.Data.Normalized)
			assert.JSONEq(t, tt.input, string(resp.Data.Action))
		})
	}
}

func TestNormalizeFailure(t *testing.T) {
	input := `{"type":"USER_LOADED","payload":{"name":"nobody"},"meta":{"schema":"user"}}`

	output, err := runNormalizeCmd(t, &RootOptions{Format: "text", Schemas: writeSchemaDir(t)}, input, "-")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, "Error [MISSING_ID]")
}

func TestNormalizeInvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"not json", `{`, ErrCodeInvalidAction},
		{"unknown schema", `{"type":"X","payload":{},"meta":{"schema":"nope"}}`, ErrCodeInvalidAction},
		{"missing type", `{"payload":{}}`, ErrCodeInvalidAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := runNormalizeCmd(t, &RootOptions{Format: "text", Schemas: writeSchemaDir(t)}, tt.input, "-")
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, output, "Error ["+tt.want+"]")
		})
	}
}

func TestNormalizeMissingFile(t *testing.T) {
	_, err := runNormalizeCmd(t, &RootOptions{Format: "text", Schemas: writeSchemaDir(t)}, "", "/nonexistent/action.json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestNormalizeRequiresSchemas(t *testing.T) {
	output, err := runNormalizeCmd(t, &RootOptions{Format: "text"}, `{"type":"PING"}`, "-")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, output, "no schemas directory")
}

func TestNormalizeRecordsJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "actions.db")
	opts := &RootOptions{Format: "text", Schemas: writeSchemaDir(t), Journal: dbPath}

	_, err := runNormalizeCmd(t, opts, articleJSON, "-")
	require.NoError(t, err)
	_, err = runNormalizeCmd(t, opts, `{"type":"PING"}`, "-")
	require.NoError(t, err)

	j, err := journal.Open(dbPath)
	require.NoError(t, err)
	defer j.Close()

	entries, err := j.Entries(context.Background(), journal.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "ARTICLE_LOADED", entries[0].Type)
	assert.Equal(t, int64(1), entries[0].Seq)
	assert.Equal(t, "PING", entries[1].Type)
	assert.Equal(t, int64(2), entries[1].Seq)
	assert.NotContains(t, entries[0].Body, `"schema"`)
	assert.NoError(t, entries[0].Verify())
}

func TestNormalizeFailureIsNotJournaled(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "actions.db")
	opts := &RootOptions{Format: "text", Schemas: writeSchemaDir(t), Journal: dbPath}

	_, err := runNormalizeCmd(t, opts, `{"type":"X","payload":{"id":[]},"meta":{"schema":"user"}}`, "-")
	require.Error(t, err)

	j, err := journal.Open(dbPath)
	require.NoError(t, err)
	defer j.Close()

	entries, err := j.Entries(context.Background(), journal.Filter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}
