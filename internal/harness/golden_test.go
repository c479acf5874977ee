package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/normware/internal/ir"
)

// Regenerate with:
//
//	go test ./internal/harness -run TestRunWithGolden -update
func TestRunWithGolden_BlogArticles(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "blog_articles.yaml"))
	require.NoError(t, err)

	result := RunWithGolden(t, scenario)
	assert.True(t, result.Pass)
	assert.Len(t, result.Trace, 4)
}

func TestSnapshot_OmitsEmptyFields(t *testing.T) {
	r := NewResult()
	r.Trace = []TraceEvent{
		{Seq: 1, Type: "X", Dispatched: ir.Object{"type": ir.String("X")}},
	}

	data, err := Snapshot("s", r)
	require.NoError(t, err)
	assert.Equal(t, `{"scenario":"s","state":null,"trace":[{"dispatched":{"type":"X"},"seq":1,"type":"X"}]}`, string(data))
}
