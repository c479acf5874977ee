package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const blogSchemas = `package schemas

entity: user: key: "users"

entity: article: {
	key: "articles"
	fields: author: "user"
}
`

// writeSchemaDir writes blog.cue into a fresh directory.
func writeSchemaDir(t *testing.T) string {
	t.Helper()
	return writeCUE(t, blogSchemas)
}

func writeCUE(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blog.cue"), []byte(src), 0644))
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
