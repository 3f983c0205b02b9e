package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		root, path, as string
		want           string
	}{
		{root: "src/docs", path: "src/docs", want: "docs"},
		{root: "src/docs", path: "src/docs/a/b.txt", want: "docs/a/b.txt"},
		{root: "file.txt", path: "file.txt", want: "file.txt"},
		{root: "file.txt", path: "file.txt", as: "renamed.txt", want: "renamed.txt"},
		{root: "src/docs", path: "src/docs/a.txt", as: "manual", want: "manual/a.txt"},
	}
	for _, tt := range tests {
		got, err := entryName(filepath.FromSlash(tt.root), filepath.FromSlash(tt.path), tt.as)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func execute(t *testing.T, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	docs := filepath.Join(dir, "src", "docs")
	require.NoError(t, os.MkdirAll(docs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "readme.txt"), []byte("read me"), 0o644))
	archive := filepath.Join(dir, "docs.zip")

	execute(t, "add", archive, docs)
	out := execute(t, "list", archive)
	assert.Contains(t, out, "docs/")
	assert.Contains(t, out, "docs/readme.txt")

	execute(t, "mv", archive, "docs/readme.txt", "README")
	execute(t, "comment", archive, "--set", "documentation")
	out = execute(t, "list", archive, "READ*")
	assert.Contains(t, out, "README")
	assert.NotContains(t, out, "docs/readme.txt")
	assert.Contains(t, out, "documentation")

	dest := filepath.Join(dir, "out")
	execute(t, "extract", archive, "-d", dest)
	data, err := os.ReadFile(filepath.Join(dest, "README"))
	require.NoError(t, err)
	assert.Equal(t, "read me", string(data))

	execute(t, "verify", archive)
}
