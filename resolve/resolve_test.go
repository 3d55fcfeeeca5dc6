package resolve

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flowweaver/fw/inspector/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSource = `package sample

// Add adds two numbers.
func Add(a, b int) (sum int) {
	return a + b
}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestResolveRelativeSiblingFile(t *testing.T) {
	dir := t.TempDir()
	fromFile := writeFile(t, dir, "main.go", "package main\n")
	writeFile(t, dir, "helpers.go", sampleSource)

	r := New(&graph.Config{}, 0)
	file, err := r.Resolve(fromFile, "./helpers", nil)
	require.NoError(t, err)
	require.NotNil(t, file)
	assert.True(t, file.HasFunction("Add"))
}

func TestResolveCachesUntilMtimeChanges(t *testing.T) {
	dir := t.TempDir()
	fromFile := writeFile(t, dir, "main.go", "package main\n")
	writeFile(t, dir, "helpers.go", sampleSource)

	r := New(&graph.Config{}, 0)
	first, err := r.Resolve(fromFile, "./helpers", nil)
	require.NoError(t, err)
	second, err := r.Resolve(fromFile, "./helpers", nil)
	require.NoError(t, err)
	assert.Same(t, first, second, "unchanged mtime should reuse the cached parse")
}

func TestResolveReparsesOnContentChange(t *testing.T) {
	dir := t.TempDir()
	fromFile := writeFile(t, dir, "main.go", "package main\n")
	helperPath := writeFile(t, dir, "helpers.go", sampleSource)

	r := New(&graph.Config{}, 0)
	first, err := r.Resolve(fromFile, "./helpers", nil)
	require.NoError(t, err)
	require.True(t, first.HasFunction("Add"))

	updated := sampleSource + "\nfunc Sub(a, b int) (diff int) { return a - b }\n"
	require.NoError(t, os.WriteFile(helperPath, []byte(updated), 0o644))
	future := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(helperPath, future, future))

	second, err := r.Resolve(fromFile, "./helpers", nil)
	require.NoError(t, err)
	assert.True(t, second.HasFunction("Sub"), "content change must trigger a re-parse")
}

func TestResolveDetectsCycle(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.go", "package sample\n")
	r := New(&graph.Config{}, 0)

	resolvedA, err := resolvePath(a, "./a", r.config)
	require.NoError(t, err)

	_, err = r.Resolve(a, "./a", []string{resolvedA})
	require.Error(t, err)
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Contains(t, cycleErr.Chain, resolvedA)
}

func TestPickPackageFilePrefersMain(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "util.go", "package sample\n")
	writeFile(t, dir, "main.go", "package sample\n")

	picked, err := pickPackageFile(dir, &graph.Config{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "main.go"), picked)
}

func TestResolveExternalBypassesCache(t *testing.T) {
	dir := t.TempDir()
	fromFile := writeFile(t, dir, "main.go", "package main\n")
	writeFile(t, dir, "helpers.go", sampleSource)

	r := New(&graph.Config{}, 0)
	_, err := r.Resolve(fromFile, "./helpers", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	file, err := r.ResolveExternal(fromFile, "./helpers")
	require.NoError(t, err)
	assert.True(t, file.HasFunction("Add"))
	assert.Equal(t, 1, r.Len(), "external resolution must not populate the cache")
}
