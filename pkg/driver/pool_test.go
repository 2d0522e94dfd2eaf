package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kotlite/pkg/runtime"
)

func writeScripts(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestParseFilesKeepsOrder(t *testing.T) {
	files := map[string]string{}
	var paths []string
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("s%02d.kt", i)
		files[name] = fmt.Sprintf("val v%d = %d", i, i)
	}
	files["broken.kt"] = "val = 1"
	dir := writeScripts(t, files)
	for i := 0; i < 20; i++ {
		paths = append(paths, filepath.Join(dir, fmt.Sprintf("s%02d.kt", i)))
	}
	paths = append(paths, filepath.Join(dir, "broken.kt"), filepath.Join(dir, "missing.kt"))

	results, stats, err := ParseFiles(context.Background(), paths, 3)
	require.NoError(t, err)
	require.Len(t, results, len(paths))
	for i, res := range results[:20] {
		assert.Equal(t, paths[i], res.Job.Path)
		assert.NoError(t, res.Err)
		require.NotNil(t, res.Script)
		assert.Len(t, res.Script.Statements, 1)
	}
	assert.Error(t, results[20].Err)
	assert.Error(t, results[21].Err)
	assert.True(t, os.IsNotExist(results[21].Err))

	assert.Equal(t, PoolStats{Workers: 3, Submitted: 22, Parsed: 20, Failed: 2}, stats)
}

func TestParseFilesCancelled(t *testing.T) {
	dir := writeScripts(t, map[string]string{"a.kt": "1"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := ParseFiles(ctx, []string{filepath.Join(dir, "a.kt")}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckFiles(t *testing.T) {
	dir := writeScripts(t, map[string]string{
		"ok.kt":     "fun twice(n: Int): Int = n * 2\nval x = twice(4)",
		"syntax.kt": "val = 1",
		"types.kt":  "val s: String = 1",
	})
	paths := []string{
		filepath.Join(dir, "ok.kt"),
		filepath.Join(dir, "syntax.kt"),
		filepath.Join(dir, "types.kt"),
	}
	env, _ := newTestEnvironment(t, Options{})

	reports, err := env.CheckFiles(context.Background(), paths, 2)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.NoError(t, reports[0].Err)
	assert.Contains(t, reports[1].Err.Error(), "Parse Error")
	assert.Contains(t, reports[2].Err.Error(), "type mismatch")
	assert.Equal(t, 1, env.cache.Len())

	// The analyzed script is reused by a later run of the same file.
	content, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	res, err := env.Run(paths[0], string(content))
	require.NoError(t, err)
	assert.Equal(t, runtime.IntValue(8), res.Variables["x"])
	assert.Equal(t, 1, env.cache.Len())
}
