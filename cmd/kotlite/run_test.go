package main

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/gobwas/glob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.kt", "notes.txt", "lib/b.kt", "lib/deep/c.kt", ".hidden/d.kt"} {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("val x = 1\n"), 0o644))
	}

	rel := func(paths []string) []string {
		out := make([]string, len(paths))
		for i, p := range paths {
			r, err := filepath.Rel(root, p)
			require.NoError(t, err)
			out[i] = filepath.ToSlash(r)
		}
		sort.Strings(out)
		return out
	}

	all, err := collect(root, glob.MustCompile("**.kt", '/'))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.kt", "lib/b.kt", "lib/deep/c.kt"}, rel(all))

	lib, err := collect(root, glob.MustCompile("lib/*.kt", '/'))
	require.NoError(t, err)
	assert.Equal(t, []string{"lib/b.kt"}, rel(lib))

	single, err := collect(filepath.Join(root, "notes.txt"), glob.MustCompile("**.kt", '/'))
	require.NoError(t, err)
	assert.Len(t, single, 1)

	_, err = collect(filepath.Join(root, "missing"), glob.MustCompile("**.kt", '/'))
	assert.Error(t, err)
}
