package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "top.txt"), []byte("t"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "mid.txt"), []byte("m"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "b", "deep.txt"), []byte("d"), 0o644))

	files, err := CollectFiles(root)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		filepath.Join(root, "top.txt"),
		filepath.Join(root, "a", "mid.txt"),
		filepath.Join(root, "a", "b", "deep.txt"),
	}, files, "directories themselves must not be listed")
}

func TestCollectFilesEmptyRoot(t *testing.T) {
	files, err := CollectFiles(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestCollectFilesMissingRoot(t *testing.T) {
	_, err := CollectFiles(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}
