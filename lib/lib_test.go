package lib

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"squish/pkg/fsutil"
)

func TestPackListUnpack(t *testing.T) {
	root := t.TempDir()
	shared := []byte("shared body shared body shared body")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "one.txt"), shared, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "two.txt"), shared, 0o644))

	archivePath := filepath.Join(t.TempDir(), "roundtrip.squish")
	files, err := fsutil.CollectFiles(root)
	require.NoError(t, err)

	size, err := Pack(root, archivePath, files, Options{MaxThreads: 2})
	require.NoError(t, err)
	assert.Greater(t, size, int64(0))

	summary, err := List(archivePath)
	require.NoError(t, err)
	assert.Len(t, summary.Files, 2)
	assert.Equal(t, uint64(1), summary.UniqueChunks)
	assert.Equal(t, size, summary.ArchiveSize)

	out := t.TempDir()
	require.NoError(t, Unpack(archivePath, out, Options{MaxThreads: 2}))

	for _, rel := range []string{"one.txt", filepath.Join("sub", "two.txt")} {
		got, err := os.ReadFile(filepath.Join(out, rel))
		require.NoError(t, err)
		assert.Equal(t, shared, got)
	}
}

func TestListMissingArchive(t *testing.T) {
	_, err := List(filepath.Join(t.TempDir(), "nope.squish"))
	assert.Error(t, err)
}
