package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/photoloader/pkg/photo"
)

func newPhotoDir(t *testing.T, files map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}
	return dir
}

func TestNewDirSource(t *testing.T) {
	dir := newPhotoDir(t, nil)
	_, err := NewDirSource(dir)
	require.NoError(t, err)

	_, err = NewDirSource(filepath.Join(dir, "missing"))
	assert.Error(t, err)

	file := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = NewDirSource(file)
	assert.ErrorContains(t, err, "not a directory")
}

func TestLoadBatch(t *testing.T) {
	dir := newPhotoDir(t, map[string][]byte{
		"a.jpg": []byte("aaa"),
		"b.jpg": []byte("bbbb"),
	})
	src, err := NewDirSource(dir)
	require.NoError(t, err)

	results, err := src.LoadBatch(context.Background(), []photo.Key{"a.jpg", "b.jpg", "missing.jpg"})
	require.NoError(t, err)

	assert.Equal(t, []byte("aaa"), results["a.jpg"])
	assert.Equal(t, []byte("bbbb"), results["b.jpg"])

	// A missing file is a confirmed absence, not an unresolved key.
	bytes, ok := results["missing.jpg"]
	assert.True(t, ok)
	assert.Nil(t, bytes)
}

func TestLoadBatchIgnoresPathTraversal(t *testing.T) {
	dir := newPhotoDir(t, map[string][]byte{"safe.jpg": []byte("ok")})
	src, err := NewDirSource(dir)
	require.NoError(t, err)

	results, err := src.LoadBatch(context.Background(), []photo.Key{"../safe.jpg"})
	require.NoError(t, err)

	// The traversal is stripped; the key resolves inside the root.
	assert.Equal(t, []byte("ok"), results["../safe.jpg"])
}

func TestLoadBatchCancelledContext(t *testing.T) {
	dir := newPhotoDir(t, map[string][]byte{"a.jpg": []byte("aaa")})
	src, err := NewDirSource(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = src.LoadBatch(ctx, []photo.Key{"a.jpg"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPreloadCandidates(t *testing.T) {
	dir := newPhotoDir(t, map[string][]byte{
		"c.jpg": []byte("c"),
		"a.jpg": []byte("a"),
		"b.jpg": []byte("b"),
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))

	src, err := NewDirSource(dir)
	require.NoError(t, err)

	keys, err := src.PreloadCandidates(context.Background())
	require.NoError(t, err)

	// Sorted, regular files only.
	assert.Equal(t, []photo.Key{"a.jpg", "b.jpg", "c.jpg"}, keys)
}

func TestPreloadBatch(t *testing.T) {
	dir := newPhotoDir(t, map[string][]byte{"a.jpg": []byte("aaa")})
	src, err := NewDirSource(dir)
	require.NoError(t, err)

	results, err := src.PreloadBatch(context.Background(), []photo.Key{"a.jpg"})
	require.NoError(t, err)
	assert.Equal(t, []byte("aaa"), results["a.jpg"])
}
