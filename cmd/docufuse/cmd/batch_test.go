package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docufuse/docufuse/internal/orchestrate"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestDiscoverImagesFlat(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.png"))
	touch(t, filepath.Join(dir, "a.jpg"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "nested", "c.png"))

	paths, err := discoverImages([]string{dir}, false)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(dir, "a.jpg"), paths[0])
	assert.Equal(t, filepath.Join(dir, "b.png"), paths[1])
}

func TestDiscoverImagesRecursive(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.png"))
	touch(t, filepath.Join(dir, "nested", "deep", "b.TIF"))

	paths, err := discoverImages([]string{dir}, true)
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func TestDiscoverImagesExplicitFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "doc.weird")
	touch(t, file)

	// Explicitly named files are taken as-is, extension filter applies only
	// to directory scans.
	paths, err := discoverImages([]string{file}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{file}, paths)
}

func TestDiscoverImagesMissingPath(t *testing.T) {
	_, err := discoverImages([]string{"/nonexistent/scans"}, false)
	assert.Error(t, err)
}

func TestParseModeFlag(t *testing.T) {
	mode, err := parseModeFlag("sequential")
	require.NoError(t, err)
	assert.Equal(t, orchestrate.ModeSequential, *mode)

	_, err = parseModeFlag("race")
	assert.Error(t, err)
}
