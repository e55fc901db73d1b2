package hosting

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalStore_SaveAndResolve(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	url, err := store.Save("result.png", []byte("imagedata"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, OutputRoute))
	assert.True(t, strings.HasSuffix(url, "_result.png"))

	path, ok := store.Resolve(url)
	require.True(t, ok)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "imagedata", string(data))
}

func TestLocalStore_SaveCollisionFree(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	url1, err := store.Save("same.png", []byte("one"))
	require.NoError(t, err)
	url2, err := store.Save("same.png", []byte("two"))
	require.NoError(t, err)
	assert.NotEqual(t, url1, url2)
}

func TestLocalStore_SanitizesNames(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	url, err := store.Save("../../etc/passwd my file", []byte("x"))
	require.NoError(t, err)
	assert.NotContains(t, url, "..")
	assert.NotContains(t, url, " ")

	path, ok := store.Resolve(url)
	require.True(t, ok)
	rel, err := filepath.Rel(store.Dir(), path)
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(rel, ".."))
}

func TestLocalStore_ResolveRejectsForeignURLs(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	_, ok := store.Resolve("https://cdn.example/a.png")
	assert.False(t, ok)

	_, ok = store.Resolve(OutputRoute + "missing.png")
	assert.False(t, ok)
}

func TestLocalStore_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "outputs")
	_, err := NewLocalStore(dir, zap.NewNop())
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestEnsureExt(t *testing.T) {
	assert.Equal(t, "a.png", EnsureExt("a", "image/png"))
	assert.Equal(t, "a.jpg", EnsureExt("a", "image/jpeg"))
	assert.Equal(t, "a.mp4", EnsureExt("a", "video/mp4"))
	assert.Equal(t, "a.wav", EnsureExt("a", "audio/wav"))
	// Existing extensions are kept even when they disagree.
	assert.Equal(t, "a.png", EnsureExt("a.png", "image/jpeg"))
	// Unknown content types leave the name alone.
	assert.Equal(t, "a", EnsureExt("a", "application/x-thing"))
}
