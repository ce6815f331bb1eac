package medialib

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "library"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func writeCapture(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("capture "+name), 0644))
	return path
}

func TestPersistAndListNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Persist(ctx, writeCapture(t, "a.jpg"), KindPhoto))
	require.NoError(t, store.Persist(ctx, writeCapture(t, "b.mjpeg"), KindVideo))
	require.NoError(t, store.Persist(ctx, writeCapture(t, "c.jpg"), KindPhoto))

	assets, err := store.ListAssets(ctx)
	require.NoError(t, err)
	require.Len(t, assets, 3)

	assert.Equal(t, "c.jpg", filepath.Base(assets[0].URI))
	assert.Equal(t, "b.mjpeg", filepath.Base(assets[1].URI))
	assert.Equal(t, KindVideo, assets[1].Kind)
	assert.Equal(t, "a.jpg", filepath.Base(assets[2].URI))

	for _, a := range assets {
		assert.NotEmpty(t, a.ID)
		assert.Equal(t, store.Dir(), filepath.Dir(a.URI))
		_, err := os.Stat(a.URI)
		assert.NoError(t, err)
	}
}

func TestPersistNameCollision(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Persist(ctx, writeCapture(t, "same.jpg"), KindPhoto))
	require.NoError(t, store.Persist(ctx, writeCapture(t, "same.jpg"), KindPhoto))

	assets, err := store.ListAssets(ctx)
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.NotEqual(t, assets[0].URI, assets[1].URI)
}

func TestPersistFileAlreadyInLibrary(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	inside := filepath.Join(store.Dir(), "IMG_0001.jpg")
	require.NoError(t, os.WriteFile(inside, []byte("x"), 0644))

	require.NoError(t, store.Persist(ctx, inside, KindPhoto))
	require.NoError(t, store.Persist(ctx, inside, KindPhoto))

	assets, err := store.ListAssets(ctx)
	require.NoError(t, err)
	require.Len(t, assets, 1)
}

func TestPersistRejectsBadInput(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	assert.Error(t, store.Persist(ctx, "", KindPhoto))
	assert.Error(t, store.Persist(ctx, writeCapture(t, "x.gif"), Kind("gif")))
	assert.Error(t, store.Persist(ctx, filepath.Join(t.TempDir(), "missing.jpg"), KindPhoto))
}

func TestReopenKeepsIndex(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "library")
	store, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.Persist(context.Background(), writeCapture(t, "a.jpg"), KindPhoto))
	require.NoError(t, store.Close())

	store, err = Open(dir)
	require.NoError(t, err)
	defer store.Close()

	assets, err := store.ListAssets(context.Background())
	require.NoError(t, err)
	assert.Len(t, assets, 1)
}

func TestRequestPermission(t *testing.T) {
	ctx := context.Background()

	ok, err := openTestStore(t).RequestPermission(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = openTestStore(t, WithPermission("denied")).RequestPermission(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = openTestStore(t, WithPermission("unreachable")).RequestPermission(ctx)
	assert.Error(t, err)
}
