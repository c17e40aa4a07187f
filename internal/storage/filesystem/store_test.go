package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xurst/simple-generator/internal/storage"
)

func TestFilesystemStore_GetSet(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Get(ctx, storage.KeyHistory)
	assert.ErrorIs(t, err, storage.ErrBlobNotFound)

	err = store.Set(ctx, storage.KeyHistory, []byte(`[{"id":"r1"}]`))
	require.NoError(t, err)

	data, err := store.Get(ctx, storage.KeyHistory)
	require.NoError(t, err)
	assert.Equal(t, []byte(`[{"id":"r1"}]`), data)
}

func TestFilesystemStore_OverwriteSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, storage.KeyAccounts, []byte("v1")))
	require.NoError(t, store.Set(ctx, storage.KeyAccounts, []byte("v2")))

	// A fresh store over the same directory sees the last write
	reopened, err := NewStore(dir)
	require.NoError(t, err)
	data, err := reopened.Get(ctx, storage.KeyAccounts)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)
}

func TestFilesystemStore_KeySanitization(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "../escape/attempt", []byte("data")))

	// The blob must land inside the base directory
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, dir, filepath.Dir(filepath.Join(dir, entries[0].Name())))

	data, err := store.Get(ctx, "../escape/attempt")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), data)
}

func TestFilesystemStore_EmptyBasePath(t *testing.T) {
	_, err := NewStore("")
	assert.Error(t, err)
}
