package blob_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/todaycapital/statementlens/internal/blob"
	"github.com/todaycapital/statementlens/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	s, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	key := "statements/owner-1/abc.pdf"
	require.NoError(t, s.Put(ctx, key, "application/pdf", []byte("%PDF-1.4")))

	data, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), data)

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestLocalStore_Overwrite(t *testing.T) {
	ctx := context.Background()
	s, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "k.png", "image/png", []byte("one")))
	require.NoError(t, s.Put(ctx, "k.png", "image/png", []byte("two")))

	data, err := s.Get(ctx, "k.png")
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}

func TestLocalStore_GetMissing(t *testing.T) {
	s, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "statements/none.pdf")
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestLocalStore_DeleteMissingIsNoop(t *testing.T) {
	s, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, s.Delete(context.Background(), "statements/none.pdf"))
}

func TestLocalStore_KeysConfinedToRoot(t *testing.T) {
	ctx := context.Background()
	parent := t.TempDir()
	root := filepath.Join(parent, "uploads")
	s, err := blob.NewLocalStore(root)
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "../../escape.txt", "text/plain", []byte("x")))

	_, err = os.Stat(filepath.Join(parent, "escape.txt"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "escape.txt"))
	assert.NoError(t, err)
}

func TestLocalStore_EmptyKey(t *testing.T) {
	s, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, s.Put(context.Background(), "", "text/plain", []byte("x")))
}

func TestNew_Backends(t *testing.T) {
	s, err := blob.New(context.Background(), config.StorageConfig{Backend: "local", LocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &blob.LocalStore{}, s)

	_, err = blob.New(context.Background(), config.StorageConfig{Backend: "gcs"})
	assert.Error(t, err)
}
