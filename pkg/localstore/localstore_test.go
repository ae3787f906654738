package localstore_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noam-katz/lomda-api/pkg/localstore"
)

func TestLocalStoreRequiresDirectory(t *testing.T) {
	_, err := localstore.New("  ", "/uploads", zerolog.Nop())
	require.Error(t, err)
}

func TestLocalStoreUploadWritesFile(t *testing.T) {
	dir := t.TempDir()
	store, err := localstore.New(dir, "/uploads/", zerolog.Nop())
	require.NoError(t, err)

	url, err := store.Upload(context.Background(), "avatar.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "/uploads/"))
	require.True(t, strings.HasSuffix(url, "-avatar.png"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	content, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	require.Equal(t, "png-bytes", string(content))
}

func TestLocalStoreUploadAvoidsNameCollisions(t *testing.T) {
	dir := t.TempDir()
	store, err := localstore.New(dir, "/uploads", zerolog.Nop())
	require.NoError(t, err)

	first, err := store.Upload(context.Background(), "notes.pdf", strings.NewReader("one"))
	require.NoError(t, err)
	second, err := store.Upload(context.Background(), "notes.pdf", strings.NewReader("two"))
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestLocalStoreUploadHonorsCancelledContext(t *testing.T) {
	dir := t.TempDir()
	store, err := localstore.New(dir, "/uploads", zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.Upload(ctx, "late.png", strings.NewReader("data"))
	require.ErrorIs(t, err, context.Canceled)
}
