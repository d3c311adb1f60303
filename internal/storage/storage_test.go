package storage_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tramitia/process-tracker/internal/config"
	"github.com/tramitia/process-tracker/internal/storage"
	"go.uber.org/zap"
)

func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	t.Run("upload then download", func(t *testing.T) {
		path, size, err := s.Upload(ctx, "Certificado.PDF", "application/pdf", strings.NewReader("contenido"))
		require.NoError(t, err)
		assert.Equal(t, int64(len("contenido")), size)
		assert.True(t, strings.HasPrefix(path, "documents/"))
		assert.True(t, strings.HasSuffix(path, ".pdf"))

		rc, err := s.Download(ctx, path)
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "contenido", string(data))
	})

	t.Run("uploads get distinct paths", func(t *testing.T) {
		a, _, err := s.Upload(ctx, "a.pdf", "application/pdf", strings.NewReader("a"))
		require.NoError(t, err)
		b, _, err := s.Upload(ctx, "a.pdf", "application/pdf", strings.NewReader("b"))
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := s.Download(ctx, "documents/2026/01/missing.pdf")
		assert.ErrorIs(t, err, storage.ErrFileNotFound)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		path, _, err := s.Upload(ctx, "b.png", "image/png", strings.NewReader("png"))
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, path))
		require.NoError(t, s.Delete(ctx, path))
		_, err = s.Download(ctx, path)
		assert.ErrorIs(t, err, storage.ErrFileNotFound)
	})

	t.Run("rejects paths outside the root", func(t *testing.T) {
		_, err := s.Download(ctx, "../../etc/passwd")
		assert.ErrorIs(t, err, storage.ErrInvalidPath)
		assert.ErrorIs(t, s.Delete(ctx, "/etc/passwd"), storage.ErrInvalidPath)
	})
}

func TestIsAllowedDocument(t *testing.T) {
	assert.True(t, storage.IsAllowedDocument("habilitacion.pdf"))
	assert.True(t, storage.IsAllowedDocument("FOTO.JPG"))
	assert.False(t, storage.IsAllowedDocument("script.sh"))
	assert.False(t, storage.IsAllowedDocument("sin-extension"))
}

func TestNewStorage(t *testing.T) {
	t.Run("local", func(t *testing.T) {
		s, err := storage.NewStorage(&config.StorageConfig{Mode: "local", LocalBasePath: t.TempDir()}, zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &storage.LocalStorage{}, s)
	})

	t.Run("azure without connection string", func(t *testing.T) {
		_, err := storage.NewStorage(&config.StorageConfig{Mode: "azure"}, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := storage.NewStorage(&config.StorageConfig{Mode: "ftp"}, zap.NewNop())
		assert.Error(t, err)
	})
}
