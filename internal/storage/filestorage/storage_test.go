package storage_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	storage "vidhub/internal/storage/filestorage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupFileStorage(t *testing.T) *storage.LocalFileStorage {
	t.Helper()

	fs, err := storage.NewLocalFileStorage(t.TempDir())
	require.NoError(t, err)

	return fs
}

func createTestFile(t *testing.T, filename, content string) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)

	_, err = part.Write([]byte(content))
	require.NoError(t, err)

	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	file, header, err := req.FormFile("file")
	require.NoError(t, err)
	file.Close()

	return header
}

func TestLocalFileStorage_Save(t *testing.T) {
	fs := setupFileStorage(t)
	ctx := context.Background()

	t.Run("successful save", func(t *testing.T) {
		testFile := createTestFile(t, "avatar.png", "image bytes")

		filePath, size, err := fs.Save(ctx, testFile, "staging")
		require.NoError(t, err)

		assert.Equal(t, int64(11), size)
		assert.Equal(t, "staging", filepath.Dir(filePath))
		assert.True(t, strings.HasSuffix(filePath, "_avatar.png"),
			"stored name keeps the original filename as suffix")

		data, err := os.ReadFile(fs.GetFullPath(filePath))
		require.NoError(t, err)
		assert.Equal(t, "image bytes", string(data))
	})

	t.Run("same filename never clobbers", func(t *testing.T) {
		first, _, err := fs.Save(ctx, createTestFile(t, "same.png", "one"), "staging")
		require.NoError(t, err)

		second, _, err := fs.Save(ctx, createTestFile(t, "same.png", "two"), "staging")
		require.NoError(t, err)

		assert.NotEqual(t, first, second)
	})

	t.Run("save with cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(ctx)
		cancel()

		_, _, err := fs.Save(ctx, createTestFile(t, "x.png", "x"), "staging")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestLocalFileStorage_Delete(t *testing.T) {
	fs := setupFileStorage(t)
	ctx := context.Background()

	filePath, _, err := fs.Save(ctx, createTestFile(t, "gone.png", "bye"), "")
	require.NoError(t, err)

	require.NoError(t, fs.Delete(ctx, filePath))

	_, err = os.Stat(fs.GetFullPath(filePath))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalFileStorage_GetFullPath(t *testing.T) {
	fs := setupFileStorage(t)

	full := fs.GetFullPath("staging/file.png")
	assert.Equal(t, filepath.Join(fs.GetBaseDir(), "staging", "file.png"), full)
}
