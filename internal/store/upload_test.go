package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileUploader(t *testing.T) {
	name := filepath.Join(t.TempDir(), "0.png")
	u := &FileUploader{}

	require.NoError(t, u.Upload(context.Background(), UploadParams{Name: name, Data: []byte("first")}))
	require.NoError(t, u.Upload(context.Background(), UploadParams{Name: name, Data: []byte("second")}))

	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestFileUploaderMissingDir(t *testing.T) {
	name := filepath.Join(t.TempDir(), "missing", "0.png")
	err := (&FileUploader{}).Upload(context.Background(), UploadParams{Name: name, Data: []byte("x")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
