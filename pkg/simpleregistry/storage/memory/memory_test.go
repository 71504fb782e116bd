package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-registry/pkg/simpleregistry"
)

func TestMemoryBackend_BasicOps(t *testing.T) {
	backend := New()
	ctx := context.Background()
	key := "pypi-releases/demo/1.0.0/demo-1.0.0.tar.gz"

	err := backend.Upload(ctx, key, bytes.NewReader([]byte("sdist")), simpleregistry.UploadParams{ContentType: "application/gzip"})
	require.NoError(t, err)

	meta, err := backend.GetObjectMeta(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(5), meta.Size)
	assert.Equal(t, "application/gzip", meta.ContentType)
	assert.NotEmpty(t, meta.ETag)

	rc, err := backend.Download(ctx, key)
	require.NoError(t, err)
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "sdist", string(got))

	require.NoError(t, backend.Delete(ctx, key))
	_, err = backend.Download(ctx, key)
	assert.ErrorIs(t, err, simpleregistry.ErrObjectNotFound)
	assert.ErrorIs(t, backend.Delete(ctx, key), simpleregistry.ErrObjectNotFound)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestMemoryBackend_FailedUploadLeavesNothing(t *testing.T) {
	backend := New()
	ctx := context.Background()

	err := backend.Upload(ctx, "k", io.MultiReader(bytes.NewReader([]byte("partial")), failingReader{}), simpleregistry.UploadParams{})
	require.Error(t, err)

	_, err = backend.GetObjectMeta(ctx, "k")
	assert.ErrorIs(t, err, simpleregistry.ErrObjectNotFound)
}

func TestMemoryBackend_DefaultContentType(t *testing.T) {
	backend := New()
	ctx := context.Background()
	require.NoError(t, backend.Upload(ctx, "k", bytes.NewReader(nil), simpleregistry.UploadParams{}))

	meta, err := backend.GetObjectMeta(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", meta.ContentType)
	assert.Equal(t, int64(0), meta.Size)
}
