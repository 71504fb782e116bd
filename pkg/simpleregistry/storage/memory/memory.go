package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"sync"
	"time"

	"github.com/tendant/simple-registry/pkg/simpleregistry"
)

type object struct {
	data        []byte
	contentType string
	updatedAt   time.Time
	etag        string
}

// Backend is an in-memory implementation of the simpleregistry.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
}

// New creates a new in-memory storage backend
func New() simpleregistry.BlobStore {
	return &Backend{
		objects: make(map[string]object),
	}
}

// GetObjectMeta retrieves metadata for an object in memory
func (b *Backend) GetObjectMeta(ctx context.Context, key string) (*simpleregistry.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	if !exists {
		return nil, simpleregistry.ErrObjectNotFound
	}

	return &simpleregistry.ObjectMeta{
		Key:         key,
		Size:        int64(len(obj.data)),
		ContentType: obj.contentType,
		UpdatedAt:   obj.updatedAt,
		ETag:        obj.etag,
	}, nil
}

// Upload reads the whole content before publishing it, so readers never see a partial object
func (b *Backend) Upload(ctx context.Context, key string, reader io.Reader, params simpleregistry.UploadParams) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	contentType := params.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	sum := md5.Sum(data)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[key] = object{
		data:        data,
		contentType: contentType,
		updatedAt:   time.Now().UTC(),
		etag:        hex.EncodeToString(sum[:]),
	}
	return nil
}

// Download downloads content directly
func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	if !exists {
		return nil, simpleregistry.ErrObjectNotFound
	}

	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Delete deletes content
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[key]; !exists {
		return simpleregistry.ErrObjectNotFound
	}

	delete(b.objects, key)
	return nil
}
