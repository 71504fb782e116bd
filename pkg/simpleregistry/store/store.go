// Package store is the default StorageFacade. It binds storage ids to blob
// stores, checks repositories against a RepositoryConfig and keeps a
// PackageIndex in step with successful writes and deletes.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-registry/pkg/simpleregistry"
)

// Facade implements simpleregistry.StorageFacade over blob stores
type Facade struct {
	repositories simpleregistry.RepositoryConfig
	blobStores   map[string]simpleregistry.BlobStore
	index        simpleregistry.PackageIndex
	logger       *slog.Logger
}

// Option configures a Facade
type Option func(*Facade)

// WithBlobStore binds a blob store to a storage id
func WithBlobStore(storageID string, store simpleregistry.BlobStore) Option {
	return func(f *Facade) {
		f.blobStores[storageID] = store
	}
}

// WithIndex sets the package index updated on store and delete
func WithIndex(index simpleregistry.PackageIndex) Option {
	return func(f *Facade) {
		f.index = index
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(f *Facade) {
		f.logger = logger
	}
}

// New creates a storage facade
func New(repositories simpleregistry.RepositoryConfig, opts ...Option) (*Facade, error) {
	if repositories == nil {
		return nil, errors.New("repository config is required")
	}
	f := &Facade{
		repositories: repositories,
		blobStores:   make(map[string]simpleregistry.BlobStore),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Resolve maps a canonical path to its location on the repository's storage
func (f *Facade) Resolve(ctx context.Context, locator simpleregistry.RepositoryLocator, path string) (*simpleregistry.ArtifactLocation, error) {
	repo, err := f.repositories.Get(ctx, locator)
	if err != nil {
		return nil, err
	}
	if _, ok := f.blobStores[repo.StorageID]; !ok {
		return nil, fmt.Errorf("%w: %s", simpleregistry.ErrStorageNotFound, repo.StorageID)
	}
	return &simpleregistry.ArtifactLocation{
		Repository: *repo,
		Path:       path,
		Key:        repo.RepositoryID + "/" + path,
	}, nil
}

func (f *Facade) blobStore(location *simpleregistry.ArtifactLocation) (simpleregistry.BlobStore, error) {
	bs, ok := f.blobStores[location.Repository.StorageID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", simpleregistry.ErrStorageNotFound, location.Repository.StorageID)
	}
	return bs, nil
}

// countingHasher tracks size and sha256 of the streamed content
type countingHasher struct {
	hash hash.Hash
	size int64
}

func (c *countingHasher) Write(p []byte) (int, error) {
	c.size += int64(len(p))
	return c.hash.Write(p)
}

// ValidateAndStore streams content to the blob store and records it in the index
func (f *Facade) ValidateAndStore(ctx context.Context, location *simpleregistry.ArtifactLocation, content io.Reader, params simpleregistry.StoreParams) error {
	if location == nil {
		return errors.New("artifact location is required")
	}
	if content == nil {
		return errors.New("artifact content is required")
	}
	if params.Coordinate.Path() != location.Path {
		return fmt.Errorf("%w: coordinate %s does not match location %s",
			simpleregistry.ErrMalformedIdentifier, params.Coordinate.Path(), location.Path)
	}

	bs, err := f.blobStore(location)
	if err != nil {
		return err
	}

	counter := &countingHasher{hash: sha256.New()}
	err = bs.Upload(ctx, location.Key, io.TeeReader(content, counter), simpleregistry.UploadParams{
		ContentType: params.ContentType,
	})
	if err != nil {
		return &simpleregistry.StorageError{Storage: location.Repository.StorageID, Key: location.Key, Op: "store", Err: err}
	}

	if f.index == nil {
		return nil
	}

	record := &simpleregistry.ArtifactRecord{
		ID:           uuid.New(),
		StorageID:    location.Repository.StorageID,
		RepositoryID: location.Repository.RepositoryID,
		Layout:       location.Repository.Layout,
		Name:         params.Coordinate.Name,
		Version:      params.Coordinate.Version,
		Filename:     params.Coordinate.Filename,
		Path:         location.Path,
		Size:         counter.size,
		Checksum:     hex.EncodeToString(counter.hash.Sum(nil)),
		Metadata:     params.Metadata,
		CreatedAt:    time.Now().UTC(),
	}
	if err := f.index.Record(ctx, record); err != nil {
		// blob is stored; index failures only affect search
		f.logger.Warn("Failed to index artifact",
			"storage_id", record.StorageID, "repository_id", record.RepositoryID, "path", record.Path, "error", err)
	}

	return nil
}

// Open returns the stored artifact with its metadata
func (f *Facade) Open(ctx context.Context, location *simpleregistry.ArtifactLocation) (*simpleregistry.Artifact, error) {
	bs, err := f.blobStore(location)
	if err != nil {
		return nil, err
	}

	meta, err := bs.GetObjectMeta(ctx, location.Key)
	if err != nil {
		if errors.Is(err, simpleregistry.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", simpleregistry.ErrArtifactNotFound, location.Path)
		}
		return nil, &simpleregistry.StorageError{Storage: location.Repository.StorageID, Key: location.Key, Op: "stat", Err: err}
	}

	body, err := bs.Download(ctx, location.Key)
	if err != nil {
		if errors.Is(err, simpleregistry.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", simpleregistry.ErrArtifactNotFound, location.Path)
		}
		return nil, &simpleregistry.StorageError{Storage: location.Repository.StorageID, Key: location.Key, Op: "open", Err: err}
	}

	return &simpleregistry.Artifact{
		Location:    location,
		Body:        body,
		Size:        meta.Size,
		ContentType: meta.ContentType,
		UpdatedAt:   meta.UpdatedAt,
		ETag:        meta.ETag,
	}, nil
}

// Delete removes the artifact and its index record
func (f *Facade) Delete(ctx context.Context, location *simpleregistry.ArtifactLocation) error {
	bs, err := f.blobStore(location)
	if err != nil {
		return err
	}

	if err := bs.Delete(ctx, location.Key); err != nil {
		if errors.Is(err, simpleregistry.ErrObjectNotFound) {
			return fmt.Errorf("%w: %s", simpleregistry.ErrArtifactNotFound, location.Path)
		}
		return &simpleregistry.StorageError{Storage: location.Repository.StorageID, Key: location.Key, Op: "delete", Err: err}
	}

	if f.index != nil {
		if err := f.index.Remove(ctx, location.Repository.Locator(), location.Path); err != nil {
			f.logger.Warn("Failed to remove artifact from index",
				"storage_id", location.Repository.StorageID, "repository_id", location.Repository.RepositoryID,
				"path", location.Path, "error", err)
		}
	}

	return nil
}
