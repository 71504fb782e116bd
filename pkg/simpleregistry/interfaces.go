package simpleregistry

import (
	"context"
	"io"
)

// StorageFacade resolves canonical paths to physical artifact locations and
// performs reads and validated writes against them.
type StorageFacade interface {
	// Resolve maps a canonical path within a repository to a location
	Resolve(ctx context.Context, locator RepositoryLocator, path string) (*ArtifactLocation, error)

	// ValidateAndStore writes content to the location; a failed write leaves nothing resolvable
	ValidateAndStore(ctx context.Context, location *ArtifactLocation, content io.Reader, params StoreParams) error

	// Open returns the stored artifact, or ErrArtifactNotFound
	Open(ctx context.Context, location *ArtifactLocation) (*Artifact, error)

	// Delete removes the stored artifact
	Delete(ctx context.Context, location *ArtifactLocation) error
}

// RepositoryConfig exposes repository configuration
type RepositoryConfig interface {
	Exists(ctx context.Context, locator RepositoryLocator) (bool, error)
	Get(ctx context.Context, locator RepositoryLocator) (*Repository, error)
	List(ctx context.Context) ([]Repository, error)
}

// BlobStore defines the interface for storage backends
type BlobStore interface {
	// Upload stores content under the key; the object becomes visible only once fully written
	Upload(ctx context.Context, key string, reader io.Reader, params UploadParams) error

	// Download opens the object for reading
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete deletes the object
	Delete(ctx context.Context, key string) error

	// GetObjectMeta retrieves metadata for an object
	GetObjectMeta(ctx context.Context, key string) (*ObjectMeta, error)
}

// PackageIndex keeps searchable records of stored artifacts
type PackageIndex interface {
	Record(ctx context.Context, record *ArtifactRecord) error
	Remove(ctx context.Context, locator RepositoryLocator, path string) error
	Search(ctx context.Context, query SearchQuery) ([]*ArtifactRecord, error)
	Count(ctx context.Context, query SearchQuery) (int, error)
}

// Dispatcher is the per-protocol dispatch contract
type Dispatcher interface {
	// Layout returns the repository layout served by the dispatcher
	Layout() string

	// Upload accepts a package into the repository
	Upload(ctx context.Context, req *UploadRequest) *Response

	// Download streams a stored package
	Download(ctx context.Context, req *DownloadRequest) *Response
}
