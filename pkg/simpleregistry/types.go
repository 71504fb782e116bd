package simpleregistry

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// Layout names understood by the registry
const (
	LayoutPypi  = "pypi"
	LayoutNuget = "nuget"
)

// RepositoryLocator identifies the target repository of a request
type RepositoryLocator struct {
	StorageID    string
	RepositoryID string
}

func (l RepositoryLocator) String() string {
	return l.StorageID + "/" + l.RepositoryID
}

// Repository is the configuration of a single repository
type Repository struct {
	StorageID    string
	RepositoryID string
	Layout       string
}

// Locator returns the locator addressing this repository
func (r Repository) Locator() RepositoryLocator {
	return RepositoryLocator{StorageID: r.StorageID, RepositoryID: r.RepositoryID}
}

// ArtifactLocation is a canonical path resolved against a configured repository
type ArtifactLocation struct {
	Repository Repository
	Path       string
	// Key is the blob key on the storage backend
	Key string
}

// Artifact is an opened artifact ready to be streamed to a client
type Artifact struct {
	Location    *ArtifactLocation
	Body        io.ReadCloser
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
}

// StoreParams carries what the facade records alongside the content
type StoreParams struct {
	Coordinate  ArtifactCoordinate
	ContentType string
	Metadata    map[string]string
}

// ObjectMeta contains metadata about an object in storage
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
}

// UploadParams contains parameters for uploading an object
type UploadParams struct {
	ContentType string
	Metadata    map[string]string
}

// ArtifactRecord is an index entry for a stored artifact
type ArtifactRecord struct {
	ID           uuid.UUID
	StorageID    string
	RepositoryID string
	Layout       string
	Name         string
	Version      string
	Filename     string
	Path         string
	Size         int64
	Checksum     string
	Metadata     map[string]string
	CreatedAt    time.Time
}

// SearchQuery selects artifact records from a package index
type SearchQuery struct {
	Locator           RepositoryLocator
	Term              string
	LatestOnly        bool
	IncludePrerelease bool
	Skip              int
	// Top limits the result size; zero means no limit
	Top int
}
