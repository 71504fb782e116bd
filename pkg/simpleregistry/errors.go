package simpleregistry

import (
	"errors"
	"fmt"
	"strings"
)

// Error types
var (
	// ErrMalformedIdentifier indicates an artifact identifier could not be turned into a coordinate
	ErrMalformedIdentifier = errors.New("malformed artifact identifier")

	// ErrArtifactNotFound indicates a coordinate does not resolve to a stored artifact
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrObjectNotFound indicates a blob key does not exist on a storage backend
	ErrObjectNotFound = errors.New("object not found")

	// ErrRepositoryNotFound indicates the storage/repository pair is not configured
	ErrRepositoryNotFound = errors.New("repository not found")

	// ErrStorageNotFound indicates no blob store is bound to a storage id
	ErrStorageNotFound = errors.New("storage not found")
)

// ValidationError reports a protocol field whose value is outside its allow-list
type ValidationError struct {
	Field   string
	Value   string
	Allowed []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Invalid value for %q parameter. Valid values are [%s]", e.Field, strings.Join(e.Allowed, ", "))
}

// StorageError represents an error related to storage operations
type StorageError struct {
	Storage string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on storage %s: %v", e.Op, e.Key, e.Storage, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means the requested artifact does not exist.
// Deleted and never-stored artifacts are not distinguished.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrArtifactNotFound) || errors.Is(err, ErrObjectNotFound)
}
