package memory

import (
	"context"
	"sync"

	"github.com/tendant/simple-registry/pkg/simpleregistry"
)

type recordKey struct {
	locator simpleregistry.RepositoryLocator
	path    string
}

// Index implements simpleregistry.PackageIndex using in-memory storage
type Index struct {
	mu      sync.RWMutex
	records map[recordKey]*simpleregistry.ArtifactRecord
}

// NewIndex creates a new in-memory package index
func NewIndex() *Index {
	return &Index{records: make(map[recordKey]*simpleregistry.ArtifactRecord)}
}

// Record inserts or replaces the record for the artifact path
func (i *Index) Record(ctx context.Context, record *simpleregistry.ArtifactRecord) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	recordCopy := copyRecord(record)
	key := recordKey{
		locator: simpleregistry.RepositoryLocator{StorageID: record.StorageID, RepositoryID: record.RepositoryID},
		path:    record.Path,
	}
	if existing, ok := i.records[key]; ok {
		recordCopy.ID = existing.ID
		recordCopy.CreatedAt = existing.CreatedAt
	}
	i.records[key] = recordCopy
	return nil
}

func (i *Index) Remove(ctx context.Context, locator simpleregistry.RepositoryLocator, path string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.records, recordKey{locator: locator, path: path})
	return nil
}

func (i *Index) Search(ctx context.Context, query simpleregistry.SearchQuery) ([]*simpleregistry.ArtifactRecord, error) {
	matched := simpleregistry.MatchRecords(i.snapshot(query.Locator), query)
	return simpleregistry.PageRecords(matched, query.Skip, query.Top), nil
}

func (i *Index) Count(ctx context.Context, query simpleregistry.SearchQuery) (int, error) {
	return len(simpleregistry.MatchRecords(i.snapshot(query.Locator), query)), nil
}

// snapshot returns copies of the records of one repository
func (i *Index) snapshot(locator simpleregistry.RepositoryLocator) []*simpleregistry.ArtifactRecord {
	i.mu.RLock()
	defer i.mu.RUnlock()

	var result []*simpleregistry.ArtifactRecord
	for key, rec := range i.records {
		if key.locator == locator {
			result = append(result, copyRecord(rec))
		}
	}
	return result
}

func copyRecord(record *simpleregistry.ArtifactRecord) *simpleregistry.ArtifactRecord {
	c := *record
	if record.Metadata != nil {
		c.Metadata = make(map[string]string, len(record.Metadata))
		for k, v := range record.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
