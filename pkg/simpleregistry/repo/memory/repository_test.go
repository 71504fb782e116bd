package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-registry/pkg/simpleregistry"
	"github.com/tendant/simple-registry/pkg/simpleregistry/repo/memory"
)

var nugetLocator = simpleregistry.RepositoryLocator{StorageID: "storage-nuget-test", RepositoryID: "nuget-releases-1"}

func TestRepositories(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewRepositories(
		simpleregistry.Repository{StorageID: "storage0", RepositoryID: "pypi-releases", Layout: simpleregistry.LayoutPypi},
		simpleregistry.Repository{StorageID: nugetLocator.StorageID, RepositoryID: nugetLocator.RepositoryID, Layout: simpleregistry.LayoutNuget},
	)

	t.Run("Get", func(t *testing.T) {
		repo, err := repos.Get(ctx, nugetLocator)
		require.NoError(t, err)
		assert.Equal(t, simpleregistry.LayoutNuget, repo.Layout)
	})

	t.Run("Get_NotFound", func(t *testing.T) {
		_, err := repos.Get(ctx, simpleregistry.RepositoryLocator{StorageID: "storage0", RepositoryID: "missing"})
		assert.ErrorIs(t, err, simpleregistry.ErrRepositoryNotFound)
	})

	t.Run("Exists", func(t *testing.T) {
		ok, err := repos.Exists(ctx, nugetLocator)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("List", func(t *testing.T) {
		list, err := repos.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "pypi-releases", list[0].RepositoryID)
	})
}

func newRecord(name, version string) *simpleregistry.ArtifactRecord {
	return &simpleregistry.ArtifactRecord{
		ID:           uuid.New(),
		StorageID:    nugetLocator.StorageID,
		RepositoryID: nugetLocator.RepositoryID,
		Layout:       simpleregistry.LayoutNuget,
		Name:         name,
		Version:      version,
		Filename:     name + "." + version + ".nupkg",
		Path:         name + "/" + version + "/" + name + "." + version + ".nupkg",
		Metadata:     map[string]string{simpleregistry.MetaTitle: name},
		CreatedAt:    time.Now(),
	}
}

func TestIndex_SearchAndCount(t *testing.T) {
	ctx := context.Background()
	index := memory.NewIndex()

	require.NoError(t, index.Record(ctx, newRecord("Org.Carlspring.Strongbox.Nuget.Test.Search", "1.0.0")))
	require.NoError(t, index.Record(ctx, newRecord("Org.Carlspring.Strongbox.Nuget.Test.Search", "1.1.0")))
	require.NoError(t, index.Record(ctx, newRecord("Other.Package", "1.0.0")))

	q := simpleregistry.SearchQuery{Locator: nugetLocator, Term: "Test", LatestOnly: true}
	count, err := index.Count(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	q.Top = 30
	results, err := index.Search(ctx, q)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "1.1.0", results[0].Version)

	all, err := index.Count(ctx, simpleregistry.SearchQuery{Locator: nugetLocator})
	require.NoError(t, err)
	assert.Equal(t, 3, all)

	other, err := index.Count(ctx, simpleregistry.SearchQuery{Locator: simpleregistry.RepositoryLocator{StorageID: "x", RepositoryID: "y"}})
	require.NoError(t, err)
	assert.Equal(t, 0, other)
}

func TestIndex_RecordReplacesAndRemove(t *testing.T) {
	ctx := context.Background()
	index := memory.NewIndex()

	first := newRecord("Demo", "1.0.0")
	require.NoError(t, index.Record(ctx, first))
	second := newRecord("Demo", "1.0.0")
	second.Size = 42
	require.NoError(t, index.Record(ctx, second))

	results, err := index.Search(ctx, simpleregistry.SearchQuery{Locator: nugetLocator})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, first.ID, results[0].ID)
	assert.Equal(t, int64(42), results[0].Size)

	// Returned records are copies
	results[0].Metadata[simpleregistry.MetaTitle] = "mutated"
	again, _ := index.Search(ctx, simpleregistry.SearchQuery{Locator: nugetLocator})
	assert.Equal(t, "Demo", again[0].Metadata[simpleregistry.MetaTitle])

	require.NoError(t, index.Remove(ctx, nugetLocator, first.Path))
	count, err := index.Count(ctx, simpleregistry.SearchQuery{Locator: nugetLocator})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
