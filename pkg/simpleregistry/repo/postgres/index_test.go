package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-registry/pkg/simpleregistry"
)

// newTestIndex connects to TEST_DATABASE_URL and isolates the test in its own schema
func newTestIndex(t *testing.T) *Index {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err, "Failed to connect to test database")
	t.Cleanup(pool.Close)
	require.NoError(t, pool.Ping(ctx), "Failed to ping test database")

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	t.Cleanup(conn.Release)

	schema := "registry_test_" + uuid.New().String()[:8]
	_, err = conn.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = conn.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
	})
	_, err = conn.Exec(ctx, "SET search_path TO "+schema)
	require.NoError(t, err)

	index := New(conn)
	require.NoError(t, index.EnsureSchema(ctx))
	return index
}

func TestPostgresIndex(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()
	locator := simpleregistry.RepositoryLocator{StorageID: "storage-nuget-test", RepositoryID: "nuget-releases-1"}

	record := func(name, version string) *simpleregistry.ArtifactRecord {
		return &simpleregistry.ArtifactRecord{
			ID:           uuid.New(),
			StorageID:    locator.StorageID,
			RepositoryID: locator.RepositoryID,
			Layout:       simpleregistry.LayoutNuget,
			Name:         name,
			Version:      version,
			Filename:     name + "." + version + ".nupkg",
			Path:         name + "/" + version + "/" + name + "." + version + ".nupkg",
			Size:         10,
			Checksum:     "abc",
			Metadata:     map[string]string{simpleregistry.MetaDescription: "package " + name},
			CreatedAt:    time.Now().UTC(),
		}
	}

	require.NoError(t, index.Record(ctx, record("Org.Example.Search", "1.0.0")))
	require.NoError(t, index.Record(ctx, record("Org.Example.Search", "1.2.0")))
	require.NoError(t, index.Record(ctx, record("Unrelated", "1.0.0")))
	// upsert on the same path
	require.NoError(t, index.Record(ctx, record("Unrelated", "1.0.0")))

	count, err := index.Count(ctx, simpleregistry.SearchQuery{Locator: locator, Term: "search", LatestOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := index.Search(ctx, simpleregistry.SearchQuery{Locator: locator, Top: 30})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "1.2.0", results[0].Version)
	assert.Equal(t, "package Org.Example.Search", results[0].Metadata[simpleregistry.MetaDescription])

	require.NoError(t, index.Remove(ctx, locator, results[0].Path))
	count, err = index.Count(ctx, simpleregistry.SearchQuery{Locator: locator})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
