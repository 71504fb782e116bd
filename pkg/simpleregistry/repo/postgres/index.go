package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-registry/pkg/simpleregistry"
)

// Schema holds the statements creating the artifact table used by the index
var Schema = []string{`
CREATE TABLE IF NOT EXISTS artifact (
	id UUID PRIMARY KEY,
	storage_id VARCHAR(255) NOT NULL,
	repository_id VARCHAR(255) NOT NULL,
	layout VARCHAR(50) NOT NULL,
	name VARCHAR(255) NOT NULL,
	version VARCHAR(255) NOT NULL,
	filename VARCHAR(512) NOT NULL,
	path TEXT NOT NULL,
	size BIGINT NOT NULL DEFAULT 0,
	checksum VARCHAR(128),
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMP NOT NULL DEFAULT (now() AT TIME ZONE 'utc'),
	UNIQUE (storage_id, repository_id, path)
)`,
	`CREATE INDEX IF NOT EXISTS artifact_name_idx ON artifact (storage_id, repository_id, lower(name))`,
}

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Index implements simpleregistry.PackageIndex using PostgreSQL
type Index struct {
	db DBTX
}

// New creates a new PostgreSQL index
func New(db DBTX) *Index {
	return &Index{db: db}
}

// NewWithPool creates a new PostgreSQL index with connection pool
func NewWithPool(pool *pgxpool.Pool) *Index {
	return &Index{db: pool}
}

// EnsureSchema creates the artifact table when missing
func (i *Index) EnsureSchema(ctx context.Context) error {
	for _, stmt := range Schema {
		if _, err := i.db.Exec(ctx, stmt); err != nil {
			return i.handlePostgresError("ensure schema", err)
		}
	}
	return nil
}

// Error handling helper
func (i *Index) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (i *Index) Record(ctx context.Context, record *simpleregistry.ArtifactRecord) error {
	query := `
		INSERT INTO artifact (
			id, storage_id, repository_id, layout, name, version,
			filename, path, size, checksum, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (storage_id, repository_id, path) DO UPDATE SET
			layout = EXCLUDED.layout,
			name = EXCLUDED.name,
			version = EXCLUDED.version,
			filename = EXCLUDED.filename,
			size = EXCLUDED.size,
			checksum = EXCLUDED.checksum,
			metadata = EXCLUDED.metadata`

	metadata := record.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	_, err := i.db.Exec(ctx, query,
		record.ID, record.StorageID, record.RepositoryID, record.Layout, record.Name, record.Version,
		record.Filename, record.Path, record.Size, record.Checksum, metadata, record.CreatedAt)
	if err != nil {
		return i.handlePostgresError("record artifact", err)
	}
	return nil
}

func (i *Index) Remove(ctx context.Context, locator simpleregistry.RepositoryLocator, path string) error {
	query := `DELETE FROM artifact WHERE storage_id = $1 AND repository_id = $2 AND path = $3`
	if _, err := i.db.Exec(ctx, query, locator.StorageID, locator.RepositoryID, path); err != nil {
		return i.handlePostgresError("remove artifact", err)
	}
	return nil
}

// candidates narrows by repository and term in SQL; version selection and
// ordering happen in MatchRecords so both indexes agree.
func (i *Index) candidates(ctx context.Context, q simpleregistry.SearchQuery) ([]*simpleregistry.ArtifactRecord, error) {
	query := `
		SELECT id, storage_id, repository_id, layout, name, version,
		       filename, path, size, COALESCE(checksum, ''), metadata, created_at
		FROM artifact
		WHERE storage_id = $1 AND repository_id = $2
		  AND ($3::text = '' OR name ILIKE '%' || $3::text || '%'
		       OR metadata->>'title' ILIKE '%' || $3::text || '%'
		       OR metadata->>'description' ILIKE '%' || $3::text || '%'
		       OR metadata->>'summary' ILIKE '%' || $3::text || '%'
		       OR metadata->>'tags' ILIKE '%' || $3::text || '%')`

	rows, err := i.db.Query(ctx, query, q.Locator.StorageID, q.Locator.RepositoryID, strings.TrimSpace(q.Term))
	if err != nil {
		return nil, i.handlePostgresError("search artifacts", err)
	}
	defer rows.Close()

	var records []*simpleregistry.ArtifactRecord
	for rows.Next() {
		var rec simpleregistry.ArtifactRecord
		if err := rows.Scan(
			&rec.ID, &rec.StorageID, &rec.RepositoryID, &rec.Layout, &rec.Name, &rec.Version,
			&rec.Filename, &rec.Path, &rec.Size, &rec.Checksum, &rec.Metadata, &rec.CreatedAt); err != nil {
			return nil, i.handlePostgresError("scan artifact", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, i.handlePostgresError("search artifacts", err)
	}
	return records, nil
}

func (i *Index) Search(ctx context.Context, q simpleregistry.SearchQuery) ([]*simpleregistry.ArtifactRecord, error) {
	records, err := i.candidates(ctx, q)
	if err != nil {
		return nil, err
	}
	return simpleregistry.PageRecords(simpleregistry.MatchRecords(records, q), q.Skip, q.Top), nil
}

func (i *Index) Count(ctx context.Context, q simpleregistry.SearchQuery) (int, error) {
	records, err := i.candidates(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(simpleregistry.MatchRecords(records, q)), nil
}
