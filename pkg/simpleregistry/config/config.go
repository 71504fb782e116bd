package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-registry/pkg/simpleregistry"
	"github.com/tendant/simple-registry/pkg/simpleregistry/nuget"
	"github.com/tendant/simple-registry/pkg/simpleregistry/pypi"
	"github.com/tendant/simple-registry/pkg/simpleregistry/repo/memory"
	repopg "github.com/tendant/simple-registry/pkg/simpleregistry/repo/postgres"
	fsstorage "github.com/tendant/simple-registry/pkg/simpleregistry/storage/fs"
	memorystorage "github.com/tendant/simple-registry/pkg/simpleregistry/storage/memory"
	s3storage "github.com/tendant/simple-registry/pkg/simpleregistry/storage/s3"
	"github.com/tendant/simple-registry/pkg/simpleregistry/store"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:         "8080",
		Environment:  "development",
		DatabaseType: "memory",
		DBSchema:     "registry",
		Storages: []StorageConfig{
			{ID: "default", Type: "memory", Options: map[string]string{}},
		},
		Repositories: []RepositoryConfig{
			{StorageID: "default", RepositoryID: "pypi", Layout: simpleregistry.LayoutPypi},
			{StorageID: "default", RepositoryID: "nuget", Layout: simpleregistry.LayoutNuget},
		},
		MaxMultipartMemory: 32 << 20,
	}
}

// ServerConfig represents configuration of the registry server
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing
	// BaseURL is the externally visible URL of the server, used for redirects and feed links
	BaseURL string

	// Package index database
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	DBSchema     string // Postgres schema to use (default: registry)

	Storages     []StorageConfig
	Repositories []RepositoryConfig

	// NugetAPISecret signs the API keys accepted for NuGet push and delete; empty disables the check
	NugetAPISecret     string
	MaxMultipartMemory int64
}

// StorageConfig represents a blob store addressed by storage id
type StorageConfig struct {
	ID      string
	Type    string // "memory", "fs", "s3"
	Options map[string]string
}

// RepositoryConfig binds a repository to a storage and a layout
type RepositoryConfig struct {
	StorageID    string
	RepositoryID string
	Layout       string
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	if c.MaxMultipartMemory <= 0 {
		return errors.New("max_multipart_memory must be positive")
	}

	storages := make(map[string]bool)
	for _, s := range c.Storages {
		if s.ID == "" {
			return errors.New("storage id is required")
		}
		if storages[s.ID] {
			return fmt.Errorf("storage '%s' is configured twice", s.ID)
		}
		switch s.Type {
		case "memory", "fs", "s3":
		default:
			return fmt.Errorf("unsupported storage type '%s' for storage '%s'", s.Type, s.ID)
		}
		storages[s.ID] = true
	}

	repositories := make(map[string]bool)
	for _, r := range c.Repositories {
		locator := r.StorageID + "/" + r.RepositoryID
		if r.RepositoryID == "" {
			return fmt.Errorf("repository id is required for storage '%s'", r.StorageID)
		}
		if !storages[r.StorageID] {
			return fmt.Errorf("repository '%s' references unknown storage '%s'", locator, r.StorageID)
		}
		if r.Layout != simpleregistry.LayoutPypi && r.Layout != simpleregistry.LayoutNuget {
			return fmt.Errorf("repository '%s' has unsupported layout '%s'", locator, r.Layout)
		}
		if repositories[locator] {
			return fmt.Errorf("repository '%s' is configured twice", locator)
		}
		repositories[locator] = true
	}

	return nil
}

// Registry holds the collaborators built from a ServerConfig
type Registry struct {
	Repositories *memory.Repositories
	Index        simpleregistry.PackageIndex
	Facade       *store.Facade
	Pypi         *pypi.Adapter
	Nuget        *nuget.Adapter

	pool *pgxpool.Pool
}

// Close releases the database pool, if any
func (r *Registry) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// Build creates the registry collaborators from the server configuration
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reg := &Registry{Repositories: memory.NewRepositories()}
	for _, r := range c.Repositories {
		reg.Repositories.Add(simpleregistry.Repository{StorageID: r.StorageID, RepositoryID: r.RepositoryID, Layout: r.Layout})
	}

	index, pool, err := c.buildIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build package index: %w", err)
	}
	reg.Index = index
	reg.pool = pool

	options := []store.Option{store.WithIndex(index), store.WithLogger(logger)}
	for _, storageConfig := range c.Storages {
		bs, err := buildBlobStore(storageConfig)
		if err != nil {
			reg.Close()
			return nil, fmt.Errorf("failed to build storage %s: %w", storageConfig.ID, err)
		}
		options = append(options, store.WithBlobStore(storageConfig.ID, bs))
	}

	reg.Facade, err = store.New(reg.Repositories, options...)
	if err != nil {
		reg.Close()
		return nil, err
	}

	reg.Pypi = pypi.New(reg.Facade, pypi.WithLogger(logger))
	reg.Nuget = nuget.New(reg.Facade, index, nuget.WithLogger(logger))
	return reg, nil
}

// buildIndex creates the package index based on the configuration
func (c *ServerConfig) buildIndex(ctx context.Context) (simpleregistry.PackageIndex, *pgxpool.Pool, error) {
	switch c.DatabaseType {
	case "memory":
		return memory.NewIndex(), nil, nil
	case "postgres":
		cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		schema := c.DBSchema
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if schema == "" {
				return nil
			}
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		index := repopg.NewWithPool(pool)
		if err := index.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return index, pool, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// buildBlobStore creates a BlobStore based on the storage configuration
func buildBlobStore(config StorageConfig) (simpleregistry.BlobStore, error) {
	switch config.Type {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir: getString(config.Options, "base_dir", "./data/storage"),
		})

	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 getString(config.Options, "region", "us-east-1"),
			Bucket:                 getString(config.Options, "bucket", ""),
			Prefix:                 getString(config.Options, "prefix", ""),
			AccessKeyID:            getString(config.Options, "access_key_id", ""),
			SecretAccessKey:        getString(config.Options, "secret_access_key", ""),
			Endpoint:               getString(config.Options, "endpoint", ""),
			UsePathStyle:           getBool(config.Options, "path_style", false),
			EnableSSE:              getBool(config.Options, "sse", false),
			SSEAlgorithm:           getString(config.Options, "sse_algorithm", "AES256"),
			SSEKMSKeyID:            getString(config.Options, "sse_kms_key_id", ""),
			CreateBucketIfNotExist: getBool(config.Options, "create_bucket", false),
		})

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.Type)
	}
}

func getString(options map[string]string, key string, defaultValue string) string {
	if value, exists := options[key]; exists && value != "" {
		return value
	}
	return defaultValue
}

func getBool(options map[string]string, key string, defaultValue bool) bool {
	value, exists := options[key]
	if !exists {
		return defaultValue
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return b
}
