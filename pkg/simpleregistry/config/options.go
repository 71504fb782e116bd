package config

import (
	"fmt"
	"strings"

	"github.com/tendant/simple-registry/pkg/simpleregistry"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithBaseURL sets the externally visible server URL
func WithBaseURL(baseURL string) Option {
	return func(c *ServerConfig) error {
		c.BaseURL = strings.TrimRight(baseURL, "/")
		return nil
	}
}

// WithDatabase configures the package index backend
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithStorage adds or replaces a storage from a storage URL such as
// "memory://", "file:///var/lib/registry" or "s3://bucket?region=us-east-1"
func WithStorage(id, storageURL string) Option {
	return func(c *ServerConfig) error {
		storage, err := ParseStorageURL(id, storageURL)
		if err != nil {
			return err
		}
		c.Storages = upsertStorage(c.Storages, storage)
		return nil
	}
}

// WithStorages replaces all storages
func WithStorages(storages ...StorageConfig) Option {
	return func(c *ServerConfig) error {
		c.Storages = append([]StorageConfig(nil), storages...)
		return nil
	}
}

// WithRepository adds a repository to a storage
func WithRepository(storageID, repositoryID, layout string) Option {
	return func(c *ServerConfig) error {
		if layout != simpleregistry.LayoutPypi && layout != simpleregistry.LayoutNuget {
			return fmt.Errorf("unsupported layout: %s", layout)
		}
		c.Repositories = upsertRepository(c.Repositories, RepositoryConfig{
			StorageID: storageID, RepositoryID: repositoryID, Layout: layout,
		})
		return nil
	}
}

// WithRepositories replaces all repositories
func WithRepositories(repositories ...RepositoryConfig) Option {
	return func(c *ServerConfig) error {
		c.Repositories = append([]RepositoryConfig(nil), repositories...)
		return nil
	}
}

// WithNugetAPISecret sets the secret NuGet API keys are signed with
func WithNugetAPISecret(secret string) Option {
	return func(c *ServerConfig) error {
		c.NugetAPISecret = secret
		return nil
	}
}

// WithMaxMultipartMemory sets how much of an upload is buffered in memory
func WithMaxMultipartMemory(n int64) Option {
	return func(c *ServerConfig) error {
		if n <= 0 {
			return fmt.Errorf("max multipart memory must be positive, got: %d", n)
		}
		c.MaxMultipartMemory = n
		return nil
	}
}

func upsertStorage(storages []StorageConfig, storage StorageConfig) []StorageConfig {
	for i := range storages {
		if storages[i].ID == storage.ID {
			storages[i] = storage
			return storages
		}
	}
	return append(storages, storage)
}

func upsertRepository(repositories []RepositoryConfig, repo RepositoryConfig) []RepositoryConfig {
	for i := range repositories {
		if repositories[i].StorageID == repo.StorageID && repositories[i].RepositoryID == repo.RepositoryID {
			repositories[i] = repo
			return repositories
		}
	}
	return append(repositories, repo)
}
