package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tendant/simple-registry/pkg/simpleregistry"
)

// Repositories implements simpleregistry.RepositoryConfig from a static list
type Repositories struct {
	mu    sync.RWMutex
	repos map[simpleregistry.RepositoryLocator]simpleregistry.Repository
}

// NewRepositories creates a repository config holding repos
func NewRepositories(repos ...simpleregistry.Repository) *Repositories {
	r := &Repositories{repos: make(map[simpleregistry.RepositoryLocator]simpleregistry.Repository)}
	for _, repo := range repos {
		r.Add(repo)
	}
	return r
}

// Add registers or replaces a repository
func (r *Repositories) Add(repo simpleregistry.Repository) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repos[repo.Locator()] = repo
}

func (r *Repositories) Exists(ctx context.Context, locator simpleregistry.RepositoryLocator) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.repos[locator]
	return ok, nil
}

func (r *Repositories) Get(ctx context.Context, locator simpleregistry.RepositoryLocator) (*simpleregistry.Repository, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	repo, ok := r.repos[locator]
	if !ok {
		return nil, fmt.Errorf("%w: %s", simpleregistry.ErrRepositoryNotFound, locator)
	}
	return &repo, nil
}

func (r *Repositories) List(ctx context.Context) ([]simpleregistry.Repository, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]simpleregistry.Repository, 0, len(r.repos))
	for _, repo := range r.repos {
		result = append(result, repo)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Locator().String() < result[j].Locator().String()
	})
	return result, nil
}
