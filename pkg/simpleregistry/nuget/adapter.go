package nuget

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tendant/simple-registry/pkg/simpleregistry"
)

// Index metadata keys specific to NuGet packages
const (
	metaAuthors    = "authors"
	metaProjectURL = "project_url"
	metaLicenseURL = "license_url"
)

// OData query options understood by the search endpoints
const (
	queryFilter            = "$filter"
	querySkip              = "$skip"
	queryTop               = "$top"
	querySearchTerm        = "searchTerm"
	queryIncludePrerelease = "includePrerelease"
	queryID                = "id"

	filterLatest         = "IsLatestVersion"
	filterAbsoluteLatest = "IsAbsoluteLatestVersion"
)

// Adapter serves the NuGet v2 protocol on top of a storage facade
type Adapter struct {
	facade simpleregistry.StorageFacade
	index  simpleregistry.PackageIndex
	logger *slog.Logger
	tmpDir string
	now    func() time.Time
}

// Option configures an Adapter
type Option func(*Adapter)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithTempDir sets where pushed packages are spooled when they are not seekable
func WithTempDir(dir string) Option {
	return func(a *Adapter) {
		a.tmpDir = dir
	}
}

// New creates a NuGet adapter. The index backs the search endpoints.
func New(facade simpleregistry.StorageFacade, index simpleregistry.PackageIndex, opts ...Option) *Adapter {
	a := &Adapter{
		facade: facade,
		index:  index,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Layout returns the nuget layout name
func (a *Adapter) Layout() string {
	return simpleregistry.LayoutNuget
}

// Upload pushes a nupkg. Identity comes from the nuspec inside the package.
func (a *Adapter) Upload(ctx context.Context, req *simpleregistry.UploadRequest) *simpleregistry.Response {
	if req.Content == nil {
		return simpleregistry.TextResponse(simpleregistry.StatusBadRequest, "Missing package content")
	}

	pkg, cleanup, err := a.seekable(req.Content, req.Size)
	if err != nil {
		a.logger.Error("Failed to buffer package", "storage_id", req.Locator.StorageID,
			"repository_id", req.Locator.RepositoryID, "error", err)
		return simpleregistry.ErrorResponse(simpleregistry.StatusInternalError, err)
	}
	defer cleanup()

	spec, err := ReadNuspec(pkg, pkg.Size())
	if err != nil {
		return simpleregistry.ErrorResponse(simpleregistry.StatusBadRequest, err)
	}

	coord, err := simpleregistry.NugetCoordinate(spec.ID, spec.Version)
	if err != nil {
		return simpleregistry.ErrorResponse(simpleregistry.StatusBadRequest, err)
	}

	location, err := a.facade.Resolve(ctx, req.Locator, coord.Path())
	if err != nil {
		return a.storageFailure("Failed to resolve package", req.Locator, coord, err)
	}

	err = a.facade.ValidateAndStore(ctx, location, io.NewSectionReader(pkg, 0, pkg.Size()), simpleregistry.StoreParams{
		Coordinate:  coord,
		ContentType: packageContentType,
		Metadata:    spec.indexMetadata(),
	})
	if err != nil {
		return a.storageFailure("Failed to push package", req.Locator, coord, err)
	}

	a.logger.Debug("Pushed package", "storage_id", req.Locator.StorageID,
		"repository_id", req.Locator.RepositoryID, "id", spec.ID, "version", spec.Version)
	return simpleregistry.TextResponse(simpleregistry.StatusCreated, "")
}

// Download streams the package identified by req.Name and req.Version
func (a *Adapter) Download(ctx context.Context, req *simpleregistry.DownloadRequest) *simpleregistry.Response {
	coord, err := simpleregistry.NugetCoordinate(req.Name, req.Version)
	if err != nil {
		return simpleregistry.ErrorResponse(simpleregistry.StatusBadRequest, err)
	}

	location, err := a.facade.Resolve(ctx, req.Locator, coord.Path())
	if err != nil {
		return a.storageFailure("Failed to resolve package", req.Locator, coord, err)
	}

	artifact, err := a.facade.Open(ctx, location)
	if err != nil {
		return a.storageFailure("Failed to open package", req.Locator, coord, err)
	}
	artifact.ContentType = packageContentType
	return simpleregistry.ArtifactResponse(artifact)
}

// Delete removes a package version
func (a *Adapter) Delete(ctx context.Context, locator simpleregistry.RepositoryLocator, id, version string) *simpleregistry.Response {
	coord, err := simpleregistry.NugetCoordinate(id, version)
	if err != nil {
		return simpleregistry.ErrorResponse(simpleregistry.StatusBadRequest, err)
	}

	location, err := a.facade.Resolve(ctx, locator, coord.Path())
	if err != nil {
		return a.storageFailure("Failed to resolve package", locator, coord, err)
	}

	if err := a.facade.Delete(ctx, location); err != nil {
		return a.storageFailure("Failed to delete package", locator, coord, err)
	}
	return simpleregistry.TextResponse(simpleregistry.StatusOK, "")
}

// Search answers Search() with an Atom feed. baseURL is the absolute URL of
// the repository and prefixes entry ids and download links.
func (a *Adapter) Search(ctx context.Context, locator simpleregistry.RepositoryLocator, params url.Values, baseURL string) *simpleregistry.Response {
	query, err := ParseSearchQuery(locator, params)
	if err != nil {
		return simpleregistry.ErrorResponse(simpleregistry.StatusBadRequest, err)
	}
	return a.feed(ctx, query, nil, baseURL)
}

// FindPackagesByID answers FindPackagesById() with every version of one id
func (a *Adapter) FindPackagesByID(ctx context.Context, locator simpleregistry.RepositoryLocator, params url.Values, baseURL string) *simpleregistry.Response {
	id := unquote(params.Get(queryID))
	if id == "" {
		return simpleregistry.TextResponse(simpleregistry.StatusBadRequest, fmt.Sprintf("Missing required parameter %q", queryID))
	}
	query := simpleregistry.SearchQuery{Locator: locator, Term: id, IncludePrerelease: true}
	return a.feed(ctx, query, func(rec *simpleregistry.ArtifactRecord) bool {
		return strings.EqualFold(rec.Name, id)
	}, baseURL)
}

// Count answers Search()/$count with the number of matching packages
func (a *Adapter) Count(ctx context.Context, locator simpleregistry.RepositoryLocator, params url.Values) *simpleregistry.Response {
	query, err := ParseSearchQuery(locator, params)
	if err != nil {
		return simpleregistry.ErrorResponse(simpleregistry.StatusBadRequest, err)
	}

	count, err := a.index.Count(ctx, query)
	if err != nil {
		a.logger.Error("Failed to count packages", "storage_id", locator.StorageID,
			"repository_id", locator.RepositoryID, "error", err)
		return simpleregistry.ErrorResponse(simpleregistry.StatusInternalError, err)
	}
	return simpleregistry.TextResponse(simpleregistry.StatusOK, strconv.Itoa(count))
}

func (a *Adapter) feed(ctx context.Context, query simpleregistry.SearchQuery, keep func(*simpleregistry.ArtifactRecord) bool, baseURL string) *simpleregistry.Response {
	locator := query.Locator
	page, err := a.index.Search(ctx, query)
	if err != nil {
		a.logger.Error("Failed to search packages", "storage_id", locator.StorageID,
			"repository_id", locator.RepositoryID, "error", err)
		return simpleregistry.ErrorResponse(simpleregistry.StatusInternalError, err)
	}
	if keep != nil {
		filtered := page[:0]
		for _, rec := range page {
			if keep(rec) {
				filtered = append(filtered, rec)
			}
		}
		page = filtered
	}

	all, err := a.index.Search(ctx, simpleregistry.SearchQuery{Locator: locator, IncludePrerelease: true})
	if err != nil {
		a.logger.Error("Failed to list packages", "storage_id", locator.StorageID,
			"repository_id", locator.RepositoryID, "error", err)
		return simpleregistry.ErrorResponse(simpleregistry.StatusInternalError, err)
	}

	var buf bytes.Buffer
	if err := writeFeed(&buf, baseURL, page, all, a.now()); err != nil {
		return simpleregistry.ErrorResponse(simpleregistry.StatusInternalError, err)
	}

	resp := simpleregistry.NewResponse(simpleregistry.StatusOK)
	resp.Header.Set("Content-Type", FeedContentType)
	resp.Header.Set("Content-Length", strconv.Itoa(buf.Len()))
	resp.Body = &buf
	return resp
}

// ParseSearchQuery turns OData search options into an index query
func ParseSearchQuery(locator simpleregistry.RepositoryLocator, params url.Values) (simpleregistry.SearchQuery, error) {
	query := simpleregistry.SearchQuery{
		Locator: locator,
		Term:    unquote(params.Get(querySearchTerm)),
	}

	// Clients combine the latest flags with other predicates; only the flags narrow the result.
	switch filter := params.Get(queryFilter); {
	case strings.Contains(filter, filterAbsoluteLatest):
		query.LatestOnly = true
		query.IncludePrerelease = true
	case strings.Contains(filter, filterLatest):
		query.LatestOnly = true
	}

	if v := params.Get(queryIncludePrerelease); v != "" {
		include, err := strconv.ParseBool(v)
		if err != nil {
			return query, fmt.Errorf("invalid %s %q: %w", queryIncludePrerelease, v, err)
		}
		query.IncludePrerelease = query.IncludePrerelease || include
	}

	var err error
	if query.Skip, err = nonNegative(params, querySkip); err != nil {
		return query, err
	}
	if query.Top, err = nonNegative(params, queryTop); err != nil {
		return query, err
	}
	return query, nil
}

func nonNegative(params url.Values, key string) (int, error) {
	v := params.Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", key, v)
	}
	return n, nil
}

// unquote strips the OData string literal quotes
func unquote(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		v = v[1 : len(v)-1]
	}
	return strings.ReplaceAll(v, "''", "'")
}

type sizedReaderAt interface {
	io.ReaderAt
	Size() int64
}

// seekable returns random access to the package, spooling it to a temp file
// when the reader does not support it
func (a *Adapter) seekable(content io.Reader, size int64) (sizedReaderAt, func(), error) {
	if s, ok := content.(sizedReaderAt); ok {
		return s, func() {}, nil
	}
	if ra, ok := content.(io.ReaderAt); ok && size > 0 {
		return io.NewSectionReader(ra, 0, size), func() {}, nil
	}

	f, err := os.CreateTemp(a.tmpDir, "nupkg-*")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create spool file: %w", err)
	}
	cleanup := func() {
		f.Close()
		os.Remove(f.Name())
	}
	n, err := io.Copy(f, content)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to spool package: %w", err)
	}
	return io.NewSectionReader(f, 0, n), cleanup, nil
}

func (s *Nuspec) indexMetadata() map[string]string {
	meta := map[string]string{
		simpleregistry.MetaTitle:       s.Title,
		simpleregistry.MetaDescription: s.Description,
		simpleregistry.MetaSummary:     s.Summary,
		simpleregistry.MetaTags:        s.Tags,
		metaAuthors:                    s.Authors,
		metaProjectURL:                 s.ProjectURL,
		metaLicenseURL:                 s.LicenseURL,
	}
	for k, v := range meta {
		if v == "" {
			delete(meta, k)
		}
	}
	return meta
}

func (a *Adapter) storageFailure(msg string, locator simpleregistry.RepositoryLocator, coord simpleregistry.ArtifactCoordinate, err error) *simpleregistry.Response {
	if simpleregistry.IsNotFound(err) || errors.Is(err, simpleregistry.ErrRepositoryNotFound) {
		return simpleregistry.ErrorResponse(simpleregistry.StatusNotFound, err)
	}
	if errors.Is(err, simpleregistry.ErrMalformedIdentifier) {
		return simpleregistry.ErrorResponse(simpleregistry.StatusBadRequest, err)
	}
	a.logger.Error(msg, "storage_id", locator.StorageID, "repository_id", locator.RepositoryID,
		"path", coord.Path(), "error", err)
	return simpleregistry.ErrorResponse(simpleregistry.StatusInternalError, err)
}
