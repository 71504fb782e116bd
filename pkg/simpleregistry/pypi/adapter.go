package pypi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/tendant/simple-registry/pkg/simpleregistry"
)

const (
	deployedMessage = "The artifact was deployed successfully."
	seeOtherMessage = "See Other"
)

// RegisterAllowLists registers the values accepted by the upload endpoint
func RegisterAllowLists(lists *simpleregistry.AllowLists) {
	lists.Register(FieldAction, ActionFileUpload)
	lists.Register(FieldFiletype, FiletypeSdist, FiletypeBdistWheel)
}

// Adapter serves the PyPI protocol on top of a storage facade
type Adapter struct {
	facade     simpleregistry.StorageFacade
	allowLists *simpleregistry.AllowLists
	logger     *slog.Logger
}

// Option configures an Adapter
type Option func(*Adapter)

// WithAllowLists replaces the default allow-lists
func WithAllowLists(lists *simpleregistry.AllowLists) Option {
	return func(a *Adapter) {
		a.allowLists = lists
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// New creates a PyPI adapter
func New(facade simpleregistry.StorageFacade, opts ...Option) *Adapter {
	a := &Adapter{
		facade: facade,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.allowLists == nil {
		a.allowLists = simpleregistry.NewAllowLists()
		RegisterAllowLists(a.allowLists)
	}
	return a
}

// Layout returns the pypi layout name
func (a *Adapter) Layout() string {
	return simpleregistry.LayoutPypi
}

// Upload stores a distribution sent by twine or setuptools
func (a *Adapter) Upload(ctx context.Context, req *simpleregistry.UploadRequest) *simpleregistry.Response {
	if err := a.allowLists.Validate(FieldAction, req.Fields.Get(FieldAction)); err != nil {
		return simpleregistry.ErrorResponse(simpleregistry.StatusBadRequest, err)
	}

	meta := NewMetadata(req.Fields)
	if !meta.Has(FieldMetadataVersion) {
		return simpleregistry.TextResponse(simpleregistry.StatusBadRequest,
			fmt.Sprintf("Missing required parameter %q", FieldMetadataVersion))
	}
	if err := a.allowLists.Validate(FieldFiletype, meta.Filetype()); err != nil {
		return simpleregistry.ErrorResponse(simpleregistry.StatusBadRequest, err)
	}

	coord, err := simpleregistry.NewCoordinate(meta.Name(), meta.Version(), req.Filename)
	if err != nil {
		return simpleregistry.ErrorResponse(simpleregistry.StatusBadRequest, err)
	}
	if req.Content == nil {
		return simpleregistry.TextResponse(simpleregistry.StatusBadRequest,
			fmt.Sprintf("Missing required parameter %q", FieldContent))
	}

	location, err := a.facade.Resolve(ctx, req.Locator, coord.Path())
	if err != nil {
		return a.storageFailure("Failed to resolve artifact", req.Locator, coord, err)
	}

	err = a.facade.ValidateAndStore(ctx, location, req.Content, simpleregistry.StoreParams{
		Coordinate: coord,
		Metadata:   meta.indexMetadata(),
	})
	if err != nil {
		return a.storageFailure("Failed to deploy artifact", req.Locator, coord, err)
	}

	a.logger.Debug("Deployed artifact", "storage_id", req.Locator.StorageID,
		"repository_id", req.Locator.RepositoryID, "path", coord.Path())
	return simpleregistry.TextResponse(simpleregistry.StatusOK, deployedMessage)
}

// Redirect sends installers to the simple index of the package. baseURL is
// the absolute URL the storages are mounted under.
func (a *Adapter) Redirect(locator simpleregistry.RepositoryLocator, packageName, baseURL string) *simpleregistry.Response {
	resp := simpleregistry.TextResponse(simpleregistry.StatusSeeOther, seeOtherMessage)
	resp.Header.Set("Location", SimpleIndexURL(baseURL, locator, packageName))
	return resp
}

// SimpleIndexURL returns the simple index location of a package
func SimpleIndexURL(baseURL string, locator simpleregistry.RepositoryLocator, packageName string) string {
	return strings.TrimRight(baseURL, "/") + "/" +
		url.PathEscape(locator.StorageID) + "/" +
		url.PathEscape(locator.RepositoryID) + "/simple/" +
		url.PathEscape(packageName) + "/"
}

// Download streams the distribution named by req.ArtifactName
func (a *Adapter) Download(ctx context.Context, req *simpleregistry.DownloadRequest) *simpleregistry.Response {
	coord, err := simpleregistry.ParseArtifactName(req.ArtifactName)
	if err != nil {
		return simpleregistry.ErrorResponse(simpleregistry.StatusBadRequest, err)
	}

	location, err := a.facade.Resolve(ctx, req.Locator, coord.Path())
	if err != nil {
		return a.storageFailure("Failed to resolve artifact", req.Locator, coord, err)
	}

	artifact, err := a.facade.Open(ctx, location)
	if err != nil {
		return a.storageFailure("Failed to open artifact", req.Locator, coord, err)
	}
	return simpleregistry.ArtifactResponse(artifact)
}

// SimpleIndex answers the per-package index request. Page rendering lives
// outside the adapter, so the body is empty.
func (a *Adapter) SimpleIndex(ctx context.Context, locator simpleregistry.RepositoryLocator, packageName string) *simpleregistry.Response {
	resp := simpleregistry.NewResponse(simpleregistry.StatusOK)
	resp.Header.Set("Content-Type", "text/html; charset=utf-8")
	resp.Header.Set("Content-Length", "0")
	resp.Body = strings.NewReader("")
	return resp
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
