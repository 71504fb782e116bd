package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-registry/pkg/simpleregistry"
	"github.com/tendant/simple-registry/pkg/simpleregistry/nuget"
)

// packagePart is the form name nuget clients give the package part
const packagePart = "package"

// NugetHandler serves the NuGet v2 push, download, delete and search endpoints
type NugetHandler struct {
	server  *Server
	adapter *nuget.Adapter
}

// NewNugetHandler creates a NuGet handler
func NewNugetHandler(server *Server, adapter *nuget.Adapter) *NugetHandler {
	return &NugetHandler{
		server:  server,
		adapter: adapter,
	}
}

// Routes returns the routes of a nuget repository
func (h *NugetHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(h.server.requireAPIKey).Put("/", h.Push)
	r.With(h.server.requireAPIKey).Delete("/{id}/{version}", h.Delete)
	r.Get("/download/{id}/{version}", h.Download)
	r.Get("/Search()", h.Search)
	r.Get("/Search()/$count", h.Count)
	r.Get("/FindPackagesById()", h.FindPackagesByID)

	return r
}

// Push stores the package streamed as a part of a multipart request
func (h *NugetHandler) Push(w http.ResponseWriter, r *http.Request) {
	req, err := h.server.streamUpload(r, packagePart)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid multipart upload: "+err.Error())
		return
	}
	if c, ok := req.Content.(io.Closer); ok {
		defer c.Close()
	}

	h.server.write(w, r, h.adapter.Upload(r.Context(), req))
}

// Download streams a package
func (h *NugetHandler) Download(w http.ResponseWriter, r *http.Request) {
	h.server.write(w, r, h.adapter.Download(r.Context(), &simpleregistry.DownloadRequest{
		Locator: locatorFromRequest(r),
		Name:    chi.URLParam(r, "id"),
		Version: chi.URLParam(r, "version"),
	}))
}

// Delete removes a package version
func (h *NugetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.server.write(w, r, h.adapter.Delete(r.Context(), locatorFromRequest(r),
		chi.URLParam(r, "id"), chi.URLParam(r, "version")))
}

// Search serves the OData package feed
func (h *NugetHandler) Search(w http.ResponseWriter, r *http.Request) {
	h.server.write(w, r, h.adapter.Search(r.Context(), locatorFromRequest(r), r.URL.Query(), h.server.repositoryURL(r)))
}

// Count serves the number of packages matching a search
func (h *NugetHandler) Count(w http.ResponseWriter, r *http.Request) {
	h.server.write(w, r, h.adapter.Count(r.Context(), locatorFromRequest(r), r.URL.Query()))
}

// FindPackagesByID serves every version of a package id
func (h *NugetHandler) FindPackagesByID(w http.ResponseWriter, r *http.Request) {
	h.server.write(w, r, h.adapter.FindPackagesByID(r.Context(), locatorFromRequest(r), r.URL.Query(), h.server.repositoryURL(r)))
}
