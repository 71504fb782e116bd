package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-registry/pkg/simpleregistry"
	"github.com/tendant/simple-registry/pkg/simpleregistry/pypi"
)

// PypiHandler serves the PyPI upload, install and simple index endpoints
type PypiHandler struct {
	server  *Server
	adapter *pypi.Adapter
}

// NewPypiHandler creates a PyPI handler
func NewPypiHandler(server *Server, adapter *pypi.Adapter) *PypiHandler {
	return &PypiHandler{
		server:  server,
		adapter: adapter,
	}
}

// Routes returns the routes of a pypi repository
func (h *PypiHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Upload)
	r.Get("/simple/{packageName}/", h.SimpleIndex)
	r.Get("/package/{artifactName}/", h.Download)
	r.Get("/package/{artifactName}", h.Download)
	r.Get("/{packageName}/", h.Redirect)

	return r
}

// Upload deploys a distribution sent as multipart form
func (h *PypiHandler) Upload(w http.ResponseWriter, r *http.Request) {
	req, form, err := h.server.parseUpload(r, pypi.FieldContent)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid multipart upload: "+err.Error())
		return
	}
	defer form.RemoveAll()
	if c, ok := req.Content.(io.Closer); ok {
		defer c.Close()
	}

	h.server.write(w, r, h.adapter.Upload(r.Context(), req))
}

// Redirect points installers at the simple index of the package
func (h *PypiHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	locator := locatorFromRequest(r)
	packageName := chi.URLParam(r, "packageName")

	h.server.write(w, r, h.adapter.Redirect(locator, packageName, h.server.storagesURL(r)))
}

// Download streams a stored distribution
func (h *PypiHandler) Download(w http.ResponseWriter, r *http.Request) {
	h.server.write(w, r, h.adapter.Download(r.Context(), &simpleregistry.DownloadRequest{
		Locator:      locatorFromRequest(r),
		ArtifactName: chi.URLParam(r, "artifactName"),
	}))
}

// SimpleIndex serves the package index page
func (h *PypiHandler) SimpleIndex(w http.ResponseWriter, r *http.Request) {
	h.server.write(w, r, h.adapter.SimpleIndex(r.Context(), locatorFromRequest(r), chi.URLParam(r, "packageName")))
}
