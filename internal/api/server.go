package api

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/tendant/simple-registry/pkg/simpleregistry"
)

// DefaultMaxMultipartMemory is the part of a multipart upload kept in memory; the rest spills to disk
const DefaultMaxMultipartMemory = 32 << 20

// APIKeyHeader carries the NuGet API key
const APIKeyHeader = "X-NuGet-ApiKey"

// Server routes registry requests to the protocol handler of the target repository
type Server struct {
	repositories simpleregistry.RepositoryConfig
	layouts      map[string]http.Handler
	baseURL      string
	maxMemory    int64
	apiAuth      *jwtauth.JWTAuth
	logger       *slog.Logger
}

// Option configures a Server
type Option func(*Server)

// WithBaseURL sets the absolute URL the registry is served under. When empty
// the scheme and host of each request are used.
func WithBaseURL(baseURL string) Option {
	return func(s *Server) {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithMaxMultipartMemory sets how much of a multipart upload is buffered in memory
func WithMaxMultipartMemory(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxMemory = n
		}
	}
}

// WithAPIKeyAuth guards publishing endpoints with HS256 signed API keys
func WithAPIKeyAuth(auth *jwtauth.JWTAuth) Option {
	return func(s *Server) {
		s.apiAuth = auth
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a registry server. Handlers are registered per layout
// with Handle.
func NewServer(repositories simpleregistry.RepositoryConfig, opts ...Option) *Server {
	s := &Server{
		repositories: repositories,
		layouts:      make(map[string]http.Handler),
		maxMemory:    DefaultMaxMultipartMemory,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle registers the router serving repositories of a layout
func (s *Server) Handle(layout string, handler http.Handler) {
	s.layouts[layout] = handler
}

// Routes returns the registry routes
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Mount("/storages/{storageId}/{repositoryId}", http.HandlerFunc(s.dispatch))
	return r
}

// dispatch forwards the request to the router of the repository's layout.
// The mount leaves the remaining path for the layout router to match.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	locator := locatorFromRequest(r)
	repo, err := s.repositories.Get(r.Context(), locator)
	if err != nil {
		if errors.Is(err, simpleregistry.ErrRepositoryNotFound) {
			writeError(w, r, http.StatusNotFound, "repository not found")
			return
		}
		s.logger.Error("Failed to look up repository", "storage_id", locator.StorageID,
			"repository_id", locator.RepositoryID, "error", err)
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	handler, ok := s.layouts[repo.Layout]
	if !ok {
		writeError(w, r, http.StatusNotFound, "layout "+repo.Layout+" is not served")
		return
	}
	handler.ServeHTTP(w, r)
}

// requireAPIKey verifies X-NuGet-ApiKey when API key auth is configured
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	if s.apiAuth == nil {
		return next
	}
	return jwtauth.Verify(s.apiAuth, func(r *http.Request) string {
		return r.Header.Get(APIKeyHeader)
	})(jwtauth.Authenticator(next))
}

// storagesURL returns the absolute URL of the /storages mount
func (s *Server) storagesURL(r *http.Request) string {
	if s.baseURL != "" {
		return s.baseURL + "/storages"
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + "/storages"
}

// repositoryURL returns the absolute URL of the addressed repository
func (s *Server) repositoryURL(r *http.Request) string {
	locator := locatorFromRequest(r)
	return s.storagesURL(r) + "/" + url.PathEscape(locator.StorageID) + "/" + url.PathEscape(locator.RepositoryID)
}

// parseUpload decodes a multipart upload. The form must be released with
// RemoveAll once the response has been written.
func (s *Server) parseUpload(r *http.Request, fileField string) (*simpleregistry.UploadRequest, *multipart.Form, error) {
	if err := r.ParseMultipartForm(s.maxMemory); err != nil {
		return nil, nil, err
	}
	form := r.MultipartForm

	req := &simpleregistry.UploadRequest{
		Locator: locatorFromRequest(r),
		Fields:  url.Values(form.Value),
	}

	header := firstFile(form, fileField)
	if header == nil {
		return req, form, nil
	}
	file, err := header.Open()
	if err != nil {
		form.RemoveAll()
		return nil, nil, err
	}
	req.Filename = header.Filename
	req.Content = file
	req.Size = header.Size
	return req, form, nil
}

// firstFile returns the first file part with the given name
func firstFile(form *multipart.Form, name string) *multipart.FileHeader {
	if files := form.File[name]; len(files) > 0 {
		return files[0]
	}
	return nil
}

// streamUpload reads a multipart body part by part and returns the first part
// named partName or carrying a filename, without buffering it. Parts with no
// filename are accepted since some clients send binary bodies that way. The
// returned content is only valid until the request body is read further.
func (s *Server) streamUpload(r *http.Request, partName string) (*simpleregistry.UploadRequest, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}

	req := &simpleregistry.UploadRequest{
		Locator: locatorFromRequest(r),
		Fields:  url.Values{},
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return req, nil
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == partName || part.FileName() != "" {
			req.Filename = part.FileName()
			req.Content = part
			return req, nil
		}
		part.Close()
	}
}

func locatorFromRequest(r *http.Request) simpleregistry.RepositoryLocator {
	return simpleregistry.RepositoryLocator{
		StorageID:    chi.URLParam(r, "storageId"),
		RepositoryID: chi.URLParam(r, "repositoryId"),
	}
}

// WriteResponse writes an adapter response and releases its body
func WriteResponse(w http.ResponseWriter, resp *simpleregistry.Response) error {
	defer resp.Close()

	for k, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.Status.Code())
	if resp.Body == nil {
		return nil
	}
	_, err := io.Copy(w, resp.Body)
	return err
}

func (s *Server) write(w http.ResponseWriter, r *http.Request, resp *simpleregistry.Response) {
	if err := WriteResponse(w, resp); err != nil {
		locator := locatorFromRequest(r)
		s.logger.Warn("Failed to write response", "storage_id", locator.StorageID,
			"repository_id", locator.RepositoryID, "path", r.URL.Path, "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.PlainText(w, r, msg)
}
