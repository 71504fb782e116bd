package api

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-chi/jwtauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-registry/pkg/simpleregistry"
	"github.com/tendant/simple-registry/pkg/simpleregistry/nuget"
	"github.com/tendant/simple-registry/pkg/simpleregistry/pypi"
	"github.com/tendant/simple-registry/pkg/simpleregistry/repo/memory"
	memorystorage "github.com/tendant/simple-registry/pkg/simpleregistry/storage/memory"
	"github.com/tendant/simple-registry/pkg/simpleregistry/store"
)

// setupServerTest creates a registry with one pypi and one nuget repository on a memory storage
func setupServerTest(t *testing.T, opts ...Option) http.Handler {
	t.Helper()
	repos := memory.NewRepositories(
		simpleregistry.Repository{StorageID: "storage0", RepositoryID: "pypi-releases", Layout: simpleregistry.LayoutPypi},
		simpleregistry.Repository{StorageID: "storage0", RepositoryID: "nuget-releases", Layout: simpleregistry.LayoutNuget},
	)
	index := memory.NewIndex()
	facade, err := store.New(repos, store.WithBlobStore("storage0", memorystorage.New()), store.WithIndex(index))
	require.NoError(t, err)

	server := NewServer(repos, opts...)
	server.Handle(simpleregistry.LayoutPypi, NewPypiHandler(server, pypi.New(facade)).Routes())
	server.Handle(simpleregistry.LayoutNuget, NewNugetHandler(server, nuget.New(facade, index)).Routes())
	return server.Routes()
}

func multipartBody(t *testing.T, fields map[string]string, fileField, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestPypiFlow(t *testing.T) {
	handler := setupServerTest(t)
	wheel := []byte("wheel-bytes")

	body, contentType := multipartBody(t, map[string]string{
		":action":          "file_upload",
		"filetype":         "bdist_wheel",
		"name":             "demo",
		"version":          "1.0.0",
		"metadata_version": "2.1",
	}, "content", "demo-1.0.0-py3-none-any.whl", wheel)
	req := httptest.NewRequest(http.MethodPost, "/storages/storage0/pypi-releases/", body)
	req.Header.Set("Content-Type", contentType)

	w := do(handler, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "The artifact was deployed successfully.", w.Body.String())

	w = do(handler, httptest.NewRequest(http.MethodGet, "/storages/storage0/pypi-releases/package/demo-1.0.0-py3-none-any.whl/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, wheel, w.Body.Bytes())
	assert.Equal(t, fmt.Sprint(len(wheel)), w.Header().Get("Content-Length"))
	assert.NotEmpty(t, w.Header().Get("ETag"))

	w = do(handler, httptest.NewRequest(http.MethodGet, "/storages/storage0/pypi-releases/package/bad/", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(handler, httptest.NewRequest(http.MethodGet, "/storages/storage0/pypi-releases/package/demo-2.0.0-py3-none-any.whl/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(handler, httptest.NewRequest(http.MethodGet, "/storages/storage0/pypi-releases/demo/", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "http://example.com/storages/storage0/pypi-releases/simple/demo/", w.Header().Get("Location"))

	w = do(handler, httptest.NewRequest(http.MethodGet, "/storages/storage0/pypi-releases/simple/demo/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Empty(t, w.Body.String())
}

func TestPypiUpload_InvalidAction(t *testing.T) {
	handler := setupServerTest(t)

	body, contentType := multipartBody(t, map[string]string{
		":action":  "wrong_action",
		"filetype": "sdist",
		"name":     "demo",
		"version":  "1.0.0",
	}, "content", "demo-1.0.0.tar.gz", []byte("sdist"))
	req := httptest.NewRequest(http.MethodPost, "/storages/storage0/pypi-releases/", body)
	req.Header.Set("Content-Type", contentType)

	w := do(handler, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "file_upload")

	w = do(handler, httptest.NewRequest(http.MethodGet, "/storages/storage0/pypi-releases/package/demo-1.0.0.tar.gz", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPypiUpload_NotMultipart(t *testing.T) {
	handler := setupServerTest(t)
	req := httptest.NewRequest(http.MethodPost, "/storages/storage0/pypi-releases/", strings.NewReader("name=demo"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := do(handler, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRedirect_ConfiguredBaseURL(t *testing.T) {
	handler := setupServerTest(t, WithBaseURL("https://registry.example.org/"))

	w := do(handler, httptest.NewRequest(http.MethodGet, "/storages/storage0/pypi-releases/demo/", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "https://registry.example.org/storages/storage0/pypi-releases/simple/demo/", w.Header().Get("Location"))
}

func TestDispatch_UnknownRepository(t *testing.T) {
	handler := setupServerTest(t)

	w := do(handler, httptest.NewRequest(http.MethodGet, "/storages/storage0/missing/demo/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "repository not found", w.Body.String())
}

func nupkg(t *testing.T, id, version string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(id + ".nuspec")
	require.NoError(t, err)
	_, err = fmt.Fprintf(w, `<?xml version="1.0"?><package><metadata><id>%s</id><version>%s</version><description>test</description></metadata></package>`, id, version)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestNugetFlow(t *testing.T) {
	auth := jwtauth.New("HS256", []byte("secret"), nil)
	_, apiKey, err := auth.Encode(map[string]interface{}{"sub": "ci"})
	require.NoError(t, err)
	handler := setupServerTest(t, WithAPIKeyAuth(auth))
	pkg := nupkg(t, "Demo", "1.0.0")
	base := "/storages/storage0/nuget-releases"

	push := func(key string) *httptest.ResponseRecorder {
		body, contentType := multipartBody(t, nil, "package", "package.nupkg", pkg)
		req := httptest.NewRequest(http.MethodPut, base+"/", body)
		req.Header.Set("Content-Type", contentType)
		if key != "" {
			req.Header.Set(APIKeyHeader, key)
		}
		return do(handler, req)
	}

	assert.Equal(t, http.StatusUnauthorized, push("").Code)
	assert.Equal(t, http.StatusUnauthorized, push("not-a-token").Code)
	w := push(apiKey)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(handler, httptest.NewRequest(http.MethodGet, base+"/download/Demo/1.0.0", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, fmt.Sprint(len(pkg)), w.Header().Get("Content-Length"))
	assert.Equal(t, pkg, w.Body.Bytes())

	w = do(handler, httptest.NewRequest(http.MethodGet,
		base+"/Search()?$filter=IsLatestVersion&$skip=0&$top=30&searchTerm='Demo'&targetFramework=''&includePrerelease=false", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, nuget.FeedContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `<title type="text">Packages</title>`)
	assert.Contains(t, w.Body.String(), `<title type="text">Demo</title>`)
	assert.Contains(t, w.Body.String(), "http://example.com"+base+"/download/Demo/1.0.0")

	w = do(handler, httptest.NewRequest(http.MethodGet, base+"/Search()/$count?$filter=IsLatestVersion&searchTerm='Demo'", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Body.String())

	req := httptest.NewRequest(http.MethodDelete, base+"/Demo/1.0.0", nil)
	assert.Equal(t, http.StatusUnauthorized, do(handler, req).Code)

	req = httptest.NewRequest(http.MethodDelete, base+"/Demo/1.0.0", nil)
	req.Header.Set(APIKeyHeader, apiKey)
	assert.Equal(t, http.StatusOK, do(handler, req).Code)

	w = do(handler, httptest.NewRequest(http.MethodGet, base+"/download/Demo/1.0.0", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNugetPush_WithoutAuthConfigured(t *testing.T) {
	handler := setupServerTest(t)

	body, contentType := multipartBody(t, nil, "package", "package.nupkg", nupkg(t, "Open", "0.1.0"))
	req := httptest.NewRequest(http.MethodPut, "/storages/storage0/nuget-releases/", body)
	req.Header.Set("Content-Type", contentType)

	w := do(handler, req)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestNugetPush_PartWithoutFilename(t *testing.T) {
	handler := setupServerTest(t)
	pkg := nupkg(t, "Binary", "2.0.0")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("comment", "ignored"))
	pw, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {`form-data; name="package"`},
		"Content-Type":        {"application/octet-stream"},
	})
	require.NoError(t, err)
	_, err = pw.Write(pkg)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/storages/storage0/nuget-releases/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := do(handler, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(handler, httptest.NewRequest(http.MethodGet, "/storages/storage0/nuget-releases/download/Binary/2.0.0", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, fmt.Sprint(len(pkg)), w.Header().Get("Content-Length"))
	assert.Equal(t, pkg, w.Body.Bytes())
}

func TestNugetPush_MissingPackage(t *testing.T) {
	handler := setupServerTest(t)

	body, contentType := multipartBody(t, map[string]string{"comment": "no package"}, "", "", nil)
	req := httptest.NewRequest(http.MethodPut, "/storages/storage0/nuget-releases/", body)
	req.Header.Set("Content-Type", contentType)

	w := do(handler, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing package content", w.Body.String())
}

func TestWriteResponse(t *testing.T) {
	w := httptest.NewRecorder()
	resp := simpleregistry.TextResponse(simpleregistry.StatusCreated, "done")
	resp.Header.Set("X-Test", "1")

	require.NoError(t, WriteResponse(w, resp))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-Test"))
	body, _ := io.ReadAll(w.Body)
	assert.Equal(t, "done", string(body))
}
