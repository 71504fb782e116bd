package simpleregistry

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Status is the outcome of a protocol operation
type Status int

const (
	StatusOK            Status = http.StatusOK
	StatusCreated       Status = http.StatusCreated
	StatusSeeOther      Status = http.StatusSeeOther
	StatusBadRequest    Status = http.StatusBadRequest
	StatusNotFound      Status = http.StatusNotFound
	StatusInternalError Status = http.StatusInternalServerError
)

// Code returns the HTTP status code
func (s Status) Code() int {
	return int(s)
}

func (s Status) String() string {
	return http.StatusText(int(s))
}

// UploadRequest is a decoded protocol upload
type UploadRequest struct {
	Locator RepositoryLocator
	// Fields holds the decoded form fields; a missing key means the field was not sent
	Fields   url.Values
	Filename string
	Content  io.Reader
	Size     int64
}

// DownloadRequest identifies an artifact to stream back
type DownloadRequest struct {
	Locator      RepositoryLocator
	ArtifactName string
	Name         string
	Version      string
}

// Response is the protocol-level result of an adapter operation
type Response struct {
	Status Status
	Header http.Header
	Body   io.Reader
}

// NewResponse creates a response with an empty header set
func NewResponse(status Status) *Response {
	return &Response{Status: status, Header: make(http.Header)}
}

// TextResponse creates a text/plain response
func TextResponse(status Status, text string) *Response {
	resp := NewResponse(status)
	resp.Header.Set("Content-Type", "text/plain; charset=utf-8")
	resp.Header.Set("Content-Length", strconv.Itoa(len(text)))
	resp.Body = strings.NewReader(text)
	return resp
}

// ErrorResponse creates a text/plain response carrying the error message
func ErrorResponse(status Status, err error) *Response {
	return TextResponse(status, err.Error())
}

// ArtifactResponse creates a 200 response streaming the artifact with passthrough headers
func ArtifactResponse(artifact *Artifact) *Response {
	resp := NewResponse(StatusOK)
	contentType := artifact.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	resp.Header.Set("Content-Type", contentType)
	if artifact.Size >= 0 {
		resp.Header.Set("Content-Length", strconv.FormatInt(artifact.Size, 10))
	}
	if !artifact.UpdatedAt.IsZero() {
		resp.Header.Set("Last-Modified", artifact.UpdatedAt.UTC().Format(http.TimeFormat))
	}
	if artifact.ETag != "" {
		resp.Header.Set("ETag", strconv.Quote(artifact.ETag))
	}
	resp.Body = artifact.Body
	return resp
}

// Close releases the body if it holds a resource
func (r *Response) Close() error {
	if c, ok := r.Body.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
