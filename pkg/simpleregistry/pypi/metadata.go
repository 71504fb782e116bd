package pypi

import (
	"net/url"

	"github.com/tendant/simple-registry/pkg/simpleregistry"
)

// Form fields of a PyPI upload
const (
	FieldAction          = ":action"
	FieldName            = "name"
	FieldVersion         = "version"
	FieldFiletype        = "filetype"
	FieldMetadataVersion = "metadata_version"
	FieldAuthor          = "author"
	FieldAuthorEmail     = "author_email"
	FieldLicense         = "license"
	FieldHomePage        = "home_page"
	FieldDownloadURL     = "download_url"
	FieldDescription     = "description"
	FieldSummary         = "summary"
	FieldComment         = "comment"
	FieldMD5Digest       = "md5_digest"
	FieldPlatform        = "platform"
	FieldPyVersion       = "pyversion"
	FieldProtocolVersion = "protocol_version"
	FieldContent         = "content"

	// legacyProtocolVersion is the misspelled key some clients still send
	legacyProtocolVersion = "protcol_version"
)

// Upload action and file types accepted by the upload endpoint
const (
	ActionFileUpload   = "file_upload"
	FiletypeSdist      = "sdist"
	FiletypeBdistWheel = "bdist_wheel"
)

var metadataFields = []string{
	FieldAction, FieldName, FieldVersion, FieldFiletype, FieldMetadataVersion,
	FieldAuthor, FieldAuthorEmail, FieldLicense, FieldHomePage, FieldDownloadURL,
	FieldDescription, FieldSummary, FieldComment, FieldMD5Digest, FieldPlatform,
	FieldPyVersion, FieldProtocolVersion,
}

// Metadata is the immutable metadata of a PyPI upload
type Metadata struct {
	simpleregistry.Envelope
}

// NewMetadata captures the known upload fields from the decoded form
func NewMetadata(values url.Values) Metadata {
	if !values.Has(FieldProtocolVersion) && values.Has(legacyProtocolVersion) {
		aliased := make(url.Values, len(values)+1)
		for k, v := range values {
			aliased[k] = v
		}
		aliased.Set(FieldProtocolVersion, values.Get(legacyProtocolVersion))
		values = aliased
	}
	return Metadata{Envelope: simpleregistry.NewEnvelope(values, metadataFields...)}
}

func (m Metadata) Action() string          { return m.Value(FieldAction) }
func (m Metadata) Name() string            { return m.Value(FieldName) }
func (m Metadata) Version() string         { return m.Value(FieldVersion) }
func (m Metadata) Filetype() string        { return m.Value(FieldFiletype) }
func (m Metadata) MetadataVersion() string { return m.Value(FieldMetadataVersion) }

func (m Metadata) Author() (string, bool)          { return m.Lookup(FieldAuthor) }
func (m Metadata) AuthorEmail() (string, bool)     { return m.Lookup(FieldAuthorEmail) }
func (m Metadata) License() (string, bool)         { return m.Lookup(FieldLicense) }
func (m Metadata) HomePage() (string, bool)        { return m.Lookup(FieldHomePage) }
func (m Metadata) DownloadURL() (string, bool)     { return m.Lookup(FieldDownloadURL) }
func (m Metadata) Description() (string, bool)     { return m.Lookup(FieldDescription) }
func (m Metadata) Summary() (string, bool)         { return m.Lookup(FieldSummary) }
func (m Metadata) Comment() (string, bool)         { return m.Lookup(FieldComment) }
func (m Metadata) MD5Digest() (string, bool)       { return m.Lookup(FieldMD5Digest) }
func (m Metadata) Platform() (string, bool)        { return m.Lookup(FieldPlatform) }
func (m Metadata) PyVersion() (string, bool)       { return m.Lookup(FieldPyVersion) }
func (m Metadata) ProtocolVersion() (string, bool) { return m.Lookup(FieldProtocolVersion) }

// indexMetadata returns the fields kept with the package index record
func (m Metadata) indexMetadata() map[string]string {
	out := make(map[string]string)
	if v, ok := m.Summary(); ok {
		out[simpleregistry.MetaSummary] = v
		out[simpleregistry.MetaTitle] = m.Name()
	}
	if v, ok := m.Description(); ok {
		out[simpleregistry.MetaDescription] = v
	}
	for _, field := range []string{FieldAuthor, FieldLicense, FieldHomePage, FieldFiletype, FieldPyVersion, FieldMD5Digest} {
		if v, ok := m.Lookup(field); ok {
			out[field] = v
		}
	}
	return out
}
