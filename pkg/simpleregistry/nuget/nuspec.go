package nuget

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrInvalidPackage indicates the pushed content is not a readable nupkg
var ErrInvalidPackage = errors.New("invalid nuget package")

// maxNuspecSize bounds how much of the manifest entry is decoded
const maxNuspecSize = 4 << 20

// Nuspec is the manifest metadata carried inside a nupkg
type Nuspec struct {
	ID          string `xml:"metadata>id"`
	Version     string `xml:"metadata>version"`
	Title       string `xml:"metadata>title"`
	Authors     string `xml:"metadata>authors"`
	Description string `xml:"metadata>description"`
	Summary     string `xml:"metadata>summary"`
	Tags        string `xml:"metadata>tags"`
	ProjectURL  string `xml:"metadata>projectUrl"`
	LicenseURL  string `xml:"metadata>licenseUrl"`
}

// ReadNuspec extracts the manifest from the root of a nupkg archive
func ReadNuspec(r io.ReaderAt, size int64) (*Nuspec, error) {
	archive, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPackage, err)
	}

	for _, f := range archive.File {
		if strings.Contains(f.Name, "/") || !strings.EqualFold(path.Ext(f.Name), ".nuspec") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPackage, err)
		}
		defer rc.Close()

		var spec Nuspec
		if err := xml.NewDecoder(io.LimitReader(rc, maxNuspecSize)).Decode(&spec); err != nil {
			return nil, fmt.Errorf("%w: nuspec: %v", ErrInvalidPackage, err)
		}
		spec.ID = strings.TrimSpace(spec.ID)
		spec.Version = strings.TrimSpace(spec.Version)
		if spec.ID == "" || spec.Version == "" {
			return nil, fmt.Errorf("%w: nuspec is missing id or version", ErrInvalidPackage)
		}
		return &spec, nil
	}

	return nil, fmt.Errorf("%w: no nuspec found", ErrInvalidPackage)
}
