package simpleregistry

import (
	"fmt"
	"strings"
)

// minArtifactNameTokens is the least number of "-" separated tokens of a distribution filename
const minArtifactNameTokens = 5

// ArtifactCoordinate is the protocol independent identity of an artifact
type ArtifactCoordinate struct {
	Name     string
	Version  string
	Filename string
}

// Path returns the canonical storage path "name/version/filename"
func (c ArtifactCoordinate) Path() string {
	return c.Name + "/" + c.Version + "/" + c.Filename
}

func (c ArtifactCoordinate) String() string {
	return c.Path()
}

// NewCoordinate builds a coordinate from structured upload fields
func NewCoordinate(name, version, filename string) (ArtifactCoordinate, error) {
	if strings.TrimSpace(name) == "" {
		return ArtifactCoordinate{}, fmt.Errorf("%w: name is required", ErrMalformedIdentifier)
	}
	if strings.TrimSpace(version) == "" {
		return ArtifactCoordinate{}, fmt.Errorf("%w: version is required", ErrMalformedIdentifier)
	}
	for _, part := range []struct{ field, value string }{{"name", name}, {"version", version}, {"filename", filename}} {
		if err := checkSegment(part.field, part.value); err != nil {
			return ArtifactCoordinate{}, err
		}
	}
	return ArtifactCoordinate{Name: name, Version: version, Filename: filename}, nil
}

// ParseArtifactName parses a hyphen tokenized distribution filename such as
// "demo-1.0.0-py3-none-any.whl". The original name is kept as the filename.
func ParseArtifactName(artifactName string) (ArtifactCoordinate, error) {
	tokens := strings.Split(artifactName, "-")
	if len(tokens) < minArtifactNameTokens {
		return ArtifactCoordinate{}, fmt.Errorf("%w: %q has %d tokens, want at least %d",
			ErrMalformedIdentifier, artifactName, len(tokens), minArtifactNameTokens)
	}
	return NewCoordinate(tokens[0], tokens[1], artifactName)
}

// NugetCoordinate builds the coordinate of a NuGet package "id/version/id.version.nupkg"
func NugetCoordinate(id, version string) (ArtifactCoordinate, error) {
	return NewCoordinate(id, version, id+"."+version+".nupkg")
}

func checkSegment(field, value string) error {
	switch {
	case value == "":
		return fmt.Errorf("%w: %s is required", ErrMalformedIdentifier, field)
	case value == "." || value == "..":
		return fmt.Errorf("%w: %s %q is not allowed", ErrMalformedIdentifier, field, value)
	case strings.ContainsAny(value, "/\\"):
		return fmt.Errorf("%w: %s %q contains a path separator", ErrMalformedIdentifier, field, value)
	}
	return nil
}
