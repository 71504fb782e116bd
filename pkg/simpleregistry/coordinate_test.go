package simpleregistry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-registry/pkg/simpleregistry"
)

func TestParseArtifactName(t *testing.T) {
	tests := []struct {
		name         string
		artifactName string
		wantName     string
		wantVersion  string
		wantErr      bool
	}{
		{"wheel", "demo-1.0.0-py3-none-any.whl", "demo", "1.0.0", false},
		{"more tokens", "demo-2.1-cp311-cp311-manylinux-x86_64.whl", "demo", "2.1", false},
		{"single token", "bad", "", "", true},
		{"four tokens", "demo-1.0.0-py3-any.whl", "", "", true},
		{"sdist", "demo-1.0.0.tar.gz", "", "", true},
		{"empty name token", "-1.0.0-py3-none-any.whl", "", "", true},
		{"empty", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := simpleregistry.ParseArtifactName(tt.artifactName)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, simpleregistry.ErrMalformedIdentifier)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, c.Name)
			assert.Equal(t, tt.wantVersion, c.Version)
			assert.Equal(t, tt.artifactName, c.Filename)
			assert.Equal(t, tt.wantName+"/"+tt.wantVersion+"/"+tt.artifactName, c.Path())
		})
	}
}

func TestNewCoordinate(t *testing.T) {
	c, err := simpleregistry.NewCoordinate("demo", "1.0.0", "demo-1.0.0.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, "demo/1.0.0/demo-1.0.0.tar.gz", c.Path())

	invalid := []struct{ name, version, filename string }{
		{"", "1.0.0", "demo.tar.gz"},
		{"demo", "", "demo.tar.gz"},
		{"demo", " ", "demo.tar.gz"},
		{"demo", "1.0.0", ""},
		{"demo", "1.0.0", "../etc/passwd"},
		{"demo", "1.0.0", "a\\b.whl"},
		{"demo", "1.0.0", ".."},
		{"de/mo", "1.0.0", "demo.tar.gz"},
	}
	for _, in := range invalid {
		_, err := simpleregistry.NewCoordinate(in.name, in.version, in.filename)
		assert.ErrorIs(t, err, simpleregistry.ErrMalformedIdentifier, "input %+v", in)
	}
}

func TestNugetCoordinate(t *testing.T) {
	c, err := simpleregistry.NugetCoordinate("Org.Example.Mono", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "Org.Example.Mono/1.0.0/Org.Example.Mono.1.0.0.nupkg", c.Path())
}
