package simpleregistry_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tendant/simple-registry/pkg/simpleregistry"
)

func TestEnvelope_AbsenceIsObservable(t *testing.T) {
	values := url.Values{}
	values.Set("name", "demo")
	values.Set("author", "")

	env := simpleregistry.NewEnvelope(values, "name", "author", "license")

	v, ok := env.Lookup("author")
	assert.True(t, ok)
	assert.Equal(t, "", v)

	_, ok = env.Lookup("license")
	assert.False(t, ok)
	assert.Equal(t, 2, env.Len())
}

func TestEnvelope_DoesNotAliasInput(t *testing.T) {
	values := url.Values{}
	values.Set("name", "demo")
	env := simpleregistry.NewEnvelope(values)

	values.Set("name", "changed")
	assert.Equal(t, "demo", env.Value("name"))

	fields := env.Fields()
	fields["name"] = "mutated"
	assert.Equal(t, "demo", env.Value("name"))
}
