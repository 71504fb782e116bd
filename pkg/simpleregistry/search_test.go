package simpleregistry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tendant/simple-registry/pkg/simpleregistry"
)

func records() []*simpleregistry.ArtifactRecord {
	return []*simpleregistry.ArtifactRecord{
		{Name: "Alpha.Search", Version: "1.0.0"},
		{Name: "Alpha.Search", Version: "1.10.0"},
		{Name: "Alpha.Search", Version: "2.0.0-beta"},
		{Name: "Beta", Version: "0.1.0", Metadata: map[string]string{simpleregistry.MetaDescription: "search helpers"}},
		{Name: "Gamma", Version: "3.0.0"},
	}
}

func TestMatchRecords_Term(t *testing.T) {
	got := simpleregistry.MatchRecords(records(), simpleregistry.SearchQuery{Term: "SEARCH"})
	assert.Len(t, got, 4)
	assert.Equal(t, "2.0.0-beta", got[0].Version)
	assert.Equal(t, "1.10.0", got[1].Version)
	assert.Equal(t, "Beta", got[3].Name)
}

func TestMatchRecords_LatestOnly(t *testing.T) {
	got := simpleregistry.MatchRecords(records(), simpleregistry.SearchQuery{LatestOnly: true})
	if assert.Len(t, got, 3) {
		assert.Equal(t, "1.10.0", got[0].Version)
		assert.Equal(t, "Beta", got[1].Name)
		assert.Equal(t, "Gamma", got[2].Name)
	}

	got = simpleregistry.MatchRecords(records(), simpleregistry.SearchQuery{LatestOnly: true, IncludePrerelease: true})
	assert.Equal(t, "2.0.0-beta", got[0].Version)
}

func TestPageRecords(t *testing.T) {
	all := simpleregistry.MatchRecords(records(), simpleregistry.SearchQuery{})
	assert.Len(t, simpleregistry.PageRecords(all, 0, 2), 2)
	assert.Len(t, simpleregistry.PageRecords(all, 4, 30), 1)
	assert.Nil(t, simpleregistry.PageRecords(all, 10, 30))
	assert.Len(t, simpleregistry.PageRecords(all, -1, 0), 5)
}

func TestCompareVersions(t *testing.T) {
	assert.Equal(t, 1, simpleregistry.CompareVersions("1.10.0", "1.9.0"))
	assert.Equal(t, -1, simpleregistry.CompareVersions("1.0.0-beta", "1.0.0"))
	assert.Equal(t, 0, simpleregistry.CompareVersions("1.0", "1.0.0"))
	assert.Equal(t, 1, simpleregistry.CompareVersions("1.0.0", "not-a-version"))
	assert.True(t, simpleregistry.IsPrerelease("2.0.0-rc.1"))
	assert.False(t, simpleregistry.IsPrerelease("2.0.0"))
}
