package simpleregistry

import (
	"sort"
	"strings"
)

// Metadata keys the index matches search terms against
const (
	MetaTitle       = "title"
	MetaDescription = "description"
	MetaSummary     = "summary"
	MetaTags        = "tags"
)

// MatchRecords applies the term and latest-version selection of q to records
// and returns them ordered by name ascending, version descending. Paging is
// not applied.
func MatchRecords(records []*ArtifactRecord, q SearchQuery) []*ArtifactRecord {
	term := strings.ToLower(strings.TrimSpace(q.Term))

	var matched []*ArtifactRecord
	for _, rec := range records {
		if !q.IncludePrerelease && q.LatestOnly && IsPrerelease(rec.Version) {
			continue
		}
		if term != "" && !matchesTerm(rec, term) {
			continue
		}
		matched = append(matched, rec)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		ni, nj := strings.ToLower(matched[i].Name), strings.ToLower(matched[j].Name)
		if ni != nj {
			return ni < nj
		}
		return CompareVersions(matched[i].Version, matched[j].Version) > 0
	})

	if !q.LatestOnly {
		return matched
	}

	latest := matched[:0:0]
	seen := make(map[string]bool)
	for _, rec := range matched {
		key := strings.ToLower(rec.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		latest = append(latest, rec)
	}
	return latest
}

// PageRecords applies skip and top to an ordered result
func PageRecords(records []*ArtifactRecord, skip, top int) []*ArtifactRecord {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(records) {
		return nil
	}
	records = records[skip:]
	if top > 0 && top < len(records) {
		records = records[:top]
	}
	return records
}

func matchesTerm(rec *ArtifactRecord, term string) bool {
	candidates := []string{rec.Name}
	for _, key := range []string{MetaTitle, MetaDescription, MetaSummary, MetaTags} {
		if v, ok := rec.Metadata[key]; ok {
			candidates = append(candidates, v)
		}
	}
	for _, c := range candidates {
		if strings.Contains(strings.ToLower(c), term) {
			return true
		}
	}
	return false
}
