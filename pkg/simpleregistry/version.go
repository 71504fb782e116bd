package simpleregistry

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CompareVersions orders package versions. Versions that parse as semantic
// versions compare semantically; anything else falls back to a case
// insensitive string comparison and sorts before semantic versions.
func CompareVersions(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	switch {
	case errA == nil && errB == nil:
		return va.Compare(vb)
	case errA == nil:
		return 1
	case errB == nil:
		return -1
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// IsPrerelease reports whether the version carries a prerelease tag
func IsPrerelease(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return v.Prerelease() != ""
}
