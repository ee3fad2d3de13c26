package update

import (
	"strings"

	"github.com/hashicorp/go-version"
)

// ParseReleaseVersion extracts the first version-looking token of a release
// name, e.g. "D9VK 0.40.1" or "v0.13". It returns nil if there is none.
func ParseReleaseVersion(name string) *version.Version {
	for _, field := range strings.Fields(name) {
		if v, err := version.NewVersion(field); err == nil {
			return v
		}
	}
	return nil
}

// IsDowngrade reports whether latest names an older version than current.
// Names that do not both carry a version are never a downgrade.
func IsDowngrade(current, latest string) bool {
	cur := ParseReleaseVersion(current)
	lat := ParseReleaseVersion(latest)
	if cur == nil || lat == nil {
		return false
	}
	return lat.LessThan(cur)
}
