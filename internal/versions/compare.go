// Package versions provides build version info and version-string comparison
// for app manifest entries.
package versions

import "github.com/Masterminds/semver/v3"

// IsNewerVersion reports whether newVersion is strictly greater than
// oldVersion. Comparison is semantic when both strings parse as semver and
// falls back to lexicographic ordering otherwise, so repositories that
// publish free-form versions still get a stable answer.
func IsNewerVersion(newVersion, oldVersion string) bool {
	newSemver, errNew := semver.NewVersion(newVersion)
	oldSemver, errOld := semver.NewVersion(oldVersion)

	if errNew != nil || errOld != nil {
		return newVersion > oldVersion
	}

	return newSemver.GreaterThan(oldSemver)
}
