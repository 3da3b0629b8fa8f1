package registry

import (
	"github.com/caskhub/caskd/internal/manifest"
	"github.com/caskhub/caskd/internal/versions"
)

// mergeApps flattens per-repository manifests into one list. When the same
// app name appears in several repositories the highest version wins; ties
// keep the entry from the earlier repository in the list.
func mergeApps(snapshot []RepositoryManifests) []manifest.Entry {
	merged := make([]manifest.Entry, 0)
	index := make(map[string]int)

	for _, repo := range snapshot {
		for _, app := range repo.Apps {
			i, seen := index[app.Name]
			if !seen {
				index[app.Name] = len(merged)
				merged = append(merged, app)
				continue
			}
			if versions.IsNewerVersion(app.Version, merged[i].Version) {
				merged[i] = app
			}
		}
	}

	return merged
}
