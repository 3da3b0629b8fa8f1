// Package manifest defines the app manifest index model shared by repository
// sources and the aggregate registry.
package manifest

import (
	"encoding/json"
	"fmt"
)

// IndexFileName is the name of the manifest index file published by a repository
const IndexFileName = "index.json"

// Entry describes one installable application discovered in a repository
type Entry struct {
	// Name is the unique identifier of the app within its repository
	Name string `json:"name"`

	// Version is the latest published version of the app
	Version string `json:"version,omitempty"`

	// Description is a short human-readable summary
	Description string `json:"description,omitempty"`

	// Homepage is the upstream project page
	Homepage string `json:"homepage,omitempty"`

	// DownloadURL points at the installable artifact
	DownloadURL string `json:"downloadUrl,omitempty"`
}

// Index is the document a repository publishes to describe its apps
type Index struct {
	// SchemaVersion identifies the index document revision
	SchemaVersion int `json:"schemaVersion,omitempty"`

	// Apps lists every application the repository offers
	Apps []Entry `json:"apps"`
}

// ParseIndex parses raw index data and performs light structural checks.
// Full schema validation is a concern of the publishing side, not this daemon;
// only conditions that would break aggregation are rejected here.
func ParseIndex(data []byte) (*Index, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("index data cannot be empty")
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to parse manifest index: %w", err)
	}

	for i, app := range idx.Apps {
		if app.Name == "" {
			return nil, fmt.Errorf("app at index %d: name is required", i)
		}
	}

	return &idx, nil
}
