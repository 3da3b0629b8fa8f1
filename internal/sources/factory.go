package sources

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/caskhub/caskd/internal/git"
	"github.com/caskhub/caskd/internal/httpclient"
)

// defaultFactory is the default implementation of Factory
type defaultFactory struct {
	httpClient httpclient.Client
	gitClient  git.Client
	cache      CacheStore
}

var _ Factory = (*defaultFactory)(nil)

// NewFactory creates a source factory with explicit dependencies so tests can
// substitute any of them
func NewFactory(httpClient httpclient.Client, gitClient git.Client, cache CacheStore) Factory {
	return &defaultFactory{
		httpClient: httpClient,
		gitClient:  gitClient,
		cache:      cache,
	}
}

// CreateSource creates a source for the given repository URL.
// Dispatch is by URL shape: file:// paths become file sources, git remotes
// (git:// or *.git over HTTP) become git sources, everything HTTP becomes an
// HTTP source.
func (f *defaultFactory) CreateSource(rawURL string) (Source, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("repository URL cannot be empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid repository URL %q: %w", rawURL, err)
	}

	switch parsed.Scheme {
	case "file":
		return newFileSource(rawURL, f.cache), nil
	case "git":
		return newGitSource(rawURL, f.gitClient, f.cache), nil
	case "http", "https":
		if strings.HasSuffix(parsed.Path, ".git") {
			return newGitSource(rawURL, f.gitClient, f.cache), nil
		}
		return newHTTPSource(rawURL, f.httpClient, f.cache), nil
	default:
		return nil, fmt.Errorf("unsupported repository URL scheme: %q", parsed.Scheme)
	}
}
