// Package github retrieves repository snapshots from the GitHub REST API.
package github

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	gitSuffix          = ".git"
	hostGitHub         = "github.com"
	hostGitHubWWW      = "www.github.com"
	minimumPathSegment = 2
)

// RepositoryReference identifies one GitHub repository.
type RepositoryReference struct {
	Owner      string
	Repository string
}

// FullName returns the owner/repository identifier.
func (reference RepositoryReference) FullName() string {
	return reference.Owner + "/" + reference.Repository
}

// ParseRepositoryURL resolves the owner and repository name from a github.com URL.
// Additional path segments such as /tree/main are ignored and a trailing .git is removed.
func ParseRepositoryURL(rawURL string) (RepositoryReference, error) {
	parsedURL, parseError := url.Parse(strings.TrimSpace(rawURL))
	if parseError != nil {
		return RepositoryReference{}, fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}
	host := strings.ToLower(parsedURL.Hostname())
	if host != hostGitHub && host != hostGitHubWWW {
		return RepositoryReference{}, fmt.Errorf("%w: not a GitHub URL: %s", ErrInvalidURL, rawURL)
	}

	var segments []string
	for _, segment := range strings.Split(strings.Trim(parsedURL.Path, "/"), "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	if len(segments) < minimumPathSegment {
		return RepositoryReference{}, fmt.Errorf("%w: missing owner or repository: %s", ErrInvalidURL, rawURL)
	}

	repository := strings.TrimSuffix(segments[1], gitSuffix)
	if repository == "" {
		return RepositoryReference{}, fmt.Errorf("%w: empty repository name: %s", ErrInvalidURL, rawURL)
	}
	return RepositoryReference{Owner: segments[0], Repository: repository}, nil
}
