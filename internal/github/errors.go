package github

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrInvalidURL indicates the input is not a github.com repository URL.
	ErrInvalidURL = errors.New("github: invalid repository URL")

	// ErrRepoNotFound indicates the repository does not exist or is private.
	ErrRepoNotFound = errors.New("github: repository not found or is private")
)

// RateLimitError reports an exhausted GitHub API quota.
type RateLimitError struct {
	ResetAt   time.Time
	Remaining int
	Limit     int
}

func (e *RateLimitError) Error() string {
	if e.ResetAt.IsZero() {
		return "github: rate limit exceeded"
	}
	return fmt.Sprintf("github: rate limit exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// APIError is any other non-2xx GitHub API response.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err means the repository or resource does not exist.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return errors.Is(err, ErrRepoNotFound)
}

// IsRateLimited reports whether err means the GitHub quota is exhausted.
func IsRateLimited(err error) bool {
	var rateLimitErr *RateLimitError
	return errors.As(err, &rateLimitErr)
}
