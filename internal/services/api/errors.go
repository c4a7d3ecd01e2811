package api

import (
	"errors"
	"net/http"

	"github.com/temirov/repodigest/internal/github"
	"github.com/temirov/repodigest/internal/services/analyzer"
	"github.com/temirov/repodigest/internal/summarizer"
)

const (
	messageInvalidBody    = "Invalid request body"
	messageInvalidURL     = "Invalid GitHub URL"
	messageNotFound       = "Repository not found or is private"
	messageRateLimited    = "GitHub rate limit exceeded"
	messageGitHubFailure  = "GitHub API error: "
	messageAnalysisFailed = "LLM analysis failed: "
)

var errMissingGitHubURL = errors.New("github_url is required")

// ClassifyError maps a pipeline failure to the HTTP status and message reported to clients.
func ClassifyError(err error) (int, string) {
	var analysisError *summarizer.AnalysisError
	switch {
	case errors.Is(err, github.ErrInvalidURL):
		return http.StatusBadRequest, messageInvalidURL
	case github.IsNotFound(err):
		return http.StatusNotFound, messageNotFound
	case github.IsRateLimited(err):
		return http.StatusTooManyRequests, messageRateLimited
	case errors.As(err, &analysisError):
		return http.StatusInternalServerError, messageAnalysisFailed + analysisError.Error()
	case errors.Is(err, analyzer.ErrSummarizerUnavailable):
		return http.StatusInternalServerError, messageAnalysisFailed + err.Error()
	default:
		return http.StatusInternalServerError, messageGitHubFailure + err.Error()
	}
}
