package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gh "github.com/google/go-github/v80/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/repodigest/internal/digest"
	"github.com/temirov/repodigest/internal/types"
)

const (
	// DefaultAPIBaseURL is the public GitHub REST endpoint.
	DefaultAPIBaseURL = "https://api.github.com"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultConcurrency bounds parallel file-content requests.
	DefaultConcurrency = 8

	defaultBranchName = "main"
	defaultUserAgent  = "repodigest-fetcher"
	encodingBase64    = "base64"

	replacementCharacter = "\uFFFD"

	languagesPathFormat = "repos/%v/%v/languages"
	contentsPathFormat  = "repos/%v/%v/contents/%v"

	logFieldRepository = "repository"
	logFieldBranch     = "branch"
	logFieldFiles      = "files"
	logFieldFetched    = "fetched"
	logFieldPath       = "path"
)

// Fetcher retrieves repository snapshots through go-github. Configure it with the
// With* methods; copies share the same RateLimiter.
type Fetcher struct {
	httpClient  *http.Client
	apiBase     string
	userAgent   string
	timeout     time.Duration
	token       string
	concurrency int
	policy      digest.Policy
	rateLimiter *RateLimiter
	logger      *zap.Logger
}

// NewFetcher builds a Fetcher over httpClient, or over a default client when nil.
func NewFetcher(httpClient *http.Client) Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return Fetcher{
		httpClient:  httpClient,
		apiBase:     DefaultAPIBaseURL,
		userAgent:   defaultUserAgent,
		timeout:     DefaultTimeout,
		concurrency: DefaultConcurrency,
		policy:      digest.DefaultPolicy(),
		rateLimiter: NewRateLimiter(0),
		logger:      zap.NewNop(),
	}
}

// WithAPIBase points the fetcher at another REST endpoint, such as GitHub Enterprise.
func (fetcher Fetcher) WithAPIBase(base string) Fetcher {
	if base == "" {
		return fetcher
	}
	fetcher.apiBase = strings.TrimRight(base, "/")
	return fetcher
}

// WithUserAgent overrides the User-Agent header.
func (fetcher Fetcher) WithUserAgent(agent string) Fetcher {
	if agent == "" {
		return fetcher
	}
	fetcher.userAgent = agent
	return fetcher
}

// WithTimeout sets the per-request timeout.
func (fetcher Fetcher) WithTimeout(duration time.Duration) Fetcher {
	if duration <= 0 {
		return fetcher
	}
	fetcher.timeout = duration
	client := *fetcher.httpClient
	client.Timeout = duration
	fetcher.httpClient = &client
	return fetcher
}

// WithAuthorizationToken authenticates API calls with a personal access or OAuth token.
func (fetcher Fetcher) WithAuthorizationToken(token string) Fetcher {
	fetcher.token = strings.TrimSpace(token)
	return fetcher
}

// WithConcurrency bounds the number of parallel file-content requests.
func (fetcher Fetcher) WithConcurrency(concurrency int) Fetcher {
	if concurrency <= 0 {
		return fetcher
	}
	fetcher.concurrency = concurrency
	return fetcher
}

// WithRequestsPerSecond installs a fresh RateLimiter with proactive throttling.
func (fetcher Fetcher) WithRequestsPerSecond(requestsPerSecond float64) Fetcher {
	fetcher.rateLimiter = NewRateLimiter(requestsPerSecond)
	return fetcher
}

// WithPolicy selects which files are fetched.
func (fetcher Fetcher) WithPolicy(policy digest.Policy) Fetcher {
	fetcher.policy = policy
	return fetcher
}

// WithLogger attaches a logger.
func (fetcher Fetcher) WithLogger(logger *zap.Logger) Fetcher {
	if logger == nil {
		return fetcher
	}
	fetcher.logger = logger
	return fetcher
}

// Fetch retrieves metadata first, then languages, README and the recursive tree in
// parallel, and finally the contents of every file the policy selects. Missing
// languages, README, tree or individual files are treated as absent.
func (fetcher Fetcher) Fetch(ctx context.Context, reference RepositoryReference) (types.Snapshot, error) {
	client, clientError := fetcher.newClient(ctx)
	if clientError != nil {
		return types.Snapshot{}, clientError
	}
	logger := fetcher.logger.With(zap.String(logFieldRepository, reference.FullName()))

	metadata, metadataError := fetcher.fetchMetadata(ctx, client, reference)
	if metadataError != nil {
		return types.Snapshot{}, metadataError
	}
	logger.Debug("fetched repository metadata", zap.String(logFieldBranch, metadata.DefaultBranch))

	snapshot := types.Snapshot{
		Owner:        reference.Owner,
		Repository:   reference.Repository,
		Metadata:     metadata,
		FileContents: map[string]string{},
	}

	group, groupContext := errgroup.WithContext(ctx)
	group.Go(func() error {
		languages, err := fetcher.fetchLanguages(groupContext, client, reference)
		snapshot.Languages = languages
		return err
	})
	group.Go(func() error {
		readme, err := fetcher.fetchReadme(groupContext, client, reference)
		snapshot.Readme = readme
		return err
	})
	group.Go(func() error {
		tree, err := fetcher.fetchTree(groupContext, client, reference, metadata.DefaultBranch)
		snapshot.Tree = tree
		return err
	})
	if waitError := group.Wait(); waitError != nil {
		return types.Snapshot{}, waitError
	}

	paths := fetcher.policy.FetchPaths(snapshot.Tree)
	contents, contentsError := fetcher.fetchFiles(ctx, client, reference, paths)
	if contentsError != nil {
		return types.Snapshot{}, contentsError
	}
	snapshot.FileContents = contents
	logger.Debug("fetched repository files", zap.Int(logFieldFiles, len(paths)), zap.Int(logFieldFetched, len(contents)))
	return snapshot, nil
}

func (fetcher Fetcher) newClient(ctx context.Context) (*gh.Client, error) {
	httpClient := fetcher.httpClient
	if fetcher.token != "" {
		tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: fetcher.token})
		httpClient = oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, fetcher.httpClient), tokenSource)
		httpClient.Timeout = fetcher.timeout
	}
	client := gh.NewClient(httpClient)
	client.UserAgent = fetcher.userAgent
	if fetcher.apiBase != DefaultAPIBaseURL {
		baseURL, parseError := url.Parse(fetcher.apiBase + "/")
		if parseError != nil {
			return nil, fmt.Errorf("parse API base %q: %w", fetcher.apiBase, parseError)
		}
		client.BaseURL = baseURL
	}
	return client, nil
}

func (fetcher Fetcher) fetchMetadata(ctx context.Context, client *gh.Client, reference RepositoryReference) (types.Metadata, error) {
	if err := fetcher.rateLimiter.Wait(ctx); err != nil {
		return types.Metadata{}, err
	}
	repository, resp, err := client.Repositories.Get(ctx, reference.Owner, reference.Repository)
	if err = fetcher.wrapError(resp, err, "get repository"); err != nil {
		if IsNotFound(err) {
			return types.Metadata{}, fmt.Errorf("%w: %s", ErrRepoNotFound, reference.FullName())
		}
		return types.Metadata{}, err
	}

	metadata := types.Metadata{
		Description:     repository.GetDescription(),
		StargazersCount: repository.StargazersCount,
		Topics:          repository.Topics,
		DefaultBranch:   repository.GetDefaultBranch(),
	}
	if repository.License != nil {
		metadata.License = &types.License{Name: repository.License.GetName()}
	}
	if metadata.DefaultBranch == "" {
		metadata.DefaultBranch = defaultBranchName
	}
	return metadata, nil
}

// fetchLanguages reads the languages object token by token so the API order survives.
func (fetcher Fetcher) fetchLanguages(ctx context.Context, client *gh.Client, reference RepositoryReference) ([]types.LanguageStat, error) {
	if err := fetcher.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	request, requestError := client.NewRequest(http.MethodGet, fmt.Sprintf(languagesPathFormat, reference.Owner, reference.Repository), nil)
	if requestError != nil {
		return nil, requestError
	}
	var body bytes.Buffer
	resp, err := client.Do(ctx, request, &body)
	if err = fetcher.wrapError(resp, err, "list languages"); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	languages, decodeError := decodeLanguages(body.Bytes())
	if decodeError != nil {
		return nil, fmt.Errorf("decode languages: %w", decodeError)
	}
	return languages, nil
}

func (fetcher Fetcher) fetchReadme(ctx context.Context, client *gh.Client, reference RepositoryReference) (*string, error) {
	if err := fetcher.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	content, resp, err := client.Repositories.GetReadme(ctx, reference.Owner, reference.Repository, nil)
	if err = fetcher.wrapError(resp, err, "get readme"); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	readme, decoded := decodeContent(content)
	if !decoded {
		return nil, nil
	}
	return &readme, nil
}

func (fetcher Fetcher) fetchTree(ctx context.Context, client *gh.Client, reference RepositoryReference, branch string) ([]types.TreeEntry, error) {
	if err := fetcher.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	tree, resp, err := client.Git.GetTree(ctx, reference.Owner, reference.Repository, branch, true)
	if err = fetcher.wrapError(resp, err, "get tree"); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	entries := make([]types.TreeEntry, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		entries = append(entries, types.TreeEntry{Path: entry.GetPath(), Type: entry.GetType()})
	}
	return entries, nil
}

func (fetcher Fetcher) fetchFiles(ctx context.Context, client *gh.Client, reference RepositoryReference, paths []string) (map[string]string, error) {
	contents := make(map[string]string, len(paths))
	if len(paths) == 0 {
		return contents, nil
	}
	var contentsMutex sync.Mutex

	group, groupContext := errgroup.WithContext(ctx)
	group.SetLimit(fetcher.concurrency)
	for _, path := range paths {
		path := path
		group.Go(func() error {
			content, fetched, err := fetcher.fetchFile(groupContext, client, reference, path)
			if err != nil || !fetched {
				return err
			}
			contentsMutex.Lock()
			contents[path] = content
			contentsMutex.Unlock()
			return nil
		})
	}
	if waitError := group.Wait(); waitError != nil {
		return nil, waitError
	}
	return contents, nil
}

func (fetcher Fetcher) fetchFile(ctx context.Context, client *gh.Client, reference RepositoryReference, path string) (string, bool, error) {
	if err := fetcher.rateLimiter.Wait(ctx); err != nil {
		return "", false, err
	}
	// GetContents refuses paths containing "..", which are legal in repository file names.
	escapedPath := (&url.URL{Path: path}).String()
	request, requestError := client.NewRequest(http.MethodGet, fmt.Sprintf(contentsPathFormat, reference.Owner, reference.Repository, escapedPath), nil)
	if requestError != nil {
		return "", false, requestError
	}
	fileContent := new(gh.RepositoryContent)
	resp, err := client.Do(ctx, request, fileContent)
	if err = fetcher.wrapError(resp, err, "get contents"); err != nil {
		if IsNotFound(err) {
			fetcher.logger.Debug("skipping missing file", zap.String(logFieldPath, path))
			return "", false, nil
		}
		return "", false, err
	}
	content, decoded := decodeContent(fileContent)
	return content, decoded, nil
}

// wrapError converts go-github errors to this package's error kinds.
func (fetcher Fetcher) wrapError(resp *gh.Response, err error, operation string) error {
	if resp != nil {
		if rateLimitErr := fetcher.rateLimiter.CheckRateLimit(resp.Response); rateLimitErr != nil {
			return rateLimitErr
		}
	}
	if err == nil {
		return nil
	}

	var ghRateLimitErr *gh.RateLimitError
	if errors.As(err, &ghRateLimitErr) {
		return &RateLimitError{
			ResetAt:   ghRateLimitErr.Rate.Reset.Time,
			Remaining: ghRateLimitErr.Rate.Remaining,
			Limit:     ghRateLimitErr.Rate.Limit,
		}
	}
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		rateLimitErr := &RateLimitError{ResetAt: fetcher.rateLimiter.ResetTime(), Remaining: fetcher.rateLimiter.Remaining()}
		if abuseErr.RetryAfter != nil {
			rateLimitErr.ResetAt = time.Now().Add(*abuseErr.RetryAfter)
		}
		return rateLimitErr
	}
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		apiErr := &APIError{StatusCode: ghErr.Response.StatusCode, Message: ghErr.Message}
		if ghErr.Response.Request != nil && ghErr.Response.Request.URL != nil {
			apiErr.URL = ghErr.Response.Request.URL.String()
		}
		return apiErr
	}
	if resp != nil && resp.Response != nil && resp.StatusCode >= http.StatusBadRequest {
		return &APIError{StatusCode: resp.StatusCode, Message: err.Error()}
	}
	return fmt.Errorf("%s: %w", operation, err)
}

// decodeContent returns the text of a base64 encoded content payload; invalid UTF-8
// sequences are replaced with U+FFFD.
func decodeContent(content *gh.RepositoryContent) (string, bool) {
	if content == nil || content.Content == nil || *content.Content == "" {
		return "", false
	}
	if content.GetEncoding() != encodingBase64 {
		return "", false
	}
	decoded, decodeError := content.GetContent()
	if decodeError != nil {
		return "", false
	}
	return strings.ToValidUTF8(decoded, replacementCharacter), true
}

func decodeLanguages(payload []byte) ([]types.LanguageStat, error) {
	decoder := json.NewDecoder(bytes.NewReader(payload))
	openingToken, tokenError := decoder.Token()
	if tokenError != nil {
		return nil, tokenError
	}
	if delimiter, isDelimiter := openingToken.(json.Delim); !isDelimiter || delimiter != '{' {
		return nil, fmt.Errorf("expected object, got %v", openingToken)
	}
	var languages []types.LanguageStat
	for decoder.More() {
		keyToken, keyError := decoder.Token()
		if keyError != nil {
			return nil, keyError
		}
		name, isString := keyToken.(string)
		if !isString {
			return nil, fmt.Errorf("expected language name, got %v", keyToken)
		}
		var byteCount int
		if valueError := decoder.Decode(&byteCount); valueError != nil {
			return nil, fmt.Errorf("language %s: %w", name, valueError)
		}
		languages = append(languages, types.LanguageStat{Name: name, Bytes: byteCount})
	}
	return languages, nil
}
