// Package analyzer runs the repository pipeline: fetch a snapshot, build its digest and summarize it.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/repodigest/internal/digest"
	"github.com/temirov/repodigest/internal/github"
	"github.com/temirov/repodigest/internal/summarizer"
	"github.com/temirov/repodigest/internal/tokenizer"
	"github.com/temirov/repodigest/internal/types"
)

const (
	logFieldRepository   = "repository"
	logFieldTreeEntries  = "tree_entries"
	logFieldFetchedFiles = "fetched_files"
	logFieldCharacters   = "characters"
	logFieldTokens       = "tokens"
	logFieldDuration     = "duration"
	logFieldSummarizer   = "summarizer"
)

// ErrSummarizerUnavailable reports a Summarize call on a service built without a summarizer.
var ErrSummarizerUnavailable = errors.New("analyzer: no summarizer configured")

// SnapshotSource retrieves a complete repository snapshot.
type SnapshotSource interface {
	Fetch(ctx context.Context, reference github.RepositoryReference) (types.Snapshot, error)
}

// Result is the outcome of building a digest for one repository.
type Result struct {
	Reference github.RepositoryReference
	Snapshot  types.Snapshot
	Digest    digest.Digest
	Tokens    *tokenizer.Report
}

// Text renders the digest document.
func (result Result) Text() string {
	return result.Digest.String()
}

// Service wires a snapshot source, a digest builder and an optional summarizer.
type Service struct {
	source     SnapshotSource
	builder    *digest.Builder
	summarizer summarizer.Summarizer
	counter    tokenizer.Counter
	logger     *zap.Logger
}

// NewService constructs a Service. A nil builder uses the default policy; a nil summarizer limits the
// service to digests.
func NewService(source SnapshotSource, builder *digest.Builder, summarizerClient summarizer.Summarizer, logger *zap.Logger) *Service {
	if builder == nil {
		builder = digest.NewBuilder(digest.DefaultPolicy())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{source: source, builder: builder, summarizer: summarizerClient, logger: logger}
}

// WithTokenCounter attaches a counter so that every digest carries a token report.
func (service *Service) WithTokenCounter(counter tokenizer.Counter) *Service {
	service.counter = counter
	return service
}

// Digest parses rawURL, fetches the repository and builds its digest.
func (service *Service) Digest(ctx context.Context, rawURL string) (Result, error) {
	reference, parseErr := github.ParseRepositoryURL(rawURL)
	if parseErr != nil {
		return Result{}, parseErr
	}
	startedAt := time.Now()
	snapshot, fetchErr := service.source.Fetch(ctx, reference)
	if fetchErr != nil {
		return Result{}, fetchErr
	}
	built := service.builder.Build(snapshot)
	result := Result{Reference: reference, Snapshot: snapshot, Digest: built}

	fields := []zap.Field{
		zap.String(logFieldRepository, reference.FullName()),
		zap.Int(logFieldTreeEntries, len(snapshot.Tree)),
		zap.Int(logFieldFetchedFiles, len(snapshot.FileContents)),
		zap.Int(logFieldCharacters, digest.Length(built.String())),
		zap.Duration(logFieldDuration, time.Since(startedAt)),
	}
	if service.counter != nil {
		report, countErr := tokenizer.CountDigest(service.counter, built)
		if countErr != nil {
			return Result{}, fmt.Errorf("count digest tokens: %w", countErr)
		}
		result.Tokens = &report
		fields = append(fields, zap.Int(logFieldTokens, report.Total))
	}
	service.logger.Debug("digest built", fields...)
	return result, nil
}

// Summarize builds the digest for rawURL and asks the summarizer to describe it.
func (service *Service) Summarize(ctx context.Context, rawURL string) (types.Summary, error) {
	if service.summarizer == nil {
		return types.Summary{}, ErrSummarizerUnavailable
	}
	result, digestErr := service.Digest(ctx, rawURL)
	if digestErr != nil {
		return types.Summary{}, digestErr
	}
	startedAt := time.Now()
	summary, summarizeErr := service.summarizer.Summarize(ctx, result.Text())
	if summarizeErr != nil {
		service.logger.Warn("summarization failed",
			zap.String(logFieldRepository, result.Reference.FullName()),
			zap.String(logFieldSummarizer, service.summarizer.Name()),
			zap.Error(summarizeErr),
		)
		return types.Summary{}, summarizeErr
	}
	service.logger.Debug("repository summarized",
		zap.String(logFieldRepository, result.Reference.FullName()),
		zap.String(logFieldSummarizer, service.summarizer.Name()),
		zap.Duration(logFieldDuration, time.Since(startedAt)),
	)
	return summary, nil
}
