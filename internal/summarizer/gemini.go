package summarizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/temirov/repodigest/internal/types"
)

const responseMIMETypeJSON = "application/json"

var errEmptyCandidates = errors.New(emptyResponseFormat)

// geminiSummarizer calls the Gemini API through the official genai client, created on first use.
type geminiSummarizer struct {
	configuration Config
	logger        *zap.Logger

	clientOnce  sync.Once
	client      *genai.Client
	clientError error
}

func newGeminiSummarizer(configuration Config, logger *zap.Logger) *geminiSummarizer {
	return &geminiSummarizer{configuration: configuration, logger: logger}
}

func (g *geminiSummarizer) Name() string {
	return types.ProviderGemini + ":" + g.configuration.Model
}

func (g *geminiSummarizer) Summarize(ctx context.Context, digestText string) (types.Summary, error) {
	if g.configuration.APIKey == "" {
		return types.Summary{}, g.configuration.missingCredentialError()
	}
	client, err := g.genaiClient(ctx)
	if err != nil {
		return types.Summary{}, &AnalysisError{Message: fmt.Sprintf(callFailureFormat, err), Err: err}
	}

	temperature := float32(*g.configuration.Temperature)
	resp, err := client.Models.GenerateContent(ctx, g.configuration.Model,
		[]*genai.Content{{Role: roleUser, Parts: []*genai.Part{{Text: digestText}}}},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: SystemPrompt}}},
			Temperature:       &temperature,
			MaxOutputTokens:   int32(g.configuration.MaxTokens),
			ResponseMIMEType:  responseMIMETypeJSON,
		},
	)
	if err != nil {
		return types.Summary{}, &AnalysisError{Message: fmt.Sprintf(callFailureFormat, err), Err: err}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return types.Summary{}, &AnalysisError{Message: fmt.Sprintf(callFailureFormat, errEmptyCandidates), Err: errEmptyCandidates}
	}
	text := resp.Candidates[0].Content.Parts[0].Text
	g.logger.Debug("received model reply", zap.String("model", g.configuration.Model), zap.Int("characters", len(text)))
	return ParseResponse(text)
}

func (g *geminiSummarizer) genaiClient(ctx context.Context) (*genai.Client, error) {
	g.clientOnce.Do(func() {
		clientConfig := &genai.ClientConfig{
			APIKey:     g.configuration.APIKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: &http.Client{Timeout: g.configuration.Timeout},
		}
		if g.configuration.BaseURL != "" {
			clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: g.configuration.BaseURL}
		}
		g.client, g.clientError = genai.NewClient(ctx, clientConfig)
	})
	return g.client, g.clientError
}
