package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/repodigest/internal/types"
)

const (
	chatCompletionsPath = "chat/completions"
	roleSystem          = "system"
	roleUser            = "user"
)

// chatCompletionRequest is the OpenAI /chat/completions request format.
type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []chatCompletionMsg `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature"`
}

// chatCompletionMsg is the OpenAI chat message format.
type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionResponse is the OpenAI /chat/completions response format.
type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// chatCompletionSummarizer talks to any OpenAI-compatible endpoint, Nebius AI Studio by default.
type chatCompletionSummarizer struct {
	provider      string
	configuration Config
	client        *http.Client
	logger        *zap.Logger
}

func newChatCompletionSummarizer(provider string, configuration Config, logger *zap.Logger) *chatCompletionSummarizer {
	return &chatCompletionSummarizer{
		provider:      provider,
		configuration: configuration,
		client:        &http.Client{Timeout: configuration.Timeout},
		logger:        logger,
	}
}

func (s *chatCompletionSummarizer) Name() string {
	return s.provider + ":" + s.configuration.Model
}

func (s *chatCompletionSummarizer) Summarize(ctx context.Context, digestText string) (types.Summary, error) {
	if s.configuration.APIKey == "" {
		return types.Summary{}, s.configuration.missingCredentialError()
	}
	content, err := s.chatCompletion(ctx, digestText)
	if err != nil {
		return types.Summary{}, &AnalysisError{Message: fmt.Sprintf(callFailureFormat, err), Err: err}
	}
	s.logger.Debug("received model reply", zap.String("model", s.configuration.Model), zap.Int("characters", len(content)))
	return ParseResponse(content)
}

func (s *chatCompletionSummarizer) chatCompletion(ctx context.Context, digestText string) (string, error) {
	reqBody := chatCompletionRequest{
		Model: s.configuration.Model,
		Messages: []chatCompletionMsg{
			{Role: roleSystem, Content: SystemPrompt},
			{Role: roleUser, Content: digestText},
		},
		MaxTokens:   s.configuration.MaxTokens,
		Temperature: *s.configuration.Temperature,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(s.configuration.BaseURL, "/") + "/" + chatCompletionsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.configuration.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return "", fmt.Errorf("decode response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("%s error: %s", s.provider, chatResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if len(chatResp.Choices) == 0 {
		return "", errEmptyCandidates
	}
	return chatResp.Choices[0].Message.Content, nil
}
