// Package summarizer turns a repository digest into a structured summary using a language model.
package summarizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/repodigest/internal/types"
)

const (
	// DefaultNebiusBaseURL is the OpenAI-compatible Nebius AI Studio endpoint.
	DefaultNebiusBaseURL = "https://api.studio.nebius.com/v1/"
	// DefaultNebiusModel is the model used with the Nebius provider.
	DefaultNebiusModel = "meta-llama/Llama-3.3-70B-Instruct"
	// DefaultOpenAIBaseURL is the OpenAI endpoint.
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultOpenAIModel is the model used with the OpenAI provider.
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultGeminiModel is the model used with the Gemini provider.
	DefaultGeminiModel = "gemini-2.0-flash"

	DefaultMaxTokens   = 800
	DefaultTemperature = 0.2
	DefaultTimeout     = 120 * time.Second

	nebiusCredentialVariable = "NEBIUS_API_KEY"
	openAICredentialVariable = "OPENAI_API_KEY"
	geminiCredentialVariable = "GEMINI_API_KEY"

	unsupportedProviderFormat = "unsupported LLM provider %q"
)

// Summarizer produces a Summary from digest text.
type Summarizer interface {
	Summarize(ctx context.Context, digestText string) (types.Summary, error)
	Name() string
}

// Config selects and parameterizes a provider. Zero values take the provider defaults.
type Config struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature *float64
	Timeout     time.Duration
}

// CredentialVariable names the environment variable holding the API key of provider.
func CredentialVariable(provider string) string {
	switch normalizeProvider(provider) {
	case types.ProviderOpenAI:
		return openAICredentialVariable
	case types.ProviderGemini:
		return geminiCredentialVariable
	default:
		return nebiusCredentialVariable
	}
}

// New builds the Summarizer for configuration.Provider. An empty provider selects Nebius.
// A missing API key is not an error here; it is reported by Summarize.
func New(configuration Config, logger *zap.Logger) (Summarizer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	provider := normalizeProvider(configuration.Provider)
	resolved := configuration.withDefaults(provider)
	switch provider {
	case types.ProviderNebius, types.ProviderOpenAI:
		return newChatCompletionSummarizer(provider, resolved, logger), nil
	case types.ProviderGemini:
		return newGeminiSummarizer(resolved, logger), nil
	default:
		return nil, fmt.Errorf(unsupportedProviderFormat, configuration.Provider)
	}
}

func normalizeProvider(provider string) string {
	normalized := strings.ToLower(strings.TrimSpace(provider))
	if normalized == "" {
		return types.ProviderNebius
	}
	return normalized
}

func (configuration Config) withDefaults(provider string) Config {
	if configuration.BaseURL == "" {
		switch provider {
		case types.ProviderNebius:
			configuration.BaseURL = DefaultNebiusBaseURL
		case types.ProviderOpenAI:
			configuration.BaseURL = DefaultOpenAIBaseURL
		}
	}
	if configuration.Model == "" {
		switch provider {
		case types.ProviderOpenAI:
			configuration.Model = DefaultOpenAIModel
		case types.ProviderGemini:
			configuration.Model = DefaultGeminiModel
		default:
			configuration.Model = DefaultNebiusModel
		}
	}
	if configuration.MaxTokens <= 0 {
		configuration.MaxTokens = DefaultMaxTokens
	}
	if configuration.Temperature == nil {
		temperature := DefaultTemperature
		configuration.Temperature = &temperature
	}
	if configuration.Timeout <= 0 {
		configuration.Timeout = DefaultTimeout
	}
	configuration.Provider = provider
	return configuration
}

func (configuration Config) missingCredentialError() error {
	return &AnalysisError{
		Message: CredentialVariable(configuration.Provider) + " environment variable not set",
		Err:     ErrMissingCredential,
	}
}
