// Package config loads repodigest configuration from YAML files, a dotenv file and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/temirov/repodigest/internal/digest"
	"github.com/temirov/repodigest/internal/summarizer"
	"github.com/temirov/repodigest/internal/utils"
)

const (
	// DefaultServerAddress is the listen address used when neither configuration nor PORT set one.
	DefaultServerAddress = ":8000"
	// DefaultShutdownTimeout bounds graceful HTTP shutdown.
	DefaultShutdownTimeout = 10 * time.Second

	// GitHubTokenVariable names the environment variable holding an optional GitHub token.
	GitHubTokenVariable = "GITHUB_TOKEN"
	// PortVariable names the environment variable selecting the HTTP port.
	PortVariable = "PORT"

	invalidDurationFormat = "invalid %s duration %q: %w"
	invalidPortFormat     = "invalid %s value %q"
)

// LookupFunc resolves an environment variable.
type LookupFunc func(key string) (string, bool)

// LoadOptions controls how application configuration is discovered.
// SkipEnvironmentFile disables loading the dotenv file from the working directory.
// Lookup resolves environment variables; os.LookupEnv is used when nil.
type LoadOptions struct {
	WorkingDirectory    string
	ExplicitFilePath    string
	SkipEnvironmentFile bool
	Lookup              LookupFunc
}

// ApplicationConfiguration holds the settings of every repodigest component.
type ApplicationConfiguration struct {
	Server ServerConfiguration `mapstructure:"server"`
	GitHub GitHubConfiguration `mapstructure:"github"`
	LLM    LLMConfiguration    `mapstructure:"llm"`
	Digest DigestConfiguration `mapstructure:"digest"`
}

// ServerConfiguration configures the HTTP service.
type ServerConfiguration struct {
	Address         string `mapstructure:"address"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout"`
}

// GitHubConfiguration configures the repository data source.
type GitHubConfiguration struct {
	APIBase           string   `mapstructure:"api_base"`
	Token             string   `mapstructure:"token"`
	Timeout           string   `mapstructure:"timeout"`
	Concurrency       *int     `mapstructure:"concurrency"`
	RequestsPerSecond *float64 `mapstructure:"requests_per_second"`
}

// LLMConfiguration configures the summarization provider.
type LLMConfiguration struct {
	Provider    string   `mapstructure:"provider"`
	BaseURL     string   `mapstructure:"base_url"`
	Model       string   `mapstructure:"model"`
	APIKey      string   `mapstructure:"api_key"`
	MaxTokens   *int     `mapstructure:"max_tokens"`
	Temperature *float64 `mapstructure:"temperature"`
	Timeout     string   `mapstructure:"timeout"`
}

// DigestConfiguration overrides the digest selection policy. A non-empty list replaces the built-in list.
type DigestConfiguration struct {
	IgnoredDirectories []string `mapstructure:"ignored_dirs"`
	IgnoredFiles       []string `mapstructure:"ignored_files"`
	IgnoredExtensions  []string `mapstructure:"ignored_extensions"`
	ConfigPatterns     []string `mapstructure:"config_patterns"`
	EntryPatterns      []string `mapstructure:"entry_patterns"`
	CountTokens        *bool    `mapstructure:"count_tokens"`
	TokenModel         string   `mapstructure:"token_model"`
}

// LoadApplicationConfiguration loads the dotenv file, then global and local configuration files,
// and finally applies environment overrides.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, err := os.Getwd()
		if err != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", err)
		}
		workingDirectory = currentDirectory
	}

	if !options.SkipEnvironmentFile {
		if err := LoadEnvironmentFile(filepath.Join(workingDirectory, utils.EnvironmentFileName)); err != nil {
			return ApplicationConfiguration{}, err
		}
	}

	var merged ApplicationConfiguration

	if homeDirectory, err := os.UserHomeDir(); err == nil && homeDirectory != "" {
		globalPath := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.ConfigFileName)
		globalConfig, loadErr := loadConfigurationFromPath(globalPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(globalConfig)
	}

	localPath, resolveErr := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	if resolveErr != nil {
		return ApplicationConfiguration{}, resolveErr
	}
	if localPath != "" {
		localConfig, loadErr := loadConfigurationFromPath(localPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(localConfig)
	}

	lookup := options.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return merged.ApplyEnvironment(lookup)
}

// LoadEnvironmentFile exports the variables of a dotenv file without overriding variables already set.
// A missing file is not an error.
func LoadEnvironmentFile(path string) error {
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return nil
		}
		return fmt.Errorf("stat environment file %s: %w", path, statErr)
	}
	if info.IsDir() {
		return fmt.Errorf("environment file path %s is a directory", path)
	}
	if loadErr := godotenv.Load(path); loadErr != nil {
		return fmt.Errorf("load environment file %s: %w", path, loadErr)
	}
	return nil
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) (string, error) {
	if explicitPath != "" {
		if filepath.IsAbs(explicitPath) {
			return explicitPath, nil
		}
		if workingDirectory == "" {
			absolute, err := filepath.Abs(explicitPath)
			if err != nil {
				return "", fmt.Errorf("resolve configuration path %s: %w", explicitPath, err)
			}
			return absolute, nil
		}
		return filepath.Join(workingDirectory, explicitPath), nil
	}
	if workingDirectory == "" {
		return "", nil
	}
	return filepath.Join(workingDirectory, utils.ConfigFileName), nil
}

func loadConfigurationFromPath(path string) (ApplicationConfiguration, error) {
	if path == "" {
		return ApplicationConfiguration{}, nil
	}
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return ApplicationConfiguration{}, nil
		}
		return ApplicationConfiguration{}, fmt.Errorf("stat configuration %s: %w", path, statErr)
	}
	if info.IsDir() {
		return ApplicationConfiguration{}, fmt.Errorf("configuration path %s is a directory", path)
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	if readErr := reader.ReadInConfig(); readErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("read configuration from %s: %w", path, readErr)
	}
	var config ApplicationConfiguration
	if decodeErr := reader.Unmarshal(&config); decodeErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration from %s: %w", path, decodeErr)
	}
	return config, nil
}

// ApplyEnvironment overlays GITHUB_TOKEN, PORT and the provider API key variable onto the configuration.
// Environment values take precedence over file values.
func (config ApplicationConfiguration) ApplyEnvironment(lookup LookupFunc) (ApplicationConfiguration, error) {
	result := config
	if token, ok := lookup(GitHubTokenVariable); ok && strings.TrimSpace(token) != "" {
		result.GitHub.Token = strings.TrimSpace(token)
	}
	if port, ok := lookup(PortVariable); ok && strings.TrimSpace(port) != "" {
		trimmedPort := strings.TrimSpace(port)
		if _, err := strconv.ParseUint(trimmedPort, 10, 16); err != nil {
			return ApplicationConfiguration{}, fmt.Errorf(invalidPortFormat, PortVariable, port)
		}
		result.Server.Address = ":" + trimmedPort
	}
	if apiKey, ok := lookup(summarizer.CredentialVariable(result.LLM.Provider)); ok && strings.TrimSpace(apiKey) != "" {
		result.LLM.APIKey = strings.TrimSpace(apiKey)
	}
	return result, nil
}

// Merge overlays override onto the receiver returning the combined configuration.
func (config ApplicationConfiguration) Merge(override ApplicationConfiguration) ApplicationConfiguration {
	result := config
	result.Server = result.Server.merge(override.Server)
	result.GitHub = result.GitHub.merge(override.GitHub)
	result.LLM = result.LLM.merge(override.LLM)
	result.Digest = result.Digest.merge(override.Digest)
	return result
}

func (config ServerConfiguration) merge(override ServerConfiguration) ServerConfiguration {
	result := config
	if override.Address != "" {
		result.Address = override.Address
	}
	if override.ShutdownTimeout != "" {
		result.ShutdownTimeout = override.ShutdownTimeout
	}
	return result
}

func (config GitHubConfiguration) merge(override GitHubConfiguration) GitHubConfiguration {
	result := config
	if override.APIBase != "" {
		result.APIBase = override.APIBase
	}
	if override.Token != "" {
		result.Token = override.Token
	}
	if override.Timeout != "" {
		result.Timeout = override.Timeout
	}
	if override.Concurrency != nil {
		result.Concurrency = cloneInt(override.Concurrency)
	}
	if override.RequestsPerSecond != nil {
		result.RequestsPerSecond = cloneFloat(override.RequestsPerSecond)
	}
	return result
}

func (config LLMConfiguration) merge(override LLMConfiguration) LLMConfiguration {
	result := config
	if override.Provider != "" {
		result.Provider = override.Provider
	}
	if override.BaseURL != "" {
		result.BaseURL = override.BaseURL
	}
	if override.Model != "" {
		result.Model = override.Model
	}
	if override.APIKey != "" {
		result.APIKey = override.APIKey
	}
	if override.MaxTokens != nil {
		result.MaxTokens = cloneInt(override.MaxTokens)
	}
	if override.Temperature != nil {
		result.Temperature = cloneFloat(override.Temperature)
	}
	if override.Timeout != "" {
		result.Timeout = override.Timeout
	}
	return result
}

func (config DigestConfiguration) merge(override DigestConfiguration) DigestConfiguration {
	result := config
	if len(override.IgnoredDirectories) > 0 {
		result.IgnoredDirectories = utils.DeduplicateStrings(override.IgnoredDirectories)
	}
	if len(override.IgnoredFiles) > 0 {
		result.IgnoredFiles = utils.DeduplicateStrings(override.IgnoredFiles)
	}
	if len(override.IgnoredExtensions) > 0 {
		result.IgnoredExtensions = utils.DeduplicateStrings(override.IgnoredExtensions)
	}
	if len(override.ConfigPatterns) > 0 {
		result.ConfigPatterns = utils.DeduplicateStrings(override.ConfigPatterns)
	}
	if len(override.EntryPatterns) > 0 {
		result.EntryPatterns = utils.DeduplicateStrings(override.EntryPatterns)
	}
	if override.CountTokens != nil {
		result.CountTokens = cloneBool(override.CountTokens)
	}
	if override.TokenModel != "" {
		result.TokenModel = override.TokenModel
	}
	return result
}

// ListenAddress returns the configured address or DefaultServerAddress.
func (config ServerConfiguration) ListenAddress() string {
	if strings.TrimSpace(config.Address) == "" {
		return DefaultServerAddress
	}
	return strings.TrimSpace(config.Address)
}

// ShutdownTimeoutDuration parses shutdown_timeout, defaulting to DefaultShutdownTimeout.
func (config ServerConfiguration) ShutdownTimeoutDuration() (time.Duration, error) {
	return parseDuration("server.shutdown_timeout", config.ShutdownTimeout, DefaultShutdownTimeout)
}

// TimeoutDuration parses the GitHub request timeout. Zero means the fetcher default.
func (config GitHubConfiguration) TimeoutDuration() (time.Duration, error) {
	return parseDuration("github.timeout", config.Timeout, 0)
}

// SummarizerConfig converts the LLM section into a summarizer configuration.
func (config LLMConfiguration) SummarizerConfig() (summarizer.Config, error) {
	timeout, err := parseDuration("llm.timeout", config.Timeout, 0)
	if err != nil {
		return summarizer.Config{}, err
	}
	result := summarizer.Config{
		Provider:    strings.TrimSpace(config.Provider),
		APIKey:      strings.TrimSpace(config.APIKey),
		BaseURL:     strings.TrimSpace(config.BaseURL),
		Model:       strings.TrimSpace(config.Model),
		Temperature: cloneFloat(config.Temperature),
		Timeout:     timeout,
	}
	if config.MaxTokens != nil {
		result.MaxTokens = *config.MaxTokens
	}
	return result, nil
}

// PolicyOptions converts the digest section into digest policy options, keeping built-in values
// for everything the configuration leaves unset.
func (config DigestConfiguration) PolicyOptions() digest.PolicyOptions {
	options := digest.DefaultPolicyOptions()
	if len(config.IgnoredDirectories) > 0 {
		options.IgnoredDirectories = utils.DeduplicateStrings(config.IgnoredDirectories)
	}
	if len(config.IgnoredFiles) > 0 {
		options.IgnoredFiles = utils.DeduplicateStrings(config.IgnoredFiles)
	}
	if len(config.IgnoredExtensions) > 0 {
		options.IgnoredExtensions = utils.DeduplicateStrings(config.IgnoredExtensions)
	}
	if len(config.ConfigPatterns) > 0 {
		options.ConfigPatterns = utils.DeduplicateStrings(config.ConfigPatterns)
	}
	if len(config.EntryPatterns) > 0 {
		options.EntryPointPatterns = utils.DeduplicateStrings(config.EntryPatterns)
	}
	return options
}

// TokenCountingEnabled reports whether digests should carry a token estimate.
func (config DigestConfiguration) TokenCountingEnabled() bool {
	return config.CountTokens != nil && *config.CountTokens
}

func parseDuration(field string, value string, fallback time.Duration) (time.Duration, error) {
	trimmedValue := strings.TrimSpace(value)
	if trimmedValue == "" {
		return fallback, nil
	}
	duration, err := time.ParseDuration(trimmedValue)
	if err != nil {
		return 0, fmt.Errorf(invalidDurationFormat, field, value, err)
	}
	return duration, nil
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}

func cloneFloat(value *float64) *float64 {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
